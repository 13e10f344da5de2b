package identity

import (
	"fmt"
	"strings"

	"verify-backend/internal/evidence"
)

// Decision is the categorical outcome of a match.
type Decision string

const (
	DecisionApproved      Decision = "APPROVED"
	DecisionPendingReview Decision = "PENDING_REVIEW"
	DecisionRejected      Decision = "REJECTED"
)

// Decision thresholds. These are the single source of truth for automated
// escalation; no other component may duplicate them.
const (
	approveThreshold = 80.0
	reviewThreshold  = 60.0
)

// FieldKind identifies which field a comparison covers.
type FieldKind string

const (
	FieldName             FieldKind = "name"
	FieldInstitution      FieldKind = "institution"
	FieldProgram          FieldKind = "program"
	FieldEnrollmentPeriod FieldKind = "enrollmentPeriod"
)

// fieldWeights is the canonical weighting scheme. Weights renormalize over the
// fields actually compared, so a record missing a field still yields a defined
// score.
var fieldWeights = map[FieldKind]float64{
	FieldName:             0.30,
	FieldInstitution:      0.30,
	FieldProgram:          0.25,
	FieldEnrollmentPeriod: 0.15,
}

// FieldComparison is the closed set of per-field match results. Each variant
// carries its own strongly-typed user/document values.
type FieldComparison interface {
	Kind() FieldKind
	FieldScore() float64
	Explain() string
}

// NameComparison is the result of comparing full names.
type NameComparison struct {
	Field         FieldKind `json:"field"`
	UserValue     string    `json:"userValue"`
	DocumentValue string    `json:"documentValue"`
	Score         float64   `json:"score"`
	TokensAligned bool      `json:"tokensAligned"`
	Explanation   string    `json:"explanation"`
}

func (c NameComparison) Kind() FieldKind     { return c.Field }
func (c NameComparison) FieldScore() float64 { return c.Score }
func (c NameComparison) Explain() string     { return c.Explanation }

// InstitutionComparison is the result of comparing institution names.
type InstitutionComparison struct {
	Field         FieldKind `json:"field"`
	UserValue     string    `json:"userValue"`
	DocumentValue string    `json:"documentValue"`
	Score         float64   `json:"score"`
	Explanation   string    `json:"explanation"`
}

func (c InstitutionComparison) Kind() FieldKind     { return c.Field }
func (c InstitutionComparison) FieldScore() float64 { return c.Score }
func (c InstitutionComparison) Explain() string     { return c.Explanation }

// ProgramComparison is the result of comparing programs or degrees.
type ProgramComparison struct {
	Field         FieldKind `json:"field"`
	UserValue     string    `json:"userValue"`
	DocumentValue string    `json:"documentValue"`
	Score         float64   `json:"score"`
	SynonymBucket string    `json:"synonymBucket,omitempty"`
	Explanation   string    `json:"explanation"`
}

func (c ProgramComparison) Kind() FieldKind     { return c.Field }
func (c ProgramComparison) FieldScore() float64 { return c.Score }
func (c ProgramComparison) Explain() string     { return c.Explanation }

// EnrollmentComparison is the result of comparing enrollment periods.
type EnrollmentComparison struct {
	Field         FieldKind                 `json:"field"`
	UserValue     evidence.EnrollmentPeriod `json:"userValue"`
	DocumentValue evidence.EnrollmentPeriod `json:"documentValue"`
	OverlapYears  int                       `json:"overlapYears"`
	Score         float64                   `json:"score"`
	Explanation   string                    `json:"explanation"`
}

func (c EnrollmentComparison) Kind() FieldKind     { return c.Field }
func (c EnrollmentComparison) FieldScore() float64 { return c.Score }
func (c EnrollmentComparison) Explain() string     { return c.Explanation }

// MatchResult is the matcher's full output: an overall 0-100 score, the
// decision derived from it, the per-field breakdown, and a human-readable
// explanation surfaced to reviewers and appellants.
type MatchResult struct {
	OverallScore float64           `json:"overallScore"`
	Decision     Decision          `json:"decision"`
	Fields       []FieldComparison `json:"fields"`
	Explanation  string            `json:"explanation"`
}

// Matcher compares a claimed identity record to a resolved document record.
// It is stateless and safe for concurrent use.
type Matcher struct{}

// Match evaluates every field present on both sides, aggregates the weighted
// mean over the compared fields, and derives the decision.
func (Matcher) Match(claimed, document evidence.IdentityRecord) MatchResult {
	var comparisons []FieldComparison

	if claimed.FullName != nil && document.FullName != nil {
		comparisons = append(comparisons, compareNames(claimed.FullName.Value, document.FullName.Value))
	}
	if claimed.Institution != nil && document.Institution != nil {
		comparisons = append(comparisons, compareInstitutions(claimed.Institution.Value, document.Institution.Value))
	}
	if claimed.ProgramOrDegree != nil && document.ProgramOrDegree != nil {
		comparisons = append(comparisons, comparePrograms(claimed.ProgramOrDegree.Value, document.ProgramOrDegree.Value))
	}
	if claimed.EnrollmentPeriod != nil && document.EnrollmentPeriod != nil {
		comparisons = append(comparisons, comparePeriods(claimed.EnrollmentPeriod.Value, document.EnrollmentPeriod.Value))
	}

	if len(comparisons) == 0 {
		return MatchResult{
			OverallScore: 0,
			Decision:     DecisionRejected,
			Fields:       []FieldComparison{},
			Explanation:  "No comparable fields could be evaluated between the claim and the document. Decision: REJECTED.",
		}
	}

	weightSum := 0.0
	weighted := 0.0
	for _, c := range comparisons {
		w := fieldWeights[c.Kind()]
		weightSum += w
		weighted += c.FieldScore() * w
	}
	overall := weighted / weightSum * 100.0
	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}

	decision := DecisionFor(overall)

	parts := make([]string, 0, len(comparisons)+1)
	for _, c := range comparisons {
		parts = append(parts, c.Explain())
	}
	parts = append(parts, fmt.Sprintf("Overall score %.1f. Decision: %s.", overall, decision))

	return MatchResult{
		OverallScore: overall,
		Decision:     decision,
		Fields:       comparisons,
		Explanation:  strings.Join(parts, " "),
	}
}

// DecisionFor maps an overall score to a decision: >=80 approved, 60-79
// pending review, below 60 rejected.
func DecisionFor(overall float64) Decision {
	switch {
	case overall >= approveThreshold:
		return DecisionApproved
	case overall >= reviewThreshold:
		return DecisionPendingReview
	default:
		return DecisionRejected
	}
}

func compareNames(user, doc string) NameComparison {
	nu := normalizeLoose(user)
	nd := normalizeLoose(doc)

	c := NameComparison{Field: FieldName, UserValue: user, DocumentValue: doc}

	if nu == nd && nu != "" {
		c.Score = 1.0
		c.TokensAligned = true
		c.Explanation = fmt.Sprintf("Name %q matches the document exactly.", user)
		return c
	}

	c.Score = similarityRatio(nu, nd)

	// Secondary signal: first and last name tokens individually aligning
	// strengthens the explanation even when the full strings differ.
	uTokens := strings.Fields(nu)
	dTokens := strings.Fields(nd)
	if len(uTokens) > 0 && len(dTokens) > 0 {
		firstOK := similarityRatio(uTokens[0], dTokens[0]) >= 0.8
		lastOK := similarityRatio(uTokens[len(uTokens)-1], dTokens[len(dTokens)-1]) >= 0.8
		c.TokensAligned = firstOK && lastOK
	}

	switch {
	case c.TokensAligned:
		c.Explanation = fmt.Sprintf("Name %q differs from document name %q (%.0f%% similar) but first and last names individually align.", user, doc, c.Score*100)
	case c.Score >= 0.6:
		c.Explanation = fmt.Sprintf("Name %q is similar to document name %q (%.0f%% similar).", user, doc, c.Score*100)
	default:
		c.Explanation = fmt.Sprintf("Name %q does not match document name %q (%.0f%% similar).", user, doc, c.Score*100)
	}
	return c
}

// institutionGenericWords are dropped before the similarity comparison so
// "Stanford University" and "Stanford" compare equal.
var institutionGenericWords = map[string]bool{
	"university": true, "college": true, "institute": true,
	"of": true, "the": true, "and": true,
}

// institutionStopwords are the connectives excluded from acronym expansion,
// leaving meaningful words like "institute" to contribute initials.
var institutionStopwords = map[string]bool{
	"of": true, "the": true, "and": true, "for": true,
}

func compareInstitutions(user, doc string) InstitutionComparison {
	c := InstitutionComparison{Field: FieldInstitution, UserValue: user, DocumentValue: doc}
	c.Score = institutionScore(user, doc)

	// Thresholds below shape only the explanation text, never the score fed to
	// aggregation.
	switch {
	case c.Score >= 0.8:
		c.Explanation = fmt.Sprintf("Institution %q is a close match for %q (%.0f%% similar).", user, doc, c.Score*100)
	case c.Score >= 0.6:
		c.Explanation = fmt.Sprintf("Institution %q is similar to %q (%.0f%% similar).", user, doc, c.Score*100)
	default:
		c.Explanation = fmt.Sprintf("Institution %q does not match %q (%.0f%% similar).", user, doc, c.Score*100)
	}
	return c
}

func institutionScore(user, doc string) float64 {
	nu := stripGenericWords(normalizeLoose(user))
	nd := stripGenericWords(normalizeLoose(doc))
	if nu == nd && nu != "" {
		return 1.0
	}
	if acronymEquivalent(normalizeLoose(user), normalizeLoose(doc)) {
		return 0.9
	}
	return similarityRatio(nu, nd)
}

func stripGenericWords(normalized string) string {
	var kept []string
	for _, tok := range strings.Fields(normalized) {
		if !institutionGenericWords[tok] {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// acronymEquivalent reports whether one institution name is an acronym
// rendering of the other, e.g. "IIT Delhi" against "Indian Institute of
// Technology Delhi".
func acronymEquivalent(a, b string) bool {
	return acronymCovers(tokensWithoutStopwords(a), tokensWithoutStopwords(b)) ||
		acronymCovers(tokensWithoutStopwords(b), tokensWithoutStopwords(a))
}

func tokensWithoutStopwords(normalized string) []string {
	var kept []string
	for _, tok := range strings.Fields(normalized) {
		if !institutionStopwords[tok] {
			kept = append(kept, tok)
		}
	}
	return kept
}

// acronymCovers checks that every short-side token is either a near-identical
// long-side token or the initials of a consecutive run of long-side tokens,
// consuming the long side in order and entirely.
func acronymCovers(short, long []string) bool {
	if len(short) == 0 || len(long) == 0 || len(short) >= len(long) {
		return false
	}
	j := 0
	for _, tok := range short {
		if j >= len(long) {
			return false
		}
		if similarityRatio(tok, long[j]) >= 0.85 {
			j++
			continue
		}
		runes := []rune(tok)
		if j+len(runes) > len(long) {
			return false
		}
		for k, r := range runes {
			if []rune(long[j+k])[0] != r {
				return false
			}
		}
		j += len(runes)
	}
	return j == len(long)
}

func comparePrograms(user, doc string) ProgramComparison {
	nu := normalizeLoose(user)
	nd := normalizeLoose(doc)

	c := ProgramComparison{Field: FieldProgram, UserValue: user, DocumentValue: doc}

	if nu == nd && nu != "" {
		c.Score = 1.0
		c.Explanation = fmt.Sprintf("Program %q matches the document exactly.", user)
		return c
	}

	c.Score = similarityRatio(nu, nd)

	// A shared synonym bucket floors the score: "B.Tech Computer Science" and
	// "BTech CSE" are the same program on paper.
	if bu := programBucket(nu); bu != "" && bu == programBucket(nd) {
		c.SynonymBucket = bu
		if c.Score < 0.8 {
			c.Score = 0.8
		}
		c.Explanation = fmt.Sprintf("Program %q and document program %q both refer to %s.", user, doc, bu)
		return c
	}

	if c.Score >= 0.6 {
		c.Explanation = fmt.Sprintf("Program %q is similar to document program %q (%.0f%% similar).", user, doc, c.Score*100)
	} else {
		c.Explanation = fmt.Sprintf("Program %q does not match document program %q (%.0f%% similar).", user, doc, c.Score*100)
	}
	return c
}

func comparePeriods(user, doc evidence.EnrollmentPeriod) EnrollmentComparison {
	c := EnrollmentComparison{Field: FieldEnrollmentPeriod, UserValue: user, DocumentValue: doc}

	overlap := minInt(user.EndYear, doc.EndYear) - maxInt(user.StartYear, doc.StartYear)
	if overlap < 0 {
		overlap = 0
	}
	c.OverlapYears = overlap

	avgDuration := (float64(user.Duration()) + float64(doc.Duration())) / 2.0
	score := float64(overlap) / avgDuration
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	c.Score = score

	switch {
	case overlap == 0:
		c.Explanation = fmt.Sprintf("Enrollment period %s does not overlap the document period %s.", user, doc)
	case score >= 0.99:
		c.Explanation = fmt.Sprintf("Enrollment period %s matches the document period %s.", user, doc)
	default:
		c.Explanation = fmt.Sprintf("Enrollment period %s overlaps the document period %s for %d year(s).", user, doc, overlap)
	}
	return c
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
