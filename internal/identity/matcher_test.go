package identity

import (
	"math"
	"strings"
	"testing"

	"verify-backend/internal/evidence"
)

func claimRecord(name, institution, program string, start, end int) evidence.IdentityRecord {
	ref := evidence.NewRef(evidence.KindUserClaim, "form")
	return evidence.IdentityRecord{
		FullName:        evidence.NewFieldValue(name, 1.0, ref),
		Institution:     evidence.NewFieldValue(institution, 1.0, ref),
		ProgramOrDegree: evidence.NewFieldValue(program, 1.0, ref),
		EnrollmentPeriod: evidence.NewFieldValue(
			evidence.EnrollmentPeriod{StartYear: start, EndYear: end}, 1.0, ref,
		),
	}
}

func docRecord(name, institution, program string, start, end int) evidence.IdentityRecord {
	ref := evidence.NewRef(evidence.KindDocumentOCR, "doc-1")
	return evidence.IdentityRecord{
		FullName:        evidence.NewFieldValue(name, 0.9, ref),
		Institution:     evidence.NewFieldValue(institution, 0.65, ref),
		ProgramOrDegree: evidence.NewFieldValue(program, 0.8, ref),
		EnrollmentPeriod: evidence.NewFieldValue(
			evidence.EnrollmentPeriod{StartYear: start, EndYear: end}, 0.8, ref,
		),
	}
}

func TestMatchApprovesAcronymInstitution(t *testing.T) {
	claimed := claimRecord("Rahul Sharma", "IIT Delhi", "B.Tech Computer Science", 2016, 2020)
	document := docRecord("Rahul Sharma", "Indian Institute of Technology Delhi", "BTech CSE", 2016, 2020)

	result := Matcher{}.Match(claimed, document)

	if result.Decision != DecisionApproved {
		t.Fatalf("decision = %s, want APPROVED (score=%.1f)", result.Decision, result.OverallScore)
	}
	if result.OverallScore < 90 {
		t.Fatalf("overall score = %.1f, want >= 90", result.OverallScore)
	}
	if len(result.Fields) != 4 {
		t.Fatalf("expected 4 field comparisons, got %d", len(result.Fields))
	}
	if !strings.Contains(result.Explanation, "Decision: APPROVED") {
		t.Fatalf("explanation missing decision: %q", result.Explanation)
	}
}

func TestMatchInstitutionMismatchLandsInReviewBand(t *testing.T) {
	claimed := claimRecord("John Smith", "Stanford University", "Computer Science", 2015, 2019)

	// The document institution appears expanded on some certificates and as the
	// bare acronym on others; both must land in the review band.
	for _, institution := range []string{"Massachusetts Institute of Technology", "MIT"} {
		document := docRecord("John Smith", institution, "Computer Science", 2015, 2019)

		result := Matcher{}.Match(claimed, document)

		if result.Decision != DecisionPendingReview {
			t.Fatalf("decision for %q = %s, want PENDING_REVIEW (score=%.1f)", institution, result.Decision, result.OverallScore)
		}
		if result.OverallScore < 60 || result.OverallScore > 76 {
			t.Fatalf("overall score for %q = %.1f, want within the review band", institution, result.OverallScore)
		}
	}
}

func TestMatchNoComparableFields(t *testing.T) {
	claimed := claimRecord("Rahul Sharma", "IIT Delhi", "CSE", 2016, 2020)
	result := Matcher{}.Match(claimed, evidence.IdentityRecord{})

	if result.Decision != DecisionRejected {
		t.Fatalf("decision = %s, want REJECTED", result.Decision)
	}
	if result.OverallScore != 0 {
		t.Fatalf("overall score = %.1f, want 0", result.OverallScore)
	}
	if len(result.Fields) != 0 {
		t.Fatalf("expected no field comparisons, got %d", len(result.Fields))
	}
}

func TestMatchRenormalizesOverPresentFields(t *testing.T) {
	ref := evidence.NewRef(evidence.KindUserClaim, "form")
	claimed := evidence.IdentityRecord{
		FullName:        evidence.NewFieldValue("Rahul Sharma", 1.0, ref),
		ProgramOrDegree: evidence.NewFieldValue("Computer Science", 1.0, ref),
	}
	docRef := evidence.NewRef(evidence.KindDocumentOCR, "doc-1")
	document := evidence.IdentityRecord{
		FullName:        evidence.NewFieldValue("Rahul Sharma", 0.9, docRef),
		ProgramOrDegree: evidence.NewFieldValue("Computer Science", 0.8, docRef),
		Institution:     evidence.NewFieldValue("IIT Delhi", 0.65, docRef),
	}

	result := Matcher{}.Match(claimed, document)

	// Name and program both match perfectly; missing fields must not drag the
	// renormalized score down.
	if math.Abs(result.OverallScore-100) > 1e-9 {
		t.Fatalf("overall score = %.1f, want 100", result.OverallScore)
	}
	if result.Decision != DecisionApproved {
		t.Fatalf("decision = %s, want APPROVED", result.Decision)
	}
	if len(result.Fields) != 2 {
		t.Fatalf("expected 2 comparisons, got %d", len(result.Fields))
	}
}

func TestDecisionForThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  Decision
	}{
		{100, DecisionApproved},
		{80, DecisionApproved},
		{79.999, DecisionPendingReview},
		{60, DecisionPendingReview},
		{59.999, DecisionRejected},
		{0, DecisionRejected},
	}
	for _, tc := range cases {
		if got := DecisionFor(tc.score); got != tc.want {
			t.Errorf("DecisionFor(%.3f) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestAcronymEquivalent(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"iit delhi", "indian institute of technology delhi", true},
		{"indian institute of technology delhi", "iit delhi", true},
		{"mit", "massachusetts institute of technology", true},
		{"nit trichy", "national institute of technology trichy", true},
		{"stanford university", "massachusetts institute of technology", false},
		{"iit delhi", "indian institute of technology bombay", false},
		{"", "indian institute of technology", false},
	}
	for _, tc := range cases {
		if got := acronymEquivalent(tc.a, tc.b); got != tc.want {
			t.Errorf("acronymEquivalent(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestInstitutionScore(t *testing.T) {
	cases := []struct {
		user, doc string
		want      float64
	}{
		{"Stanford University", "Stanford", 1.0},
		{"Delhi University", "University of Delhi", 1.0},
		{"IIT Delhi", "Indian Institute of Technology Delhi", 0.9},
	}
	for _, tc := range cases {
		if got := institutionScore(tc.user, tc.doc); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("institutionScore(%q, %q) = %f, want %f", tc.user, tc.doc, got, tc.want)
		}
	}
}

func TestCompareNamesTokenAlignment(t *testing.T) {
	c := compareNames("Rahul Kumar Sharma", "Rahul Sharma")
	if !c.TokensAligned {
		t.Fatalf("expected first/last token alignment, got %+v", c)
	}
	if c.Score >= 1.0 {
		t.Fatalf("score = %f, expected below 1.0 for differing strings", c.Score)
	}

	c = compareNames("Rahul Sharma", "Priya Patel")
	if c.TokensAligned {
		t.Fatalf("unexpected alignment for unrelated names")
	}
}

func TestComparePrograms(t *testing.T) {
	t.Run("exact", func(t *testing.T) {
		c := comparePrograms("Computer Science", "computer  science")
		if c.Score != 1.0 {
			t.Fatalf("score = %f, want 1.0", c.Score)
		}
	})

	t.Run("synonym bucket floors the score", func(t *testing.T) {
		c := comparePrograms("B.Tech Computer Science", "BTech CSE")
		if c.SynonymBucket != "computer science" {
			t.Fatalf("bucket = %q", c.SynonymBucket)
		}
		if c.Score < 0.8 {
			t.Fatalf("score = %f, want >= 0.8", c.Score)
		}
	})

	t.Run("unrelated programs", func(t *testing.T) {
		c := comparePrograms("Mechanical Engineering", "Commerce")
		if c.SynonymBucket != "" {
			t.Fatalf("unexpected bucket %q", c.SynonymBucket)
		}
		if c.Score >= 0.6 {
			t.Fatalf("score = %f, want below 0.6", c.Score)
		}
	})
}

func TestComparePeriods(t *testing.T) {
	cases := []struct {
		name        string
		user, doc   evidence.EnrollmentPeriod
		wantScore   float64
		wantOverlap int
	}{
		{
			"identical",
			evidence.EnrollmentPeriod{StartYear: 2016, EndYear: 2020},
			evidence.EnrollmentPeriod{StartYear: 2016, EndYear: 2020},
			1.0, 4,
		},
		{
			"disjoint",
			evidence.EnrollmentPeriod{StartYear: 2010, EndYear: 2014},
			evidence.EnrollmentPeriod{StartYear: 2016, EndYear: 2020},
			0.0, 0,
		},
		{
			"partial overlap",
			evidence.EnrollmentPeriod{StartYear: 2016, EndYear: 2020},
			evidence.EnrollmentPeriod{StartYear: 2018, EndYear: 2022},
			0.5, 2,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := comparePeriods(tc.user, tc.doc)
			if math.Abs(c.Score-tc.wantScore) > 1e-9 {
				t.Fatalf("score = %f, want %f", c.Score, tc.wantScore)
			}
			if c.OverlapYears != tc.wantOverlap {
				t.Fatalf("overlap = %d, want %d", c.OverlapYears, tc.wantOverlap)
			}
		})
	}
}
