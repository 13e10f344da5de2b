package identity

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"verify-backend/internal/evidence"
)

// Confidence bands per rule family. Label-anchored matches are trusted more
// than heuristic fallbacks.
const (
	confLabelStrong    = 0.92
	confLabel          = 0.88
	confAbbreviation   = 0.80
	confHeuristic      = 0.65
	confYearPair       = 0.80
	confYearEstimated  = 0.60
	minExtractableYear = 1950
)

// typicalProgramYears estimates the opposite bound when only one enrollment
// year is found. This is an approximation, not a guarantee.
const typicalProgramYears = 4

// LayoutBlock is a positioned chunk of OCR output. Pattern rules ignore the
// geometry; it only feeds region evidence.
type LayoutBlock struct {
	Page   int
	Region evidence.Region
	Text   string
}

// Extractor turns raw OCR text into a partial identity record using ordered
// rule sets. It is stateless and safe for concurrent use.
type Extractor struct {
	// Now returns the current time; overridable in tests for the year-range
	// upper bound.
	Now func() time.Time
}

var (
	nameLabelPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^\s*(?:student\s+name|candidate\s+name|name\s+of\s+(?:the\s+)?(?:student|candidate)|name|student|candidate)\s*[:\-]\s*(.+)$`),
	}
	fathersNamePattern = regexp.MustCompile(`(?im)^\s*(?:father'?s?\s+name|s/o|son\s+of|d/o|daughter\s+of)\s*[:\-]?\s*(.+)$`)
	dobPattern         = regexp.MustCompile(`(?im)^\s*(?:date\s+of\s+birth|d\.?o\.?b\.?)\s*[:\-]\s*(.+)$`)

	institutionLabelPattern = regexp.MustCompile(`(?im)^\s*(?:university|college|institute|institution|school)\s*[:\-]\s*(.+)$`)
	institutionKeywords     = []string{"university", "college", "institute", "institution", "polytechnic"}

	programLabelPattern = regexp.MustCompile(`(?im)^\s*(?:program(?:me)?|degree|course|branch|stream)\s*[:\-]\s*(.+)$`)
	programAbbrevRegex  = regexp.MustCompile(`(?i)\b(b\.?\s?tech|m\.?\s?tech|b\.?\s?sc|m\.?\s?sc|b\.?\s?e|m\.?\s?e|b\.?\s?a|m\.?\s?a|b\.?\s?com|m\.?\s?com|bba|mba|bca|mca|ph\.?\s?d)\b[^\n,;]*`)

	departmentPattern = regexp.MustCompile(`(?im)^\s*(?:department|dept\.?)\s*(?:of)?\s*[:\-]\s*(.+)$`)
	rollNumberPattern = regexp.MustCompile(`(?im)^\s*(?:roll\s*(?:no\.?|number)|registration\s*(?:no\.?|number)|reg\.?\s*no\.?|enrol?lment\s*(?:no\.?|number))\s*[:\-]?\s*([A-Za-z0-9/\-]+)\s*$`)

	yearPattern = regexp.MustCompile(`\b(19[5-9]\d|20\d\d)\b`)

	capitalizedNameLine = regexp.MustCompile(`^([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,3})$`)

	dobFormats = []string{"02/01/2006", "02-01-2006", "2006-01-02", "2 January 2006", "02 January 2006", "January 2, 2006"}
)

// Extract produces a partial identity record from OCR text. Empty input yields
// an empty record, never an error; absence is the correct representation for
// fields the rules cannot find.
func (e *Extractor) Extract(rawText, source string, blocks []LayoutBlock) evidence.IdentityRecord {
	var rec evidence.IdentityRecord
	text := strings.TrimSpace(rawText)
	if text == "" {
		return rec
	}

	now := time.Now().UTC()
	if e.Now != nil {
		now = e.Now()
	}

	rec.FullName = e.extractName(text, source, blocks, now)
	rec.FathersName = extractLabeled(fathersNamePattern, text, source, blocks, confLabel, now)
	rec.DateOfBirth = e.extractDateOfBirth(text, source, now)
	rec.Institution = e.extractInstitution(text, source, blocks, now)
	rec.ProgramOrDegree = e.extractProgram(text, source, blocks, now)
	rec.Department = extractLabeled(departmentPattern, text, source, blocks, confLabel, now)
	rec.RollNumber = extractLabeled(rollNumberPattern, text, source, blocks, confLabelStrong, now)
	rec.EnrollmentPeriod = e.extractEnrollmentPeriod(text, source, now)

	return rec
}

func (e *Extractor) extractName(text, source string, blocks []LayoutBlock, now time.Time) *evidence.FieldValue[string] {
	for _, pattern := range nameLabelPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			value := cleanLine(m[1])
			if value != "" {
				return fieldWithEvidence(value, confLabelStrong, source, blocks, now)
			}
		}
	}

	// Fallback: scan the first few lines for a capitalized 2-4 word sequence.
	lines := strings.Split(text, "\n")
	limit := 5
	if len(lines) < limit {
		limit = len(lines)
	}
	for _, line := range lines[:limit] {
		candidate := strings.TrimSpace(line)
		if m := capitalizedNameLine.FindStringSubmatch(candidate); m != nil {
			if !containsInstitutionKeyword(candidate) {
				return fieldWithEvidence(m[1], confHeuristic, source, blocks, now)
			}
		}
	}
	return nil
}

func (e *Extractor) extractInstitution(text, source string, blocks []LayoutBlock, now time.Time) *evidence.FieldValue[string] {
	if m := institutionLabelPattern.FindStringSubmatch(text); m != nil {
		value := cleanLine(m[1])
		if value != "" {
			return fieldWithEvidence(value, confLabel, source, blocks, now)
		}
	}

	// Fallback: first line mentioning an institution keyword.
	for _, line := range strings.Split(text, "\n") {
		candidate := cleanLine(line)
		if candidate == "" {
			continue
		}
		if containsInstitutionKeyword(candidate) {
			return fieldWithEvidence(candidate, confHeuristic, source, blocks, now)
		}
	}
	return nil
}

func (e *Extractor) extractProgram(text, source string, blocks []LayoutBlock, now time.Time) *evidence.FieldValue[string] {
	if m := programLabelPattern.FindStringSubmatch(text); m != nil {
		value := cleanLine(m[1])
		if value != "" {
			return fieldWithEvidence(value, confLabelStrong, source, blocks, now)
		}
	}
	if m := programAbbrevRegex.FindString(text); m != "" {
		return fieldWithEvidence(cleanLine(m), confAbbreviation, source, blocks, now)
	}
	return nil
}

func (e *Extractor) extractDateOfBirth(text, source string, now time.Time) *evidence.FieldValue[time.Time] {
	m := dobPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	raw := cleanLine(m[1])
	for _, layout := range dobFormats {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return evidence.NewFieldValue(parsed, confLabel, ocrRef(source, now))
		}
	}
	return nil
}

func (e *Extractor) extractEnrollmentPeriod(text, source string, now time.Time) *evidence.FieldValue[evidence.EnrollmentPeriod] {
	// Birth-date lines carry years that are not enrollment years.
	text = dobPattern.ReplaceAllString(text, "")

	maxYear := now.Year() + 5
	seen := map[int]bool{}
	var years []int
	for _, m := range yearPattern.FindAllString(text, -1) {
		year, err := strconv.Atoi(m)
		if err != nil || year < minExtractableYear || year > maxYear {
			continue
		}
		if !seen[year] {
			seen[year] = true
			years = append(years, year)
		}
	}

	switch len(years) {
	case 0:
		return nil
	case 1:
		// Estimate the opposite bound from a typical program duration. This is
		// an approximation and carries a lower confidence.
		year := years[0]
		period := evidence.EnrollmentPeriod{StartYear: year, EndYear: year + typicalProgramYears}
		if year+typicalProgramYears > maxYear {
			period = evidence.EnrollmentPeriod{StartYear: year - typicalProgramYears, EndYear: year}
		}
		return evidence.NewFieldValue(period, confYearEstimated, ocrRef(source, now))
	default:
		minY, maxY := years[0], years[0]
		for _, y := range years[1:] {
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
		period := evidence.EnrollmentPeriod{StartYear: minY, EndYear: maxY}
		return evidence.NewFieldValue(period, confYearPair, ocrRef(source, now))
	}
}

func extractLabeled(pattern *regexp.Regexp, text, source string, blocks []LayoutBlock, confidence float64, now time.Time) *evidence.FieldValue[string] {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	value := cleanLine(m[len(m)-1])
	if value == "" {
		return nil
	}
	return fieldWithEvidence(value, confidence, source, blocks, now)
}

func fieldWithEvidence(value string, confidence float64, source string, blocks []LayoutBlock, now time.Time) *evidence.FieldValue[string] {
	ref := ocrRef(source, now)
	for _, block := range blocks {
		if block.Text != "" && strings.Contains(normalizeText(block.Text), normalizeText(value)) {
			page := block.Page
			region := block.Region
			ref.Page = &page
			ref.Region = &region
			break
		}
	}
	return evidence.NewFieldValue(value, confidence, ref)
}

func ocrRef(source string, now time.Time) evidence.Ref {
	ref := evidence.NewRef(evidence.KindDocumentOCR, source)
	ts := now
	ref.ExtractedAt = &ts
	return ref
}

func cleanLine(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, ".,;|")
	return strings.TrimSpace(s)
}

func containsInstitutionKeyword(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range institutionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
