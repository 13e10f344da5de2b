package identity

import (
	"strings"
	"testing"
	"time"

	"verify-backend/internal/evidence"
)

func fixedNow() time.Time {
	return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
}

func testExtractor() *Extractor {
	return &Extractor{Now: fixedNow}
}

func TestExtractEmptyTextYieldsEmptyRecord(t *testing.T) {
	rec := testExtractor().Extract("   \n\t  ", "doc-1", nil)
	if !rec.IsEmpty() {
		t.Fatalf("expected empty record, got %+v", rec)
	}
}

func TestExtractLabeledFields(t *testing.T) {
	text := strings.Join([]string{
		"Delhi Technical University",
		"Student Name: Priya Patel",
		"Father's Name: Rajesh Patel",
		"Date of Birth: 14/08/1998",
		"Roll No: 2016CS10342",
		"Department of: Computer Science",
		"Program: B.Tech Computer Science",
		"2016 2020",
	}, "\n")

	rec := testExtractor().Extract(text, "doc-1", nil)

	if rec.FullName == nil || rec.FullName.Value != "Priya Patel" {
		t.Fatalf("full name = %+v", rec.FullName)
	}
	if rec.FullName.Confidence != confLabelStrong {
		t.Errorf("name confidence = %f, want %f", rec.FullName.Confidence, confLabelStrong)
	}
	if len(rec.FullName.Evidence) != 1 || rec.FullName.Evidence[0].Kind != evidence.KindDocumentOCR {
		t.Errorf("name evidence = %+v", rec.FullName.Evidence)
	}

	if rec.FathersName == nil || rec.FathersName.Value != "Rajesh Patel" {
		t.Fatalf("father's name = %+v", rec.FathersName)
	}
	if rec.DateOfBirth == nil || !rec.DateOfBirth.Value.Equal(time.Date(1998, 8, 14, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date of birth = %+v", rec.DateOfBirth)
	}
	if rec.RollNumber == nil || rec.RollNumber.Value != "2016CS10342" {
		t.Fatalf("roll number = %+v", rec.RollNumber)
	}
	if rec.Institution == nil || rec.Institution.Value != "Delhi Technical University" {
		t.Fatalf("institution = %+v", rec.Institution)
	}
	if rec.ProgramOrDegree == nil || rec.ProgramOrDegree.Value != "B.Tech Computer Science" {
		t.Fatalf("program = %+v", rec.ProgramOrDegree)
	}
	if rec.EnrollmentPeriod == nil {
		t.Fatal("expected enrollment period")
	}
	period := rec.EnrollmentPeriod.Value
	if period.StartYear != 2016 || period.EndYear != 2020 {
		t.Fatalf("period = %+v", period)
	}
	if rec.EnrollmentPeriod.Confidence != confYearPair {
		t.Errorf("period confidence = %f, want %f", rec.EnrollmentPeriod.Confidence, confYearPair)
	}
}

func TestExtractNameHeuristicFallback(t *testing.T) {
	text := "Certificate of Enrollment\nRahul Sharma\nawarded for academic standing"
	rec := testExtractor().Extract(text, "doc-1", nil)
	if rec.FullName == nil || rec.FullName.Value != "Rahul Sharma" {
		t.Fatalf("full name = %+v", rec.FullName)
	}
	if rec.FullName.Confidence != confHeuristic {
		t.Errorf("confidence = %f, want heuristic %f", rec.FullName.Confidence, confHeuristic)
	}
}

func TestExtractInstitutionKeywordLineSkippedAsName(t *testing.T) {
	text := "Indian Institute of Technology Delhi\nRahul Sharma"
	rec := testExtractor().Extract(text, "doc-1", nil)
	if rec.FullName == nil || rec.FullName.Value != "Rahul Sharma" {
		t.Fatalf("full name = %+v", rec.FullName)
	}
	if rec.Institution == nil || rec.Institution.Value != "Indian Institute of Technology Delhi" {
		t.Fatalf("institution = %+v", rec.Institution)
	}
	if rec.Institution.Confidence != confHeuristic {
		t.Errorf("institution confidence = %f, want %f", rec.Institution.Confidence, confHeuristic)
	}
}

func TestExtractProgramAbbreviation(t *testing.T) {
	text := "has completed the requirements of B.Tech in Computer Science at the university"
	rec := testExtractor().Extract(text, "doc-1", nil)
	if rec.ProgramOrDegree == nil {
		t.Fatal("expected program")
	}
	if rec.ProgramOrDegree.Confidence != confAbbreviation {
		t.Errorf("program confidence = %f, want %f", rec.ProgramOrDegree.Confidence, confAbbreviation)
	}
	if !strings.Contains(strings.ToLower(rec.ProgramOrDegree.Value), "computer science") {
		t.Errorf("program value = %q", rec.ProgramOrDegree.Value)
	}
}

func TestExtractSingleYearEstimatesPeriod(t *testing.T) {
	rec := testExtractor().Extract("Graduated in the year 2019", "doc-1", nil)
	if rec.EnrollmentPeriod == nil {
		t.Fatal("expected estimated period")
	}
	period := rec.EnrollmentPeriod.Value
	if period.StartYear != 2019 || period.EndYear != 2019+typicalProgramYears {
		t.Fatalf("period = %+v", period)
	}
	if rec.EnrollmentPeriod.Confidence != confYearEstimated {
		t.Errorf("confidence = %f, want %f", rec.EnrollmentPeriod.Confidence, confYearEstimated)
	}
}

func TestExtractIgnoresOutOfRangeYears(t *testing.T) {
	rec := testExtractor().Extract("Founded 1887, ref 2099", "doc-1", nil)
	if rec.EnrollmentPeriod != nil {
		t.Fatalf("expected no period, got %+v", rec.EnrollmentPeriod.Value)
	}
}

func TestExtractAttachesLayoutEvidence(t *testing.T) {
	blocks := []LayoutBlock{
		{Page: 2, Region: evidence.Region{X: 10, Y: 20, Width: 200, Height: 14}, Text: "Name: Priya Patel"},
	}
	rec := testExtractor().Extract("Name: Priya Patel", "doc-1", blocks)
	if rec.FullName == nil {
		t.Fatal("expected full name")
	}
	ref := rec.FullName.Evidence[0]
	if ref.Page == nil || *ref.Page != 2 {
		t.Fatalf("expected page 2, got %+v", ref.Page)
	}
	if ref.Region == nil || ref.Region.Width != 200 {
		t.Fatalf("expected region to be attached, got %+v", ref.Region)
	}
	if ref.ExtractedAt == nil || !ref.ExtractedAt.Equal(fixedNow()) {
		t.Fatalf("extractedAt = %+v", ref.ExtractedAt)
	}
}
