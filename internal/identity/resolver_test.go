package identity

import (
	"math"
	"testing"

	"verify-backend/internal/evidence"
)

func nameRecord(value string, confidence float64, source string) evidence.IdentityRecord {
	return evidence.IdentityRecord{
		FullName: evidence.NewFieldValue(value, confidence, evidence.NewRef(evidence.KindDocumentOCR, source)),
	}
}

func TestResolveEmptyInput(t *testing.T) {
	if got := (Resolver{}).Resolve(nil); !got.IsEmpty() {
		t.Fatalf("expected empty record, got %+v", got)
	}
}

func TestResolveSingleRecordUnchanged(t *testing.T) {
	rec := nameRecord("Rahul Sharma", 0.7, "page-1")
	got := (Resolver{}).Resolve([]evidence.IdentityRecord{rec})
	if got.FullName != rec.FullName {
		t.Fatalf("single record must pass through untouched")
	}
	if got.FullName.Confidence != 0.7 {
		t.Fatalf("confidence changed: %f", got.FullName.Confidence)
	}
}

func TestResolveCorroborationRaisesConfidence(t *testing.T) {
	records := []evidence.IdentityRecord{
		nameRecord("Rahul Sharma", 0.7, "page-1"),
		nameRecord("RAHUL  SHARMA", 0.8, "page-2"),
	}
	got := (Resolver{}).Resolve(records)
	if got.FullName == nil {
		t.Fatal("expected resolved name")
	}
	// Best member 0.8, plus one agreeing source worth 0.1.
	if math.Abs(got.FullName.Confidence-0.9) > 1e-9 {
		t.Fatalf("confidence = %f, want 0.9", got.FullName.Confidence)
	}
	if got.FullName.Value != "RAHUL  SHARMA" {
		t.Fatalf("winner value = %q, want the highest-confidence member", got.FullName.Value)
	}
	if len(got.FullName.Evidence) != 2 {
		t.Fatalf("expected evidence union of 2 refs, got %d", len(got.FullName.Evidence))
	}
}

func TestResolveConfidenceCapped(t *testing.T) {
	records := []evidence.IdentityRecord{
		nameRecord("Rahul Sharma", 0.95, "page-1"),
		nameRecord("rahul sharma", 0.9, "page-2"),
		nameRecord("Rahul Sharma", 0.9, "page-3"),
	}
	got := (Resolver{}).Resolve(records)
	if got.FullName.Confidence != 1.0 {
		t.Fatalf("confidence = %f, want capped at 1.0", got.FullName.Confidence)
	}
}

func TestResolveCorroborationBonusCapped(t *testing.T) {
	var records []evidence.IdentityRecord
	for i := 0; i < 5; i++ {
		records = append(records, nameRecord("Rahul Sharma", 0.5, "page"))
	}
	got := (Resolver{}).Resolve(records)
	// Four extra sources, but the bonus caps at 0.3.
	if math.Abs(got.FullName.Confidence-0.8) > 1e-9 {
		t.Fatalf("confidence = %f, want 0.8", got.FullName.Confidence)
	}
}

func TestResolveHighConfidenceSingletonBeatsWeakPair(t *testing.T) {
	records := []evidence.IdentityRecord{
		nameRecord("Rahul Sharma", 0.9, "page-1"),
		nameRecord("Rahul Sharme", 0.55, "page-2"),
		nameRecord("Rahul Sharme", 0.55, "page-3"),
	}
	got := (Resolver{}).Resolve(records)
	// Singleton scores 0.9; the pair scores 0.55 + 0.1 = 0.65.
	if got.FullName.Value != "Rahul Sharma" {
		t.Fatalf("winner = %q, want the high-confidence singleton", got.FullName.Value)
	}
}

func TestResolveAgreementOutweighsSlightlyStrongerSingleton(t *testing.T) {
	records := []evidence.IdentityRecord{
		nameRecord("Rahul Sharma", 0.85, "page-1"),
		nameRecord("Rahul Sharme", 0.75, "page-2"),
		nameRecord("Rahul Sharme", 0.75, "page-3"),
		nameRecord("Rahul Sharme", 0.75, "page-4"),
	}
	got := (Resolver{}).Resolve(records)
	// The trio scores 0.75 + 0.2 = 0.95 against the singleton's 0.85.
	if got.FullName.Value != "Rahul Sharme" {
		t.Fatalf("winner = %q, want the corroborated value", got.FullName.Value)
	}
	if math.Abs(got.FullName.Confidence-0.95) > 1e-9 {
		t.Fatalf("confidence = %f, want 0.95", got.FullName.Confidence)
	}
}

func TestResolveMergesAcrossFields(t *testing.T) {
	recA := evidence.IdentityRecord{
		FullName: evidence.NewFieldValue("Priya Patel", 0.9, evidence.NewRef(evidence.KindDocumentOCR, "page-1")),
	}
	recB := evidence.IdentityRecord{
		Institution: evidence.NewFieldValue("Delhi University", 0.65, evidence.NewRef(evidence.KindDocumentOCR, "page-2")),
		EnrollmentPeriod: evidence.NewFieldValue(
			evidence.EnrollmentPeriod{StartYear: 2016, EndYear: 2020}, 0.8,
			evidence.NewRef(evidence.KindDocumentOCR, "page-2"),
		),
	}
	got := (Resolver{}).Resolve([]evidence.IdentityRecord{recA, recB})
	if got.FullName == nil || got.FullName.Value != "Priya Patel" {
		t.Fatalf("full name = %+v", got.FullName)
	}
	if got.Institution == nil || got.Institution.Value != "Delhi University" {
		t.Fatalf("institution = %+v", got.Institution)
	}
	if got.EnrollmentPeriod == nil || got.EnrollmentPeriod.Value.EndYear != 2020 {
		t.Fatalf("period = %+v", got.EnrollmentPeriod)
	}
}
