package evidence

import (
	"fmt"
	"time"
)

// EnrollmentPeriod is an inclusive year range.
type EnrollmentPeriod struct {
	StartYear int `json:"startYear"`
	EndYear   int `json:"endYear"`
}

// String renders the period as "2016-2020".
func (p EnrollmentPeriod) String() string {
	return fmt.Sprintf("%d-%d", p.StartYear, p.EndYear)
}

// Duration returns the period length in years, never below 1.
func (p EnrollmentPeriod) Duration() int {
	d := p.EndYear - p.StartYear
	if d < 1 {
		return 1
	}
	return d
}

// IdentityRecord is a sparse bag of extracted or claimed identity fields.
// A nil field means "not found", which is distinct from a present value with
// low confidence.
type IdentityRecord struct {
	FullName         *FieldValue[string]           `json:"fullName,omitempty"`
	FathersName      *FieldValue[string]           `json:"fathersName,omitempty"`
	DateOfBirth      *FieldValue[time.Time]        `json:"dateOfBirth,omitempty"`
	Institution      *FieldValue[string]           `json:"institution,omitempty"`
	ProgramOrDegree  *FieldValue[string]           `json:"programOrDegree,omitempty"`
	Department       *FieldValue[string]           `json:"department,omitempty"`
	EnrollmentPeriod *FieldValue[EnrollmentPeriod] `json:"enrollmentPeriod,omitempty"`
	RollNumber       *FieldValue[string]           `json:"rollNumber,omitempty"`
}

// IsEmpty reports whether no field was found at all.
func (r IdentityRecord) IsEmpty() bool {
	return r.FullName == nil &&
		r.FathersName == nil &&
		r.DateOfBirth == nil &&
		r.Institution == nil &&
		r.ProgramOrDegree == nil &&
		r.Department == nil &&
		r.EnrollmentPeriod == nil &&
		r.RollNumber == nil
}
