package identity

import (
	"time"

	"verify-backend/internal/evidence"
)

// Corroboration bonus: each additional agreeing source adds 0.1, capped at 0.3.
const (
	corroborationStep = 0.1
	corroborationCap  = 0.3
)

// Resolver fuses independently extracted partial identity records into one
// best-estimate record, field by field.
type Resolver struct{}

// Resolve merges the given records. A single input is returned unchanged; with
// more inputs each field picks the highest-scoring group of agreeing values,
// where agreement raises reliability.
func (Resolver) Resolve(records []evidence.IdentityRecord) evidence.IdentityRecord {
	if len(records) == 0 {
		return evidence.IdentityRecord{}
	}
	if len(records) == 1 {
		return records[0]
	}

	var resolved evidence.IdentityRecord
	resolved.FullName = resolveField(collect(records, func(r evidence.IdentityRecord) *evidence.FieldValue[string] { return r.FullName }), normalizeText)
	resolved.FathersName = resolveField(collect(records, func(r evidence.IdentityRecord) *evidence.FieldValue[string] { return r.FathersName }), normalizeText)
	resolved.DateOfBirth = resolveField(collect(records, func(r evidence.IdentityRecord) *evidence.FieldValue[time.Time] { return r.DateOfBirth }), func(t time.Time) string { return t.UTC().Format("2006-01-02") })
	resolved.Institution = resolveField(collect(records, func(r evidence.IdentityRecord) *evidence.FieldValue[string] { return r.Institution }), normalizeText)
	resolved.ProgramOrDegree = resolveField(collect(records, func(r evidence.IdentityRecord) *evidence.FieldValue[string] { return r.ProgramOrDegree }), normalizeText)
	resolved.Department = resolveField(collect(records, func(r evidence.IdentityRecord) *evidence.FieldValue[string] { return r.Department }), normalizeText)
	resolved.EnrollmentPeriod = resolveField(collect(records, func(r evidence.IdentityRecord) *evidence.FieldValue[evidence.EnrollmentPeriod] { return r.EnrollmentPeriod }), evidence.EnrollmentPeriod.String)
	resolved.RollNumber = resolveField(collect(records, func(r evidence.IdentityRecord) *evidence.FieldValue[string] { return r.RollNumber }), normalizeText)
	return resolved
}

func collect[T any](records []evidence.IdentityRecord, pick func(evidence.IdentityRecord) *evidence.FieldValue[T]) []*evidence.FieldValue[T] {
	var out []*evidence.FieldValue[T]
	for _, r := range records {
		if fv := pick(r); fv != nil {
			out = append(out, fv)
		}
	}
	return out
}

type valueGroup[T any] struct {
	members []*evidence.FieldValue[T]
}

func (g valueGroup[T]) score() float64 {
	sum := 0.0
	for _, m := range g.members {
		sum += m.Confidence
	}
	avg := sum / float64(len(g.members))
	return avg + g.bonus()
}

func (g valueGroup[T]) bonus() float64 {
	bonus := float64(len(g.members)-1) * corroborationStep
	if bonus > corroborationCap {
		bonus = corroborationCap
	}
	return bonus
}

// resolveField groups candidate values by their normalized form, scores each
// group by average confidence plus a capped repetition bonus, and returns the
// best member of the winning group with boosted confidence and unioned
// evidence.
func resolveField[T any](candidates []*evidence.FieldValue[T], normalize func(T) string) *evidence.FieldValue[T] {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	groups := map[string]*valueGroup[T]{}
	order := []string{}
	for _, fv := range candidates {
		key := normalize(fv.Value)
		if groups[key] == nil {
			groups[key] = &valueGroup[T]{}
			order = append(order, key)
		}
		groups[key].members = append(groups[key].members, fv)
	}

	var winner *valueGroup[T]
	bestScore := -1.0
	for _, key := range order {
		if s := groups[key].score(); s > bestScore {
			bestScore = s
			winner = groups[key]
		}
	}

	best := winner.members[0]
	for _, m := range winner.members[1:] {
		if m.Confidence > best.Confidence {
			best = m
		}
	}

	confidence := best.Confidence + winner.bonus()
	if confidence > 1.0 {
		confidence = 1.0
	}

	var refs []evidence.Ref
	for _, m := range winner.members {
		refs = append(refs, m.Evidence...)
	}

	return &evidence.FieldValue[T]{Value: best.Value, Confidence: confidence, Evidence: refs}
}
