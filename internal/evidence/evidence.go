package evidence

import "time"

// Kind identifies where a field value came from.
type Kind string

const (
	KindUserClaim        Kind = "USER_CLAIM"
	KindDocumentOCR      Kind = "DOCUMENT_OCR"
	KindDocumentMetadata Kind = "DOCUMENT_METADATA"
	KindExternalAPI      Kind = "EXTERNAL_API"
)

// Region is a bounding box within a document page.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Ref records the provenance of a single datum. Refs are immutable once created.
type Ref struct {
	Kind        Kind       `json:"kind"`
	Source      string     `json:"source"`
	Page        *int       `json:"page,omitempty"`
	Region      *Region    `json:"region,omitempty"`
	ExtractedAt *time.Time `json:"extractedAt,omitempty"`
}

// NewRef constructs a Ref for the given kind and source.
func NewRef(kind Kind, source string) Ref {
	return Ref{Kind: kind, Source: source}
}

// FieldValue wraps a value with a belief score and its provenance.
// Confidence is a belief score in [0,1], not a probability guarantee.
type FieldValue[T any] struct {
	Value      T       `json:"value"`
	Confidence float64 `json:"confidence"`
	Evidence   []Ref   `json:"evidence"`
}

// NewFieldValue builds a FieldValue with confidence clamped to [0,1].
func NewFieldValue[T any](value T, confidence float64, refs ...Ref) *FieldValue[T] {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return &FieldValue[T]{Value: value, Confidence: confidence, Evidence: refs}
}
