package model

// Field is one extracted value. Scalar fields set Value, list fields set Values.
type Field struct {
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`

	// Confidence in [0,1]. Nil when the extractor did not declare one.
	Confidence *float64 `json:"confidence,omitempty"`
}

// IsList reports whether the field carries list values.
func (f Field) IsList() bool {
	return f.Values != nil
}

// Extraction is what an extractor returned for a single page.
type Extraction struct {
	Fields map[string]Field `json:"fields"`

	// Confidence applies to every field without its own confidence.
	Confidence *float64 `json:"confidence,omitempty"`
}

// FieldConfidence returns the effective confidence for name: the field's own
// confidence when declared, otherwise the page confidence.
func (e Extraction) FieldConfidence(name string) *float64 {
	f, ok := e.Fields[name]
	if ok && f.Confidence != nil {
		return f.Confidence
	}
	return e.Confidence
}

// Scalar builds a scalar field.
func Scalar(value string) Field {
	return Field{Value: value}
}

// ScalarWithConfidence builds a scalar field with a declared confidence.
func ScalarWithConfidence(value string, confidence float64) Field {
	return Field{Value: value, Confidence: &confidence}
}

// List builds a list field. A nil slice is stored as empty so IsList holds.
func List(values ...string) Field {
	if values == nil {
		values = []string{}
	}
	return Field{Values: values}
}

// Confidence returns a pointer to c.
func Confidence(c float64) *float64 {
	return &c
}
