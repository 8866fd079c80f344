package model

import (
	"sort"
	"time"
)

// FieldValue is the winning value of a scalar field in an AggregatedRecord.
type FieldValue struct {
	Value      string   `json:"value"`
	Confidence *float64 `json:"confidence,omitempty"`

	// Source is the URL of the page the value came from.
	Source string `json:"source"`

	// Seq is the discovery sequence of Source.
	Seq int `json:"-"`
}

// ListItem is one deduplicated entry of a list field.
type ListItem struct {
	Value  string `json:"value"`
	Source string `json:"source"`

	// Seq and Pos order items by discovery sequence of Source, then by
	// position within that page's list.
	Seq int `json:"-"`
	Pos int `json:"-"`
}

// RecordStats are the per-state page counters of an AggregatedRecord.
type RecordStats struct {
	PagesProcessed      int           `json:"pages_processed"`
	PagesSucceeded      int           `json:"pages_succeeded"`
	PagesFailed         int           `json:"pages_failed"`
	PagesTimedOut       int           `json:"pages_timed_out"`
	PagesRedirected     int           `json:"pages_redirected"`
	TotalProcessingTime time.Duration `json:"total_processing_time"`
}

// AggregatedRecord is the site-level merge of every page's extraction.
type AggregatedRecord struct {
	Fields map[string]FieldValue `json:"fields"`
	Lists  map[string][]ListItem `json:"lists"`
	Stats  RecordStats           `json:"stats"`
}

// NewAggregatedRecord returns an empty record.
func NewAggregatedRecord() AggregatedRecord {
	return AggregatedRecord{
		Fields: make(map[string]FieldValue),
		Lists:  make(map[string][]ListItem),
	}
}

// Clone returns a deep copy of r.
func (r AggregatedRecord) Clone() AggregatedRecord {
	out := AggregatedRecord{
		Fields: make(map[string]FieldValue, len(r.Fields)),
		Lists:  make(map[string][]ListItem, len(r.Lists)),
		Stats:  r.Stats,
	}
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	for k, items := range r.Lists {
		out.Lists[k] = append([]ListItem(nil), items...)
	}
	return out
}

// Value returns the scalar value of name, or "" when unset.
func (r AggregatedRecord) Value(name string) string {
	return r.Fields[name].Value
}

// ListValues returns the plain values of list field name.
func (r AggregatedRecord) ListValues(name string) []string {
	items := r.Lists[name]
	values := make([]string, 0, len(items))
	for _, item := range items {
		values = append(values, item.Value)
	}
	return values
}

// FieldNames returns the scalar field names in sorted order.
func (r AggregatedRecord) FieldNames() []string {
	return sortedKeys(r.Fields)
}

// ListNames returns the list field names in sorted order.
func (r AggregatedRecord) ListNames() []string {
	return sortedKeys(r.Lists)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
