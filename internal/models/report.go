package models

// ItemResult is the outcome of loading or processing one file in a batch.
// Err is nil on success; Texts or Units are populated depending on the operation.
type ItemResult struct {
	Path  string           `json:"path"`
	Texts []LoadedText     `json:"-"`
	Units []*RetrievalUnit `json:"-"`
	Err   error            `json:"-"`
}

// OK reports whether the item succeeded.
func (r ItemResult) OK() bool { return r.Err == nil }

// BatchReport aggregates per-file results in enumeration order.
type BatchReport struct {
	Items []ItemResult
}

// Succeeded returns the successful items in order.
func (b *BatchReport) Succeeded() []ItemResult {
	var out []ItemResult
	for _, it := range b.Items {
		if it.OK() {
			out = append(out, it)
		}
	}
	return out
}

// Failed returns the failed items in order.
func (b *BatchReport) Failed() []ItemResult {
	var out []ItemResult
	for _, it := range b.Items {
		if !it.OK() {
			out = append(out, it)
		}
	}
	return out
}

// Texts flattens the loaded texts of all successful items.
func (b *BatchReport) Texts() []LoadedText {
	var out []LoadedText
	for _, it := range b.Items {
		if it.OK() {
			out = append(out, it.Texts...)
		}
	}
	return out
}

// Units flattens the units of all successful items.
func (b *BatchReport) Units() []*RetrievalUnit {
	var out []*RetrievalUnit
	for _, it := range b.Items {
		if it.OK() {
			out = append(out, it.Units...)
		}
	}
	return out
}
