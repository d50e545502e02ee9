package models

import "strings"

// Conversation roles for chat history turns.
const (
	RoleStudent   = "student"
	RoleAssistant = "assistant"
)

// Turn is one message of a multi-turn conversation supplied by the caller.
type Turn struct {
	Role    string `json:"role" validate:"required,oneof=student assistant"`
	Content string `json:"content" validate:"required"`
}

// QueryRequest is a question for the retrieval orchestrator.
type QueryRequest struct {
	Question      string   `json:"question" validate:"required"`
	K             int      `json:"k,omitempty" validate:"gte=0,lte=50"`
	Filter        Metadata `json:"filter,omitempty"`
	ReturnSources bool     `json:"return_sources,omitempty"`
	History       []Turn   `json:"history,omitempty" validate:"dive"`
}

// Validate checks the request and fills defaults. defaultK is used when K is unset.
// Returns a ValidationError when the question is blank, K is negative, or the filter holds non-scalar values.
func (q *QueryRequest) Validate(defaultK int) error {
	q.Question = strings.TrimSpace(q.Question)
	if q.Question == "" {
		return NewValidationError("question", "cannot be empty")
	}
	if q.K < 0 {
		return NewValidationError("k", "must be positive")
	}
	if q.K == 0 {
		q.K = defaultK
	}
	for key, v := range q.Filter {
		if !IsScalar(v) {
			return NewValidationError("filter."+key, "value must be a string, number, or bool")
		}
	}
	return nil
}
