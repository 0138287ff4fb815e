package nlu

import (
	"context"
	"errors"
)

// Intent classifications returned by the analyzer.
const (
	IntentBookAppointment = "BOOK_APPOINTMENT"
	IntentOther           = "OTHER"
)

// ErrRateLimited is returned when the language service rejects a call for
// quota reasons. Callers recover with keyword fallback instead of failing
// the turn.
var ErrRateLimited = errors.New("nlu: rate limited")

// ExtractedInfo holds intake fields the analyzer pulled out of free text.
// Empty fields were not mentioned.
type ExtractedInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Age     string `json:"age"`
	Gender  string `json:"gender"`
	Purpose string `json:"purpose"`
}

// IntentResult is the analyzer's verdict on one user message.
type IntentResult struct {
	Language      string        `json:"language"`
	Intent        string        `json:"intent"`
	ExtractedInfo ExtractedInfo `json:"extractedInfo"`
}

// Analyzer is the natural-language collaborator the booking engine calls.
type Analyzer interface {
	AnalyzeIntent(ctx context.Context, text string) (*IntentResult, error)
	GenerateReply(ctx context.Context, text, language, contextHint string) (string, error)
	TranscribeAudio(ctx context.Context, audio []byte, mimeType string) (string, error)
}
