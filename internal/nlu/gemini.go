package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/brightcare/dental-booking-bot/pkg/logging"
)

const intentPromptTemplate = `You are an AI assistant for a dentist booking bot.
Detect the language (English, Hindi, Tamil, Telugu).
Determine the intent: is the user trying to book an appointment?
If they provide a name, phone number, age, gender (Male/Female/Other), or the
reason for the visit (e.g., pain, checkup, cleaning), extract them.
Return ONLY a JSON object:
{
  "language": "string",
  "intent": "BOOK_APPOINTMENT" | "OTHER",
  "extractedInfo": { "name": "string", "phone": "string", "age": "string", "gender": "string", "purpose": "string" }
}

User text: %q`

const replyPromptTemplate = `You are a helpful dentist receptionist bot.
Respond in the user's language: %s.
Current context: %s.
Keep the response professional, short, and friendly.

User message: %q`

// GeminiAnalyzer implements Analyzer using Google's Gemini API.
type GeminiAnalyzer struct {
	client  *genai.Client
	modelID string
	retry   RetryPolicy
	logger  *logging.Logger
}

// NewGeminiAnalyzer creates a Gemini-backed analyzer.
func NewGeminiAnalyzer(ctx context.Context, apiKey, modelID string, retry RetryPolicy, logger *logging.Logger) (*GeminiAnalyzer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("nlu: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-1.5-flash"
	}
	if logger == nil {
		logger = logging.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("nlu: failed to create gemini client: %w", err)
	}

	return &GeminiAnalyzer{client: client, modelID: modelID, retry: retry, logger: logger}, nil
}

// AnalyzeIntent classifies one user message and extracts intake fields.
func (a *GeminiAnalyzer) AnalyzeIntent(ctx context.Context, text string) (*IntentResult, error) {
	prompt := fmt.Sprintf(intentPromptTemplate, text)
	raw, err := a.generate(ctx, genai.Text(prompt))
	if err != nil {
		return nil, err
	}

	result, err := parseIntentJSON(raw)
	if err != nil {
		a.logger.Warn("nlu: unparseable intent response", "error", err, "response", raw)
		return nil, fmt.Errorf("nlu: intent response: %w", err)
	}
	return result, nil
}

// GenerateReply produces a conversational answer for non-booking messages.
func (a *GeminiAnalyzer) GenerateReply(ctx context.Context, text, language, contextHint string) (string, error) {
	if language == "" {
		language = "English"
	}
	prompt := fmt.Sprintf(replyPromptTemplate, language, contextHint, text)
	return a.generate(ctx, genai.Text(prompt))
}

// TranscribeAudio converts a voice note into text.
func (a *GeminiAnalyzer) TranscribeAudio(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "audio/ogg"
	}
	return a.generate(ctx,
		genai.Text("Transcribe this audio to text. Return only the transcription."),
		genai.Blob{MIMEType: mimeType, Data: audio},
	)
}

// Close releases resources held by the underlying client.
func (a *GeminiAnalyzer) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func (a *GeminiAnalyzer) generate(ctx context.Context, parts ...genai.Part) (string, error) {
	model := a.client.GenerativeModel(a.modelID)

	var text string
	err := a.retry.Do(ctx, func(ctx context.Context) error {
		resp, err := model.GenerateContent(ctx, parts...)
		if err != nil {
			return classifyErr(err)
		}
		text = extractText(resp)
		if text == "" {
			return errors.New("nlu: gemini returned empty content")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}

// classifyErr maps quota failures onto ErrRateLimited so callers can branch.
func classifyErr(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
	}
	if strings.Contains(err.Error(), "429") || strings.Contains(strings.ToLower(err.Error()), "resource exhausted") {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return fmt.Errorf("nlu: gemini call failed: %w", err)
}

// parseIntentJSON pulls the JSON object out of a model response that may be
// wrapped in prose or markdown fences.
func parseIntentJSON(raw string) (*IntentResult, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, errors.New("no JSON object found")
	}

	var result IntentResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &result); err != nil {
		return nil, err
	}
	if result.Intent != IntentBookAppointment {
		result.Intent = IntentOther
	}
	if result.Language == "" {
		result.Language = "English"
	}
	return &result, nil
}
