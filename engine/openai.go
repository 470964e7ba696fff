package engine

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// openAIConfidence stands in for a score the API does not report.
const openAIConfidence = 0.95

// OpenAIEngine transcribes through the hosted Whisper API.
type OpenAIEngine struct {
	client   *openai.Client
	language string
}

// NewOpenAIEngine constructs the hosted backend.
func NewOpenAIEngine(s Settings) (Engine, error) {
	if s.APIKey == "" {
		return nil, &EngineError{Backend: "openai", Detail: "OPENAI_API_KEY is required"}
	}
	return &OpenAIEngine{
		client:   openai.NewClient(s.APIKey),
		language: s.Language,
	}, nil
}

func init() {
	Register("openai", NewOpenAIEngine)
}

// Transcribe uploads the audio file and normalizes the verbose response.
func (e *OpenAIEngine) Transcribe(ctx context.Context, audioRef string) (Result, error) {
	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioRef,
		Language: e.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		detail := "transcription request failed"
		if ctx.Err() != nil {
			detail = "transcription timed out"
		}
		return Result{}, &EngineError{Backend: "openai", Detail: detail, Err: err}
	}

	language := resp.Language
	if language == "" {
		language = e.language
	}

	return Result{
		Text:       resp.Text,
		Language:   language,
		Duration:   time.Duration(resp.Duration * float64(time.Second)),
		Confidence: openAIConfidence,
	}, nil
}
