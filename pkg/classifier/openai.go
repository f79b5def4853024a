package classifier

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/teslashibe/crywatch/internal/httpc"
	"github.com/teslashibe/crywatch/pkg/camera"
)

const backendOpenAI = "openai"

// openAIPrompt asks for the same body the detector server returns so both
// backends share one parser.
const openAIPrompt = `Look at the person in this photo. Are they crying?
Reply with a JSON object and nothing else: {"emotion_detected": true} if they are crying, {"emotion_detected": false} otherwise.`

// OpenAI classifies photos with an OpenAI-compatible vision model.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI vision classifier. WithBaseURL points it at
// any OpenAI-compatible server.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	} else {
		oc.HTTPClient = httpc.NewClient(cfg.Timeout)
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		logger: cfg.Logger.With("component", "classifier.openai"),
	}, nil
}

// Classify implements Classifier.
func (o *OpenAI) Classify(ctx context.Context, photo *camera.Photo) (*Result, error) {
	if photo == nil || len(photo.Data) == 0 {
		return nil, ErrNoPhoto
	}
	start := time.Now()

	dataURL := "data:" + PhotoContentType + ";base64," + base64.StdEncoding.EncodeToString(photo.Data)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: openAIPrompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: openai.ImageURLDetailLow,
				}},
			},
		}},
		MaxTokens:   20,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &APIError{
				StatusCode: apiErr.HTTPStatusCode,
				Message:    apiErr.Message,
				Backend:    backendOpenAI,
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	detected, err := decodeDetection([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		return nil, err
	}

	latency := time.Since(start)
	o.logger.Debug("photo classified",
		"emotion_detected", detected,
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
		"latency_ms", latency.Milliseconds(),
	)

	return &Result{
		EmotionDetected: detected,
		Backend:         backendOpenAI,
		Latency:         latency,
	}, nil
}

var _ Classifier = (*OpenAI)(nil)
