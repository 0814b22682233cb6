// SPDX-License-Identifier: Apache-2.0

// Package adapter implements the outbound HTTP transport against
// OpenAI-compatible AI providers: model listing, chat completions, and
// multipart speech-to-text uploads. Responses are normalized into plain
// text; transport failures are classified into a small set of sentinel
// errors.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/voicekeep/voicekeep/internal/logger"
	"github.com/voicekeep/voicekeep/internal/utils"
)

type httpProviderClient struct {
	client *utils.HTTPClient
	apiKey string
}

// NewHTTPProviderClient constructs an HTTP/REST implementation of
// [ProviderClient]. It normalises and validates baseURL, and configures the
// underlying client with the resolved base URL and request timeout.
//
// An unparsable baseURL is not an error here: the first request will fail
// and be classified, which is exactly what validation expects.
func NewHTTPProviderClient(baseURL, apiKey string, timeout time.Duration) ProviderClient {
	client := utils.NewHTTPClient()

	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		normalized = baseURL
	}

	client.
		SetBaseURL(normalized).
		SetTimeout(timeout)

	return &httpProviderClient{client: client, apiKey: apiKey}
}

// NewClientFactory returns a [ClientFactory] producing HTTP clients with
// the given request timeout.
func NewClientFactory(timeout time.Duration) ClientFactory {
	return func(baseURL, apiKey string) ProviderClient {
		return NewHTTPProviderClient(baseURL, apiKey, timeout)
	}
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// ListModels implements [ProviderClient]. It GETs /models with the bearer
// credential and returns the reported model ids.
func (h *httpProviderClient) ListModels(ctx context.Context) ([]string, error) {
	resp, err := h.authedRequest(ctx).Get("/models")
	if err != nil {
		return nil, fmt.Errorf("%w: list models: %v", ErrNetwork, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	var mr modelsResponse
	if err = json.Unmarshal(resp.Body(), &mr); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}

	models := make([]string, 0, len(mr.Data))
	for _, m := range mr.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// Chat implements [ProviderClient]. It POSTs the prompt pair to
// /chat/completions and returns the first choice's content.
func (h *httpProviderClient) Chat(ctx context.Context, model, systemPrompt, userContent string) (string, error) {
	req := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
	}

	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%w: chat request: %v", ErrNetwork, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return "", err
	}

	var cr chatResponse
	if err = json.Unmarshal(resp.Body(), &cr); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}

	return cr.Choices[0].Message.Content, nil
}

// Transcribe implements [ProviderClient]. It uploads the audio bytes and
// model identifier as one multipart request to /audio/transcriptions and
// returns the transcript.
func (h *httpProviderClient) Transcribe(ctx context.Context, model, filename string, audio io.Reader) (string, error) {
	logger.FromContext(ctx).Debug().Str("model", model).Str("file", filename).Msg("transcription upload")

	resp, err := h.authedRequest(ctx).
		SetFileReader("file", filename, audio).
		SetFormData(map[string]string{"model": model}).
		Post("/audio/transcriptions")
	if err != nil {
		return "", fmt.Errorf("%w: transcription upload: %v", ErrNetwork, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return "", err
	}

	var tr transcriptionResponse
	if err = json.Unmarshal(resp.Body(), &tr); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}

	return tr.Text, nil
}

func (h *httpProviderClient) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if h.apiKey != "" {
		req.SetHeader("Authorization", "Bearer "+h.apiKey)
	}
	return req
}
