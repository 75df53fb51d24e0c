package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ImageGenerator produces a single image for a prompt and returns a URL the
// caller can download. Only the OpenAI images endpoint is implemented; the
// media resolver treats a missing generator as "source unavailable".
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

type OpenAIImageClient struct {
	client *http.Client
	apiKey string
	apiURL string
	model  string
}

func NewOpenAIImageClient(cfg Config) (*OpenAIImageClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai image generation requires an API key")
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "dall-e-3"
	}
	return &OpenAIImageClient{
		client: &http.Client{Timeout: 120 * time.Second},
		apiKey: cfg.APIKey,
		apiURL: apiURL,
		model:  model,
	}, nil
}

type openAIImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type openAIImageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

func (c *OpenAIImageClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if len(prompt) > 1000 {
		prompt = prompt[:1000]
	}
	payload, err := json.Marshal(openAIImageRequest{
		Model:          c.model,
		Prompt:         prompt,
		N:              1,
		Size:           "1024x1024",
		ResponseFormat: "url",
	})
	if err != nil {
		return "", fmt.Errorf("openai images: marshal request: %w", err)
	}

	resp, err := doWithRetry(ctx, c.client, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/images/generations", bytes.NewReader(payload))
		if reqErr != nil {
			return nil, fmt.Errorf("openai images: create request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("openai images: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai images: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var decoded openAIImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("openai images: decode response: %w", err)
	}
	if len(decoded.Data) == 0 || decoded.Data[0].URL == "" {
		return "", errors.New("openai images: empty response")
	}
	return decoded.Data[0].URL, nil
}
