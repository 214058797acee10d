package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenRouterProvider talks to an OpenAI-compatible /chat/completions API.
type OpenRouterProvider struct {
	BaseURL    string
	APIKey     string
	Model      string
	ImageModel string
	SiteURL    string
	AppName    string
	Client     *http.Client
}

type openRouterChatReq struct {
	Model       string            `json:"model"`
	Messages    []Message         `json:"messages"`
	Stream      bool              `json:"stream"`
	Modalities  []string          `json:"modalities,omitempty"`
	ImageConfig map[string]string `json:"image_config,omitempty"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Images  []struct {
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenRouterProvider(baseURL, apiKey, model, imageModel, siteURL, appName string) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterProvider{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		ImageModel: imageModel,
		SiteURL:    siteURL,
		AppName:    appName,
		Client:     &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *OpenRouterProvider) do(ctx context.Context, client *http.Client, body openRouterChatReq) (*http.Response, error) {
	if client == nil {
		return nil, errors.New("openrouter: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.New("openrouter: api key is required")
	}
	if strings.TrimSpace(body.Model) == "" {
		return nil, errors.New("openrouter: model is required")
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	if p.SiteURL != "" {
		req.Header.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		req.Header.Set("X-Title", p.AppName)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, upstreamError("openrouter", resp)
	}
	return resp, nil
}

func (p *OpenRouterProvider) complete(ctx context.Context, body openRouterChatReq) (*openRouterChatResp, error) {
	resp, err := p.do(ctx, p.Client, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded openRouterChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return nil, errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return nil, errors.New("openrouter: empty response")
	}
	return &decoded, nil
}

func (p *OpenRouterProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	decoded, err := p.complete(ctx, openRouterChatReq{Model: strings.TrimSpace(p.Model), Messages: messages})
	if err != nil {
		return "", err
	}
	return decoded.Choices[0].Message.Content, nil
}

// GenerateImage asks the image model for a square picture and returns the data URL
// of the first image in the reply.
func (p *OpenRouterProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	decoded, err := p.complete(ctx, openRouterChatReq{
		Model:       strings.TrimSpace(p.ImageModel),
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		Modalities:  []string{"image", "text"},
		ImageConfig: map[string]string{"aspect_ratio": "1:1"},
	})
	if err != nil {
		return "", err
	}
	images := decoded.Choices[0].Message.Images
	if len(images) == 0 || images[0].ImageURL.URL == "" {
		return "", errors.New("No image generated")
	}
	return images[0].ImageURL.URL, nil
}

// StreamChat streams assistant content chunks via SSE.
func (p *OpenRouterProvider) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if p.Client == nil {
			errs <- errors.New("openrouter: http client is nil")
			return
		}
		// no global timeout for streams; ctx controls it
		client := &http.Client{Transport: p.Client.Transport}
		resp, err := p.do(ctx, client, openRouterChatReq{
			Model:    strings.TrimSpace(p.Model),
			Messages: messages,
			Stream:   true,
		})
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		var frameErr error
		err = decodeFrames(resp.Body, func(f *streamFrame) bool {
			if f.Error != nil && f.Error.Message != "" {
				frameErr = errors.New(f.Error.Message)
				return false
			}
			if d := f.delta(); d != "" {
				select {
				case chunks <- d:
				case <-ctx.Done():
					return false
				}
			}
			return true
		})
		switch {
		case frameErr != nil:
			errs <- frameErr
		case err != nil:
			errs <- err
		case ctx.Err() != nil:
			errs <- ctx.Err()
		}
	}()

	return chunks, errs
}
