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

const (
	completionPath = "/functions/v1/chat-completion"
	imagePath      = "/functions/v1/generate-image"
)

// FunctionsClient calls the chat-completion and generate-image edge functions on
// behalf of the signed-in user.
type FunctionsClient struct {
	BaseURL string
	Tokens  TokenSource
	// Client is used for image requests; streaming requests use StreamClient,
	// which has no global timeout so ctx alone bounds the stream.
	Client       *http.Client
	StreamClient *http.Client
}

func NewFunctionsClient(baseURL string, tokens TokenSource) *FunctionsClient {
	return &FunctionsClient{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Tokens:       tokens,
		Client:       &http.Client{Timeout: 90 * time.Second},
		StreamClient: &http.Client{},
	}
}

type completionReq struct {
	Messages []Message `json:"messages"`
	ChatID   string    `json:"chatId"`
}

type imageReq struct {
	Prompt string `json:"prompt"`
	ChatID string `json:"chatId"`
}

type imageResp struct {
	ImageURL string `json:"imageUrl"`
	Error    string `json:"error,omitempty"`
}

func (c *FunctionsClient) post(ctx context.Context, hc *http.Client, path string, body any) (*http.Response, error) {
	if hc == nil {
		return nil, errors.New("functions: http client is nil")
	}
	token, ok := c.Tokens.AccessToken()
	if !ok {
		return nil, ErrNoSession
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return hc.Do(req)
}

// StreamChat posts the history to the chat-completion function and streams the
// assistant deltas back. Frames are decoded as the body arrives.
func (c *FunctionsClient) StreamChat(ctx context.Context, chatID string, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		resp, err := c.post(ctx, c.StreamClient, completionPath, completionReq{Messages: messages, ChatID: chatID})
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errs <- completionError(resp)
			return
		}

		err = DecodeDeltas(resp.Body, func(d string) bool {
			select {
			case chunks <- d:
				return true
			case <-ctx.Done():
				return false
			}
		})
		switch {
		case err != nil:
			errs <- err
		case ctx.Err() != nil:
			errs <- ctx.Err()
		}
	}()

	return chunks, errs
}

// GenerateImage asks the generate-image function for an image and returns its URL.
func (c *FunctionsClient) GenerateImage(ctx context.Context, chatID, prompt string) (string, error) {
	resp, err := c.post(ctx, c.Client, imagePath, imageReq{Prompt: prompt, ChatID: chatID})
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return "", err
		}
		return "", fmt.Errorf("failed to generate image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", imageError(resp)
	}

	var decoded imageResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to generate image: decode response: %w", err)
	}
	if decoded.ImageURL == "" {
		return "", errors.New("failed to generate image: no image url in response")
	}
	return decoded.ImageURL, nil
}
