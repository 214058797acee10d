package ai

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// RemoteError is a non-2xx answer from the completion or image endpoint.
type RemoteError struct {
	StatusCode int
	Body       string
	msg        string
}

func (e *RemoteError) Error() string { return e.msg }

func readErrorBody(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	return strings.TrimSpace(string(body))
}

// completionError carries the response text verbatim, like the chat page shows it.
func completionError(resp *http.Response) *RemoteError {
	body := readErrorBody(resp)
	msg := body
	if msg == "" {
		msg = "Failed to get response"
	}
	return &RemoteError{StatusCode: resp.StatusCode, Body: body, msg: msg}
}

func imageError(resp *http.Response) *RemoteError {
	body := readErrorBody(resp)
	text := body
	if text == "" {
		text = "Failed to generate image"
	}
	return &RemoteError{
		StatusCode: resp.StatusCode,
		Body:       body,
		msg:        fmt.Sprintf("[Code: %d] %s", resp.StatusCode, text),
	}
}

func upstreamError(name string, resp *http.Response) error {
	msg := readErrorBody(resp)
	if msg == "" {
		msg = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return &RemoteError{StatusCode: resp.StatusCode, Body: msg, msg: name + ": " + msg}
}
