package ai

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const doneSentinel = "[DONE]"

// maxFrameBytes bounds a single event line. Longer lines are dropped whole.
const maxFrameBytes = 2 * 1024 * 1024

type streamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	// Error is only sent by upstreams (OpenRouter reports mid-stream failures this way).
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (f *streamFrame) delta() string {
	if len(f.Choices) == 0 {
		return ""
	}
	return f.Choices[0].Delta.Content
}

// readLine returns the next line including its terminator. A line longer than
// maxFrameBytes is consumed and returned empty.
func readLine(br *bufio.Reader) ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > maxFrameBytes {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, err
	}
}

// decodeFrames reads "data:" lines from r as they arrive and hands every JSON
// frame to fn. The [DONE] sentinel, oversized lines and lines that are not
// JSON are skipped. Decoding stops early when fn returns false.
func decodeFrames(r io.Reader, fn func(f *streamFrame) bool) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		raw, err := readLine(br)
		if len(raw) > 0 && !handleLine(string(raw), fn) {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func handleLine(line string, fn func(f *streamFrame) bool) bool {
	line = strings.TrimRight(line, "\r\n")
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return true
	}
	data = strings.TrimSpace(data)
	if data == "" || data == doneSentinel {
		return true
	}
	var f streamFrame
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return true
	}
	return fn(&f)
}

// DecodeDeltas calls emit with each non-empty choices[0].delta.content found in
// an event stream. Malformed frames are ignored.
func DecodeDeltas(r io.Reader, emit func(delta string) bool) error {
	return decodeFrames(r, func(f *streamFrame) bool {
		if d := f.delta(); d != "" {
			return emit(d)
		}
		return true
	})
}

type deltaFrame struct {
	Choices [1]struct {
		Delta Message `json:"delta"`
	} `json:"choices"`
}

// WriteDelta writes one assistant content increment as an event frame.
func WriteDelta(w io.Writer, content string) error {
	var f deltaFrame
	f.Choices[0].Delta = Message{Role: RoleAssistant, Content: content}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}

// WriteDone writes the stream terminator.
func WriteDone(w io.Writer) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", doneSentinel)
	return err
}
