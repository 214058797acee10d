package ai

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func collect(t *testing.T, r io.Reader) []string {
	t.Helper()
	var out []string
	if err := DecodeDeltas(r, func(d string) bool {
		out = append(out, d)
		return true
	}); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestDecodeDeltas_AccumulatesContent(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
		"data: [DONE]\n\n"

	got := strings.Join(collect(t, strings.NewReader(stream)), "")
	if got != "Hello" {
		t.Fatalf("expected %q, got %q", "Hello", got)
	}
}

func TestDecodeDeltas_SkipsMalformedAndEmptyFrames(t *testing.T) {
	stream := ": keep-alive comment\n" +
		"data: {not json\n" +
		"data: {\"choices\":[]}\n" +
		"data: {\"choices\":[{\"delta\":{}}]}\n" +
		"event: message\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\r\n" +
		"data: [DONE]\n"

	got := collect(t, strings.NewReader(stream))
	if len(got) != 1 || got[0] != "ok" {
		t.Fatalf("unexpected deltas: %q", got)
	}
}

func TestDecodeDeltas_FramesSplitAcrossReads(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"abc\"}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"def\"}}]}\n"
	// one byte per Read call
	r := &trickleReader{data: []byte(stream)}

	got := strings.Join(collect(t, r), "")
	if got != "abcdef" {
		t.Fatalf("expected %q, got %q", "abcdef", got)
	}
}

func TestDecodeDeltas_OnlyDone(t *testing.T) {
	got := collect(t, strings.NewReader("data: [DONE]\n\n"))
	if len(got) != 0 {
		t.Fatalf("expected no deltas, got %q", got)
	}
}

func TestDecodeDeltas_StopsWhenEmitReturnsFalse(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n"
	var n int
	if err := DecodeDeltas(strings.NewReader(stream), func(string) bool {
		n++
		return false
	}); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one emit, got %d", n)
	}
}

func TestDecodeDeltas_DropsOversizedFrameOnly(t *testing.T) {
	huge := "data: {\"choices\":[{\"delta\":{\"content\":\"" + strings.Repeat("x", maxFrameBytes) + "\"}}]}\n"
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n" +
		huge +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n" +
		"data: [DONE]\n"

	got := strings.Join(collect(t, strings.NewReader(stream)), "")
	if got != "Hello" {
		t.Fatalf("expected %q, got %q", "Hello", got)
	}
}

func TestWriteDeltaRoundTripsThroughDecoder(t *testing.T) {
	var buf bytes.Buffer
	for _, part := range []string{"line one\n", "\"quoted\"", " end"} {
		if err := WriteDelta(&buf, part); err != nil {
			t.Fatalf("write delta: %v", err)
		}
	}
	if err := WriteDone(&buf); err != nil {
		t.Fatalf("write done: %v", err)
	}

	got := strings.Join(collect(t, &buf), "")
	if got != "line one\n\"quoted\" end" {
		t.Fatalf("unexpected content: %q", got)
	}
}

type trickleReader struct {
	data []byte
}

func (r *trickleReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}
