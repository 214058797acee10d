package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaProvider_Chat(t *testing.T) {
	var got ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(ollamaChatResp{Message: Message{Role: RoleAssistant, Content: "hi there"}, Done: true})
	}))
	defer srv.Close()

	reply, err := NewOllamaProvider(srv.URL, "llama3").Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "hi there" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if got.Stream || got.Model != "llama3" || len(got.Messages) != 1 {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestOpenRouterProvider_Chat(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL, "key", "some/model", "", "", "Neta.ai")
	reply, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "hello" || auth != "Bearer key" {
		t.Fatalf("unexpected reply %q auth %q", reply, auth)
	}
}

func TestOpenRouterProvider_StreamErrorFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = WriteDelta(w, "par")
		_, _ = w.Write([]byte("data: {\"error\":{\"message\":\"provider overloaded\"}}\n\n"))
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL, "key", "some/model", "", "", "")
	reply, err := drain(p.StreamChat(context.Background(), nil))
	if reply != "par" || err == nil || err.Error() != "provider overloaded" {
		t.Fatalf("unexpected result %q %v", reply, err)
	}
}

func TestRegistry_UnknownNameListsRegistered(t *testing.T) {
	reg := NewRegistry()
	reg.Register("ollama", func(context.Context, string) (Provider, error) { return NewOllamaProvider("", ""), nil })
	reg.Register(" OpenRouter ", func(context.Context, string) (Provider, error) { return nil, nil })

	if names := strings.Join(reg.Names(), ","); names != "ollama,openrouter" {
		t.Fatalf("unexpected names %q", names)
	}
	if _, err := reg.Get(context.Background(), "OLLAMA", ""); err != nil {
		t.Fatalf("get: %v", err)
	}
	_, err := reg.Get(context.Background(), "gpt", "")
	if err == nil || err.Error() != "unknown ai provider: gpt (registered: ollama, openrouter)" {
		t.Fatalf("unexpected error %v", err)
	}
}
