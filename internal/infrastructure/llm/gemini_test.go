package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"NewsSum/internal/config"
)

func TestNewGeminiClientRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewGeminiClient(context.Background(), config.GeminiConfig{Model: "gemini-2.0-flash"}); err == nil {
		t.Fatal("expected error without api key")
	}
	if _, err := NewGeminiClient(context.Background(), config.GeminiConfig{APIKey: "k"}); err == nil {
		t.Fatal("expected error without model")
	}
}

func TestGenerateReturnsTrimmedText(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"  A neutral summary.  "}]}}]}`))
	}))
	defer server.Close()

	client, err := newGeminiClient(context.Background(),
		config.GeminiConfig{APIKey: "test-key", Model: "gemini-2.0-flash", Timeout: 5 * time.Second},
		genai.HTTPOptions{BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	text, err := client.Generate(context.Background(), "summarize this")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if text != "A neutral summary." {
		t.Fatalf("unexpected text %q", text)
	}
	if !strings.HasSuffix(gotPath, "models/gemini-2.0-flash:generateContent") {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("unexpected api key header %q", gotKey)
	}
	if !strings.Contains(gotBody, "summarize this") {
		t.Fatalf("prompt missing from body: %s", gotBody)
	}
}

func TestGenerateSurfacesAPIErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	client, err := newGeminiClient(context.Background(),
		config.GeminiConfig{APIKey: "k", Model: "m"},
		genai.HTTPOptions{BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.Generate(context.Background(), "x"); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestGenerateNilClient(t *testing.T) {
	t.Parallel()

	var client *GeminiClient
	if _, err := client.Generate(context.Background(), "x"); err == nil {
		t.Fatal("expected error for nil client")
	}
}
