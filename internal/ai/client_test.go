package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func testMessages() []Message {
	return []Message{{Role: "user", Content: "hi"}}
}

func TestComplete(t *testing.T) {
	var gotReq chatRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"a fine review"}}]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "gpt-4o", "text-embedding-3-small", srv.URL)
	got, err := c.Complete(context.Background(), testMessages(), CompletionOptions{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "a fine review" {
		t.Errorf("content = %q", got)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	// Zero options pick up the defaults.
	if gotReq.Model != "gpt-4o" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if gotReq.Temperature != defaultTemperature {
		t.Errorf("temperature = %v", gotReq.Temperature)
	}
	if gotReq.MaxTokens != defaultMaxTokens {
		t.Errorf("max_tokens = %v", gotReq.MaxTokens)
	}
	if gotReq.TopP != defaultTopP {
		t.Errorf("top_p = %v", gotReq.TopP)
	}
	if gotReq.FrequencyPenalty != 0 || gotReq.PresencePenalty != 0 {
		t.Errorf("penalties = %v/%v, want zero", gotReq.FrequencyPenalty, gotReq.PresencePenalty)
	}
}

func TestComplete_OptionOverrides(t *testing.T) {
	var gotReq chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "gpt-4o", "text-embedding-3-small", srv.URL)
	_, err := c.Complete(context.Background(), testMessages(), CompletionOptions{
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxTokens:   2500,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotReq.Model != "gpt-4o-mini" || gotReq.Temperature != 0.2 || gotReq.MaxTokens != 2500 {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestComplete_NoAPIKey(t *testing.T) {
	c := NewClient("", "gpt-4o", "text-embedding-3-small")

	_, err := c.Complete(context.Background(), testMessages(), CompletionOptions{})
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
	if c.Configured() {
		t.Error("Configured() = true without key")
	}
}

func TestComplete_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"   "}}]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "gpt-4o", "text-embedding-3-small", srv.URL)
	_, err := c.Complete(context.Background(), testMessages(), CompletionOptions{})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
}

func TestComplete_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad model"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "gpt-4o", "text-embedding-3-small", srv.URL)
	_, err := c.Complete(context.Background(), testMessages(), CompletionOptions{})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
}

func TestComplete_RateLimitRetry(t *testing.T) {
	var attempt atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempt.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"recovered"}}]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "gpt-4o", "text-embedding-3-small", srv.URL)
	got, err := c.Complete(context.Background(), testMessages(), CompletionOptions{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "recovered" {
		t.Errorf("content = %q", got)
	}
	if n := attempt.Load(); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}

func TestComplete_RateLimitExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "gpt-4o", "text-embedding-3-small", srv.URL)
	_, err := c.Complete(context.Background(), testMessages(), CompletionOptions{})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed after exhausted retries", err)
	}
}

func TestEmbed(t *testing.T) {
	var gotReq embeddingRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "gpt-4o", "text-embedding-3-small", srv.URL)
	got, err := c.Embed(context.Background(), "objective text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("embedding = %v", got)
	}
	if gotReq.Model != "text-embedding-3-small" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Input) != 1 || gotReq.Input[0] != "objective text" {
		t.Errorf("input = %v", gotReq.Input)
	}
}

func TestEmbed_NoAPIKey(t *testing.T) {
	c := NewClient("", "gpt-4o", "text-embedding-3-small")
	_, err := c.Embed(context.Background(), "text")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
}

func TestEmbed_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "gpt-4o", "text-embedding-3-small", srv.URL)
	_, err := c.Embed(context.Background(), "text")
	if err == nil {
		t.Fatal("Embed succeeded on empty data")
	}
}
