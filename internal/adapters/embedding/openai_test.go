package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func noSleep(recorded *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*recorded = append(*recorded, d)
		return ctx.Err()
	}
}

func TestOpenAIAdapter_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing bearer token")
		}
		var req openAIEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Input) != 2 {
			t.Errorf("expected batched input, got %v", req.Input)
		}
		// out of order on purpose
		fmt.Fprint(w, `{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`)
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(server.URL+"/v1", "k", "m", time.Second)
	vecs, err := adapter.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("embeddings not reordered by index: %v", vecs)
	}
}

func TestOpenAIAdapter_RetriesRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if atomic.LoadInt32(&calls) == 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[0.5]}]}`)
	}))
	defer server.Close()

	var waits []time.Duration
	adapter := NewOpenAIAdapter(server.URL, "", "m", time.Second)
	adapter.sleep = noSleep(&waits)

	vec, err := adapter.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(vec) != 1 {
		t.Errorf("unexpected vector: %v", vec)
	}
	if len(waits) != 2 || waits[0] != 2*time.Second || waits[1] != 400*time.Millisecond {
		t.Errorf("unexpected waits: %v", waits)
	}
}

func TestOpenAIAdapter_GivesUp(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var waits []time.Duration
	adapter := NewOpenAIAdapter(server.URL, "", "m", time.Second)
	adapter.maxRetries = 2
	adapter.sleep = noSleep(&waits)

	if _, err := adapter.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestOpenAIAdapter_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	var waits []time.Duration
	adapter := NewOpenAIAdapter(server.URL, "", "m", time.Second)
	adapter.sleep = noSleep(&waits)

	if _, err := adapter.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("400 should not be retried, got %d calls", calls)
	}
}

func TestOpenAIAdapter_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[1]}]}`)
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(server.URL, "", "m", time.Second)
	if _, err := adapter.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected count mismatch error")
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 200 * time.Millisecond},
		{0, 200 * time.Millisecond},
		{1, 400 * time.Millisecond},
		{4, 3200 * time.Millisecond},
		{5, 5 * time.Second},
		{30, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := retryDelay(tt.attempt); got != tt.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
