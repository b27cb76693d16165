package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openlgu/badyet/internal/jurisdiction"
	"github.com/openlgu/badyet/internal/scope"
)

func TestEmbedQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/embed-query" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Text != "health budget" {
			t.Errorf("unexpected text %q", req.Text)
		}
		json.NewEncoder(w).Encode(EmbedResult{
			Embedding: []float32{0.1, 0.2, 0.3},
			Model:     "bge-small",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sekrit", 0)
	got, err := c.EmbedQuery(context.Background(), "health budget", "")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if len(got.Embedding) != 3 {
		t.Errorf("expected 3 dims, got %d", len(got.Embedding))
	}
	if got.Dimensions != 3 {
		t.Errorf("expected inferred dimensions 3, got %d", got.Dimensions)
	}
}

func TestEmbedQueryEmptyVectorIsHardError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(EmbedResult{Model: "bge-small"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	_, err := c.EmbedQuery(context.Background(), "q", "")
	if err == nil {
		t.Fatal("expected error for empty embedding")
	}
}

func TestChatAnswerDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/answer" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req AnswerRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.TopK != DefaultTopK {
			t.Errorf("expected top_k default %d, got %d", DefaultTopK, req.TopK)
		}
		if req.MinSimilarity != DefaultMinSimilarity {
			t.Errorf("expected min_similarity default %v, got %v", DefaultMinSimilarity, req.MinSimilarity)
		}
		if req.Scope == nil || req.Scope.Mode != scope.ModeNamedScopes {
			t.Errorf("expected named scope, got %+v", req.Scope)
		}
		json.NewEncoder(w).Encode(ChatAnswer{Answer: "PHP 1.2M was allocated.", RetrievalMeta: AnswerMeta{ChunksRetrieved: 4}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	got, err := c.ChatAnswer(context.Background(), AnswerRequest{
		Question: "how much for roads?",
		Scope: &scope.RetrievalScope{
			Mode:    scope.ModeNamedScopes,
			Targets: []scope.Target{{Type: jurisdiction.TypeBarangay, ID: "b1", Name: "San Isidro"}},
		},
	})
	if err != nil {
		t.Fatalf("ChatAnswer: %v", err)
	}
	if got.Answer == "" || got.RetrievalMeta.ChunksRetrieved != 4 {
		t.Errorf("unexpected answer %+v", got)
	}
}

func TestChatAnswerEmptyAnswerIsHardError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChatAnswer{Answer: "   "})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	_, err := c.ChatAnswer(context.Background(), AnswerRequest{Question: "q"})
	if err == nil {
		t.Fatal("expected error for empty answer")
	}
}

func TestNon2xxCarriesStatusAndDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "vector index unavailable"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	_, err := c.EmbedQuery(context.Background(), "q", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "vector index unavailable") {
		t.Errorf("error should carry status and upstream detail, got %v", err)
	}
}

func TestTimeoutCancelsCall(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(srv.URL, "", 50*time.Millisecond)
	start := time.Now()
	_, err := c.EmbedQuery(context.Background(), "q", "")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("call did not respect the deadline, took %v", elapsed)
	}
}
