package chat

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the chat API routes.
func RegisterRoutes(r chi.Router, store *Store, engine *Engine) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/sessions", handleCreateSession(store))
		r.Get("/sessions/{id}/messages", handleListMessages(store))
		r.Post("/sessions/{id}/messages", handlePostMessage(store, engine))
	})
}

type createSessionRequest struct {
	UserID     string `json:"user_id"`
	BarangayID string `json:"barangay_id"`
}

func handleCreateSession(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if r.Body != nil {
			// An empty body opens an anonymous, unscoped session.
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		sess, err := store.CreateSession(r.Context(), req.UserID, req.BarangayID)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sess)
	}
}

func handleListMessages(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		sess, err := store.GetSession(r.Context(), id)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		if sess == nil {
			http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
			return
		}

		msgs, err := store.ListMessages(r.Context(), id)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		if msgs == nil {
			msgs = []Message{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(msgs)
	}
}

type postMessageRequest struct {
	Content string `json:"content"`
}

func handlePostMessage(store *Store, engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req postMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Content == "" {
			http.Error(w, `{"error":"content is required"}`, http.StatusBadRequest)
			return
		}

		sess, err := store.GetSession(r.Context(), id)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		if sess == nil {
			http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
			return
		}

		resp, err := engine.HandleTurn(r.Context(), id, req.Content)
		if err != nil {
			if r.Context().Err() == context.Canceled {
				return
			}
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
