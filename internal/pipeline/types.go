package pipeline

import "github.com/openlgu/badyet/internal/scope"

// EmbedResult is a validated response from POST /v1/chat/embed-query.
type EmbedResult struct {
	Embedding  []float32 `json:"embedding"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
}

// AnswerRequest is the payload for POST /v1/chat/answer.
type AnswerRequest struct {
	Question      string                `json:"question"`
	Scope         *scope.RetrievalScope `json:"scope,omitempty"`
	TopK          int                   `json:"top_k"`
	MinSimilarity float64               `json:"min_similarity"`
}

// Citation points at a retrieved source chunk backing an answer.
type Citation struct {
	SourceID string  `json:"source_id"`
	Title    string  `json:"title,omitempty"`
	Snippet  string  `json:"snippet,omitempty"`
	Score    float64 `json:"score"`
}

// AnswerMeta is the pipeline's retrieval metadata for one answer.
type AnswerMeta struct {
	Model           string  `json:"model,omitempty"`
	ChunksRetrieved int     `json:"chunks_retrieved"`
	TopScore        float64 `json:"top_score"`
}

// ChatAnswer is a validated response from POST /v1/chat/answer.
type ChatAnswer struct {
	Answer        string     `json:"answer"`
	Refused       bool       `json:"refused"`
	Citations     []Citation `json:"citations,omitempty"`
	RetrievalMeta AnswerMeta `json:"retrieval_meta"`
}
