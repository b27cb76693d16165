package chat

import (
	"time"

	"github.com/openlgu/badyet/internal/pipeline"
	"github.com/openlgu/badyet/internal/scope"
)

// Status classifies every engine output.
type Status string

const (
	StatusAnswer        Status = "answer"
	StatusClarification Status = "clarification"
	StatusRefusal       Status = "refusal"
)

// RefusalReason is the closed refusal taxonomy.
type RefusalReason string

const (
	// RefusalRetrievalFailure: a pipeline or store call failed or timed out.
	RefusalRetrievalFailure RefusalReason = "retrieval_failure"
	// RefusalDocumentLimitation: the source documents structurally cannot
	// answer (contractor names, bid details).
	RefusalDocumentLimitation RefusalReason = "document_limitation"
	// RefusalAmbiguousScope: a jurisdiction mention could not be uniquely
	// resolved.
	RefusalAmbiguousScope RefusalReason = "ambiguous_scope"
	// RefusalMissingParameter: the deterministic path lacks a required
	// filter, typically the fiscal year.
	RefusalMissingParameter RefusalReason = "missing_required_parameter"
	// RefusalUnsupported: intent recognized but out of scope for the engine.
	RefusalUnsupported RefusalReason = "unsupported_request"
)

// Route names which resolution path produced a response.
const (
	RouteRowSQL    = "row_sql"
	RouteTotalsSQL = "totals_sql"
	RoutePipeline  = "pipeline"
	RouteNone      = "none"
)

// RetrievalMeta accompanies every engine response. RefusalReason is present
// only on refusals; its mere presence on any other status is a contract
// violation, which the constructors below make impossible.
type RetrievalMeta struct {
	Route         string              `json:"route,omitempty"`
	Refused       bool                `json:"refused"`
	RefusalReason RefusalReason       `json:"refusal_reason,omitempty"`
	ScopeMode     scope.Mode          `json:"scope_mode,omitempty"`
	Citations     []pipeline.Citation `json:"citations,omitempty"`
}

// ClarificationKind distinguishes the two pending-clarification flows.
type ClarificationKind string

const (
	KindLineItemDisambiguation ClarificationKind = "line_item_disambiguation"
	KindCityAIPMissingFallback ClarificationKind = "city_aip_missing_fallback"
)

// Fallback actions for KindCityAIPMissingFallback options.
const (
	ActionUseBarangays = "use_barangays_in_city"
	ActionCancel       = "cancel"
)

// ClarificationOption is one numbered, user-facing choice.
type ClarificationOption struct {
	Number     int    `json:"number"`
	Label      string `json:"label"`
	LineItemID string `json:"line_item_id,omitempty"`
	AIPRefCode string `json:"aip_ref_code,omitempty"`
	FiscalYear int    `json:"fiscal_year,omitempty"`
	Barangay   string `json:"barangay,omitempty"`
	Total      string `json:"total,omitempty"`
	Action     string `json:"action,omitempty"`
}

// ClarificationContext carries what the engine needs to resolve the next
// turn without re-running retrieval.
type ClarificationContext struct {
	// Question is the original question, kept for the city fallback re-run.
	Question string `json:"question,omitempty"`
	// Prompt is re-issued verbatim when a reply matches no selection parser.
	Prompt   string `json:"prompt,omitempty"`
	CityID   string `json:"city_id,omitempty"`
	CityName string `json:"city_name,omitempty"`
}

// PendingClarification is the at-most-one disambiguation state attached to a
// conversation. A new question always supersedes an unresolved one.
type PendingClarification struct {
	ID      string                `json:"id"`
	Kind    ClarificationKind     `json:"kind"`
	Options []ClarificationOption `json:"options"`
	Context ClarificationContext  `json:"context"`
}

// Session is one conversation.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	BarangayID string    `json:"barangay_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Message is one conversational turn as persisted.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Meta      string    `json:"meta,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EngineResponse is the engine's only produced interface.
type EngineResponse struct {
	Status        Status                `json:"status"`
	Content       string                `json:"content"`
	Options       []ClarificationOption `json:"options,omitempty"`
	RetrievalMeta RetrievalMeta         `json:"retrieval_meta"`
}

// Answer builds an answer response. It never carries a refusal reason or
// clarification options.
func Answer(content, route string, mode scope.Mode) *EngineResponse {
	return &EngineResponse{
		Status:  StatusAnswer,
		Content: content,
		RetrievalMeta: RetrievalMeta{
			Route:     route,
			Refused:   false,
			ScopeMode: mode,
		},
	}
}

// Clarify builds a clarification response. Clarification is not failure:
// refused stays false and no refusal reason is ever attached.
func Clarify(prompt string, options []ClarificationOption, route string, mode scope.Mode) *EngineResponse {
	return &EngineResponse{
		Status:  StatusClarification,
		Content: prompt,
		Options: options,
		RetrievalMeta: RetrievalMeta{
			Route:     route,
			Refused:   false,
			ScopeMode: mode,
		},
	}
}

// Refuse builds a refusal carrying exactly one reason from the closed
// taxonomy and no options.
func Refuse(reason RefusalReason, content, route string) *EngineResponse {
	return &EngineResponse{
		Status:  StatusRefusal,
		Content: content,
		RetrievalMeta: RetrievalMeta{
			Route:         route,
			Refused:       true,
			RefusalReason: reason,
		},
	}
}
