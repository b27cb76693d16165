package scope

import "github.com/openlgu/badyet/internal/jurisdiction"

// Mode describes how a question's retrieval is scoped.
type Mode string

const (
	// ModeGlobal searches across all published jurisdictions.
	ModeGlobal Mode = "global"
	// ModeOwnBarangay scopes to the asking citizen's own barangay.
	ModeOwnBarangay Mode = "own_barangay"
	// ModeNamedScopes scopes to jurisdictions named in the question.
	ModeNamedScopes Mode = "named_scopes"
	// ModeAmbiguous means at least one named jurisdiction could not be
	// uniquely resolved. No retrieval may proceed.
	ModeAmbiguous Mode = "ambiguous"
)

// Cue is a parsed, not-yet-verified jurisdiction mention.
type Cue struct {
	Type jurisdiction.Type `json:"scope_type"`
	Name string            `json:"scope_name"`
}

// Target is a verified jurisdiction a retrieval can be filtered by.
type Target struct {
	Type jurisdiction.Type `json:"type"`
	ID   string            `json:"id"`
	Name string            `json:"name"`
}

// AmbiguousCue is a mention that matched more than one directory record.
type AmbiguousCue struct {
	Cue
	CandidateCount int `json:"candidate_count"`
}

// RetrievalScope is the resolved, pipeline-facing scope payload.
// Non-global modes always carry at least one target.
type RetrievalScope struct {
	Mode    Mode     `json:"mode"`
	Targets []Target `json:"targets,omitempty"`
}

// Resolution is the full outcome of resolving one question's scope.
// It is produced fresh per question and never persisted.
type Resolution struct {
	Mode            Mode           `json:"mode"`
	RequestedScopes []Cue          `json:"requested_scopes,omitempty"`
	ResolvedTargets []Target       `json:"resolved_targets,omitempty"`
	UnresolvedScopes []Cue         `json:"unresolved_scopes,omitempty"`
	AmbiguousScopes []AmbiguousCue `json:"ambiguous_scopes,omitempty"`

	// RetrievalScope is nil when Mode is ambiguous.
	RetrievalScope *RetrievalScope `json:"retrieval_scope,omitempty"`

	// ClarificationMessage asks the citizen to name the exact jurisdiction.
	// Set only when Mode is ambiguous.
	ClarificationMessage string `json:"clarification_message,omitempty"`
}
