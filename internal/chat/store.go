package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openlgu/badyet/internal/db"
)

// Store persists sessions, messages, and the per-conversation pending
// clarification. All reads and writes take the session id explicitly; there
// is no ambient conversation state.
type Store struct {
	db *db.DB
}

// NewStore creates a chat store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// CreateSession opens a conversation.
func (s *Store) CreateSession(ctx context.Context, userID, barangayID string) (*Session, error) {
	sess := Session{
		ID:         uuid.New().String(),
		UserID:     userID,
		BarangayID: barangayID,
		CreatedAt:  time.Now().UTC(),
	}
	sess.UpdatedAt = sess.CreatedAt

	var barangay interface{}
	if barangayID != "" {
		barangay = barangayID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, barangay_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, barangay, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &sess, nil
}

// GetSession returns a session by id, nil if absent.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	var barangay sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, barangay_id, created_at, updated_at FROM chat_sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.UserID, &barangay, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	sess.BarangayID = barangay.String
	return &sess, nil
}

// AppendMessage stores one turn. meta may be nil.
func (s *Store) AppendMessage(ctx context.Context, sessionID, role, content string, meta *RetrievalMeta) (*Message, error) {
	msg := Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Meta:      "{}",
		CreatedAt: time.Now().UTC(),
	}
	if meta != nil {
		raw, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("marshalling message meta: %w", err)
		}
		msg.Meta = string(raw)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, meta, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.Meta, msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}

	s.db.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = ? WHERE id = ?`, msg.CreatedAt, sessionID)
	return &msg, nil
}

// ListMessages returns a session's messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, meta, created_at FROM chat_messages
		 WHERE session_id = ? ORDER BY created_at, id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Meta, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// GetPendingClarification returns the session's pending clarification, nil
// when none exists.
func (s *Store) GetPendingClarification(ctx context.Context, sessionID string) (*PendingClarification, error) {
	var id, kind, optionsJSON, contextJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, options, context FROM pending_clarifications WHERE session_id = ?`, sessionID,
	).Scan(&id, &kind, &optionsJSON, &contextJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting pending clarification: %w", err)
	}

	pc := PendingClarification{ID: id, Kind: ClarificationKind(kind)}
	if err := json.Unmarshal([]byte(optionsJSON), &pc.Options); err != nil {
		return nil, fmt.Errorf("decoding clarification options: %w", err)
	}
	if err := json.Unmarshal([]byte(contextJSON), &pc.Context); err != nil {
		return nil, fmt.Errorf("decoding clarification context: %w", err)
	}
	return &pc, nil
}

// SetPendingClarification stores or clears (nil) the session's pending
// clarification. At most one exists per session; a new one overwrites.
func (s *Store) SetPendingClarification(ctx context.Context, sessionID string, pc *PendingClarification) error {
	if pc == nil {
		_, err := s.db.ExecContext(ctx, `DELETE FROM pending_clarifications WHERE session_id = ?`, sessionID)
		if err != nil {
			return fmt.Errorf("clearing pending clarification: %w", err)
		}
		return nil
	}

	if pc.ID == "" {
		pc.ID = uuid.New().String()
	}
	optionsJSON, err := json.Marshal(pc.Options)
	if err != nil {
		return fmt.Errorf("encoding clarification options: %w", err)
	}
	contextJSON, err := json.Marshal(pc.Context)
	if err != nil {
		return fmt.Errorf("encoding clarification context: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_clarifications (session_id, id, kind, options, context)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET id = excluded.id, kind = excluded.kind,
		   options = excluded.options, context = excluded.context,
		   created_at = datetime('now')`,
		sessionID, pc.ID, string(pc.Kind), string(optionsJSON), string(contextJSON),
	)
	if err != nil {
		return fmt.Errorf("storing pending clarification: %w", err)
	}
	return nil
}
