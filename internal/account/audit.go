package account

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Outcomes recorded in the audit log. Every terminal pipeline result
// produces exactly one record.
const (
	OutcomePosted  = "posted"
	OutcomeReplied = "replied"
	OutcomeDryRun  = "dry-run"
)

// OutcomeRejected builds the outcome string for a guard rejection.
func OutcomeRejected(reason string) string { return "rejected:" + reason }

// OutcomeError builds the outcome string for a failed invocation.
func OutcomeError(kind string) string { return "error:" + kind }

// AuditRecord is one append-only log entry. Records are never mutated or
// deleted.
type AuditRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Handle    string    `json:"handle"`
	Outcome   string    `json:"outcome"`
	PostID    string    `json:"post_id,omitempty"`
	Text      string    `json:"text"`
}

// NewAuditRecord stamps a record with an id and the current time.
func NewAuditRecord(handle, outcome, postID, text string) AuditRecord {
	return AuditRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Handle:    NormalizeHandle(handle),
		Outcome:   outcome,
		PostID:    postID,
		Text:      text,
	}
}

// Audit appends a record to the handle's audit log as one JSON line.
func (r *Registry) Audit(handle string, entry AuditRecord) error {
	handle = NormalizeHandle(handle)
	if entry.Handle == "" {
		entry.Handle = handle
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now().UTC()
	}

	if err := os.MkdirAll(r.auditDir, 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	path := filepath.Join(r.auditDir, handle+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ReadAudit loads a handle's audit records, oldest first. Used by the
// status endpoint and tests.
func (r *Registry) ReadAudit(handle string) ([]AuditRecord, error) {
	path := filepath.Join(r.auditDir, NormalizeHandle(handle)+".jsonl")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	var records []AuditRecord
	dec := json.NewDecoder(bytes.NewReader(raw))
	for dec.More() {
		var rec AuditRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
