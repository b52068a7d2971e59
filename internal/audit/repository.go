package audit

import (
	"context"
	"errors"
	"time"

	"geotourist/internal/datastore"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS audit_logs (
  id TEXT PRIMARY KEY,
  actor TEXT,
  role TEXT,
  action TEXT NOT NULL,
  resource_type TEXT NOT NULL,
  resource_id TEXT NOT NULL,
  metadata JSONB,
  payload_digest TEXT,
  ip TEXT,
  user_agent TEXT,
  created_at TIMESTAMPTZ NOT NULL
)`

const insertSQL = `INSERT INTO audit_logs (
	id, actor, role, action, resource_type, resource_id,
	metadata, payload_digest, ip, user_agent, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7::JSONB,$8,$9,$10,$11
)`

// Repository writes audit logs through the retrying executor.
type Repository struct {
	exec *datastore.Executor
}

// NewRepository constructs an audit repository.
func NewRepository(exec *datastore.Executor) (*Repository, error) {
	if exec == nil {
		return nil, errors.New("audit repo: nil executor")
	}
	return &Repository{exec: exec}, nil
}

// Ensure creates the audit_logs table when missing.
func (r *Repository) Ensure(ctx context.Context) error {
	_, _, err := datastore.Exec(ctx, r.exec, datastore.ModeWrite, "audit.ensure", datastore.Statement{SQL: createTableSQL})
	return err
}

// Log writes an audit entry.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.exec == nil {
		return errors.New("audit repo: nil executor")
	}
	entry = complete(entry, time.Now())

	var metadata *string
	if len(entry.Metadata) > 0 {
		s := string(entry.Metadata)
		metadata = &s
	}
	_, _, err := datastore.Exec(ctx, r.exec, datastore.ModeWrite, "audit.log", datastore.Statement{
		SQL: insertSQL,
		Args: []any{
			entry.ID, entry.Actor, entry.Role, entry.Action, entry.ResourceType, entry.ResourceID,
			metadata, entry.PayloadDigest, entry.IP, entry.UserAgent, entry.CreatedAt,
		},
	})
	return err
}

func complete(entry Entry, now time.Time) Entry {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now.UTC()
	}
	if entry.PayloadDigest == "" {
		entry.PayloadDigest = DigestJSON(entry.Metadata)
	}
	return entry
}
