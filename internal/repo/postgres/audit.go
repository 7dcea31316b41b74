package postgres

import (
	"context"
	"fmt"

	"github.com/pivotpie/piedocs-go/internal/platform/auditlog"
)

// AuditStore appends audit events through the shared auditlog table.
type AuditStore struct {
	db auditlog.QueryRower
}

func NewAuditStore(db auditlog.QueryRower) *AuditStore {
	if db == nil {
		return nil
	}
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, event auditlog.Event) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("audit store not initialized")
	}
	return auditlog.Insert(ctx, s.db, event)
}
