package postgres

import (
	"context"
	"fmt"

	"marketplace-ledger/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository. It exposes Create only; the
// audit_logs table additionally carries a trigger that rejects UPDATE and
// DELETE, so immutability holds at the storage layer, not just by convention.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Create appends one audit record.
func (r *AuditRepo) Create(ctx context.Context, a *domain.AuditLog) error {
	query := `INSERT INTO audit_logs (id, action, performed_by, target_entity, target_id,
		owner_id, before, after, reason, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.Action, a.PerformedBy, a.TargetEntity, a.TargetID,
		a.OwnerID, a.Before, a.After, a.Reason, a.Metadata, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
