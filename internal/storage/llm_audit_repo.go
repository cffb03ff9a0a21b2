package storage

import (
	"context"
	"fmt"

	"healix/internal/providers"
)

// LLMAuditRepo records every provider call made while answering or indexing.
type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

func (r *LLMAuditRepo) RecordCall(ctx context.Context, rec providers.CallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(operation, kind, provider_name, model, status, error_type, latency_ms)
VALUES ($1, $2, $3, NULLIF($4,''), $5, NULLIF($6,''), $7)`,
		rec.Operation, rec.Kind, rec.Provider, rec.Model, rec.Status, string(rec.ErrorType), rec.Latency.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}
