package repository

import (
	"context"

	"compliance-portal/backend/internal/request/domain"
)

// ApplyFunc receives the current request row, locked for update. It mutates
// the request in place and returns the history entry describing the change.
// Returning an error aborts the transaction; nothing is written.
type ApplyFunc func(req *domain.Request) (*domain.HistoryEntry, error)

// Repository defines persistence for requests, their history, and the status
// vocabulary.
type Repository interface {
	Create(ctx context.Context, req *domain.Request) error
	// GetByID returns the request or nil if not found.
	GetByID(ctx context.Context, id int64) (*domain.Request, error)
	ListByOrg(ctx context.Context, orgID int64, limit, offset int32) ([]*domain.Request, error)
	ListAll(ctx context.Context, limit, offset int32) ([]*domain.Request, error)
	// UpdateWithHistory loads the request under a row lock, applies fn, and
	// writes the updated row plus its history entry in one transaction.
	UpdateWithHistory(ctx context.Context, id int64, fn ApplyFunc) (*domain.Request, error)
	GetHistory(ctx context.Context, requestID int64) ([]*domain.HistoryEntry, error)

	ListStatuses(ctx context.Context) ([]domain.Status, error)
	// GetStatusByName returns the status or nil if the name is not in the vocabulary.
	GetStatusByName(ctx context.Context, name string) (*domain.Status, error)
	// GetStatusByID returns the status or nil if unknown.
	GetStatusByID(ctx context.Context, id int32) (*domain.Status, error)
}
