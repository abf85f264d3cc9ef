package repository

import (
	"context"
	"database/sql"
	"errors"

	"compliance-portal/backend/internal/fault"
	"compliance-portal/backend/internal/request/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a request repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectRequest = `SELECT r.request_id, r.organization_id, r.first_name, r.last_name, r.email, r.phone,
	r.request_type, COALESCE(r.request_comment, ''), r.status_id, s.status_name, r.assigned_to_user_id,
	r.created_at, r.last_updated_at, r.completion_date, r.completed_on_time, r.closed_date_time,
	COALESCE(r.closure_comments, '')
	FROM requests r JOIN request_statuses s ON s.status_id = r.status_id`

// Create persists the request and fills in its generated ID. The caller must
// set StatusID and CompletionDate.
func (r *PostgresRepository) Create(ctx context.Context, req *domain.Request) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO requests (organization_id, first_name, last_name, email, phone, request_type,
		     request_comment, status_id, created_at, last_updated_at, completion_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING request_id`,
		req.OrganizationID, req.FirstName, req.LastName, req.Email, req.Phone, req.Type,
		req.Comment, req.StatusID, req.CreatedAt, req.LastUpdatedAt, req.CompletionDate,
	).Scan(&req.ID)
}

// GetByID returns the request for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.Request, error) {
	row := r.db.QueryRowContext(ctx, selectRequest+` WHERE r.request_id = $1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

// ListByOrg returns the organization's requests, newest first.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID int64, limit, offset int32) ([]*domain.Request, error) {
	rows, err := r.db.QueryContext(ctx,
		selectRequest+` WHERE r.organization_id = $1 ORDER BY r.created_at DESC LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

// ListAll returns requests across all organizations, newest first.
func (r *PostgresRepository) ListAll(ctx context.Context, limit, offset int32) ([]*domain.Request, error) {
	rows, err := r.db.QueryContext(ctx,
		selectRequest+` ORDER BY r.created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

// UpdateWithHistory applies fn to the request row under FOR UPDATE and writes
// the mutated row plus its history entry atomically. A missing row yields
// NotFound; any error from fn rolls everything back.
func (r *PostgresRepository) UpdateWithHistory(ctx context.Context, id int64, fn ApplyFunc) (*domain.Request, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, selectRequest+` WHERE r.request_id = $1 FOR UPDATE OF r`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.Newf(fault.KindNotFound, "request %d not found", id)
		}
		return nil, err
	}

	entry, err := fn(req)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE requests SET status_id = $2, assigned_to_user_id = $3, last_updated_at = $4,
		     completed_on_time = $5, closed_date_time = $6, closure_comments = NULLIF($7, '')
		 WHERE request_id = $1`,
		req.ID, req.StatusID, req.AssignedToUserID, req.LastUpdatedAt,
		req.CompletedOnTime, req.ClosedAt, req.ClosureComments); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO request_history (request_id, change_date, changed_by_user_id,
		     old_status_id, new_status_id, old_assigned_to_user_id, new_assigned_to_user_id, comments)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))`,
		entry.RequestID, entry.ChangeDate, entry.ChangedByUserID,
		entry.OldStatusID, entry.NewStatusID, entry.OldAssignedToUID, entry.NewAssignedToUID,
		entry.Comments); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return req, nil
}

// GetHistory returns the request's history entries in change order.
func (r *PostgresRepository) GetHistory(ctx context.Context, requestID int64) ([]*domain.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT history_id, request_id, change_date, changed_by_user_id,
		     old_status_id, new_status_id, old_assigned_to_user_id, new_assigned_to_user_id,
		     COALESCE(comments, '')
		 FROM request_history WHERE request_id = $1 ORDER BY change_date, history_id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.ChangeDate, &e.ChangedByUserID,
			&e.OldStatusID, &e.NewStatusID, &e.OldAssignedToUID, &e.NewAssignedToUID, &e.Comments); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// ListStatuses returns the status vocabulary in ID order.
func (r *PostgresRepository) ListStatuses(ctx context.Context) ([]domain.Status, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status_id, status_name, sla_days FROM request_statuses ORDER BY status_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Status
	for rows.Next() {
		var s domain.Status
		if err := rows.Scan(&s.ID, &s.Name, &s.SLADays); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetStatusByName returns the status for name, or nil if not in the vocabulary.
func (r *PostgresRepository) GetStatusByName(ctx context.Context, name string) (*domain.Status, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT status_id, status_name, sla_days FROM request_statuses WHERE status_name = $1`, name)
	return scanStatus(row)
}

// GetStatusByID returns the status for id, or nil if unknown.
func (r *PostgresRepository) GetStatusByID(ctx context.Context, id int32) (*domain.Status, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT status_id, status_name, sla_days FROM request_statuses WHERE status_id = $1`, id)
	return scanStatus(row)
}

func scanStatus(row *sql.Row) (*domain.Status, error) {
	var s domain.Status
	if err := row.Scan(&s.ID, &s.Name, &s.SLADays); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.Request, error) {
	var req domain.Request
	if err := row.Scan(&req.ID, &req.OrganizationID, &req.FirstName, &req.LastName, &req.Email, &req.Phone,
		&req.Type, &req.Comment, &req.StatusID, &req.StatusName, &req.AssignedToUserID,
		&req.CreatedAt, &req.LastUpdatedAt, &req.CompletionDate, &req.CompletedOnTime, &req.ClosedAt,
		&req.ClosureComments); err != nil {
		return nil, err
	}
	return &req, nil
}

func collectRequests(rows *sql.Rows) ([]*domain.Request, error) {
	defer rows.Close()
	var out []*domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
