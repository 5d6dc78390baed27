package repository

import (
	"context"
	"errors"
	"fmt"

	"order-settlement/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const returnColumns = `
	r.id, r.order_id, r.user_id, r.reason, r.status, r.images_json, r.return_method,
	r.bank_name, r.bank_account_number, r.bank_account_holder, r.admin_note,
	r.item_conditions_json, r.assets_refunded, r.approved_by, r.approved_at,
	r.created_at, r.updated_at
`

// returnRepository implements the ReturnRepository interface using PostgreSQL.
type returnRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewReturnRepository creates a new PostgreSQL-backed return request repository.
func NewReturnRepository(pool *pgxpool.Pool, logger zerolog.Logger) ReturnRepository {
	return &returnRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "return").Logger(),
	}
}

func returnDest(req *model.ReturnRequest) []any {
	return []any{
		&req.ID,
		&req.OrderID,
		&req.UserID,
		&req.Reason,
		&req.Status,
		&req.ImagesJSON,
		&req.ReturnMethod,
		&req.BankName,
		&req.BankAccountNumber,
		&req.BankAccountHolder,
		&req.AdminNote,
		&req.ItemConditionsJSON,
		&req.AssetsRefunded,
		&req.ApprovedBy,
		&req.ApprovedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	}
}

// Create inserts a return request. A second request for the same order
// fails with ErrReturnAlreadyExists.
func (r *returnRepository) Create(ctx context.Context, tx pgx.Tx, req *model.ReturnRequest) error {
	query := `
		INSERT INTO return_requests (
			id, order_id, user_id, reason, status, images_json, return_method,
			bank_name, bank_account_number, bank_account_holder, admin_note,
			item_conditions_json, assets_refunded, approved_by, approved_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := tx.Exec(ctx, query,
		req.ID,
		req.OrderID,
		req.UserID,
		req.Reason,
		req.Status,
		req.ImagesJSON,
		req.ReturnMethod,
		req.BankName,
		req.BankAccountNumber,
		req.BankAccountHolder,
		req.AdminNote,
		req.ItemConditionsJSON,
		req.AssetsRefunded,
		req.ApprovedBy,
		req.ApprovedAt,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrReturnAlreadyExists
		}
		r.logger.Error().
			Err(err).
			Str("order_id", req.OrderID.String()).
			Msg("failed to create return request")
		return fmt.Errorf("failed to create return request: %w", err)
	}

	r.logger.Debug().
		Str("return_id", req.ID.String()).
		Str("order_id", req.OrderID.String()).
		Msg("return request created")

	return nil
}

// GetByID retrieves a return request by its ID.
func (r *returnRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ReturnRequest, error) {
	query := `SELECT ` + returnColumns + ` FROM return_requests r WHERE r.id = $1`
	return r.get(ctx, r.pool, query, id)
}

// GetForUpdate retrieves and locks a return request within the provided transaction.
func (r *returnRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.ReturnRequest, error) {
	query := `SELECT ` + returnColumns + ` FROM return_requests r WHERE r.id = $1 FOR UPDATE`
	return r.get(ctx, tx, query, id)
}

func (r *returnRepository) get(ctx context.Context, q querier, query string, id uuid.UUID) (*model.ReturnRequest, error) {
	var req model.ReturnRequest
	if err := q.QueryRow(ctx, query, id).Scan(returnDest(&req)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("return_id", id.String()).Msg("return request not found")
			return nil, model.ErrReturnNotFound
		}
		r.logger.Error().Err(err).Str("return_id", id.String()).Msg("failed to query return request")
		return nil, fmt.Errorf("failed to query return request: %w", err)
	}
	return &req, nil
}

// ExistsForOrder reports whether the order already has a return request.
func (r *returnRepository) ExistsForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM return_requests WHERE order_id = $1)`, orderID).Scan(&exists)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to check return request")
		return false, fmt.Errorf("failed to check return request: %w", err)
	}
	return exists, nil
}

// Update persists the mutable fields of a return request.
func (r *returnRepository) Update(ctx context.Context, tx pgx.Tx, req *model.ReturnRequest) error {
	query := `
		UPDATE return_requests
		SET status = $2, admin_note = $3, item_conditions_json = $4, assets_refunded = $5,
			approved_by = $6, approved_at = $7, updated_at = $8
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query,
		req.ID,
		req.Status,
		req.AdminNote,
		req.ItemConditionsJSON,
		req.AssetsRefunded,
		req.ApprovedBy,
		req.ApprovedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("return_id", req.ID.String()).
			Msg("failed to update return request")
		return fmt.Errorf("failed to update return request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrReturnNotFound
	}

	return nil
}

// List retrieves a page of return requests, newest first.
func (r *returnRepository) List(ctx context.Context, filter model.ReturnFilter) ([]model.ReturnView, error) {
	query := `
		SELECT ` + returnColumns + `, o.order_number
		FROM return_requests r
		JOIN orders o ON o.id = r.order_id
		WHERE ($1::text IS NULL OR r.status = $1)
		ORDER BY r.created_at DESC, r.id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, statusArg(filter), filter.Size, (filter.Page-1)*filter.Size)
	if err != nil {
		r.logger.Error().Err(err).Int("page", filter.Page).Msg("failed to query return requests")
		return nil, fmt.Errorf("failed to query return requests: %w", err)
	}
	defer rows.Close()

	views := []model.ReturnView{}
	for rows.Next() {
		var v model.ReturnView
		dest := append(returnDest(&v.ReturnRequest), &v.OrderNumber)
		if err := rows.Scan(dest...); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan return request row")
			return nil, fmt.Errorf("failed to scan return request: %w", err)
		}
		views = append(views, v)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating return request rows")
		return nil, fmt.Errorf("error iterating return requests: %w", err)
	}

	return views, nil
}

// Count returns the number of return requests matching the filter's status.
func (r *returnRepository) Count(ctx context.Context, filter model.ReturnFilter) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM return_requests WHERE ($1::text IS NULL OR status = $1)`,
		statusArg(filter),
	).Scan(&total)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to count return requests")
		return 0, fmt.Errorf("failed to count return requests: %w", err)
	}
	return total, nil
}

func statusArg(filter model.ReturnFilter) *string {
	if filter.Status == nil {
		return nil
	}
	s := string(*filter.Status)
	return &s
}
