package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `id, salt::text, maker, signer, taker, token_id::text,
	maker_amount::text, taker_amount::text, expiration::text, nonce::text,
	fee_rate_bps::text, side, signature_type, signature, verifying_contract,
	neg_risk, order_type, COALESCE(exchange_order_id, ''), status, success,
	COALESCE(message, ''), created_at`

// Create inserts a signed order. A duplicate id yields domain.ErrAlreadyExists.
func (s *OrderStore) Create(ctx context.Context, rec domain.OrderRecord) error {
	o := rec.Order
	status := rec.Result.Status
	if status == "" {
		status = domain.OrderStatusPending
	}

	const query = `
		INSERT INTO signed_orders (
			id, salt, maker, signer, taker, token_id, maker_amount, taker_amount,
			expiration, nonce, fee_rate_bps, side, signature_type, signature,
			verifying_contract, neg_risk, order_type, exchange_order_id, status,
			success, message
		) VALUES (
			$1, $2::numeric, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric,
			$9::numeric, $10::numeric, $11::numeric, $12, $13, $14,
			$15, $16, $17, NULLIF($18, ''), $19, $20, NULLIF($21, '')
		)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, o.Salt, o.Maker, o.Signer, o.Taker, o.TokenID, o.MakerAmount, o.TakerAmount,
		o.Expiration, o.Nonce, o.FeeRateBps, string(o.Side), int16(o.SignatureType), o.Signature,
		o.VerifyingContract, o.NegRisk, string(o.OrderType), rec.Result.OrderID, string(status),
		rec.Result.Success, rec.Result.Message,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("postgres: order %s: %w", rec.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create order %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateResult records the exchange response for a stored order.
func (s *OrderStore) UpdateResult(ctx context.Context, id string, result domain.OrderResult) error {
	const query = `
		UPDATE signed_orders
		SET exchange_order_id = NULLIF($2, ''), status = $3, success = $4,
		    message = NULLIF($5, ''), updated_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, result.OrderID, string(result.Status), result.Success, result.Message)
	if err != nil {
		return fmt.Errorf("postgres: update order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update order %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GetByID retrieves a single order.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.OrderRecord, error) {
	query := `SELECT ` + orderColumns + ` FROM signed_orders WHERE id = $1`
	rec, err := scanOrder(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OrderRecord{}, fmt.Errorf("postgres: order %s: %w", id, domain.ErrNotFound)
		}
		return domain.OrderRecord{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return rec, nil
}

// ListByMaker returns orders for a maker address, newest first. The maker
// comparison is case-insensitive.
func (s *OrderStore) ListByMaker(ctx context.Context, maker string, opts domain.ListOpts) ([]domain.OrderRecord, error) {
	w := newWhere()
	w.add("lower(maker) = ?", strings.ToLower(maker))
	query := `SELECT ` + orderColumns + ` FROM signed_orders` + w.window(opts)

	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders for %s: %w", maker, err)
	}
	defer rows.Close()

	var out []domain.OrderRecord
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list orders rows: %w", err)
	}
	return out, nil
}

func scanOrder(row pgx.Row) (domain.OrderRecord, error) {
	var (
		rec       domain.OrderRecord
		side      string
		sigType   int16
		orderType string
		status    string
	)
	o := &rec.Order
	err := row.Scan(
		&rec.ID, &o.Salt, &o.Maker, &o.Signer, &o.Taker, &o.TokenID,
		&o.MakerAmount, &o.TakerAmount, &o.Expiration, &o.Nonce,
		&o.FeeRateBps, &side, &sigType, &o.Signature, &o.VerifyingContract,
		&o.NegRisk, &orderType, &rec.Result.OrderID, &status, &rec.Result.Success,
		&rec.Result.Message, &rec.CreatedAt,
	)
	if err != nil {
		return domain.OrderRecord{}, err
	}
	o.Side = domain.OrderSide(side)
	o.SignatureType = domain.SignatureType(sigType)
	o.OrderType = domain.OrderType(orderType)
	rec.Result.Status = domain.OrderStatus(status)
	return rec, nil
}

var _ domain.OrderStore = (*OrderStore)(nil)
