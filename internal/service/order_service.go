package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/notify"
)

// SignedOrderBuilder is satisfied by *OrderBuilder.
type SignedOrderBuilder interface {
	BuildSignedOrder(ctx context.Context, intent domain.OrderIntent) (domain.SignedOrder, error)
}

// ClobPoster submits and cancels orders on the CLOB API.
type ClobPoster interface {
	PostOrder(ctx context.Context, order domain.SignedOrder) (domain.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
}

const defaultLockTTL = 15 * time.Second

// OrderService is the submission layer on top of OrderBuilder: it
// serialises submissions per maker, posts to the exchange and records the
// outcome in the store, audit log and journal.
type OrderService struct {
	builder SignedOrderBuilder
	poster  ClobPoster
	orders  domain.OrderStore
	audit   domain.AuditStore
	journal domain.OrderJournal
	locks   domain.LockManager
	lockTTL time.Duration
	alert   Alerter
	now     func() time.Time
	logger  *slog.Logger
}

// NewOrderService creates an OrderService. Persistence, locking and alerts
// are optional and attached with the With* methods.
func NewOrderService(builder SignedOrderBuilder, poster ClobPoster, logger *slog.Logger) *OrderService {
	return &OrderService{
		builder: builder,
		poster:  poster,
		lockTTL: defaultLockTTL,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "order_service")),
	}
}

// WithStore persists orders and audit entries.
func (s *OrderService) WithStore(orders domain.OrderStore, audit domain.AuditStore) *OrderService {
	s.orders = orders
	s.audit = audit
	return s
}

// WithJournal archives receipts for accepted orders.
func (s *OrderService) WithJournal(j domain.OrderJournal) *OrderService {
	s.journal = j
	return s
}

// WithLocks serialises PlaceOrder per maker. Concurrent submissions for the
// same maker fail fast with domain.ErrLockHeld.
func (s *OrderService) WithLocks(locks domain.LockManager, ttl time.Duration) *OrderService {
	s.locks = locks
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

// WithAlerter reports rejected and placed orders.
func (s *OrderService) WithAlerter(a Alerter) *OrderService {
	s.alert = a
	return s
}

// PlaceOrder builds, signs and submits intent. The returned record carries
// the exchange result even when err is non-nil, so callers can render the
// rejection reason.
func (s *OrderService) PlaceOrder(ctx context.Context, intent domain.OrderIntent) (domain.OrderRecord, error) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "order:"+strings.ToLower(intent.Maker), s.lockTTL)
		if err != nil {
			return domain.OrderRecord{}, fmt.Errorf("order_service: lock maker %s: %w", intent.Maker, err)
		}
		defer unlock()
	}

	signed, err := s.builder.BuildSignedOrder(ctx, intent)
	if err != nil {
		return domain.OrderRecord{}, err
	}

	rec := domain.OrderRecord{
		ID:        uuid.NewString(),
		Order:     signed,
		Result:    domain.OrderResult{Status: domain.OrderStatusPending},
		CreatedAt: s.now().UTC(),
	}
	if s.orders != nil {
		if err := s.orders.Create(ctx, rec); err != nil {
			return rec, fmt.Errorf("order_service: persist order: %w", err)
		}
	}

	result, postErr := s.poster.PostOrder(ctx, signed)
	if postErr != nil && result.Status == "" {
		result.Status = domain.OrderStatusRejected
		if result.Message == "" {
			result.Message = postErr.Error()
		}
	}
	rec.Result = result
	s.record(ctx, rec)

	if postErr != nil {
		s.logger.WarnContext(ctx, "order_service: order rejected",
			slog.String("id", rec.ID),
			slog.String("maker", signed.Maker),
			slog.String("message", result.Message),
		)
		s.notify(ctx, notify.EventOrderRejected, "Order rejected",
			fmt.Sprintf("%s %s token %s: %s", signed.Side, signed.Maker, signed.TokenID, result.Message))
		return rec, fmt.Errorf("order_service: post order: %w", postErr)
	}

	if s.journal != nil {
		if err := s.journal.Record(ctx, rec); err != nil {
			s.logger.WarnContext(ctx, "order_service: journal failed",
				slog.String("id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "order_service: order placed",
		slog.String("id", rec.ID),
		slog.String("order_id", result.OrderID),
		slog.String("status", string(result.Status)),
		slog.String("side", string(signed.Side)),
	)
	s.notify(ctx, notify.EventOrderPlaced, "Order placed",
		fmt.Sprintf("%s %s @ %s/%s (%s)", signed.Side, signed.TokenID, signed.MakerAmount, signed.TakerAmount, result.Status))
	return rec, nil
}

// CancelOrder cancels a stored order on the exchange.
func (s *OrderService) CancelOrder(ctx context.Context, id string) error {
	if s.orders == nil {
		return fmt.Errorf("order_service: cancel %s: %w", id, domain.ErrNotFound)
	}
	rec, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("order_service: cancel %s: %w", id, err)
	}
	if rec.Result.OrderID == "" {
		return domain.InvalidField("id", "order %s was never accepted by the exchange", id)
	}
	if err := s.poster.CancelOrder(ctx, rec.Result.OrderID); err != nil {
		return fmt.Errorf("order_service: cancel %s: %w", id, err)
	}

	rec.Result.Status = domain.OrderStatusCanceled
	s.record(ctx, rec)
	return nil
}

// GetOrder returns a stored order.
func (s *OrderService) GetOrder(ctx context.Context, id string) (domain.OrderRecord, error) {
	if s.orders == nil {
		return domain.OrderRecord{}, domain.ErrNotFound
	}
	rec, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return domain.OrderRecord{}, fmt.Errorf("order_service: get %s: %w", id, err)
	}
	return rec, nil
}

// ListByMaker returns stored orders for maker, newest first.
func (s *OrderService) ListByMaker(ctx context.Context, maker string, opts domain.ListOpts) ([]domain.OrderRecord, error) {
	if s.orders == nil {
		return nil, nil
	}
	recs, err := s.orders.ListByMaker(ctx, maker, opts)
	if err != nil {
		return nil, fmt.Errorf("order_service: list %s: %w", maker, err)
	}
	return recs, nil
}

// record updates the stored result and appends an audit entry. Failures
// are logged; the exchange outcome is already final.
func (s *OrderService) record(ctx context.Context, rec domain.OrderRecord) {
	if s.orders != nil {
		if err := s.orders.UpdateResult(ctx, rec.ID, rec.Result); err != nil {
			s.logger.WarnContext(ctx, "order_service: update result failed",
				slog.String("id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.audit != nil {
		event := "order_" + string(rec.Result.Status)
		if err := s.audit.Log(ctx, event, map[string]any{
			"id":       rec.ID,
			"order_id": rec.Result.OrderID,
			"maker":    rec.Order.Maker,
			"token_id": rec.Order.TokenID,
			"side":     string(rec.Order.Side),
			"neg_risk": rec.Order.NegRisk,
			"success":  rec.Result.Success,
			"message":  rec.Result.Message,
		}); err != nil {
			s.logger.WarnContext(ctx, "order_service: audit log failed",
				slog.String("id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *OrderService) notify(ctx context.Context, event, title, message string) {
	if s.alert == nil {
		return
	}
	if err := s.alert.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "order_service: notify failed", slog.String("error", err.Error()))
	}
}
