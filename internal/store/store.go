// Package store persists payment records and provider events in Postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a payment.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusFailed   Status = "FAILED"
	StatusCanceled Status = "CANCELED"
	StatusExpired  Status = "EXPIRED"
	StatusRefunded Status = "REFUNDED"
)

// Mode selects how the shopper settles the order.
type Mode string

const (
	ModeCard  Mode = "CARD"
	ModeSplit Mode = "SPLIT"
)

// ErrNotFound is returned when no payment matches the lookup.
var ErrNotFound = errors.New("store: payment not found")

// Payment is one row in the payments table. Exactly one row exists per
// order id; retries update the row in place.
type Payment struct {
	ID              uuid.UUID
	OrderID         string
	CustomerID      string
	Currency        string
	Amount          decimal.Decimal
	Mode            Mode
	Status          Status
	ProviderOrderID string
	PaymentURL      string
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Event is an append-only record of a provider interaction.
type Event struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	Provider  string
	Status    Status
	Payload   []byte
	CreatedAt time.Time
}

// Store wraps a pgx pool with the payment queries the service needs.
type Store struct {
	Pool *pgxpool.Pool
}

// New returns a Store backed by the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// Amounts travel as text so decimals survive the round trip unrounded.
const paymentColumns = `id, order_id, customer_id, currency, amount::text, mode, status,
	provider_order_id, payment_url, expires_at, created_at, updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var (
		p      Payment
		amount string
		mode   string
		status string
	)
	if err := row.Scan(
		&p.ID, &p.OrderID, &p.CustomerID, &p.Currency, &amount, &mode, &status,
		&p.ProviderOrderID, &p.PaymentURL, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return Payment{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Payment{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	p.Amount = parsed
	p.Mode = Mode(mode)
	p.Status = Status(status)
	return p, nil
}

// UpsertPayment inserts a payment or, when the order already has one,
// refreshes the provider fields while keeping the original row id.
func (s *Store) UpsertPayment(ctx context.Context, p Payment) (Payment, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO payments (id, order_id, customer_id, currency, amount, mode, status,
			provider_order_id, payment_url, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (order_id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			currency = EXCLUDED.currency,
			amount = EXCLUDED.amount,
			mode = EXCLUDED.mode,
			status = EXCLUDED.status,
			provider_order_id = EXCLUDED.provider_order_id,
			payment_url = EXCLUDED.payment_url,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()
		RETURNING `+paymentColumns,
		p.ID, p.OrderID, p.CustomerID, p.Currency, p.Amount.StringFixed(2),
		string(p.Mode), string(p.Status), p.ProviderOrderID, p.PaymentURL, p.ExpiresAt,
	)
	saved, err := scanPayment(row)
	if err != nil {
		return Payment{}, fmt.Errorf("upsert payment: %w", err)
	}
	return saved, nil
}

// GetPaymentByOrderID fetches the payment attached to an order.
func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID string) (Payment, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrNotFound
		}
		return Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// UpdatePaymentStatus moves a payment to the given status and appends the
// provider event that caused the transition in the same transaction.
func (s *Store) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status Status, provider string, payload []byte) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin status update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE payments SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if err := insertEvent(ctx, tx, Event{PaymentID: id, Provider: provider, Status: status, Payload: payload}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	return nil
}

// InsertPaymentEvent appends a provider event outside a status transition,
// e.g. the create-order request and response pair.
func (s *Store) InsertPaymentEvent(ctx context.Context, ev Event) error {
	return insertEvent(ctx, s.Pool, ev)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertEvent(ctx context.Context, db execer, ev Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	payload := ev.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := db.Exec(ctx, `
		INSERT INTO payment_events (id, payment_id, provider, status, payload)
		VALUES ($1, $2, $3, $4, $5::jsonb)`,
		ev.ID, ev.PaymentID, ev.Provider, string(ev.Status), string(payload))
	if err != nil {
		return fmt.Errorf("insert payment event: %w", err)
	}
	return nil
}

// CustomerHistory sums what a customer has actually settled. Only PAID
// payments count toward loyalty tiers.
func (s *Store) CustomerHistory(ctx context.Context, customerID string) (decimal.Decimal, int64, error) {
	if customerID == "" {
		return decimal.Zero, 0, nil
	}
	row := s.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text, COUNT(*)
		FROM payments
		WHERE customer_id = $1 AND status = $2`,
		customerID, string(StatusPaid))
	var (
		spent  string
		orders int64
	)
	if err := row.Scan(&spent, &orders); err != nil {
		return decimal.Zero, 0, fmt.Errorf("customer history: %w", err)
	}
	total, err := decimal.NewFromString(spent)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("parse history total %q: %w", spent, err)
	}
	return total, orders, nil
}
