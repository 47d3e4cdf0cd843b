package checkout

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/lib/pq"

	"github.com/cardflow-labs/pci-checkout/checkout/models"
)

// Repository stores checkout receipts. The in-memory backend is the
// default; a db-backed one is selected when a DSN is configured.
type Repository struct {
	mu       sync.RWMutex
	receipts []*models.Receipt

	db *sql.DB
}

func NewRepository() *Repository {
	return &Repository{receipts: make([]*models.Receipt, 0)}
}

// NewPGRepository constructs a db-backed repository.
func NewPGRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Record persists one receipt, assigning an ID and timestamp when the
// caller left them zero. On a receipt-ID collision the ID is regenerated
// once before giving up.
func (r *Repository) Record(ctx context.Context, receipt *models.Receipt) error {
	if receipt.ID == "" {
		receipt.ID = uuid.New().String()
	}
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now()
	}

	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.receipts = append(r.receipts, receipt)
		return nil
	}

	for attempt := 0; attempt < 2; attempt++ {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO checkout.receipts(receipt_id, flow, status, message, amount_cents, currency, card_type, last_four, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, receipt.ID, receipt.Flow, receipt.Status, receipt.Message,
			receipt.Amount.Cents, receipt.Amount.Currency,
			receipt.CardType, receipt.LastFour, receipt.CreatedAt)
		if err == nil {
			return nil
		}
		if isUniqueViolation(err) {
			receipt.ID = uuid.New().String()
			continue
		}
		return err
	}
	return errors.New("receipt id conflict")
}

// List returns receipts newest first, at most limit entries.
func (r *Repository) List(ctx context.Context, limit int) ([]*models.Receipt, error) {
	if limit <= 0 {
		limit = 50
	}

	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		out := make([]*models.Receipt, 0, limit)
		for i := len(r.receipts) - 1; i >= 0 && len(out) < limit; i-- {
			out = append(out, r.receipts[i])
		}
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT receipt_id, flow, status, message, amount_cents, currency, card_type, last_four, created_at
		FROM checkout.receipts ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*models.Receipt, 0, limit)
	for rows.Next() {
		receipt := &models.Receipt{}
		if err := rows.Scan(&receipt.ID, &receipt.Flow, &receipt.Status, &receipt.Message,
			&receipt.Amount.Cents, &receipt.Amount.Currency,
			&receipt.CardType, &receipt.LastFour, &receipt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, receipt)
	}
	return out, rows.Err()
}

// Ping returns DB readiness; the memory backend is always ready.
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return true
	}
	return false
}
