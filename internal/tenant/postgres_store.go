package tenant

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

const tenantColumns = `id, name, email, phone, status, zoho_customer_id, zoho_recurring_invoice_id,
	billing_day_of_month, monthly_amount, currency, last_payment_date, next_billing_date,
	is_deleted, status_changed_by, status_changed_at, created_at, updated_at`

// PostgresStore persists tenants in the enterprises table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed tenant store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, t *Tenant) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO enterprises (id, name, email, phone, status, zoho_customer_id, zoho_recurring_invoice_id,
			billing_day_of_month, monthly_amount, currency, last_payment_date, next_billing_date,
			is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.Name, t.Email, t.Phone, string(t.Status), t.ZohoCustomerID, t.ZohoRecurringInvoiceID,
		t.BillingDayOfMonth, t.MonthlyAmount, t.Currency, nullTime(t.LastPaymentDate), nullTime(t.NextBillingDate),
		t.IsDeleted, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrTenantExists
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Tenant, error) {
	t, err := scanTenant(p.db.QueryRowContext(ctx, `
		SELECT `+tenantColumns+`
		FROM enterprises WHERE id = $1 AND is_deleted = FALSE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	return t, err
}

func (p *PostgresStore) ListUnprovisioned(ctx context.Context) ([]*Tenant, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+tenantColumns+`
		FROM enterprises
		WHERE is_deleted = FALSE
		  AND status = $1
		  AND COALESCE(zoho_customer_id, '') <> ''
		  AND COALESCE(zoho_recurring_invoice_id, '') = ''
		ORDER BY id`, string(StatusActive))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status, actorID string) (bool, error) {
	if !status.Valid() {
		return false, ErrInvalidStatus
	}
	return p.execAffected(ctx, `
		UPDATE enterprises
		SET status = $2, status_changed_by = $3, status_changed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE`,
		id, string(status), actorID)
}

func (p *PostgresStore) SetCustomerID(ctx context.Context, id, customerID string) (bool, error) {
	return p.execAffected(ctx, `
		UPDATE enterprises SET zoho_customer_id = $2, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE AND COALESCE(zoho_customer_id, '') = ''`,
		id, customerID)
}

func (p *PostgresStore) SetRecurringInvoiceID(ctx context.Context, id, recurringInvoiceID string) (bool, error) {
	return p.execAffected(ctx, `
		UPDATE enterprises SET zoho_recurring_invoice_id = $2, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE AND COALESCE(zoho_recurring_invoice_id, '') = ''`,
		id, recurringInvoiceID)
}

func (p *PostgresStore) UpdateBillingDates(ctx context.Context, id string, lastPayment, nextBilling time.Time) (bool, error) {
	return p.execAffected(ctx, `
		UPDATE enterprises SET last_payment_date = $2, next_billing_date = $3, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE`,
		id, lastPayment, nextBilling)
}

func (p *PostgresStore) execAffected(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTenant(row scanner) (*Tenant, error) {
	t := &Tenant{}
	var (
		status                         string
		customerID, recurringID        sql.NullString
		changedBy                      sql.NullString
		lastPayment, nextBilling, chAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Name, &t.Email, &t.Phone, &status, &customerID, &recurringID,
		&t.BillingDayOfMonth, &t.MonthlyAmount, &t.Currency, &lastPayment, &nextBilling,
		&t.IsDeleted, &changedBy, &chAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	t.ZohoCustomerID = customerID.String
	t.ZohoRecurringInvoiceID = recurringID.String
	t.StatusChangedBy = changedBy.String
	t.LastPaymentDate = timePtr(lastPayment)
	t.NextBillingDate = timePtr(nextBilling)
	t.StatusChangedAt = timePtr(chAt)
	return t, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

var _ Store = (*PostgresStore)(nil)
