package invoices

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/mbd888/distrokit/internal/billingdate"
	"github.com/mbd888/distrokit/internal/tenant"
)

// PostgresStore reads overdue aggregates from the invoices table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed invoice reader.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// overdueQuery is the SQL form of Summarize.
const overdueQuery = `
	SELECT e.id, e.name, e.status, COALESCE(e.zoho_recurring_invoice_id, ''),
		MAX($1::date - i.due_date) AS max_overdue_days,
		COUNT(i.id) AS invoice_count,
		COALESCE(SUM(i.total_amount), 0) AS total_overdue
	FROM enterprises e
	JOIN invoices i ON i.tenant_id = e.id AND i.tenant_type = $2
	WHERE e.is_deleted = FALSE
	  AND i.status <> $3
	  AND i.due_date IS NOT NULL
	  AND i.due_date < $1::date
	  AND (cardinality($4::text[]) = 0 OR e.status = ANY($4::text[]))
	  AND NOT (e.status = ANY($5::text[]))
	GROUP BY e.id, e.name, e.status, e.zoho_recurring_invoice_id
	HAVING MAX($1::date - i.due_date) >= $6
	   AND ($7 = 0 OR MAX($1::date - i.due_date) < $7)
	ORDER BY e.id`

func (p *PostgresStore) FindOverdue(ctx context.Context, q OverdueQuery) ([]OverdueTenant, error) {
	today := billingdate.Truncate(q.Today).Format(billingdate.Layout)

	rows, err := p.db.QueryContext(ctx, overdueQuery,
		today, TenantTypeEnterprise, StatusPaid,
		pq.Array(statusStrings(q.Statuses)), pq.Array(statusStrings(q.excluded())),
		q.MinDays, q.MaxDays,
	)
	if err != nil {
		return nil, fmt.Errorf("find overdue tenants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []OverdueTenant{}
	for rows.Next() {
		var (
			o      OverdueTenant
			status string
		)
		if err := rows.Scan(&o.TenantID, &o.Name, &status, &o.ZohoRecurringInvoiceID,
			&o.MaxOverdueDays, &o.InvoiceCount, &o.TotalOverdue); err != nil {
			return nil, fmt.Errorf("scan overdue tenant: %w", err)
		}
		o.Status = tenant.Status(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

// statusStrings never returns nil so pq.Array encodes an empty array, not NULL.
func statusStrings(in []tenant.Status) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

var _ Reader = (*PostgresStore)(nil)
