// Package invoices reads the invoice ledger and answers the one question the
// billing jobs ask of it: which tenants are overdue, and by how much.
package invoices

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mbd888/distrokit/internal/billingdate"
	"github.com/mbd888/distrokit/internal/tenant"
)

const (
	TenantTypeEnterprise = "enterprise"
	StatusPaid           = "paid"
)

// DefaultExcludedStatuses are skipped when a query names no statuses.
var DefaultExcludedStatuses = []tenant.Status{tenant.StatusSuspended, tenant.StatusInactive}

// Invoice is a ledger row. This service never writes invoices.
type Invoice struct {
	ID          string          `json:"id"`
	TenantType  string          `json:"tenantType"`
	TenantID    string          `json:"tenantId"`
	Number      string          `json:"number"`
	DueDate     *time.Time      `json:"dueDate,omitempty"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// OverdueDays is the whole number of days past due as of today, or 0 for paid
// invoices and invoices without a due date.
func (i *Invoice) OverdueDays(today time.Time) int {
	if i.Status == StatusPaid || i.DueDate == nil {
		return 0
	}
	return billingdate.DaysOverdue(*i.DueDate, today)
}

// OverdueQuery selects tenants by their worst overdue invoice.
type OverdueQuery struct {
	Today   time.Time
	MinDays int // inclusive
	MaxDays int // exclusive, 0 = unbounded

	// Statuses restricts the result to these tenant statuses. When empty,
	// ExcludeStatuses applies, falling back to DefaultExcludedStatuses.
	Statuses        []tenant.Status
	ExcludeStatuses []tenant.Status
}

func (q OverdueQuery) excluded() []tenant.Status {
	if len(q.Statuses) > 0 {
		return nil
	}
	if q.ExcludeStatuses != nil {
		return q.ExcludeStatuses
	}
	return DefaultExcludedStatuses
}

func (q OverdueQuery) admits(s tenant.Status) bool {
	if len(q.Statuses) > 0 {
		return slices.Contains(q.Statuses, s)
	}
	return !slices.Contains(q.excluded(), s)
}

func (q OverdueQuery) inWindow(days int) bool {
	if days < q.MinDays {
		return false
	}
	return q.MaxDays == 0 || days < q.MaxDays
}

// OverdueTenant aggregates a tenant's unpaid, past-due invoices.
type OverdueTenant struct {
	TenantID               string          `json:"tenantId"`
	Name                   string          `json:"name"`
	Status                 tenant.Status   `json:"status"`
	ZohoRecurringInvoiceID string          `json:"zohoRecurringInvoiceId,omitempty"`
	MaxOverdueDays         int             `json:"maxOverdueDays"`
	InvoiceCount           int             `json:"invoiceCount"`
	TotalOverdue           decimal.Decimal `json:"totalOverdue"`
}

// Reader finds overdue tenants.
type Reader interface {
	FindOverdue(ctx context.Context, q OverdueQuery) ([]OverdueTenant, error)
}

// Summarize applies the overdue rule to in-memory rows. Soft-deleted tenants,
// non-enterprise invoices, paid invoices and invoices without a due date are
// ignored. The result is ordered by tenant id.
func Summarize(q OverdueQuery, tenants []*tenant.Tenant, invoices []Invoice) []OverdueTenant {
	today := billingdate.Truncate(q.Today)

	byID := make(map[string]*tenant.Tenant, len(tenants))
	for _, t := range tenants {
		if t.IsDeleted || !q.admits(t.Status) {
			continue
		}
		byID[t.ID] = t
	}

	agg := make(map[string]*OverdueTenant)
	for i := range invoices {
		inv := &invoices[i]
		if inv.TenantType != TenantTypeEnterprise {
			continue
		}
		t, ok := byID[inv.TenantID]
		if !ok {
			continue
		}
		days := inv.OverdueDays(today)
		if days <= 0 {
			continue
		}
		o, ok := agg[t.ID]
		if !ok {
			o = &OverdueTenant{
				TenantID:               t.ID,
				Name:                   t.Name,
				Status:                 t.Status,
				ZohoRecurringInvoiceID: t.ZohoRecurringInvoiceID,
				TotalOverdue:           decimal.Zero,
			}
			agg[t.ID] = o
		}
		o.InvoiceCount++
		o.TotalOverdue = o.TotalOverdue.Add(inv.TotalAmount)
		if days > o.MaxOverdueDays {
			o.MaxOverdueDays = days
		}
	}

	out := make([]OverdueTenant, 0, len(agg))
	for _, o := range agg {
		if q.inWindow(o.MaxOverdueDays) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out
}
