package tenant

import (
	"context"
	"time"
)

// Store persists tenant data. Every mutation is a single conditional write
// scoped to one tenant id, so concurrent jobs and admin requests can only
// race as last-write-wins on one field. Soft-deleted tenants behave as
// missing.
type Store interface {
	Create(ctx context.Context, t *Tenant) error
	Get(ctx context.Context, id string) (*Tenant, error)

	// ListUnprovisioned returns active tenants that have a provider customer
	// but no recurring invoice, ordered by id.
	ListUnprovisioned(ctx context.Context) ([]*Tenant, error)

	// UpdateStatus sets the status and records actorID as the author of the
	// change. It reports whether a row was affected.
	UpdateStatus(ctx context.Context, id string, status Status, actorID string) (bool, error)

	// SetCustomerID and SetRecurringInvoiceID only write when the reference is
	// still empty; false means the tenant is missing or already linked.
	SetCustomerID(ctx context.Context, id, customerID string) (bool, error)
	SetRecurringInvoiceID(ctx context.Context, id, recurringInvoiceID string) (bool, error)

	UpdateBillingDates(ctx context.Context, id string, lastPayment, nextBilling time.Time) (bool, error)
}
