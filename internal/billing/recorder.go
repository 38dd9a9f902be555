package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbd888/distrokit/internal/billingdate"
	"github.com/mbd888/distrokit/internal/tenant"
)

// PaymentRecorder books payments against tenants and moves their billing
// schedule forward.
type PaymentRecorder struct {
	tenants  tenant.Store
	provider Provider
	logger   *slog.Logger
}

// NewPaymentRecorder creates a payment recorder. provider may be nil.
func NewPaymentRecorder(tenants tenant.Store, provider Provider, logger *slog.Logger) *PaymentRecorder {
	return &PaymentRecorder{tenants: tenants, provider: provider, logger: logger.With("component", "payments")}
}

// RecordPayment stores paymentDate as the tenant's last payment and the
// following billing date as its next one. It returns false, nil when the
// tenant does not exist. The provider schedule is updated when the tenant has
// a subscription; failures there are logged and do not undo the local write.
func (r *PaymentRecorder) RecordPayment(ctx context.Context, tenantID string, paymentDate time.Time) (bool, error) {
	t, err := r.tenants.Get(ctx, tenantID)
	if errors.Is(err, tenant.ErrTenantNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load tenant: %w", err)
	}

	paid := billingdate.Truncate(paymentDate)
	next := billingdate.Next(paid, t.BillingDayOfMonth)

	ok, err := r.tenants.UpdateBillingDates(ctx, tenantID, paid, next)
	if err != nil {
		return false, fmt.Errorf("update billing dates: %w", err)
	}
	if !ok {
		return false, nil
	}

	log := r.logger.With("tenant_id", tenantID,
		"payment_date", paid.Format(billingdate.Layout),
		"next_billing_date", next.Format(billingdate.Layout))
	log.Info("payment recorded")

	paymentsRecordedTotal.WithLabelValues(r.syncProvider(ctx, log, t, paid)).Inc()
	return true, nil
}

func (r *PaymentRecorder) syncProvider(ctx context.Context, log *slog.Logger, t *tenant.Tenant, paid time.Time) string {
	if !t.HasSubscription() {
		return "skipped"
	}
	if r.provider == nil {
		log.Warn("no billing provider configured, subscription schedule not updated")
		return "skipped"
	}

	log = log.With("recurring_invoice_id", t.ZohoRecurringInvoiceID)
	updated, err := r.provider.UpdateNextBillingDate(ctx, t.ZohoRecurringInvoiceID, paid, t.BillingDayOfMonth)
	switch {
	case err != nil:
		log.Warn("failed to update subscription schedule", "error", err)
		return "failed"
	case !updated:
		log.Warn("provider refused subscription schedule update")
		return "failed"
	}
	return "ok"
}
