package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbd888/distrokit/internal/config"
	"github.com/mbd888/distrokit/internal/invoices"
	"github.com/mbd888/distrokit/internal/metrics"
	"github.com/mbd888/distrokit/internal/tenant"
	"github.com/mbd888/distrokit/internal/traces"
)

// statusWriteTimeout bounds the suspension write once the provider stop has
// been attempted. It runs detached from cancellation.
const statusWriteTimeout = 10 * time.Second

// SuspensionSummary reports one enforcement cycle.
type SuspensionSummary struct {
	Candidates   int `json:"candidates"`
	Suspended    int `json:"suspended"`
	StopFailures int `json:"stopFailures"`
	Errors       int `json:"errors"`
}

// Enforcer suspends tenants whose worst unpaid invoice has reached the
// suspension threshold. Stopping the provider subscription is best effort;
// the local suspension is not.
type Enforcer struct {
	reader         invoices.Reader
	tenants        tenant.Store
	provider       Provider
	suspensionDays int
	logger         *slog.Logger
	now            func() time.Time
}

// NewEnforcer creates a suspension enforcer.
func NewEnforcer(reader invoices.Reader, tenants tenant.Store, provider Provider, cfg config.BillingConfig, logger *slog.Logger) *Enforcer {
	return &Enforcer{
		reader:         reader,
		tenants:        tenants,
		provider:       provider,
		suspensionDays: cfg.SuspensionDays,
		logger:         logger.With("job", JobSuspension),
		now:            time.Now,
	}
}

func (e *Enforcer) Name() string { return JobSuspension }

func (e *Enforcer) RunOnce(ctx context.Context) error {
	_, err := e.Enforce(ctx)
	return err
}

// Enforce runs one suspension cycle. Failures for one tenant are logged and
// counted without stopping the cycle. Cancellation abandons the remaining
// tenants and is not an error.
func (e *Enforcer) Enforce(ctx context.Context) (*SuspensionSummary, error) {
	overdue, err := e.reader.FindOverdue(ctx, invoices.OverdueQuery{
		Today:   today(e.now),
		MinDays: e.suspensionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("find tenants due for suspension: %w", err)
	}

	summary := &SuspensionSummary{Candidates: len(overdue)}
	for i, o := range overdue {
		if ctx.Err() != nil {
			e.logger.Info("suspension cycle cancelled", "remaining", len(overdue)-i)
			return summary, nil
		}
		e.suspend(ctx, o, summary)
	}

	e.logger.Info("suspension cycle complete",
		"candidates", summary.Candidates,
		"suspended", summary.Suspended,
		"stop_failures", summary.StopFailures,
		"errors", summary.Errors,
	)
	return summary, nil
}

func (e *Enforcer) suspend(ctx context.Context, o invoices.OverdueTenant, summary *SuspensionSummary) {
	ctx, span := traces.StartSpan(ctx, "billing.suspend", traces.TenantID(o.TenantID), traces.SubscriptionRef(o.ZohoRecurringInvoiceID))
	defer span.End()

	log := e.logger.With("tenant_id", o.TenantID, "days_overdue", o.MaxOverdueDays)

	if o.ZohoRecurringInvoiceID != "" && !e.stopSubscription(ctx, log, o.ZohoRecurringInvoiceID) {
		summary.StopFailures++
	}

	// The stop may already have happened, so the status write must not be
	// lost to a shutdown that arrives in between.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	ok, err := e.tenants.UpdateStatus(writeCtx, o.TenantID, tenant.StatusSuspended, tenant.ActorSystem)
	switch {
	case err != nil:
		summary.Errors++
		span.RecordError(err)
		log.Error("failed to suspend tenant", "error", err)
	case !ok:
		log.Warn("tenant disappeared before suspension")
	default:
		summary.Suspended++
		suspensionsTotal.Inc()
		metrics.TenantStatusChangesTotal.WithLabelValues(string(tenant.StatusSuspended), "job").Inc()
		log.Warn("tenant suspended for non-payment",
			"invoice_count", o.InvoiceCount,
			"total_overdue", o.TotalOverdue.StringFixed(2),
		)
	}
}

// SuspendTenant is the operator path to suspension. The provider subscription
// is stopped first, as in a suspension cycle, and the status write happens
// whatever the stop outcome. An unknown tenant reports false.
func (e *Enforcer) SuspendTenant(ctx context.Context, tenantID, actor string) (bool, error) {
	ctx, span := traces.StartSpan(ctx, "billing.suspend_tenant", traces.TenantID(tenantID))
	defer span.End()

	t, err := e.tenants.Get(ctx, tenantID)
	if errors.Is(err, tenant.ErrTenantNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load tenant: %w", err)
	}

	log := e.logger.With("tenant_id", tenantID, "actor", actor)
	if t.ZohoRecurringInvoiceID != "" {
		e.stopSubscription(ctx, log, t.ZohoRecurringInvoiceID)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	ok, err := e.tenants.UpdateStatus(writeCtx, tenantID, tenant.StatusSuspended, actor)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("suspend tenant: %w", err)
	}
	if ok {
		log.Warn("tenant suspended by operator")
	}
	return ok, nil
}

// stopSubscription reports whether the provider confirmed the stop.
func (e *Enforcer) stopSubscription(ctx context.Context, log *slog.Logger, ref string) bool {
	log = log.With("recurring_invoice_id", ref)
	if e.provider == nil {
		stopFailuresTotal.Inc()
		log.Warn("no billing provider configured, subscription left running")
		return false
	}

	stopped, err := e.provider.StopRecurringInvoice(ctx, ref)
	switch {
	case err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)):
		stopFailuresTotal.Inc()
		log.Info("subscription stop interrupted by shutdown, suspending anyway", "error", err)
	case err != nil:
		stopFailuresTotal.Inc()
		log.Warn("failed to stop subscription, suspending anyway", "error", err)
	case !stopped:
		stopFailuresTotal.Inc()
		log.Warn("provider refused to stop subscription, suspending anyway")
	default:
		log.Info("subscription stopped")
		return true
	}
	return false
}
