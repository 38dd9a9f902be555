// Package billing runs the tenant billing lifecycle: overdue warnings,
// suspension for non-payment, recurring invoice provisioning and payment
// bookkeeping against Zoho Books.
//
// Jobs never coordinate with each other. Every tenant write is a single
// conditional statement scoped to one tenant id, so concurrent jobs can at
// worst overwrite one scalar field, and suspension is idempotent.
package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mbd888/distrokit/internal/config"
	"github.com/mbd888/distrokit/internal/invoices"
	"github.com/mbd888/distrokit/internal/tenant"
	"github.com/mbd888/distrokit/internal/zoho"
)

// Job names, used in logs, metrics and the manual run endpoint.
const (
	JobWarnings   = "warnings"
	JobSuspension = "suspension"
	JobProvision  = "provisioning"
)

// ErrProviderDisabled is returned when an operation needs Zoho but no client
// is configured.
var ErrProviderDisabled = errors.New("billing: provider not configured")

// Provider is the subset of the Zoho client the jobs use.
type Provider interface {
	CreateCustomer(ctx context.Context, name, email, phone string) (*zoho.Customer, error)
	CreateRecurringInvoice(ctx context.Context, req zoho.RecurringInvoiceRequest) (*zoho.RecurringInvoiceResult, error)
	StopRecurringInvoice(ctx context.Context, recurringInvoiceID string) (bool, error)
	UpdateNextBillingDate(ctx context.Context, recurringInvoiceID string, paymentDate time.Time, billingDay int) (bool, error)
}

// Job is one periodic billing task.
type Job interface {
	Name() string
	RunOnce(ctx context.Context) error
}

// Jobs bundles the three periodic jobs built from one configuration.
type Jobs struct {
	Warnings    *WarningMonitor
	Enforcer    *Enforcer
	Provisioner *Provisioner

	cfg    config.BillingConfig
	logger *slog.Logger
}

// NewJobs wires the periodic jobs. provider may be nil when the jobs are
// disabled; the enforcer then suspends without stopping subscriptions.
func NewJobs(cfg config.BillingConfig, reader invoices.Reader, tenants tenant.Store, provider Provider, logger *slog.Logger) *Jobs {
	return &Jobs{
		Warnings:    NewWarningMonitor(reader, cfg, logger),
		Enforcer:    NewEnforcer(reader, tenants, provider, cfg, logger),
		Provisioner: NewProvisioner(tenants, provider, cfg, logger),
		cfg:         cfg,
		logger:      logger,
	}
}

// All returns the jobs keyed by name.
func (j *Jobs) All() map[string]Job {
	return map[string]Job{
		JobWarnings:   j.Warnings,
		JobSuspension: j.Enforcer,
		JobProvision:  j.Provisioner,
	}
}

// Timers returns one timer per job using the configured schedule.
func (j *Jobs) Timers() []*Timer {
	return []*Timer{
		NewTimer(j.Warnings, j.cfg.StartupDelay, j.cfg.WarningInterval, j.logger),
		NewTimer(j.Enforcer, j.cfg.StartupDelay, j.cfg.SuspensionInterval, j.logger),
		NewTimer(j.Provisioner, j.cfg.StartupDelay, j.cfg.ProvisionInterval, j.logger),
	}
}

// today is the current UTC date at midnight.
func today(now func() time.Time) time.Time {
	t := now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
