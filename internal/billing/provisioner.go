package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mbd888/distrokit/internal/billingdate"
	"github.com/mbd888/distrokit/internal/config"
	"github.com/mbd888/distrokit/internal/tenant"
	"github.com/mbd888/distrokit/internal/traces"
	"github.com/mbd888/distrokit/internal/zoho"
)

// ProvisionSummary reports one provisioning cycle.
type ProvisionSummary struct {
	Candidates  int `json:"candidates"`
	Provisioned int `json:"provisioned"`
	Failed      int `json:"failed"`
}

// Provisioner creates the monthly recurring invoice for tenants that have a
// Zoho customer but no subscription yet. Failed tenants are picked up again
// on the next cycle.
type Provisioner struct {
	tenants  tenant.Store
	provider Provider
	cfg      config.BillingConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewProvisioner creates a recurring invoice provisioner.
func NewProvisioner(tenants tenant.Store, provider Provider, cfg config.BillingConfig, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		tenants:  tenants,
		provider: provider,
		cfg:      cfg,
		logger:   logger.With("job", JobProvision),
		now:      time.Now,
	}
}

func (p *Provisioner) Name() string { return JobProvision }

func (p *Provisioner) RunOnce(ctx context.Context) error {
	_, err := p.Provision(ctx)
	return err
}

// Provision runs one provisioning cycle.
func (p *Provisioner) Provision(ctx context.Context) (*ProvisionSummary, error) {
	if p.provider == nil {
		return nil, ErrProviderDisabled
	}

	pending, err := p.tenants.ListUnprovisioned(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unprovisioned tenants: %w", err)
	}

	summary := &ProvisionSummary{Candidates: len(pending)}
	for i, t := range pending {
		if ctx.Err() != nil {
			p.logger.Info("provisioning cycle cancelled", "remaining", len(pending)-i)
			return summary, nil
		}
		if p.provision(ctx, t) {
			summary.Provisioned++
		} else {
			summary.Failed++
		}
	}

	if summary.Candidates > 0 {
		p.logger.Info("provisioning cycle complete",
			"candidates", summary.Candidates,
			"provisioned", summary.Provisioned,
			"failed", summary.Failed,
		)
	}
	return summary, nil
}

func (p *Provisioner) provision(ctx context.Context, t *tenant.Tenant) bool {
	req := p.request(t)
	ctx, span := traces.StartSpan(ctx, "billing.provision", traces.TenantID(t.ID), traces.Amount(req.Rate.StringFixed(2)))
	defer span.End()

	log := p.logger.With("tenant_id", t.ID)

	res, err := p.provider.CreateRecurringInvoice(ctx, req)
	if err != nil {
		provisionedTotal.WithLabelValues("unavailable").Inc()
		log.Warn("failed to create recurring invoice", "error", err)
		return false
	}
	if !res.OK() {
		provisionedTotal.WithLabelValues("rejected").Inc()
		log.Warn("provider rejected recurring invoice", "code", res.Code, "message", res.Message)
		return false
	}

	log = log.With("recurring_invoice_id", res.RecurringInvoiceID)
	linked, err := p.tenants.SetRecurringInvoiceID(ctx, t.ID, res.RecurringInvoiceID)
	switch {
	case err != nil:
		provisionedTotal.WithLabelValues("unlinked").Inc()
		span.RecordError(err)
		log.Error("recurring invoice created but not saved, provider subscription is orphaned", "error", err)
		return false
	case !linked:
		provisionedTotal.WithLabelValues("unlinked").Inc()
		log.Warn("tenant already linked to another recurring invoice, provider subscription is orphaned")
		return false
	}

	provisionedTotal.WithLabelValues("ok").Inc()
	log.Info("recurring invoice provisioned",
		"start_date", req.StartDate.Format(billingdate.Layout),
		"next_invoice_date", res.NextInvoiceDate,
		"amount", req.Rate.StringFixed(2),
	)
	return true
}

func (p *Provisioner) request(t *tenant.Tenant) zoho.RecurringInvoiceRequest {
	day := today(p.now)
	start := billingdate.NextOccurrence(day, t.BillingDayOfMonth)
	if nb := t.NextBillingDate; nb != nil && billingdate.Truncate(nb.UTC()).After(day) {
		start = billingdate.Truncate(nb.UTC())
	}

	rate := t.MonthlyAmount
	if !rate.IsPositive() {
		rate = p.cfg.DefaultMonthlyAmount
	}
	currency := t.Currency
	if currency == "" {
		currency = p.cfg.DefaultCurrency
	}

	return zoho.RecurringInvoiceRequest{
		CustomerID:  t.ZohoCustomerID,
		Name:        t.Name + " monthly subscription",
		StartDate:   start,
		Currency:    currency,
		ItemID:      p.cfg.DefaultItemID,
		Rate:        decimal.Max(rate, decimal.Zero),
		Description: "Monthly distribution subscription for " + t.Name,
		Notes:       p.cfg.InvoiceNotes,
		Terms:       p.cfg.InvoiceTerms,
	}
}
