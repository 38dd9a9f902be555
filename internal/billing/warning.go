package billing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/mbd888/distrokit/internal/config"
	"github.com/mbd888/distrokit/internal/invoices"
	"github.com/mbd888/distrokit/internal/tenant"
)

// Warning is one overdue milestone hit by a tenant.
type Warning struct {
	Threshold int                    `json:"threshold"`
	Tenant    invoices.OverdueTenant `json:"tenant"`
}

// WarningMonitor logs tenants approaching suspension. It never mutates state.
//
// A tenant stays inside a milestone window for several days, so a daily
// schedule warns it once per day until it leaves the window.
type WarningMonitor struct {
	reader         invoices.Reader
	thresholds     []int
	windowDays     int
	suspensionDays int
	logger         *slog.Logger
	now            func() time.Time
}

// NewWarningMonitor creates a monitor for the configured thresholds.
func NewWarningMonitor(reader invoices.Reader, cfg config.BillingConfig, logger *slog.Logger) *WarningMonitor {
	thresholds := append([]int(nil), cfg.WarningDays...)
	sort.Ints(thresholds)
	return &WarningMonitor{
		reader:         reader,
		thresholds:     thresholds,
		windowDays:     cfg.WarningWindowDays,
		suspensionDays: cfg.SuspensionDays,
		logger:         logger.With("job", JobWarnings),
		now:            time.Now,
	}
}

func (m *WarningMonitor) Name() string { return JobWarnings }

func (m *WarningMonitor) RunOnce(ctx context.Context) error {
	_, err := m.Check(ctx)
	return err
}

// Check finds tenants whose worst overdue invoice sits in [T, T+window) for
// each threshold T, skips those already due for suspension, and logs one
// warning per tenant and threshold.
func (m *WarningMonitor) Check(ctx context.Context) ([]Warning, error) {
	day := today(m.now)
	var warnings []Warning

	for _, threshold := range m.thresholds {
		overdue, err := m.reader.FindOverdue(ctx, invoices.OverdueQuery{
			Today:    day,
			MinDays:  threshold,
			MaxDays:  threshold + m.windowDays,
			Statuses: []tenant.Status{tenant.StatusActive},
		})
		if err != nil {
			return warnings, fmt.Errorf("find tenants %d days overdue: %w", threshold, err)
		}

		for _, o := range overdue {
			if o.MaxOverdueDays >= m.suspensionDays {
				continue
			}
			m.logger.Warn("tenant payment overdue",
				"tenant_id", o.TenantID,
				"tenant_name", o.Name,
				"threshold_days", threshold,
				"days_overdue", o.MaxOverdueDays,
				"days_until_suspension", m.suspensionDays-o.MaxOverdueDays,
				"invoice_count", o.InvoiceCount,
				"total_overdue", o.TotalOverdue.StringFixed(2),
			)
			warningsTotal.WithLabelValues(strconv.Itoa(threshold)).Inc()
			warnings = append(warnings, Warning{Threshold: threshold, Tenant: o})
		}
	}

	m.logger.Info("warning check complete", "warnings", len(warnings))
	return warnings, nil
}
