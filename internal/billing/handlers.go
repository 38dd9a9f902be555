package billing

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/distrokit/internal/invoices"
	"github.com/mbd888/distrokit/internal/logging"
	"github.com/mbd888/distrokit/internal/tenant"
	"github.com/mbd888/distrokit/internal/validation"
	"github.com/mbd888/distrokit/internal/zoho"
)

// Handler provides the admin HTTP endpoints for billing.
type Handler struct {
	tenants   tenant.Store
	reader    invoices.Reader
	recorder  *PaymentRecorder
	onboarder *Onboarder
	jobs      map[string]Job
	now       func() time.Time
}

// NewHandler creates a billing handler. jobs may be nil.
func NewHandler(tenants tenant.Store, reader invoices.Reader, recorder *PaymentRecorder, onboarder *Onboarder, jobs map[string]Job) *Handler {
	return &Handler{
		tenants:   tenants,
		reader:    reader,
		recorder:  recorder,
		onboarder: onboarder,
		jobs:      jobs,
		now:       time.Now,
	}
}

// RegisterAdminRoutes sets up the admin-only billing routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/tenants/:id/payments", h.RecordPayment)
	r.POST("/tenants/:id/billing-customer", h.EnsureCustomer)
	r.GET("/billing/overdue", h.ListOverdue)
	r.POST("/billing/jobs/:job/run", h.RunJob)
}

// RecordPayment handles POST /v1/admin/tenants/:id/payments
func (h *Handler) RecordPayment(c *gin.Context) {
	var req struct {
		PaymentDate string `json:"paymentDate"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid JSON body"})
			return
		}
	}

	paid, verr := validation.Date("paymentDate", req.PaymentDate, h.now().UTC())
	if verr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payment_date", "message": verr.Error()})
		return
	}

	id := c.Param("id")
	ctx := logging.WithTenantID(c.Request.Context(), id)
	ok, err := h.recorder.RecordPayment(ctx, id, paid)
	if err != nil {
		logging.L(ctx).Error("failed to record payment", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to record payment"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
		return
	}

	t, err := h.tenants.Get(ctx, id)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"recorded": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recorded":        true,
		"lastPaymentDate": t.LastPaymentDate,
		"nextBillingDate": t.NextBillingDate,
	})
}

// EnsureCustomer handles POST /v1/admin/tenants/:id/billing-customer
func (h *Handler) EnsureCustomer(c *gin.Context) {
	id := c.Param("id")
	ctx := logging.WithTenantID(c.Request.Context(), id)

	customerID, err := h.onboarder.EnsureCustomer(ctx, id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"tenantId": id, "zohoCustomerId": customerID})
	case errors.Is(err, tenant.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
	case errors.Is(err, ErrProviderDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "provider_disabled", "message": "billing provider not configured"})
	case errors.Is(err, zoho.ErrProviderRejected):
		c.JSON(http.StatusBadGateway, gin.H{"error": "provider_rejected", "message": err.Error()})
	case errors.Is(err, zoho.ErrProviderUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "provider_unavailable", "message": "billing provider unavailable"})
	default:
		logging.L(ctx).Error("failed to create billing customer", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create billing customer"})
	}
}

// ListOverdue handles GET /v1/admin/billing/overdue?minDays=&maxDays=&status=
func (h *Handler) ListOverdue(c *gin.Context) {
	q := invoices.OverdueQuery{Today: h.now().UTC(), MinDays: 1}

	for param, dst := range map[string]*int{"minDays": &q.MinDays, "maxDays": &q.MaxDays} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": param + " must be a non-negative integer"})
			return
		}
		*dst = n
	}
	if q.MinDays < 1 {
		q.MinDays = 1
	}
	for _, s := range c.QueryArray("status") {
		st := tenant.Status(s)
		if !st.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "message": "unknown status " + s})
			return
		}
		q.Statuses = append(q.Statuses, st)
	}

	overdue, err := h.reader.FindOverdue(c.Request.Context(), q)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list overdue tenants", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list overdue tenants"})
		return
	}
	if overdue == nil {
		overdue = []invoices.OverdueTenant{}
	}
	c.JSON(http.StatusOK, gin.H{"tenants": overdue, "count": len(overdue)})
}

// RunJob handles POST /v1/admin/billing/jobs/:job/run and runs one cycle
// synchronously.
func (h *Handler) RunJob(c *gin.Context) {
	name := c.Param("job")
	job, ok := h.jobs[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "unknown job " + name})
		return
	}

	ctx := c.Request.Context()
	logging.L(ctx).Info("manual billing job run", "job", name)

	var (
		result any
		err    error
	)
	switch j := job.(type) {
	case *WarningMonitor:
		result, err = j.Check(ctx)
	case *Enforcer:
		result, err = j.Enforce(ctx)
	case *Provisioner:
		result, err = j.Provision(ctx)
	default:
		err = job.RunOnce(ctx)
	}
	if errors.Is(err, ErrProviderDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "provider_disabled", "message": "billing provider not configured"})
		return
	}
	if err != nil {
		logging.L(ctx).Warn("manual billing job failed", "job", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "job_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": name, "result": result})
}
