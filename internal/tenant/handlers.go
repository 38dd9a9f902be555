package tenant

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/distrokit/internal/auth"
	"github.com/mbd888/distrokit/internal/idgen"
	"github.com/mbd888/distrokit/internal/logging"
	"github.com/mbd888/distrokit/internal/metrics"
	"github.com/mbd888/distrokit/internal/validation"
)

// Suspender suspends a tenant together with its provider subscription.
// Suspension never goes through a bare status write.
type Suspender interface {
	SuspendTenant(ctx context.Context, tenantID, actor string) (bool, error)
}

// Handler provides HTTP endpoints for tenant administration.
type Handler struct {
	store     Store
	suspender Suspender
}

// NewHandler creates a new tenant handler.
func NewHandler(store Store, suspender Suspender) *Handler {
	return &Handler{store: store, suspender: suspender}
}

// RegisterAdminRoutes sets up the admin-only tenant routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/tenants", h.CreateTenant)
	r.GET("/tenants/:id", h.GetTenant)
	r.PATCH("/tenants/:id/status", h.UpdateStatus)
}

// CreateTenant handles POST /v1/admin/tenants
func (h *Handler) CreateTenant(c *gin.Context) {
	var req struct {
		Name              string `json:"name" binding:"required"`
		Email             string `json:"email"`
		Phone             string `json:"phone"`
		BillingDayOfMonth int    `json:"billingDayOfMonth"`
		MonthlyAmount     string `json:"monthlyAmount"`
		Currency          string `json:"currency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name is required"})
		return
	}

	if req.BillingDayOfMonth == 0 {
		req.BillingDayOfMonth = 1
	}
	if verr := validation.BillingDay("billingDayOfMonth", req.BillingDayOfMonth); verr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_billing_day", "message": verr.Error()})
		return
	}
	amount, verr := validation.Amount("monthlyAmount", req.MonthlyAmount)
	if verr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount", "message": verr.Error()})
		return
	}
	if verr := validation.Currency("currency", req.Currency); verr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_currency", "message": verr.Error()})
		return
	}

	now := time.Now().UTC()
	t := &Tenant{
		ID:                idgen.WithPrefix("ent_"),
		Name:              validation.SanitizeString(req.Name, 200),
		Email:             validation.SanitizeString(req.Email, 254),
		Phone:             validation.SanitizeString(req.Phone, 40),
		Status:            StatusActive,
		BillingDayOfMonth: req.BillingDayOfMonth,
		MonthlyAmount:     amount,
		Currency:          req.Currency,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := h.store.Create(c.Request.Context(), t); err != nil {
		logging.L(c.Request.Context()).Error("failed to create tenant", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create tenant"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"tenant": t})
}

// GetTenant handles GET /v1/admin/tenants/:id
func (h *Handler) GetTenant(c *gin.Context) {
	t, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": t})
}

// UpdateStatus handles PATCH /v1/admin/tenants/:id/status, the operator path
// for status changes. Suspensions are handed to the Suspender so the provider
// subscription is stopped first; other statuses are a single-row write.
// Reactivation leaves the stopped subscription ref in place.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status Status `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "status is required"})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "message": "unknown status"})
		return
	}

	ctx := logging.WithTenantID(c.Request.Context(), c.Param("id"))
	actor := auth.ActorID(c)
	var (
		ok  bool
		err error
	)
	if req.Status == StatusSuspended {
		ok, err = h.suspender.SuspendTenant(ctx, c.Param("id"), actor)
	} else {
		ok, err = h.store.UpdateStatus(ctx, c.Param("id"), req.Status, actor)
	}
	if err != nil {
		logging.L(ctx).Error("failed to update tenant status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to update status"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
		return
	}

	metrics.TenantStatusChangesTotal.WithLabelValues(string(req.Status), "admin").Inc()
	logging.L(ctx).Info("tenant status changed", "status", req.Status, "actor", actor)
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": req.Status, "changedBy": actor})
}
