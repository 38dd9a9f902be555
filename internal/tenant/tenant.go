// Package tenant models the billable enterprise accounts of the platform.
package tenant

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Errors
var (
	ErrTenantNotFound = errors.New("tenant: not found")
	ErrTenantExists   = errors.New("tenant: already exists")
	ErrInvalidStatus  = errors.New("tenant: invalid status")
)

// ActorSystem identifies writes made by background billing jobs.
const ActorSystem = "system"

// Status represents a tenant's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusInactive  Status = "inactive"
	StatusPending   Status = "pending"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusInactive, StatusPending:
		return true
	}
	return false
}

// Tenant is an enterprise account: the unit that gets invoiced, warned and
// suspended.
type Tenant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Status Status `json:"status"`

	ZohoCustomerID         string `json:"zohoCustomerId,omitempty"`
	ZohoRecurringInvoiceID string `json:"zohoRecurringInvoiceId,omitempty"`

	BillingDayOfMonth int             `json:"billingDayOfMonth"`
	MonthlyAmount     decimal.Decimal `json:"monthlyAmount"`      // zero = platform default
	Currency          string          `json:"currency,omitempty"` // empty = platform default
	LastPaymentDate   *time.Time      `json:"lastPaymentDate,omitempty"`
	NextBillingDate   *time.Time      `json:"nextBillingDate,omitempty"`

	IsDeleted       bool       `json:"-"`
	StatusChangedBy string     `json:"statusChangedBy,omitempty"`
	StatusChangedAt *time.Time `json:"statusChangedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// HasSubscription reports whether a recurring invoice is linked at the provider.
func (t *Tenant) HasSubscription() bool {
	return t.ZohoRecurringInvoiceID != ""
}

// NeedsSubscription reports whether the tenant is eligible for recurring
// invoice provisioning.
func (t *Tenant) NeedsSubscription() bool {
	return !t.IsDeleted &&
		t.Status == StatusActive &&
		t.ZohoCustomerID != "" &&
		t.ZohoRecurringInvoiceID == ""
}
