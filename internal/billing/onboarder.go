package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mbd888/distrokit/internal/tenant"
)

// Onboarder creates Zoho customers for tenants, which makes them eligible for
// recurring invoice provisioning.
type Onboarder struct {
	tenants  tenant.Store
	provider Provider
	logger   *slog.Logger
}

// NewOnboarder creates an onboarder. provider may be nil.
func NewOnboarder(tenants tenant.Store, provider Provider, logger *slog.Logger) *Onboarder {
	return &Onboarder{tenants: tenants, provider: provider, logger: logger.With("component", "onboarding")}
}

// EnsureCustomer returns the tenant's Zoho customer id, creating the customer
// first when there is none. Provider rejections match zoho.ErrProviderRejected.
func (o *Onboarder) EnsureCustomer(ctx context.Context, tenantID string) (string, error) {
	t, err := o.tenants.Get(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if t.ZohoCustomerID != "" {
		return t.ZohoCustomerID, nil
	}
	if o.provider == nil {
		return "", ErrProviderDisabled
	}

	cust, err := o.provider.CreateCustomer(ctx, t.Name, t.Email, t.Phone)
	if err != nil {
		return "", fmt.Errorf("create customer for %s: %w", tenantID, err)
	}

	log := o.logger.With("tenant_id", tenantID, "customer_id", cust.ContactID)
	linked, err := o.tenants.SetCustomerID(ctx, tenantID, cust.ContactID)
	if err != nil {
		log.Error("customer created but not saved, provider contact is orphaned", "error", err)
		return "", fmt.Errorf("save customer id: %w", err)
	}
	if !linked {
		// Someone else linked a customer in the meantime; theirs wins.
		current, err := o.tenants.Get(ctx, tenantID)
		if err != nil {
			return "", err
		}
		log.Warn("tenant already linked to another customer, provider contact is orphaned",
			"linked_customer_id", current.ZohoCustomerID)
		return current.ZohoCustomerID, nil
	}

	log.Info("billing customer created")
	return cust.ContactID, nil
}
