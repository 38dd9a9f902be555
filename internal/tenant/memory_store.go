package tenant

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory tenant store for demo/development.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant // by ID
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory tenant store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[string]*Tenant),
		now:     time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tenants[t.ID]; exists {
		return ErrTenantExists
	}
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.live(id)
	if !ok {
		return nil, ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

// List returns all live tenants ordered by id. Used by the invoice memory
// reader.
func (m *MemoryStore) List(_ context.Context) ([]*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		if t.IsDeleted {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListUnprovisioned(_ context.Context) ([]*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Tenant
	for _, t := range m.tenants {
		if t.NeedsSubscription() {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status Status, actorID string) (bool, error) {
	if !status.Valid() {
		return false, ErrInvalidStatus
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.live(id)
	if !ok {
		return false, nil
	}
	now := m.now()
	t.Status = status
	t.StatusChangedBy = actorID
	t.StatusChangedAt = &now
	t.UpdatedAt = now
	return true, nil
}

func (m *MemoryStore) SetCustomerID(_ context.Context, id, customerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.live(id)
	if !ok || t.ZohoCustomerID != "" {
		return false, nil
	}
	t.ZohoCustomerID = customerID
	t.UpdatedAt = m.now()
	return true, nil
}

func (m *MemoryStore) SetRecurringInvoiceID(_ context.Context, id, recurringInvoiceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.live(id)
	if !ok || t.ZohoRecurringInvoiceID != "" {
		return false, nil
	}
	t.ZohoRecurringInvoiceID = recurringInvoiceID
	t.UpdatedAt = m.now()
	return true, nil
}

func (m *MemoryStore) UpdateBillingDates(_ context.Context, id string, lastPayment, nextBilling time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.live(id)
	if !ok {
		return false, nil
	}
	t.LastPaymentDate = &lastPayment
	t.NextBillingDate = &nextBilling
	t.UpdatedAt = m.now()
	return true, nil
}

// live returns the stored tenant if it exists and is not soft-deleted.
// Caller must hold m.mu.
func (m *MemoryStore) live(id string) (*Tenant, bool) {
	t, ok := m.tenants[id]
	if !ok || t.IsDeleted {
		return nil, false
	}
	return t, true
}

var _ Store = (*MemoryStore)(nil)
