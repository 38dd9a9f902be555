package invoices

import (
	"context"
	"sync"

	"github.com/mbd888/distrokit/internal/tenant"
)

// TenantLister lists live tenants. tenant.MemoryStore satisfies it.
type TenantLister interface {
	List(ctx context.Context) ([]*tenant.Tenant, error)
}

// MemoryStore is an in-memory invoice ledger for demo/development.
type MemoryStore struct {
	mu       sync.RWMutex
	invoices []Invoice
	tenants  TenantLister
}

// NewMemoryStore creates a ledger that joins against the given tenants.
func NewMemoryStore(tenants TenantLister) *MemoryStore {
	return &MemoryStore{tenants: tenants}
}

// Add appends invoices to the ledger.
func (m *MemoryStore) Add(invs ...Invoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices = append(m.invoices, invs...)
}

func (m *MemoryStore) FindOverdue(ctx context.Context, q OverdueQuery) ([]OverdueTenant, error) {
	tenants, err := m.tenants.List(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return Summarize(q, tenants, m.invoices), nil
}

var _ Reader = (*MemoryStore)(nil)
