//go:build integration

package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/distrokit/internal/tenant"
	"github.com/mbd888/distrokit/internal/testutil"
)

func TestPostgresStore_FindOverdue(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	tenants := tenant.NewPostgresStore(db)
	now := time.Now().UTC()
	for _, tn := range []*tenant.Tenant{
		{ID: "ent_a", Name: "A", Status: tenant.StatusActive, BillingDayOfMonth: 1, CreatedAt: now, UpdatedAt: now},
		{ID: "ent_b", Name: "B", Status: tenant.StatusSuspended, BillingDayOfMonth: 1, CreatedAt: now, UpdatedAt: now},
		{ID: "ent_c", Name: "C", Status: tenant.StatusActive, BillingDayOfMonth: 1, CreatedAt: now, UpdatedAt: now},
	} {
		require.NoError(t, tenants.Create(ctx, tn))
	}

	insert := func(id, tenantID, status string, overdue int, amount string) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO invoices (id, tenant_id, tenant_type, number, status, total_amount, due_date)
			VALUES ($1, $2, 'enterprise', $1, $3, $4, $5::date)`,
			id, tenantID, status, amount, daysAgo(overdue).Format("2006-01-02"))
		require.NoError(t, err)
	}
	insert("inv_1", "ent_a", "sent", 110, "10.00")
	insert("inv_2", "ent_a", "overdue", 20, "5.25")
	insert("inv_3", "ent_a", "paid", 300, "99.00")
	insert("inv_4", "ent_b", "sent", 200, "1.00")
	insert("inv_5", "ent_c", "sent", 33, "7.00")

	store := NewPostgresStore(db)

	got, err := store.FindOverdue(ctx, OverdueQuery{Today: today, MinDays: 105})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ent_a", got[0].TenantID)
	assert.Equal(t, 110, got[0].MaxOverdueDays)
	assert.Equal(t, 2, got[0].InvoiceCount)
	assert.Equal(t, "15.25", got[0].TotalOverdue.StringFixed(2))

	got, err = store.FindOverdue(ctx, OverdueQuery{Today: today, MinDays: 30, MaxDays: 37, Statuses: []tenant.Status{tenant.StatusActive}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ent_c", got[0].TenantID)
}
