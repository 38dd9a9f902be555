package billing

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/distrokit/internal/logging"
	"github.com/mbd888/distrokit/internal/tenant"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupRouter wires a billing handler. provider may be nil.
func setupRouter(f *fixture, provider Provider) *gin.Engine {
	jobs := NewJobs(testConfig(), f.ledger, f.tenants, provider, logging.Discard())
	jobs.Warnings.now = clock
	jobs.Enforcer.now = clock
	jobs.Provisioner.now = clock

	h := NewHandler(
		f.tenants,
		f.ledger,
		NewPaymentRecorder(f.tenants, provider, logging.Discard()),
		NewOnboarder(f.tenants, provider, logging.Discard()),
		jobs.All(),
	)
	h.now = clock

	r := gin.New()
	h.RegisterAdminRoutes(r.Group("/v1/admin"))
	return r
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRecordPaymentHandler(t *testing.T) {
	f := newFixture()
	f.addTenant(t, "ent_1", "rec-1", 0)
	r := setupRouter(f, f.provider)

	w := doRequest(r, http.MethodPost, "/v1/admin/tenants/ent_1/payments", map[string]string{"paymentDate": "2024-01-31"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, true, body["recorded"])
	assert.Contains(t, body["nextBillingDate"], "2024-02-01")
	assert.Len(t, f.provider.updates, 1)
}

func TestRecordPaymentHandler_DefaultsToToday(t *testing.T) {
	f := newFixture()
	f.addTenant(t, "ent_1", "", 0)
	r := setupRouter(f, f.provider)

	w := doRequest(r, http.MethodPost, "/v1/admin/tenants/ent_1/payments", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Contains(t, body["lastPaymentDate"], "2024-06-30")
	assert.Contains(t, body["nextBillingDate"], "2024-07-01")
}

func TestRecordPaymentHandler_Errors(t *testing.T) {
	f := newFixture()
	f.addTenant(t, "ent_1", "", 0)
	r := setupRouter(f, f.provider)

	w := doRequest(r, http.MethodPost, "/v1/admin/tenants/ent_1/payments", map[string]string{"paymentDate": "31/01/2024"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_payment_date", decodeBody(t, w)["error"])

	w = doRequest(r, http.MethodPost, "/v1/admin/tenants/ent_missing/payments", map[string]string{"paymentDate": "2024-01-31"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnsureCustomerHandler(t *testing.T) {
	f := newFixture()
	f.addTenant(t, "ent_1", "", 0)

	w := doRequest(setupRouter(f, nil), http.MethodPost, "/v1/admin/tenants/ent_1/billing-customer", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "provider_disabled", decodeBody(t, w)["error"])

	r := setupRouter(f, f.provider)
	w = doRequest(r, http.MethodPost, "/v1/admin/tenants/ent_1/billing-customer", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "cust-1", decodeBody(t, w)["zohoCustomerId"])

	w = doRequest(r, http.MethodPost, "/v1/admin/tenants/ent_missing/billing-customer", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListOverdueHandler(t *testing.T) {
	f := newFixture()
	f.addTenant(t, "ent_10", "", 10)
	f.addTenant(t, "ent_120", "", 120)
	r := setupRouter(f, f.provider)

	w := doRequest(r, http.MethodGet, "/v1/admin/billing/overdue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeBody(t, w)["count"])

	w = doRequest(r, http.MethodGet, "/v1/admin/billing/overdue?minDays=100&status=active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["count"])
	rows := body["tenants"].([]any)
	assert.Equal(t, "ent_120", rows[0].(map[string]any)["tenantId"])

	w = doRequest(r, http.MethodGet, "/v1/admin/billing/overdue?maxDays=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeBody(t, w)["count"])
}

func TestListOverdueHandler_BadParams(t *testing.T) {
	f := newFixture()
	r := setupRouter(f, f.provider)

	w := doRequest(r, http.MethodGet, "/v1/admin/billing/overdue?minDays=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/v1/admin/billing/overdue?status=frozen", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_status", decodeBody(t, w)["error"])
}

func TestRunJobHandler(t *testing.T) {
	f := newFixture()
	f.addTenant(t, "ent_1", "rec-1", 120)
	r := setupRouter(f, f.provider)

	w := doRequest(r, http.MethodPost, "/v1/admin/billing/jobs/suspension/run", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "suspension", decodeBody(t, w)["job"])
	assert.Equal(t, tenant.StatusSuspended, f.status(t, "ent_1"))

	w = doRequest(r, http.MethodPost, "/v1/admin/billing/jobs/warnings/run", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodPost, "/v1/admin/billing/jobs/backfill/run", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunJobHandler_ProvisioningWithoutProvider(t *testing.T) {
	f := newFixture()
	w := doRequest(setupRouter(f, nil), http.MethodPost, "/v1/admin/billing/jobs/provisioning/run", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
