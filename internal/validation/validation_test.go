package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Acme Records", SanitizeString("  Acme\x00 Records ", 100))
	assert.Equal(t, "Acm", SanitizeString("Acme", 3))
}

func TestSanitizeString_KeepsRunesWhole(t *testing.T) {
	got := SanitizeString(strings.Repeat("音", 100), 200)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("音", 66), got)

	got = SanitizeString("Café Noir", 4)
	assert.Equal(t, "Caf", got)

	assert.Equal(t, "ab", SanitizeString("a\xffb", 10))
}

func TestBillingDay(t *testing.T) {
	assert.Nil(t, BillingDay("billingDayOfMonth", 1))
	assert.Nil(t, BillingDay("billingDayOfMonth", 31))
	assert.NotNil(t, BillingDay("billingDayOfMonth", 0))
	err := BillingDay("billingDayOfMonth", 32)
	require.NotNil(t, err)
	assert.Equal(t, "billingDayOfMonth: must be between 1 and 31", err.Error())
}

func TestAmount(t *testing.T) {
	d, err := Amount("monthlyAmount", "19.99")
	require.Nil(t, err)
	assert.Equal(t, "19.99", d.String())

	d, err = Amount("monthlyAmount", "")
	require.Nil(t, err)
	assert.True(t, d.IsZero())

	_, err = Amount("monthlyAmount", "-1")
	assert.NotNil(t, err)
	_, err = Amount("monthlyAmount", "abc")
	assert.NotNil(t, err)
}

func TestDate(t *testing.T) {
	fallback := time.Date(2024, 3, 5, 15, 4, 0, 0, time.UTC)
	d, err := Date("paymentDate", "", fallback)
	require.Nil(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), d)

	d, err = Date("paymentDate", "2024-01-31", fallback)
	require.Nil(t, err)
	assert.Equal(t, 31, d.Day())

	_, err = Date("paymentDate", "31/01/2024", fallback)
	assert.NotNil(t, err)
}

func TestCurrency(t *testing.T) {
	assert.Nil(t, Currency("currency", ""))
	assert.Nil(t, Currency("currency", "EUR"))
	assert.NotNil(t, Currency("currency", "eur"))
	assert.NotNil(t, Currency("currency", "EURO"))
}

func TestRequestSizeMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestSizeMiddleware(8))
	r.POST("/", func(c *gin.Context) {
		var body struct{}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"far too long"}`))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
