// Package validation provides input validation helpers for the admin API.
package validation

import (
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/distrokit/internal/billingdate"
	"github.com/shopspring/decimal"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// SanitizeString trims whitespace, strips null bytes and invalid UTF-8, and
// limits the result to maxLen bytes without splitting a rune.
func SanitizeString(s string, maxLen int) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
	if len(s) > maxLen {
		for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
			maxLen--
		}
		s = s[:maxLen]
	}
	return s
}

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// BillingDay checks that day is a usable day of month.
func BillingDay(field string, day int) *ValidationError {
	if day < 1 || day > 31 {
		return &ValidationError{Field: field, Message: "must be between 1 and 31"}
	}
	return nil
}

// Amount parses a non-negative decimal amount. Empty means zero.
func Amount(field, value string) (decimal.Decimal, *ValidationError) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Message: "must be a decimal number"}
	}
	if d.IsNegative() {
		return decimal.Zero, &ValidationError{Field: field, Message: "must not be negative"}
	}
	return d, nil
}

// Date parses a YYYY-MM-DD date in UTC. Empty returns the fallback.
func Date(field, value string, fallback time.Time) (time.Time, *ValidationError) {
	if strings.TrimSpace(value) == "" {
		return billingdate.Truncate(fallback.UTC()), nil
	}
	d, err := time.Parse(billingdate.Layout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Message: "must be a date in YYYY-MM-DD format"}
	}
	return d, nil
}

// Currency checks a three-letter ISO 4217 code. Empty is allowed.
func Currency(field, value string) *ValidationError {
	if value == "" {
		return nil
	}
	if len(value) != 3 || strings.ToUpper(value) != value {
		return &ValidationError{Field: field, Message: "must be a 3-letter upper-case currency code"}
	}
	return nil
}
