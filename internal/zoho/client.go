// Package zoho is the Zoho Books client used by the billing jobs: contacts,
// recurring invoices and their schedules.
package zoho

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mbd888/distrokit/internal/billingdate"
	"github.com/mbd888/distrokit/internal/circuitbreaker"
	"github.com/mbd888/distrokit/internal/config"
	"github.com/mbd888/distrokit/internal/retry"
	"github.com/mbd888/distrokit/internal/traces"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 1 << 20

	paymentTermsDays  = 15
	paymentTermsLabel = "Net 15"
)

// Operation families, used as circuit breaker keys and metric labels.
const (
	opContacts      = "contacts"
	opRecurring     = "recurring_invoices"
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeDown     = "unavailable"
)

var requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "distrokit",
	Subsystem: "zoho",
	Name:      "requests_total",
	Help:      "Zoho Books API calls by operation and outcome.",
}, []string{"operation", "outcome"})

func init() {
	prometheus.MustRegister(requestsTotal)
}

// Client talks to the Zoho Books v3 API.
type Client struct {
	cfg        config.ZohoConfig
	httpClient *http.Client
	tokens     *tokenCache
	breaker    *circuitbreaker.Breaker
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for API and token calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBreaker replaces the circuit breaker.
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithRetryPolicy sets the retry policy for token exchanges.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.tokens.policy = p }
}

// WithClock overrides the token cache clock.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.tokens.now = now }
}

// NewClient validates cfg and builds a client. Missing settings fail with
// ErrConfiguration.
func NewClient(cfg config.ZohoConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: Zoho base URL is required", ErrConfiguration)
	}
	if cfg.OrganizationID == "" {
		return nil, fmt.Errorf("%w: Zoho organization id is required", ErrConfiguration)
	}
	if !cfg.HasCredentials() {
		return nil, fmt.Errorf("%w: Zoho access token or refresh credentials are required", ErrConfiguration)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    circuitbreaker.New(5, time.Minute),
		logger:     logger.With("component", "zoho"),
	}
	c.tokens = &tokenCache{
		cfg:    cfg,
		policy: retry.DefaultPolicy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tokens.httpClient = c.httpClient
	return c, nil
}

// CreateCustomer creates a customer contact. A rejection is returned as an
// error matching ErrProviderRejected.
func (c *Client) CreateCustomer(ctx context.Context, name, email, phone string) (*Customer, error) {
	body := createContactBody{ContactName: name, ContactType: "customer"}
	if email != "" || phone != "" {
		body.ContactPersons = []contactPerson{{Email: email, Phone: phone, IsPrimaryContact: true}}
	}

	var resp contactResponse
	if err := c.do(ctx, opContacts, http.MethodPost, "/contacts", body, &resp); err != nil {
		return nil, err
	}
	if resp.Contact.ContactID == "" {
		return nil, &APIError{Message: "contact id missing from response", HTTPStatus: http.StatusOK}
	}
	return &resp.Contact, nil
}

// CreateRecurringInvoice creates a monthly recurring invoice that Zoho sends
// automatically, Net 15. Provider decisions, including rejections, come back
// as a result; the error is set only when Zoho could not be reached.
func (c *Client) CreateRecurringInvoice(ctx context.Context, req RecurringInvoiceRequest) (*RecurringInvoiceResult, error) {
	body := createRecurringInvoiceBody{
		CustomerID:          req.CustomerID,
		RecurrenceName:      req.Name,
		RecurrenceFrequency: "months",
		RepeatEvery:         1,
		StartDate:           req.StartDate.Format(billingdate.Layout),
		CurrencyCode:        req.Currency,
		LineItems: []lineItem{{
			ItemID:      req.ItemID,
			Rate:        req.Rate.InexactFloat64(),
			Quantity:    1,
			Description: req.Description,
		}},
		Notes:             req.Notes,
		Terms:             req.Terms,
		AutoSend:          true,
		PaymentTerms:      paymentTermsDays,
		PaymentTermsLabel: paymentTermsLabel,
	}

	var resp recurringInvoiceResponse
	err := c.do(ctx, opRecurring, http.MethodPost, "/recurringinvoices", body, &resp)
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		code := apiErr.Code
		if code == 0 {
			code = apiErr.HTTPStatus
		}
		return &RecurringInvoiceResult{Code: code, Message: apiErr.Message}, nil
	case err != nil:
		return nil, err
	}

	return &RecurringInvoiceResult{
		Code:               resp.Code,
		Message:            resp.Message,
		RecurringInvoiceID: resp.RecurringInvoice.RecurringInvoiceID,
		Status:             resp.RecurringInvoice.Status,
		NextInvoiceDate:    resp.RecurringInvoice.NextInvoiceDate,
	}, nil
}

// StopRecurringInvoice stops a recurring invoice. It returns false with a nil
// error when Zoho refuses, and an error only when Zoho could not be reached.
func (c *Client) StopRecurringInvoice(ctx context.Context, recurringInvoiceID string) (bool, error) {
	if recurringInvoiceID == "" {
		return false, nil
	}
	path := "/recurringinvoices/" + url.PathEscape(recurringInvoiceID) + "/status/stop"
	return c.decide(ctx, "stop recurring invoice", recurringInvoiceID,
		c.do(ctx, opRecurring, http.MethodPost, path, nil, nil))
}

// UpdateNextBillingDate moves the recurring invoice's next run to the billing
// date that follows paymentDate. Same result contract as StopRecurringInvoice.
func (c *Client) UpdateNextBillingDate(ctx context.Context, recurringInvoiceID string, paymentDate time.Time, billingDay int) (bool, error) {
	if recurringInvoiceID == "" {
		return false, nil
	}
	next := billingdate.Next(paymentDate, billingDay)
	path := "/recurringinvoices/" + url.PathEscape(recurringInvoiceID)
	body := updateRecurringInvoiceBody{StartDate: next.Format(billingdate.Layout)}
	return c.decide(ctx, "update recurring invoice", recurringInvoiceID,
		c.do(ctx, opRecurring, http.MethodPut, path, body, nil))
}

func (c *Client) decide(ctx context.Context, action, id string, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrProviderRejected) {
		c.logger.WarnContext(ctx, action+" rejected", "recurring_invoice_id", id, "error", err)
		return false, nil
	}
	return false, err
}

// do sends one API call through the circuit breaker and decodes the response
// into out. Only transport-level failures count against the breaker.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	ctx, span := traces.StartSpan(ctx, "zoho."+op, traces.Operation(method+" "+path))
	defer span.End()

	err := c.breaker.Execute(op, func(err error) bool {
		return ctx.Err() == nil && errors.Is(err, ErrProviderUnavailable)
	}, func() error {
		return c.send(ctx, method, path, body, out)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		err = fmt.Errorf("%w: %s circuit open", ErrProviderUnavailable, op)
	}

	switch {
	case err == nil:
		requestsTotal.WithLabelValues(op, outcomeOK).Inc()
	case errors.Is(err, ErrProviderRejected):
		requestsTotal.WithLabelValues(op, outcomeRejected).Inc()
	default:
		requestsTotal.WithLabelValues(op, outcomeDown).Inc()
		span.RecordError(err)
	}
	return err
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	u, err := url.Parse(c.cfg.BaseURL + path)
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %v", ErrConfiguration, err)
	}
	q := u.Query()
	q.Set("organization_id", c.cfg.OrganizationID)
	u.RawQuery = q.Encode()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrProviderUnavailable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrProviderUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s %s: http %d", ErrProviderUnavailable, method, path, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("%w: %s %s: undecodable response (http %d): %v", ErrProviderUnavailable, method, path, resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || env.Code != 0 {
		if resp.StatusCode == http.StatusUnauthorized || env.Code == codeUnauthorized {
			c.tokens.invalidate(token)
		}
		return &APIError{Code: env.Code, Message: env.Message, HTTPStatus: resp.StatusCode}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: decode %s %s: %v", ErrProviderUnavailable, method, path, err)
		}
	}
	return nil
}
