package zoho

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a Zoho Books contact.
type Customer struct {
	ContactID   string `json:"contact_id"`
	ContactName string `json:"contact_name"`
}

// RecurringInvoiceRequest describes a monthly subscription to create.
type RecurringInvoiceRequest struct {
	CustomerID  string
	Name        string
	StartDate   time.Time
	Currency    string
	ItemID      string
	Rate        decimal.Decimal
	Description string
	Notes       string
	Terms       string
}

// RecurringInvoiceResult is Zoho's answer to a create. Code 0 means success;
// anything else is a business failure described by Message.
type RecurringInvoiceResult struct {
	Code               int
	Message            string
	RecurringInvoiceID string
	Status             string
	NextInvoiceDate    string
}

// OK reports whether the subscription was created and has an id.
func (r *RecurringInvoiceResult) OK() bool {
	return r != nil && r.Code == 0 && r.RecurringInvoiceID != ""
}

// Wire formats.

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type contactPerson struct {
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	IsPrimaryContact bool   `json:"is_primary_contact"`
}

type createContactBody struct {
	ContactName    string          `json:"contact_name"`
	ContactType    string          `json:"contact_type"`
	ContactPersons []contactPerson `json:"contact_persons,omitempty"`
}

type contactResponse struct {
	envelope
	Contact Customer `json:"contact"`
}

type lineItem struct {
	ItemID      string  `json:"item_id"`
	Rate        float64 `json:"rate"`
	Quantity    int     `json:"quantity"`
	Description string  `json:"description,omitempty"`
}

type createRecurringInvoiceBody struct {
	CustomerID          string     `json:"customer_id"`
	RecurrenceName      string     `json:"recurrence_name"`
	RecurrenceFrequency string     `json:"recurrence_frequency"`
	RepeatEvery         int        `json:"repeat_every"`
	StartDate           string     `json:"start_date"`
	CurrencyCode        string     `json:"currency_code,omitempty"`
	LineItems           []lineItem `json:"line_items"`
	Notes               string     `json:"notes,omitempty"`
	Terms               string     `json:"terms,omitempty"`
	AutoSend            bool       `json:"auto_send"`
	PaymentTerms        int        `json:"payment_terms"`
	PaymentTermsLabel   string     `json:"payment_terms_label"`
}

type recurringInvoiceResponse struct {
	envelope
	RecurringInvoice struct {
		RecurringInvoiceID string `json:"recurring_invoice_id"`
		Status             string `json:"status"`
		NextInvoiceDate    string `json:"next_invoice_date"`
	} `json:"recurring_invoice"`
}

type updateRecurringInvoiceBody struct {
	StartDate string `json:"start_date"`
}
