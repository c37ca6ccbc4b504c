package printing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Markers that prefix a tagged document line emitted by a receipt page
const (
	MarkerKOT  = "PRINT_KOT:"
	MarkerBill = "PRINT_BILL:"
)

// UAECountry is the country whose tax line is labeled VAT instead of GST
const UAECountry = "United Arab Emirates"

// Document is either an *Order or a *Bill
type Document interface {
	Kind() DocumentKind
	DocumentID() string
	isDocument()
}

// Header holds the fields shared by tickets and bills
type Header struct {
	ID        string `json:"id" validate:"required"`
	DisplayID string `json:"display_id,omitempty"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Notes     string `json:"notes,omitempty"`
}

// Label returns the display id when present, else the id
func (h Header) Label() string {
	if h.DisplayID != "" {
		return h.DisplayID
	}
	return h.ID
}

// OrderItem is a line on a kitchen order ticket
type OrderItem struct {
	Name     string          `json:"name" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Notes    string          `json:"notes,omitempty"`
}

// Order is a kitchen order ticket
type Order struct {
	Header
	Items []OrderItem `json:"items" validate:"dive"`
}

func (*Order) Kind() DocumentKind   { return DocumentKindKOT }
func (o *Order) DocumentID() string { return o.ID }
func (*Order) isDocument()          {}

// BillItem is a priced line on a bill
type BillItem struct {
	Name     string          `json:"name" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// LineTotal returns quantity * price
func (i BillItem) LineTotal() decimal.Decimal {
	return i.Quantity.Mul(i.Price)
}

// ExtraCharge is a named surcharge such as packing or delivery
type ExtraCharge struct {
	Name  string          `json:"name" validate:"required"`
	Price decimal.Decimal `json:"price"`
}

// Calculations holds totals computed upstream
type Calculations struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	GSTPercentage decimal.Decimal `json:"gst_percentage"`
	GSTAmount     decimal.Decimal `json:"gst_amount"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
}

// DeliveryLocation points at the delivery address on a map
type DeliveryLocation struct {
	GoogleMapsLink string `json:"google_maps_link"`
}

// Bill is a customer-facing bill
type Bill struct {
	Header
	StoreName             string            `json:"store_name" validate:"required"`
	Address               string            `json:"address,omitempty"`
	Phone                 string            `json:"phone,omitempty"`
	CustomerName          string            `json:"customer_name,omitempty"`
	CustomerPhone         string            `json:"customer_phone,omitempty"`
	DeliveryAddress       string            `json:"delivery_address,omitempty"`
	OrderItems            []BillItem        `json:"order_items" validate:"dive"`
	ExtraCharges          []ExtraCharge     `json:"extra_charges" validate:"dive"`
	Calculations          *Calculations     `json:"calculations,omitempty"`
	Currency              string            `json:"currency"`
	Country               string            `json:"country"`
	PaymentUPIString      string            `json:"payment_upi_string,omitempty"`
	DeliveryLocation      *DeliveryLocation `json:"delivery_location,omitempty"`
	GSTNo                 string            `json:"gst_no,omitempty"`
	FSSAILicenceNo        string            `json:"fssai_licence_no,omitempty"`
	ShowPoweredByCravings bool              `json:"show_powered_by_cravings"`
}

func (*Bill) Kind() DocumentKind   { return DocumentKindBill }
func (b *Bill) DocumentID() string { return b.ID }
func (*Bill) isDocument()          {}

// TaxLabel returns VAT for the UAE and GST everywhere else
func (b *Bill) TaxLabel() string {
	if b.Country == UAECountry {
		return "VAT"
	}
	return "GST"
}

// MapLink returns the delivery map link, if any
func (b *Bill) MapLink() string {
	if b.DeliveryLocation == nil {
		return ""
	}
	return b.DeliveryLocation.GoogleMapsLink
}

// TotalsConsistent reports whether grand_total matches subtotal + tax +
// extras to the cent. It is informational; encoding never depends on it.
func (b *Bill) TotalsConsistent() bool {
	if b.Calculations == nil {
		return true
	}
	sum := b.Calculations.Subtotal.Add(b.Calculations.GSTAmount)
	for _, c := range b.ExtraCharges {
		sum = sum.Add(c.Price)
	}
	return sum.Round(2).Equal(b.Calculations.GrandTotal.Round(2))
}

var documentValidator = validator.New()

// DecodeTagged matches the marker prefix of a tagged line, strips it and
// decodes the remainder as the corresponding document.
func DecodeTagged(line string) (Document, error) {
	kind, payload, ok := splitMarker(line)
	if !ok {
		return nil, NewJobError(ErrCodeEncodeFailure, "payload carries no document marker", nil)
	}
	return DecodeDocument(kind, []byte(payload))
}

// DecodeDocument decodes and validates a JSON document of the given kind
func DecodeDocument(kind DocumentKind, data []byte) (Document, error) {
	var doc Document
	switch kind {
	case DocumentKindKOT:
		doc = &Order{}
	case DocumentKindBill:
		doc = &Bill{}
	default:
		return nil, NewJobError(ErrCodeEncodeFailure, "unknown document kind: "+kind.String(), nil)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewJobError(ErrCodeEncodeFailure, "empty "+kind.String()+" payload", nil)
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, NewJobError(ErrCodeEncodeFailure, "malformed "+kind.String()+" payload", err)
	}
	if err := documentValidator.Struct(doc); err != nil {
		return nil, NewJobError(ErrCodeEncodeFailure, "invalid "+kind.String()+" payload", err)
	}
	if err := validateQuantities(doc); err != nil {
		return nil, NewJobError(ErrCodeEncodeFailure, "invalid "+kind.String()+" payload", err)
	}
	return doc, nil
}

func splitMarker(line string) (DocumentKind, string, bool) {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, MarkerKOT):
		return DocumentKindKOT, strings.TrimPrefix(trimmed, MarkerKOT), true
	case strings.HasPrefix(trimmed, MarkerBill):
		return DocumentKindBill, strings.TrimPrefix(trimmed, MarkerBill), true
	}
	return "", "", false
}

func validateQuantities(doc Document) error {
	switch d := doc.(type) {
	case *Order:
		for i, item := range d.Items {
			if item.Quantity.IsNegative() {
				return fmt.Errorf("items[%d].quantity must not be negative", i)
			}
		}
	case *Bill:
		for i, item := range d.OrderItems {
			if item.Quantity.IsNegative() {
				return fmt.Errorf("order_items[%d].quantity must not be negative", i)
			}
		}
	}
	return nil
}
