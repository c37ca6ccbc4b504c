package escpos

import (
	"time"

	"github.com/cravings/printagent/internal/domain/printing"
)

// Footer and caption text
const (
	FooterThanks     = "Thank you! Visit again."
	FooterPoweredBy  = "Powered by Cravings"
	CaptionLocation  = "Scan for delivery location"
	CaptionPayment   = "Scan to pay"
	createdAtDisplay = "02 Jan 2006, 03:04 PM"
)

// Encode turns a document into an ESC/POS byte stream
func Encode(doc printing.Document) ([]byte, error) {
	switch d := doc.(type) {
	case *printing.Order:
		if d == nil {
			break
		}
		return EncodeOrder(d), nil
	case *printing.Bill:
		if d == nil {
			break
		}
		return EncodeBill(d), nil
	}
	return nil, printing.NewJobError(printing.ErrCodeEncodeFailure, "no document to encode", nil)
}

// EncodeOrder renders a kitchen order ticket
func EncodeOrder(o *printing.Order) []byte {
	b := NewBuilder(Width).Init()

	title := "KOT"
	if o.Type != "" {
		title += " - " + o.Type
	}
	writeHeader(b, title)
	writeMeta(b, o.Header)
	writeNotes(b, o.Notes)

	if len(o.Items) > 0 {
		b.Rule()
		for _, item := range o.Items {
			b.BoldText(item.Quantity.String() + " x " + item.Name)
			if item.Notes != "" {
				b.Text("   Note: " + item.Notes)
			}
			b.Blank()
		}
	}

	b.Rule()
	return b.Cut().Bytes()
}

// EncodeBill renders a customer bill
func EncodeBill(bill *printing.Bill) []byte {
	b := NewBuilder(Width).Init()
	currency := Sanitize(bill.Currency)

	writeHeader(b, bill.StoreName, bill.Address, bill.Phone)
	writeMeta(b, bill.Header)
	if bill.CustomerName != "" {
		b.Text("Customer: " + bill.CustomerName)
	}
	if bill.CustomerPhone != "" {
		b.Text("Phone: " + bill.CustomerPhone)
	}
	if bill.DeliveryAddress != "" {
		b.Text("Deliver to: " + bill.DeliveryAddress)
	}
	writeNotes(b, bill.Notes)

	if len(bill.OrderItems) > 0 {
		b.Rule()
		for _, item := range bill.OrderItems {
			b.Pair(item.Quantity.String()+" x "+item.Name, Money(item.LineTotal()))
		}
	}

	if len(bill.ExtraCharges) > 0 {
		b.Rule()
		for _, charge := range bill.ExtraCharges {
			b.Pair(charge.Name, Money(charge.Price))
		}
	}

	if calc := bill.Calculations; calc != nil {
		b.Rule()
		b.Pair("Subtotal:", Amount(currency, calc.Subtotal))
		b.Pair(bill.TaxLabel()+" ("+calc.GSTPercentage.String()+"%):", Amount(currency, calc.GSTAmount))
		b.BoldPair("TOTAL:", Amount(currency, calc.GrandTotal))
	}

	b.Rule()
	b.Align(AlignCenter)
	b.Text(FooterThanks)
	if bill.GSTNo != "" {
		b.Text("GSTIN: " + bill.GSTNo)
	}
	if bill.FSSAILicenceNo != "" {
		b.Text("FSSAI Lic: " + bill.FSSAILicenceNo)
	}
	if bill.ShowPoweredByCravings {
		b.Text(FooterPoweredBy)
	}

	if link := bill.MapLink(); QRFits(link) {
		b.Blank()
		b.QR(CaptionLocation, link)
	}
	if upi := bill.PaymentUPIString; QRFits(upi) {
		b.Blank()
		b.QR(CaptionPayment, upi)
		if bill.Calculations != nil {
			b.BoldText("Amount: " + Amount(currency, bill.Calculations.GrandTotal))
		}
	}

	b.Align(AlignLeft)
	return b.Cut().Bytes()
}

func writeHeader(b *Builder, title string, sublines ...string) {
	b.Align(AlignCenter)
	b.BoldText(title)
	for _, line := range sublines {
		if line != "" {
			b.Text(line)
		}
	}
	b.Rule()
	b.Align(AlignLeft)
}

func writeMeta(b *Builder, h printing.Header) {
	b.Text("Order: #" + h.Label())
	if h.CreatedAt != "" {
		b.Text("Date: " + formatCreatedAt(h.CreatedAt))
	}
	if h.Type != "" {
		b.Text("Type: " + h.Type)
	}
}

func writeNotes(b *Builder, notes string) {
	if notes == "" {
		return
	}
	b.Blank()
	b.BoldText("Notes:")
	b.Text(notes)
}

func formatCreatedAt(raw string) string {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(createdAtDisplay)
		}
	}
	return raw
}
