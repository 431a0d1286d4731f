package invoice

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uzair166/invoiceprocessor/internal/scanning"
)

var (
	nonNumeric    = regexp.MustCompile(`[^0-9.\-]`)
	numericPrefix = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)`)
)

// dateLayouts are tried in order; the first that parses wins
var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
}

// Normalize coerces a candidate into the stored schema. Text placeholders
// become null, monetary strings become numbers, dates become calendar
// dates and absent nested objects become fully-null objects. Normalizing
// a candidate built from an already normalized invoice is a no-op.
func Normalize(c scanning.Candidate, sourceFileName string, now time.Time) Invoice {
	inv := Invoice{
		Mode:           c.Mode,
		SourceFileName: sourceFileName,
		LastUpdated:    now,
	}
	switch c.Mode {
	case scanning.ModeMulti:
		inv.Multi = normalizeVAT(c.Multi)
	default:
		inv.Mode = scanning.ModeSingle
		inv.Single = normalizeSingle(c.Single)
	}
	return inv
}

func normalizeSingle(c *scanning.SingleCandidate) *SingleInvoice {
	if c == nil {
		c = &scanning.SingleCandidate{}
	}
	inv := &SingleInvoice{
		InvoiceNumber:  normalizeString(c.InvoiceNumber),
		InvoiceDate:    normalizeDate(c.InvoiceDate),
		DueDate:        normalizeDate(c.DueDate),
		PaymentTerms:   normalizeString(c.PaymentTerms),
		ClientInfo:     normalizeParty(c.ClientInfo),
		BusinessInfo:   normalizeParty(c.BusinessInfo),
		Items:          make([]LineItem, 0, len(c.Items)),
		Subtotal:       normalizeNumber(c.Subtotal),
		Discount:       normalizeNumber(c.Discount),
		TaxRate:        normalizeNumber(c.TaxRate),
		TaxAmount:      normalizeNumber(c.TaxAmount),
		TotalAmount:    normalizeNumber(c.TotalAmount),
		PaymentDetails: normalizePayment(c.PaymentDetails),
	}
	for _, item := range c.Items {
		inv.Items = append(inv.Items, LineItem{
			Description: normalizeString(item.Description),
			Quantity:    normalizeNumber(item.Quantity),
			UnitPrice:   normalizeNumber(item.UnitPrice),
			LineTotal:   normalizeNumber(item.LineTotal),
		})
	}
	return inv
}

func normalizeVAT(c *scanning.MultiCandidate) *VATInvoice {
	if c == nil {
		c = &scanning.MultiCandidate{}
	}
	inv := &VATInvoice{
		InvoiceNumber: normalizeString(c.InvoiceNumber),
		CompanyFrom:   normalizeString(c.CompanyFrom),
		InvoiceDate:   normalizeDate(c.InvoiceDate),
		Items:         make([]VATLineItem, 0, len(c.Items)),
		GrossTotal:    normalizeNumber(c.GrossTotal),
		VatTotal:      normalizeNumber(c.VatTotal),
		NetTotal:      normalizeNumber(c.NetTotal),
	}
	for _, item := range c.Items {
		inv.Items = append(inv.Items, VATLineItem{
			ItemCode:     normalizeString(item.ItemCode),
			Description:  normalizeString(item.Description),
			Quantity:     normalizeNumber(item.Quantity),
			Unit:         normalizeString(item.Unit),
			PricePerItem: normalizeNumber(item.PricePerItem),
			GrossTotal:   normalizeNumber(item.GrossTotal),
			VatAmount:    normalizeNumber(item.VatAmount),
			NetTotal:     normalizeNumber(item.NetTotal),
		})
	}
	return inv
}

func normalizeParty(c *scanning.PartyCandidate) Party {
	if c == nil {
		return Party{}
	}
	p := Party{
		Name:          normalizeString(c.Name),
		ContactPerson: normalizeString(c.ContactPerson),
		Email:         normalizeString(c.Email),
		Phone:         normalizeString(c.Phone),
		TaxID:         normalizeString(c.TaxID),
	}
	if c.Address != nil {
		p.Address = Address{
			Street:  normalizeString(c.Address.Street),
			City:    normalizeString(c.Address.City),
			State:   normalizeString(c.Address.State),
			Zip:     normalizeString(c.Address.Zip),
			Country: normalizeString(c.Address.Country),
		}
	}
	return p
}

func normalizePayment(c *scanning.PaymentCandidate) PaymentDetails {
	if c == nil {
		return PaymentDetails{}
	}
	return PaymentDetails{
		Method:               normalizeString(c.Method),
		Status:               normalizeStatus(c.Status),
		PaymentDate:          normalizeDate(c.PaymentDate),
		TransactionReference: normalizeString(c.TransactionReference),
		BalanceDue:           normalizeNumber(c.BalanceDue),
	}
}

func normalizeString(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return nil
	}
	switch s {
	case "", "undefined", "null":
		return nil
	}
	return &s
}

func normalizeNumber(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		cleaned := nonNumeric.ReplaceAllString(t, "")
		m := numericPrefix.FindString(cleaned)
		if m == "" {
			return nil
		}
		d, err := decimal.NewFromString(m)
		if err != nil {
			return nil
		}
		f := d.InexactFloat64()
		return &f
	default:
		return nil
	}
}

func normalizeDate(v any) *Date {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := NewDate(t.Year(), t.Month(), t.Day())
		return &d
	}
	return nil
}

func normalizeStatus(v any) *string {
	s := normalizeString(v)
	if s == nil {
		return nil
	}
	for _, status := range scanning.PaymentStatuses {
		if strings.EqualFold(*s, status) {
			return &status
		}
	}
	return nil
}
