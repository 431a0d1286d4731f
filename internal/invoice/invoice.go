package invoice

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uzair166/invoiceprocessor/internal/scanning"
)

const dateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD
type Date struct {
	time.Time
}

// NewDate returns the date y-m-d at midnight UTC
func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("parsing date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// Address is a postal address; every field may be null
type Address struct {
	Street  *string `json:"street"`
	City    *string `json:"city"`
	State   *string `json:"state"`
	Zip     *string `json:"zip"`
	Country *string `json:"country"`
}

// Party is the client or the issuing business of an invoice
type Party struct {
	Name          *string `json:"name"`
	ContactPerson *string `json:"contactPerson"`
	Address       Address `json:"address"`
	Email         *string `json:"email"`
	Phone         *string `json:"phone"`
	TaxID         *string `json:"taxId"`
}

// LineItem is a line of a single-mode invoice
type LineItem struct {
	Description *string  `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unitPrice"`
	LineTotal   *float64 `json:"lineTotal"`
}

// PaymentDetails describes how and whether an invoice was paid
type PaymentDetails struct {
	Method               *string  `json:"method"`
	Status               *string  `json:"status"` // Paid, Unpaid, Overdue, Partial
	PaymentDate          *Date    `json:"paymentDate"`
	TransactionReference *string  `json:"transactionReference"`
	BalanceDue           *float64 `json:"balanceDue"`
}

// SingleInvoice is the rich single-invoice schema
type SingleInvoice struct {
	InvoiceNumber  *string        `json:"invoiceNumber"`
	InvoiceDate    *Date          `json:"invoiceDate"`
	DueDate        *Date          `json:"dueDate"`
	PaymentTerms   *string        `json:"paymentTerms"`
	ClientInfo     Party          `json:"clientInfo"`
	BusinessInfo   Party          `json:"businessInfo"`
	Items          []LineItem     `json:"items"`
	Subtotal       *float64       `json:"subtotal"`
	Discount       *float64       `json:"discount"`
	TaxRate        *float64       `json:"taxRate"`
	TaxAmount      *float64       `json:"taxAmount"`
	TotalAmount    *float64       `json:"totalAmount"`
	PaymentDetails PaymentDetails `json:"paymentDetails"`
}

// VATLineItem is a line of a multi-mode invoice
type VATLineItem struct {
	ItemCode     *string  `json:"itemCode"`
	Description  *string  `json:"description"`
	Quantity     *float64 `json:"quantity"`
	Unit         *string  `json:"unit"`
	PricePerItem *float64 `json:"pricePerItem"`
	GrossTotal   *float64 `json:"grossTotal"`
	VatAmount    *float64 `json:"vatAmount"`
	NetTotal     *float64 `json:"netTotal"`
}

// VATInvoice is one invoice of the flattened multi-invoice schema
type VATInvoice struct {
	InvoiceNumber *string       `json:"invoiceNumber"`
	CompanyFrom   *string       `json:"companyFrom"`
	InvoiceDate   *Date         `json:"invoiceDate"`
	Items         []VATLineItem `json:"items"`
	GrossTotal    *float64      `json:"grossTotal"`
	VatTotal      *float64      `json:"vatTotal"`
	NetTotal      *float64      `json:"netTotal"`
}

// Invoice is a normalized invoice ready to be stored. Exactly one of
// Single or Multi is set, matching Mode.
type Invoice struct {
	Mode           scanning.Mode
	Single         *SingleInvoice
	Multi          *VATInvoice
	SourceFileName string
	LastUpdated    time.Time
}

// Record is a stored invoice
type Record struct {
	ID        string
	CreatedAt time.Time
	Invoice
}

type recordMeta struct {
	ID             string        `json:"id"`
	Mode           scanning.Mode `json:"mode"`
	SourceFileName string        `json:"sourceFileName"`
	LastUpdated    time.Time     `json:"lastUpdated"`
	CreatedAt      time.Time     `json:"createdAt"`
}

type singleRecord struct {
	recordMeta
	*SingleInvoice
}

type multiRecord struct {
	recordMeta
	*VATInvoice
}

// MarshalJSON flattens the active invoice shape next to the record metadata
func (r Record) MarshalJSON() ([]byte, error) {
	meta := recordMeta{
		ID:             r.ID,
		Mode:           r.Mode,
		SourceFileName: r.SourceFileName,
		LastUpdated:    r.LastUpdated,
		CreatedAt:      r.CreatedAt,
	}
	switch r.Mode {
	case scanning.ModeMulti:
		if r.Multi == nil {
			return nil, fmt.Errorf("record %s: multi invoice missing", r.ID)
		}
		return json.Marshal(multiRecord{meta, r.Multi})
	default:
		if r.Single == nil {
			return nil, fmt.Errorf("record %s: single invoice missing", r.ID)
		}
		meta.Mode = scanning.ModeSingle
		return json.Marshal(singleRecord{meta, r.Single})
	}
}

// UnmarshalJSON reads a record written by MarshalJSON
func (r *Record) UnmarshalJSON(b []byte) error {
	var meta recordMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		return err
	}

	*r = Record{
		ID:        meta.ID,
		CreatedAt: meta.CreatedAt,
		Invoice: Invoice{
			Mode:           meta.Mode,
			SourceFileName: meta.SourceFileName,
			LastUpdated:    meta.LastUpdated,
		},
	}
	if meta.Mode == scanning.ModeMulti {
		r.Multi = &VATInvoice{}
		return json.Unmarshal(b, &multiRecord{VATInvoice: r.Multi})
	}
	r.Mode = scanning.ModeSingle
	r.Single = &SingleInvoice{}
	return json.Unmarshal(b, &singleRecord{SingleInvoice: r.Single})
}
