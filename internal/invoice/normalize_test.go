package invoice

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/uzair166/invoiceprocessor/internal/scanning"
)

var _ = Describe("Normalize", func() {
	var now time.Time

	BeforeEach(func() {
		now = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	})

	candidate := func(raw string) scanning.Candidate {
		cs, err := scanning.Parse(raw, scanning.ModeSingle, discardLogger)
		Expect(err).NotTo(HaveOccurred())
		Expect(cs).To(HaveLen(1))
		return cs[0]
	}

	Describe("single invoices", func() {
		It("keeps the fields the model found and nulls the rest", func() {
			inv := Normalize(candidate(`{"invoiceNumber": "A-100", "totalAmount": 1200.00, "dueDate": "2024-03-01"}`), "a.pdf", now)

			Expect(inv.Mode).To(Equal(scanning.ModeSingle))
			Expect(inv.SourceFileName).To(Equal("a.pdf"))
			Expect(inv.LastUpdated).To(Equal(now))
			Expect(inv.Single.InvoiceNumber).To(Equal(strPtr("A-100")))
			Expect(inv.Single.TotalAmount).To(Equal(floatPtr(1200)))
			Expect(inv.Single.DueDate.String()).To(Equal("2024-03-01"))
			Expect(inv.Single.InvoiceDate).To(BeNil())
			Expect(inv.Single.Subtotal).To(BeNil())
			Expect(inv.Single.Items).To(BeEmpty())
			Expect(inv.Single.Items).NotTo(BeNil())
		})

		It("fills absent nested objects with nulls", func() {
			inv := Normalize(candidate(`{"invoiceNumber": "A-100"}`), "a.pdf", now)

			Expect(inv.Single.ClientInfo).To(Equal(Party{}))
			Expect(inv.Single.BusinessInfo.Address).To(Equal(Address{}))
			Expect(inv.Single.PaymentDetails).To(Equal(PaymentDetails{}))

			data, err := json.Marshal(inv.Single)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"clientInfo":{"name":null,"contactPerson":null,"address":{"street":null,"city":null,"state":null,"zip":null,"country":null},"email":null,"phone":null,"taxId":null}`))
		})

		It("normalizes nested objects and line items", func() {
			inv := Normalize(candidate(`{
				"clientInfo": {"name": "Acme", "address": {"city": "Leeds", "zip": ""}},
				"items": [{"description": "Widget", "quantity": "2", "unitPrice": "$5.00", "lineTotal": 10}],
				"paymentDetails": {"status": "paid", "paymentDate": "03/04/2024", "balanceDue": "0"}
			}`), "a.pdf", now)

			Expect(inv.Single.ClientInfo.Name).To(Equal(strPtr("Acme")))
			Expect(inv.Single.ClientInfo.Address.City).To(Equal(strPtr("Leeds")))
			Expect(inv.Single.ClientInfo.Address.Zip).To(BeNil())
			Expect(inv.Single.Items).To(Equal([]LineItem{{
				Description: strPtr("Widget"),
				Quantity:    floatPtr(2),
				UnitPrice:   floatPtr(5),
				LineTotal:   floatPtr(10),
			}}))
			Expect(inv.Single.PaymentDetails.Status).To(Equal(strPtr("Paid")))
			Expect(inv.Single.PaymentDetails.PaymentDate.String()).To(Equal("2024-03-04"))
			Expect(inv.Single.PaymentDetails.BalanceDue).To(Equal(floatPtr(0)))
		})

		It("drops payment statuses outside the known set", func() {
			inv := Normalize(candidate(`{"paymentDetails": {"status": "Pending"}}`), "a.pdf", now)
			Expect(inv.Single.PaymentDetails.Status).To(BeNil())
		})

		It("is idempotent", func() {
			first := Normalize(candidate(`{
				"invoiceNumber": "A-100",
				"invoiceDate": "March 1, 2024",
				"subtotal": "£1,234.56",
				"clientInfo": {"name": "undefined"},
				"items": [{"description": "Widget", "lineTotal": "10"}],
				"paymentDetails": {"status": "Overdue"}
			}`), "a.pdf", now)

			data, err := json.Marshal(first.Single)
			Expect(err).NotTo(HaveOccurred())
			second := Normalize(candidate(string(data)), "a.pdf", now)

			Expect(second).To(Equal(first))
		})
	})

	Describe("multi invoices", func() {
		It("normalizes a VAT invoice", func() {
			cs, err := scanning.Parse(`{"invoices": [{
				"invoiceNumber": 4411,
				"companyFrom": "Supplier Ltd",
				"invoiceDate": "2024-02-10",
				"items": [{"itemCode": "X1", "quantity": 3, "unit": "kg", "pricePerItem": "1.50", "grossTotal": "5.40", "vatAmount": "0.90", "netTotal": "4.50"}],
				"grossTotal": "5.40", "vatTotal": "0.90", "netTotal": "4.50"
			}]}`, scanning.ModeMulti, discardLogger)
			Expect(err).NotTo(HaveOccurred())

			inv := Normalize(cs[0], "batch.pdf", now)

			Expect(inv.Mode).To(Equal(scanning.ModeMulti))
			Expect(inv.Single).To(BeNil())
			Expect(inv.Multi.InvoiceNumber).To(Equal(strPtr("4411")))
			Expect(inv.Multi.CompanyFrom).To(Equal(strPtr("Supplier Ltd")))
			Expect(inv.Multi.InvoiceDate.String()).To(Equal("2024-02-10"))
			Expect(inv.Multi.Items).To(HaveLen(1))
			Expect(inv.Multi.Items[0].Unit).To(Equal(strPtr("kg")))
			Expect(inv.Multi.Items[0].PricePerItem).To(Equal(floatPtr(1.5)))
			Expect(inv.Multi.VatTotal).To(Equal(floatPtr(0.9)))
		})
	})

	DescribeTable("normalizeNumber",
		func(in any, expected *float64) {
			Expect(normalizeNumber(in)).To(Equal(expected))
		},
		Entry("float", 12.5, floatPtr(12.5)),
		Entry("currency string", "£1,234.56", floatPtr(1234.56)),
		Entry("dollar string", "$1,200.00", floatPtr(1200)),
		Entry("negative", "-42.10", floatPtr(-42.1)),
		Entry("trailing text", "15.5 EUR", floatPtr(15.5)),
		Entry("two dots keeps the leading number", "1.2.3", floatPtr(1.2)),
		Entry("letters only", "abc", nil),
		Entry("empty", "", nil),
		Entry("nil", nil, nil),
		Entry("bool", true, nil),
		Entry("object", map[string]any{"value": 1.0}, nil),
	)

	DescribeTable("normalizeString",
		func(in any, expected *string) {
			Expect(normalizeString(in)).To(Equal(expected))
		},
		Entry("text", "Acme", strPtr("Acme")),
		Entry("empty", "", nil),
		Entry("undefined placeholder", "undefined", nil),
		Entry("null placeholder", "null", nil),
		Entry("number", 4411.0, strPtr("4411")),
		Entry("nil", nil, nil),
		Entry("array", []any{"a"}, nil),
	)

	DescribeTable("normalizeDate",
		func(in any, expected string) {
			d := normalizeDate(in)
			if expected == "" {
				Expect(d).To(BeNil())
				return
			}
			Expect(d).NotTo(BeNil())
			Expect(d.String()).To(Equal(expected))
		},
		Entry("ISO date", "2024-03-01", "2024-03-01"),
		Entry("timestamp", "2024-03-01T23:30:00+02:00", "2024-03-01"),
		Entry("US slashes", "3/1/2024", "2024-03-01"),
		Entry("day month year", "1 Mar 2024", "2024-03-01"),
		Entry("long month", "March 1, 2024", "2024-03-01"),
		Entry("ISO without padding", "2024-3-1", "2024-03-01"),
		Entry("long month without comma", "March 1 2024", "2024-03-01"),
		Entry("short month without comma", "Mar 1 2024", "2024-03-01"),
		Entry("garbage", "next tuesday", ""),
		Entry("empty", "", ""),
		Entry("number", 20240301.0, ""),
	)
})

var _ = Describe("Record", func() {
	It("flattens the invoice next to its metadata and reads it back", func() {
		created := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
		due := NewDate(2024, time.March, 1)
		record := &Record{
			ID:        "inv-1",
			CreatedAt: created,
			Invoice: Invoice{
				Mode:           scanning.ModeSingle,
				SourceFileName: "a.pdf",
				LastUpdated:    created,
				Single: &SingleInvoice{
					InvoiceNumber: strPtr("A-100"),
					DueDate:       &due,
					Items:         []LineItem{},
				},
			},
		}

		data, err := json.Marshal(record)
		Expect(err).NotTo(HaveOccurred())

		var fields map[string]any
		Expect(json.Unmarshal(data, &fields)).To(Succeed())
		Expect(fields).To(HaveKeyWithValue("id", "inv-1"))
		Expect(fields).To(HaveKeyWithValue("mode", "single"))
		Expect(fields).To(HaveKeyWithValue("invoiceNumber", "A-100"))
		Expect(fields).To(HaveKeyWithValue("dueDate", "2024-03-01"))
		Expect(fields).To(HaveKeyWithValue("totalAmount", BeNil()))

		var decoded Record
		Expect(json.Unmarshal(data, &decoded)).To(Succeed())
		Expect(decoded.ID).To(Equal("inv-1"))
		Expect(decoded.CreatedAt).To(BeTemporally("==", created))
		Expect(decoded.Single.InvoiceNumber).To(Equal(strPtr("A-100")))
		Expect(decoded.Single.DueDate.String()).To(Equal("2024-03-01"))
		Expect(decoded.Multi).To(BeNil())
	})

	It("round trips a VAT invoice", func() {
		record := &Record{
			ID: "inv-2",
			Invoice: Invoice{
				Mode:  scanning.ModeMulti,
				Multi: &VATInvoice{CompanyFrom: strPtr("Supplier Ltd"), Items: []VATLineItem{}},
			},
		}
		data, err := json.Marshal(record)
		Expect(err).NotTo(HaveOccurred())

		var decoded Record
		Expect(json.Unmarshal(data, &decoded)).To(Succeed())
		Expect(decoded.Mode).To(Equal(scanning.ModeMulti))
		Expect(decoded.Single).To(BeNil())
		Expect(decoded.Multi.CompanyFrom).To(Equal(strPtr("Supplier Ltd")))
	})
})
