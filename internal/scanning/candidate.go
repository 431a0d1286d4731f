package scanning

// Candidate is one invoice decoded from a model response, before
// normalization. Exactly one of Single or Multi is set, matching Mode.
// Leaf fields keep whatever JSON value the model produced.
type Candidate struct {
	Mode   Mode
	Single *SingleCandidate
	Multi  *MultiCandidate
}

// AddressCandidate is a postal address as emitted by the model
type AddressCandidate struct {
	Street  any `json:"street"`
	City    any `json:"city"`
	State   any `json:"state"`
	Zip     any `json:"zip"`
	Country any `json:"country"`
}

// PartyCandidate describes the client or the issuing business
type PartyCandidate struct {
	Name          any               `json:"name"`
	ContactPerson any               `json:"contactPerson"`
	Address       *AddressCandidate `json:"address"`
	Email         any               `json:"email"`
	Phone         any               `json:"phone"`
	TaxID         any               `json:"taxId"`
}

// LineItemCandidate is a single-mode line item
type LineItemCandidate struct {
	Description any `json:"description"`
	Quantity    any `json:"quantity"`
	UnitPrice   any `json:"unitPrice"`
	LineTotal   any `json:"lineTotal"`
}

// PaymentCandidate holds payment details
type PaymentCandidate struct {
	Method               any `json:"method"`
	Status               any `json:"status"`
	PaymentDate          any `json:"paymentDate"`
	TransactionReference any `json:"transactionReference"`
	BalanceDue           any `json:"balanceDue"`
}

// SingleCandidate is the rich single-invoice shape
type SingleCandidate struct {
	InvoiceNumber  any                 `json:"invoiceNumber"`
	InvoiceDate    any                 `json:"invoiceDate"`
	DueDate        any                 `json:"dueDate"`
	PaymentTerms   any                 `json:"paymentTerms"`
	ClientInfo     *PartyCandidate     `json:"clientInfo"`
	BusinessInfo   *PartyCandidate     `json:"businessInfo"`
	Items          []LineItemCandidate `json:"items"`
	Subtotal       any                 `json:"subtotal"`
	Discount       any                 `json:"discount"`
	TaxRate        any                 `json:"taxRate"`
	TaxAmount      any                 `json:"taxAmount"`
	TotalAmount    any                 `json:"totalAmount"`
	PaymentDetails *PaymentCandidate   `json:"paymentDetails"`
}

// MultiLineItemCandidate is a VAT line item of the multi-invoice shape
type MultiLineItemCandidate struct {
	ItemCode     any `json:"itemCode"`
	Description  any `json:"description"`
	Quantity     any `json:"quantity"`
	Unit         any `json:"unit"`
	PricePerItem any `json:"pricePerItem"`
	GrossTotal   any `json:"grossTotal"`
	VatAmount    any `json:"vatAmount"`
	NetTotal     any `json:"netTotal"`
}

// MultiCandidate is one element of the multi-invoice array
type MultiCandidate struct {
	InvoiceNumber any                      `json:"invoiceNumber"`
	CompanyFrom   any                      `json:"companyFrom"`
	InvoiceDate   any                      `json:"invoiceDate"`
	Items         []MultiLineItemCandidate `json:"items"`
	GrossTotal    any                      `json:"grossTotal"`
	VatTotal      any                      `json:"vatTotal"`
	NetTotal      any                      `json:"netTotal"`
}
