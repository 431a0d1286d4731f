package scanning

import "strings"

// PaymentStatuses is the closed set of payment status values the model may emit
var PaymentStatuses = []string{"Paid", "Unpaid", "Overdue", "Partial"}

// InvoicesKey is the top-level array field of a multi-invoice response
const InvoicesKey = "invoices"

const formattingRules = `Follow these specific formatting rules:

1. Dates should be in ISO 8601 format without a time component (YYYY-MM-DD)
2. All monetary values should be plain decimal numbers (e.g., 1234.56)
3. Remove currency symbols and thousands separators from all amounts
4. Phone numbers should include country code if available
5. Return null for any fields where information is not found in the document
6. Do not include any text before or after the JSON and do not use markdown code blocks`

const singleSchema = `{
  "invoiceNumber": "string",
  "invoiceDate": "YYYY-MM-DD",
  "dueDate": "YYYY-MM-DD",
  "paymentTerms": "string",

  "clientInfo": {
    "name": "string",
    "contactPerson": "string",
    "address": {
      "street": "string",
      "city": "string",
      "state": "string",
      "zip": "string",
      "country": "string"
    },
    "email": "string",
    "phone": "string"
  },

  "businessInfo": {
    "name": "string",
    "address": {
      "street": "string",
      "city": "string",
      "state": "string",
      "zip": "string",
      "country": "string"
    },
    "email": "string",
    "phone": "string",
    "taxId": "string"
  },

  "items": [
    {
      "description": "string",
      "quantity": number,
      "unitPrice": number,
      "lineTotal": number
    }
  ],

  "subtotal": number,
  "discount": number,
  "taxRate": number,
  "taxAmount": number,
  "totalAmount": number,

  "paymentDetails": {
    "method": "string",
    "status": "STATUSES",
    "paymentDate": "YYYY-MM-DD",
    "transactionReference": "string",
    "balanceDue": number
  }
}`

const multiSchema = `{
  "invoices": [
    {
      "invoiceNumber": "string",
      "companyFrom": "string",
      "invoiceDate": "YYYY-MM-DD",
      "items": [
        {
          "itemCode": "string",
          "description": "string",
          "quantity": number,
          "unit": "string",
          "pricePerItem": number,
          "grossTotal": number,
          "vatAmount": number,
          "netTotal": number
        }
      ],
      "grossTotal": number,
      "vatTotal": number,
      "netTotal": number
    }
  ]
}`

// BuildPrompt renders the system instruction for mode. The output is
// deterministic for a given mode.
func BuildPrompt(mode Mode) string {
	var b strings.Builder
	if mode == ModeMulti {
		b.WriteString("The document may contain several invoices. Extract every invoice in the order it appears and return them as a JSON object with the exact structure shown below. ")
	} else {
		b.WriteString("Extract the following information from this invoice and return it as a JSON object with the exact structure shown below. ")
	}
	b.WriteString(formattingRules)
	b.WriteString("\n")
	if mode == ModeMulti {
		b.WriteString("7. Every invoice must be an element of the \"" + InvoicesKey + "\" array, even if there is only one\n")
	} else {
		b.WriteString("7. Payment status must be exactly one of: " + strings.Join(PaymentStatuses, ", ") + ", or null\n")
	}
	b.WriteString("\nExpected JSON structure:\n")
	if mode == ModeMulti {
		b.WriteString(multiSchema)
	} else {
		b.WriteString(strings.Replace(singleSchema, "STATUSES", strings.Join(PaymentStatuses, "|"), 1))
	}
	return b.String()
}
