package invoice

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/uzair166/invoiceprocessor/internal/scanning"
)

const (
	singleSheet = "Invoices"
	vatSheet    = "VAT Invoices"

	invoiceTotalLabel = "TOTAL FOR INVOICE"
)

var singleHeaders = []any{
	"Invoice Number", "Invoice Date", "Due Date", "Client", "Business",
	"Description", "Quantity", "Unit Price", "Line Total",
	"Subtotal", "Tax Amount", "Total Amount", "Payment Status", "Source File",
}

var vatHeaders = []any{
	"Invoice Number", "Company From", "Invoice Date", "Item Code", "Description",
	"Quantity", "Unit", "Price Per Item", "Gross Total", "VAT Amount", "Net Total",
	"Source File",
}

// ExportXLSX renders every stored invoice as a workbook. Single-mode
// invoices and VAT invoices get a sheet each, with one row per line item
// followed by a total row per invoice.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	records, err := s.ListInvoices(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", singleSheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	if _, err := f.NewSheet(vatSheet); err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}

	singles := &sheetWriter{f: f, sheet: singleSheet}
	vats := &sheetWriter{f: f, sheet: vatSheet}
	singles.row(singleHeaders...)
	vats.row(vatHeaders...)

	for _, r := range records {
		switch {
		case r.Mode == scanning.ModeMulti && r.Multi != nil:
			writeVATInvoice(vats, r)
		case r.Single != nil:
			writeSingleInvoice(singles, r)
		}
	}

	if singles.err != nil {
		return nil, fmt.Errorf("writing %s: %w", singleSheet, singles.err)
	}
	if vats.err != nil {
		return nil, fmt.Errorf("writing %s: %w", vatSheet, vats.err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSingleInvoice(w *sheetWriter, r *Record) {
	inv := r.Single
	for _, item := range inv.Items {
		w.row(
			inv.InvoiceNumber, inv.InvoiceDate, inv.DueDate,
			inv.ClientInfo.Name, inv.BusinessInfo.Name,
			item.Description, item.Quantity, item.UnitPrice, item.LineTotal,
			nil, nil, nil, nil, r.SourceFileName,
		)
	}
	w.row(
		inv.InvoiceNumber, inv.InvoiceDate, inv.DueDate,
		inv.ClientInfo.Name, inv.BusinessInfo.Name,
		invoiceTotalLabel, nil, nil, nil,
		inv.Subtotal, inv.TaxAmount, inv.TotalAmount, inv.PaymentDetails.Status, r.SourceFileName,
	)
}

func writeVATInvoice(w *sheetWriter, r *Record) {
	inv := r.Multi
	for _, item := range inv.Items {
		w.row(
			inv.InvoiceNumber, inv.CompanyFrom, inv.InvoiceDate,
			item.ItemCode, item.Description, item.Quantity, item.Unit,
			item.PricePerItem, item.GrossTotal, item.VatAmount, item.NetTotal,
			r.SourceFileName,
		)
	}
	w.row(
		inv.InvoiceNumber, inv.CompanyFrom, inv.InvoiceDate,
		nil, invoiceTotalLabel, nil, nil, nil,
		inv.GrossTotal, inv.VatTotal, inv.NetTotal,
		r.SourceFileName,
	)
}

// sheetWriter appends rows to a sheet and keeps the first error
type sheetWriter struct {
	f     *excelize.File
	sheet string
	next  int
	err   error
}

func (w *sheetWriter) row(values ...any) {
	if w.err != nil {
		return
	}
	w.next++
	cell, err := excelize.CoordinatesToCellName(1, w.next)
	if err != nil {
		w.err = err
		return
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = cellValue(v)
	}
	w.err = w.f.SetSheetRow(w.sheet, cell, &cells)
}

// cellValue dereferences nullable fields; nil leaves the cell empty
func cellValue(v any) any {
	switch t := v.(type) {
	case *string:
		if t == nil {
			return nil
		}
		return *t
	case *float64:
		if t == nil {
			return nil
		}
		return *t
	case *Date:
		if t == nil {
			return nil
		}
		return t.String()
	default:
		return v
	}
}
