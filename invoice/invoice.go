// Package invoice lays out a completed order as a downloadable PDF.
package invoice

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"treadline/models"
	"treadline/pricing"
)

// TaxRate is applied to the item subtotal on the invoice only. Nothing charges
// it at payment time.
const TaxRate = 0.08

const (
	marginX    = 15.0
	pageBreakY = 260.0
	rowH       = 7.0
)

// table column widths: description, qty, unit price, amount
var colW = [4]float64{95, 20, 32, 33}

// Totals are the figures printed at the bottom of the invoice.
type Totals struct {
	Subtotal float64
	Tax      float64
	Total    float64
}

type row struct {
	desc   string
	qty    int
	unit   float64
	amount float64
	sub    bool
}

func rows(o models.Order) []row {
	var out []row
	for _, it := range o.Items {
		qty := float64(it.Quantity)
		out = append(out, row{desc: it.Name, qty: it.Quantity, unit: it.Price, amount: it.Price * qty})
		if it.Installation != nil {
			name := it.Installation.Name
			if name == "" {
				name = "Installation"
			}
			out = append(out, row{desc: name, qty: it.Quantity, unit: it.Installation.Price, amount: it.Installation.Price * qty, sub: true})
		}
		for _, a := range it.AddonServices {
			out = append(out, row{desc: a.Name, qty: it.Quantity, unit: a.Price, amount: a.Price * qty, sub: true})
		}
	}
	return out
}

// ComputeTotals sums every line and service sub-line and adds TaxRate.
func ComputeTotals(o models.Order) Totals {
	var t Totals
	for _, r := range rows(o) {
		t.Subtotal += r.amount
	}
	t.Tax = t.Subtotal * TaxRate
	t.Total = t.Subtotal + t.Tax
	return t
}

// Filename is the suggested download name.
func Filename(o models.Order) string {
	return "invoice-" + o.ID + ".pdf"
}

// Render writes the invoice PDF for o to w.
func Render(w io.Writer, o models.Order) error {
	pdf, err := build(o)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

func money(v float64) string {
	return "$" + pricing.FormatMoney(v)
}

func build(o models.Order) (*gofpdf.Fpdf, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginX, 15, marginX)
	pdf.SetAutoPageBreak(false, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	// header
	pdf.SetFont("Arial", "B", 22)
	pdf.Cell(100, 12, "INVOICE")
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr("Order #: "+o.ID))
	pdf.Ln(6)
	if !o.CreatedAt.IsZero() {
		pdf.Cell(0, 6, "Date: "+o.CreatedAt.Format("January 2, 2006"))
		pdf.Ln(6)
	}
	pdf.Cell(0, 6, "Status: "+strings.ToUpper(string(o.Status)))
	pdf.Ln(6)
	if o.TrackingNumber != "" {
		pdf.Cell(0, 6, tr("Tracking #: "+o.TrackingNumber))
		pdf.Ln(6)
	}

	if o.ID != "" {
		png, err := qrcode.Encode(o.ID, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("order qr: %w", err)
		}
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("order-qr", opts, bytes.NewReader(png))
		pdf.ImageOptions("order-qr", 165, 12, 30, 30, false, opts, 0, "")
	}

	// address blocks
	pdf.SetY(50)
	top := pdf.GetY()
	addressBlock(pdf, tr, marginX, top, "Billed To", o.BillingAddress)
	addressBlock(pdf, tr, marginX+95, top, "Ship To", o.ShippingAddress)
	pdf.SetY(top + 36)

	// items
	tableHeader(pdf)
	for _, r := range rows(o) {
		if pdf.GetY() > pageBreakY {
			pdf.AddPage()
			tableHeader(pdf)
		}
		tableRow(pdf, tr, r)
	}

	// totals
	if pdf.GetY() > pageBreakY-25 {
		pdf.AddPage()
	}
	t := ComputeTotals(o)
	pdf.Ln(4)
	totalLine(pdf, "Subtotal", money(t.Subtotal), false)
	totalLine(pdf, fmt.Sprintf("Tax (%.0f%%)", TaxRate*100), money(t.Tax), false)
	totalLine(pdf, "Total", money(t.Total), true)

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.Cell(0, 5, "Thank you for your business.")

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}
	return pdf, nil
}

func addressBlock(pdf *gofpdf.Fpdf, tr func(string) string, x, y float64, title string, a models.Address) {
	pdf.SetXY(x, y)
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(80, 6, title)
	pdf.SetFont("Arial", "", 10)
	lines := a.Lines()
	if len(lines) == 0 {
		lines = []string{"-"}
	}
	for i, l := range lines {
		pdf.SetXY(x, y+6+float64(i)*5)
		pdf.Cell(80, 5, tr(l))
	}
}

func tableHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetX(marginX)
	pdf.CellFormat(colW[0], rowH+1, "Item", "B", 0, "L", true, 0, "")
	pdf.CellFormat(colW[1], rowH+1, "Qty", "B", 0, "C", true, 0, "")
	pdf.CellFormat(colW[2], rowH+1, "Unit Price", "B", 0, "R", true, 0, "")
	pdf.CellFormat(colW[3], rowH+1, "Amount", "B", 1, "R", true, 0, "")
}

func tableRow(pdf *gofpdf.Fpdf, tr func(string) string, r row) {
	desc := r.desc
	if r.sub {
		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(90, 90, 90)
		desc = "    + " + desc
	} else {
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.SetX(marginX)
	pdf.CellFormat(colW[0], rowH, tr(truncate(desc, 60)), "", 0, "L", false, 0, "")
	pdf.CellFormat(colW[1], rowH, fmt.Sprint(r.qty), "", 0, "C", false, 0, "")
	pdf.CellFormat(colW[2], rowH, money(r.unit), "", 0, "R", false, 0, "")
	pdf.CellFormat(colW[3], rowH, money(r.amount), "", 1, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func totalLine(pdf *gofpdf.Fpdf, label, value string, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont("Arial", style, 11)
	pdf.SetX(marginX + colW[0] + colW[1])
	pdf.CellFormat(colW[2], rowH, label, "", 0, "R", false, 0, "")
	pdf.CellFormat(colW[3], rowH, value, "", 1, "R", false, 0, "")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
