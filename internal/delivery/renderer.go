package delivery

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/facturo/facturo/report"
)

// PDFRenderer turns an invoice packet into a PDF document.
type PDFRenderer struct {
	gotenberg *report.Client
	tmpl      *template.Template
	printer   *message.Printer
}

// NewPDFRenderer constructs a renderer backed by Gotenberg.
func NewPDFRenderer(gotenberg *report.Client) *PDFRenderer {
	printer := message.NewPrinter(language.English)
	funcs := template.FuncMap{
		"amount": func(d decimal.Decimal) string {
			f, _ := d.Round(2).Float64()
			return printer.Sprintf("%.2f", f)
		},
		"quantity": func(d decimal.Decimal) string {
			return d.String()
		},
	}
	return &PDFRenderer{
		gotenberg: gotenberg,
		tmpl:      template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceHTML)),
		printer:   printer,
	}
}

// Render produces the invoice PDF.
func (r *PDFRenderer) Render(ctx context.Context, p *Packet) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("render invoice html: %w", err)
	}
	pdf, err := r.gotenberg.RenderHTML(ctx, buf.String())
	if err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return pdf, nil
}

const invoiceHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Helvetica, Arial, sans-serif; color: #1a1a2e; margin: 40px; }
  h1 { font-size: 22px; margin-bottom: 0; }
  .meta { color: #555; font-size: 13px; margin-bottom: 24px; }
  table { width: 100%; border-collapse: collapse; font-size: 13px; }
  th { text-align: left; border-bottom: 2px solid #1a1a2e; padding: 6px 4px; }
  td { border-bottom: 1px solid #ddd; padding: 6px 4px; }
  .num { text-align: right; }
  .totals { margin-top: 16px; width: 40%; margin-left: auto; }
  .totals td { border: none; padding: 3px 4px; }
  .grand { font-weight: bold; border-top: 2px solid #1a1a2e; }
  .rc { margin-top: 12px; font-size: 12px; color: #555; }
</style>
</head>
<body>
  <h1>Invoice {{.Invoice.Number}}</h1>
  <p class="meta">
    {{.Client.Name}} &middot; {{.Client.Email}}<br>
    Issued {{.Invoice.IssueDate.Format "2 Jan 2006"}} &middot;
    Due {{.Invoice.DueDate.Format "2 Jan 2006"}}
  </p>
  <table>
    <tr><th>Description</th><th class="num">Qty</th><th class="num">Rate</th><th class="num">Amount</th></tr>
    {{range .Lines}}
    <tr>
      <td>{{.Description}}</td>
      <td class="num">{{quantity .Quantity}}</td>
      <td class="num">{{amount .Rate}}</td>
      <td class="num">{{amount .Amount}}</td>
    </tr>
    {{end}}
  </table>
  <table class="totals">
    <tr><td>Subtotal</td><td class="num">{{amount .Invoice.Subtotal}} {{.Invoice.Currency}}</td></tr>
    {{if .Invoice.DiscountAmount.IsPositive}}
    <tr><td>Discount</td><td class="num">-{{amount .Invoice.DiscountAmount}} {{.Invoice.Currency}}</td></tr>
    {{end}}
    <tr><td>Tax</td><td class="num">{{amount .Invoice.TaxAmount}} {{.Invoice.Currency}}</td></tr>
    <tr class="grand"><td>Total</td><td class="num">{{amount .Invoice.Total}} {{.Invoice.Currency}}</td></tr>
    {{if .Invoice.AmountPaid.IsPositive}}
    <tr><td>Paid</td><td class="num">{{amount .Invoice.AmountPaid}} {{.Invoice.Currency}}</td></tr>
    <tr><td>Due</td><td class="num">{{amount .Invoice.AmountDue}} {{.Invoice.Currency}}</td></tr>
    {{end}}
  </table>
  {{if .Invoice.ReverseCharge}}
  <p class="rc">VAT reverse charge: tax to be accounted for by the recipient.</p>
  {{end}}
</body>
</html>`
