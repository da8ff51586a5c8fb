package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"golang.org/x/text/message"

	"github.com/pathline/lis/billing"
	"github.com/pathline/lis/config"
	"github.com/pathline/lis/results"
	"github.com/pathline/lis/settings"
)

const (
	DateFormat     = "02 Jan 2006"
	DateTimeFormat = "02 Jan 2006 15:04"

	invoiceTemplate = "invoice.html"
	reportTemplate  = "report.html"
)

//go:embed templates/*.html
var templates embed.FS

// Renderer builds the printable HTML pages for invoices and lab reports.
type Renderer struct {
	templates *template.Template
	printer   *message.Printer
	location  *time.Location
}

func NewRenderer(cfg *config.Config) (*Renderer, error) {
	r := &Renderer{
		printer:  message.NewPrinter(cfg.Language()),
		location: cfg.Location(),
	}

	t, err := template.New("").Funcs(template.FuncMap{
		"money":    r.money,
		"date":     r.date,
		"datetime": r.datetime,
		"inc":      func(i int) int { return i + 1 },
	}).ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("unable to parse print templates: %w", err)
	}
	r.templates = t

	return r, nil
}

type invoicePage struct {
	Lab     *settings.Settings
	Invoice *billing.InvoiceDetails
}

func (r *Renderer) Invoice(w io.Writer, lab *settings.Settings, invoice *billing.InvoiceDetails) error {
	return r.templates.ExecuteTemplate(w, invoiceTemplate, invoicePage{
		Lab:     lab,
		Invoice: invoice,
	})
}

func (r *Renderer) Report(w io.Writer, report *results.Report) error {
	return r.templates.ExecuteTemplate(w, reportTemplate, report)
}

func (r *Renderer) money(value float64) string {
	return r.printer.Sprintf("%.2f", value)
}

func (r *Renderer) date(t interface{}) string {
	return r.formatTime(t, DateFormat)
}

func (r *Renderer) datetime(t interface{}) string {
	return r.formatTime(t, DateTimeFormat)
}

func (r *Renderer) formatTime(value interface{}, layout string) string {
	var t time.Time
	switch v := value.(type) {
	case time.Time:
		t = v
	case *time.Time:
		if v == nil {
			return ""
		}
		t = *v
	default:
		return ""
	}
	if t.IsZero() {
		return ""
	}
	return t.In(r.location).Format(layout)
}
