package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v3"

	"github.com/pathline/lis/labtests"
)

const (
	ReportSheetNameSummary  = "Summary"
	ReportSheetNameInvoices = "Invoices"
	ReportSheetNameSamples  = "Samples"
	ReportSheetNamePayments = "Payments"

	ReportTimeFormat = "2006-01-02 15:04"
)

type Report struct {
	dashboard *Dashboard
	location  *time.Location
}

func NewReport(dashboard *Dashboard, location *time.Location) Report {
	return Report{dashboard: dashboard, location: location}
}

func (r Report) Generate() (*xlsx.File, error) {
	report := xlsx.NewFile()

	components := []func(report *xlsx.File) error{
		r.addSummarySheet,
		r.addInvoicesSheet,
		r.addSamplesSheet,
		r.addPaymentsSheet,
	}
	for _, fn := range components {
		if err := fn(report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

func (r Report) addSummarySheet(report *xlsx.File) error {
	sh, err := report.AddSheet(ReportSheetNameSummary)
	if err != nil {
		return err
	}

	d := r.dashboard
	addRow(sh, "Period", r.period())
	addRow(sh, "Revenue today", d.TodayRevenue)
	addRow(sh, "Revenue in period", d.RangeRevenue)
	addRow(sh, "Samples collected today", d.TodayCollections)
	addRow(sh, "Tests billed in period", d.TestCount)
	addRow(sh, "Invoices in period", len(d.Invoices))
	addRow(sh, "Samples in period", len(d.Samples))
	sh.AddRow()

	addRow(sh, "Payment method", "Payments", "Amount")
	for _, method := range d.PaymentMethods {
		addRow(sh, string(method.Mode), method.Count, method.Amount)
	}
	return nil
}

func (r Report) addInvoicesSheet(report *xlsx.File) error {
	sh, err := report.AddSheet(ReportSheetNameInvoices)
	if err != nil {
		return err
	}

	addRow(sh, "Invoice", "Date", "Patient ID", "Patient", "Tests", "Total", "Discount", "Final", "Paid", "Balance", "Status", "Payment Mode", "Sample")
	for _, invoice := range r.dashboard.Invoices {
		patientId, patientName := "", ""
		if invoice.PatientDetails != nil {
			patientId, patientName = invoice.PatientDetails.PatientId, invoice.PatientDetails.Name
		}
		addRow(sh,
			invoice.InvoiceId,
			r.format(&invoice.CreatedTime),
			patientId,
			patientName,
			testNames(invoice.TestDetails),
			invoice.TotalAmount,
			invoice.Discount,
			invoice.FinalAmount,
			invoice.PaidAmount,
			invoice.Balance,
			string(invoice.Status),
			string(invoice.PaymentMode),
			invoice.SampleCode,
		)
	}
	return nil
}

func (r Report) addSamplesSheet(report *xlsx.File) error {
	sh, err := report.AddSheet(ReportSheetNameSamples)
	if err != nil {
		return err
	}

	addRow(sh, "Sample", "Date", "Invoice", "Patient ID", "Patient", "Sample Type", "Tests", "Status", "Collected")
	for _, sample := range r.dashboard.Samples {
		patientId, patientName := "", ""
		if sample.PatientDetails != nil {
			patientId, patientName = sample.PatientDetails.PatientId, sample.PatientDetails.Name
		}
		addRow(sh,
			sample.SampleId,
			r.format(&sample.CreatedTime),
			sample.InvoiceCode,
			patientId,
			patientName,
			sample.SampleType,
			testNames(sample.TestDetails),
			string(sample.Status),
			r.format(sample.CollectionDate),
		)
	}
	return nil
}

func (r Report) addPaymentsSheet(report *xlsx.File) error {
	sh, err := report.AddSheet(ReportSheetNamePayments)
	if err != nil {
		return err
	}

	addRow(sh, "Invoice", "Date", "Mode", "Amount")
	for _, invoice := range r.dashboard.Invoices {
		for _, payment := range invoice.Payments {
			date := payment.Date
			if date == nil {
				date = &invoice.CreatedTime
			}
			addRow(sh, invoice.InvoiceId, r.format(date), string(payment.Mode), payment.Amount)
		}
	}
	return nil
}

func (r Report) period() string {
	if r.dashboard.From == nil || r.dashboard.To == nil {
		return "All time"
	}
	return fmt.Sprintf("%s - %s", r.format(r.dashboard.From), r.format(r.dashboard.To))
}

func (r Report) format(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(r.location).Format(ReportTimeFormat)
}

func addRow(sh *xlsx.Sheet, values ...interface{}) {
	row := sh.AddRow()
	for _, value := range values {
		row.AddCell().SetValue(value)
	}
}

func testNames(tests []*labtests.Test) string {
	names := make([]string, 0, len(tests))
	for _, t := range tests {
		names = append(names, t.TestName)
	}
	return strings.Join(names, ", ")
}
