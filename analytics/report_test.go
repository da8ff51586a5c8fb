package analytics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tealeg/xlsx/v3"

	"github.com/pathline/lis/analytics"
	"github.com/pathline/lis/billing"
	"github.com/pathline/lis/labtests"
	"github.com/pathline/lis/patients"
	"github.com/pathline/lis/samples"
)

const (
	summarySheetIdx = iota
	invoicesSheetIdx
	samplesSheetIdx
	paymentsSheetIdx
)

var _ = Describe("analytics export", func() {
	var created time.Time
	var file *xlsx.File

	BeforeEach(func() {
		created = time.Date(2024, 3, 5, 4, 30, 0, 0, time.UTC)
		collected := created.Add(time.Hour)
		patient := &patients.Patient{PatientId: "PAT000001", Name: "Asha Rao"}
		tests := []*labtests.Test{{TestName: "CBC"}, {TestName: "Lipid Profile"}}

		invoice := &billing.InvoiceDetails{
			Invoice: billing.Invoice{
				InvoiceId: "INV000001",
				Totals: billing.Totals{
					TotalAmount: 800,
					Discount:    100,
					FinalAmount: 700,
					PaidAmount:  500,
					Balance:     200,
					Status:      billing.StatusPartial,
				},
				PaymentMode: billing.PaymentModeMixed,
				Payments: []billing.Payment{
					{Mode: billing.PaymentModeCash, Amount: 200},
					{Mode: billing.PaymentModeUPI, Amount: 300},
				},
				CreatedTime: created,
			},
			PatientDetails: patient,
			TestDetails:    tests,
			SampleCode:     "SMP000001",
		}
		sample := &samples.SampleDetails{
			Sample: samples.Sample{
				SampleId:       "SMP000001",
				SampleType:     "Blood, Serum",
				Status:         samples.StatusCollected,
				CollectionDate: &collected,
				CreatedTime:    created,
			},
			PatientDetails: patient,
			TestDetails:    tests,
			InvoiceCode:    "INV000001",
		}

		from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2024, 3, 7, 23, 59, 0, 0, time.UTC)
		dashboard := &analytics.Dashboard{
			From:             &from,
			To:               &to,
			TodayRevenue:     500,
			RangeRevenue:     500,
			TodayCollections: 1,
			TestCount:        2,
			PaymentMethods: []analytics.PaymentMethod{
				{Mode: billing.PaymentModeCash, Count: 1, Amount: 200},
				{Mode: billing.PaymentModeUPI, Count: 1, Amount: 300},
			},
			Invoices: []*billing.InvoiceDetails{invoice},
			Samples:  []*samples.SampleDetails{sample},
		}

		var err error
		file, err = analytics.NewReport(dashboard, time.FixedZone("IST", 5*3600+1800)).Generate()
		Expect(err).ToNot(HaveOccurred())
	})

	It("has one sheet per section", func() {
		Expect(file.Sheets).To(HaveLen(4))
		Expect(file.Sheets[summarySheetIdx].Name).To(Equal(analytics.ReportSheetNameSummary))
		Expect(file.Sheets[invoicesSheetIdx].Name).To(Equal(analytics.ReportSheetNameInvoices))
		Expect(file.Sheets[samplesSheetIdx].Name).To(Equal(analytics.ReportSheetNameSamples))
		Expect(file.Sheets[paymentsSheetIdx].Name).To(Equal(analytics.ReportSheetNamePayments))
	})

	It("summarizes the period", func() {
		m, err := file.ToSlice()
		Expect(err).ToNot(HaveOccurred())
		summary := m[summarySheetIdx]
		Expect(summary[0][1]).To(Equal("2024-03-01 05:30 - 2024-03-08 05:29"))
		Expect(summary[2][1]).To(Equal("500"))
		Expect(summary[4][1]).To(Equal("2"))
	})

	It("lists invoices in the lab's timezone", func() {
		m, err := file.ToSlice()
		Expect(err).ToNot(HaveOccurred())
		row := m[invoicesSheetIdx][1]
		Expect(row[0]).To(Equal("INV000001"))
		Expect(row[1]).To(Equal("2024-03-05 10:00"))
		Expect(row[3]).To(Equal("Asha Rao"))
		Expect(row[4]).To(Equal("CBC, Lipid Profile"))
		Expect(row[10]).To(Equal(string(billing.StatusPartial)))
		Expect(row[12]).To(Equal("SMP000001"))
	})

	It("lists samples with their collection time", func() {
		m, err := file.ToSlice()
		Expect(err).ToNot(HaveOccurred())
		row := m[samplesSheetIdx][1]
		Expect(row[0]).To(Equal("SMP000001"))
		Expect(row[2]).To(Equal("INV000001"))
		Expect(row[7]).To(Equal(string(samples.StatusCollected)))
		Expect(row[8]).To(Equal("2024-03-05 11:00"))
	})

	It("lists every payment", func() {
		m, err := file.ToSlice()
		Expect(err).ToNot(HaveOccurred())
		payments := m[paymentsSheetIdx]
		Expect(payments).To(HaveLen(3))
		Expect(payments[1][2]).To(Equal(string(billing.PaymentModeCash)))
		Expect(payments[2][2]).To(Equal(string(billing.PaymentModeUPI)))
		Expect(payments[2][1]).To(Equal("2024-03-05 10:00"))
	})

	It("reports an unbounded period as all time", func() {
		f, err := analytics.NewReport(&analytics.Dashboard{}, time.UTC).Generate()
		Expect(err).ToNot(HaveOccurred())
		m, err := f.ToSlice()
		Expect(err).ToNot(HaveOccurred())
		Expect(m[summarySheetIdx][0][1]).To(Equal("All time"))
	})
})
