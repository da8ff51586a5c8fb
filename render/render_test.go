package render_test

import (
	"bytes"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pathline/lis/billing"
	"github.com/pathline/lis/config"
	"github.com/pathline/lis/labtests"
	"github.com/pathline/lis/patients"
	"github.com/pathline/lis/render"
	"github.com/pathline/lis/results"
	"github.com/pathline/lis/samples"
	"github.com/pathline/lis/settings"
)

var _ = Describe("Renderer", func() {
	var renderer *render.Renderer
	var lab *settings.Settings
	var patient *patients.Patient
	var cbc, lipid *labtests.Test
	var created time.Time

	BeforeEach(func() {
		cfg := &config.Config{
			DiscountPolicy: config.DiscountPolicyReject,
			TransitionMode: config.TransitionModePermissive,
			Timezone:       "Asia/Kolkata",
			Locale:         "en",
		}
		Expect(cfg.Validate()).To(Succeed())

		var err error
		renderer, err = render.NewRenderer(cfg)
		Expect(err).ToNot(HaveOccurred())

		lab = &settings.Settings{
			LabName:      "Lifeline Diagnostics",
			Tagline:      "Accurate. Always.",
			Currency:     "INR",
			InvoiceNote:  "Thank you for choosing us",
			ReportFooter: "End of report",
			Pathologist:  settings.Pathologist{Name: "Dr. Meera Iyer", Qualification: "MD"},
		}
		patient = &patients.Patient{PatientId: "PAT000001", Name: "Asha <Rao>", Age: 34, Gender: "Female"}
		cbc = &labtests.Test{TestName: "Complete Blood Count", SampleType: "Blood", Price: 1200}
		lipid = &labtests.Test{TestName: "Lipid Profile", SampleType: "Serum", Price: 650.5}
		created = time.Date(2024, 3, 5, 4, 30, 0, 0, time.UTC)
	})

	Describe("Invoice", func() {
		var html string

		BeforeEach(func() {
			invoice := &billing.InvoiceDetails{
				Invoice: billing.Invoice{
					InvoiceId: "INV240305000001",
					Totals: billing.Totals{
						TotalAmount: 1850.5,
						Discount:    50.5,
						FinalAmount: 1800,
						PaidAmount:  1000,
						Balance:     800,
						Status:      billing.StatusPartial,
					},
					PaymentMode: billing.PaymentModeCash,
					Payments:    []billing.Payment{{Mode: billing.PaymentModeCash, Amount: 1000, Date: &created}},
					CreatedTime: created,
				},
				PatientDetails: patient,
				TestDetails:    []*labtests.Test{cbc, lipid},
				SampleCode:     "SMP240305000001",
			}

			var buf bytes.Buffer
			Expect(renderer.Invoice(&buf, lab, invoice)).To(Succeed())
			html = buf.String()
		})

		It("includes the lab header", func() {
			Expect(html).To(ContainSubstring("<h1>Lifeline Diagnostics</h1>"))
			Expect(html).To(ContainSubstring("Accurate. Always."))
			Expect(html).To(ContainSubstring("Thank you for choosing us"))
		})

		It("lists the tests in order with formatted prices", func() {
			Expect(html).To(ContainSubstring("1,200.00"))
			Expect(html).To(ContainSubstring("650.50"))
			Expect(strings.Index(html, "Complete Blood Count")).To(BeNumerically("<", strings.Index(html, "Lipid Profile")))
		})

		It("prints the totals", func() {
			Expect(html).To(ContainSubstring("1,850.50"))
			Expect(html).To(ContainSubstring("1,800.00"))
			Expect(html).To(ContainSubstring("800.00"))
			Expect(html).To(ContainSubstring(string(billing.StatusPartial)))
			Expect(html).To(ContainSubstring("SMP240305000001"))
		})

		It("prints dates in the lab's timezone", func() {
			Expect(html).To(ContainSubstring("05 Mar 2024 10:00"))
		})

		It("escapes patient data", func() {
			Expect(html).To(ContainSubstring("Asha &lt;Rao&gt;"))
			Expect(html).ToNot(ContainSubstring("Asha <Rao>"))
		})
	})

	Describe("Report", func() {
		var html string

		BeforeEach(func() {
			collected := created.Add(time.Hour)
			report := &results.Report{
				Lab:     lab,
				Patient: patient,
				Sample: &samples.SampleDetails{
					Sample: samples.Sample{
						SampleId:       "SMP240305000001",
						SampleType:     "Blood, Serum",
						Status:         samples.StatusApproved,
						CollectionDate: &collected,
						UpdatedTime:    created,
					},
					InvoiceCode: "INV240305000001",
				},
				Lines: []results.ReportLine{
					{
						Test: cbc,
						Result: &results.Result{
							ResultValue: "9.1",
							Unit:        "g/dL",
							NormalRange: "12 - 15.5",
							Abnormal:    true,
							Remarks:     "Repeat after two weeks",
							Subtests: []results.Subtest{
								{TestName: "Platelets", ResultValue: "250", Unit: "10^3/uL", NormalRange: "150 - 450"},
							},
						},
					},
					{Test: lipid},
				},
				ApprovedBy: "Dr. Meera Iyer",
			}

			var buf bytes.Buffer
			Expect(renderer.Report(&buf, report)).To(Succeed())
			html = buf.String()
		})

		It("prints results with their reference ranges", func() {
			Expect(html).To(ContainSubstring("Complete Blood Count"))
			Expect(html).To(ContainSubstring("9.1"))
			Expect(html).To(ContainSubstring("12 - 15.5"))
			Expect(html).To(ContainSubstring("Platelets"))
			Expect(html).To(ContainSubstring("Repeat after two weeks"))
		})

		It("highlights abnormal results", func() {
			Expect(html).To(ContainSubstring(`class="abnormal"`))
		})

		It("marks tests without results as pending", func() {
			Expect(html).To(MatchRegexp(`Lipid Profile</td><td colspan="3">Pending`))
		})

		It("includes the approver and the pathologist", func() {
			Expect(html).To(ContainSubstring("Approved by: Dr. Meera Iyer"))
			Expect(html).To(ContainSubstring("<strong>Dr. Meera Iyer</strong>, MD"))
			Expect(html).To(ContainSubstring("End of report"))
		})

		It("prints the collection time in the lab's timezone", func() {
			Expect(html).To(ContainSubstring("Collected: 05 Mar 2024 11:00"))
		})
	})
})
