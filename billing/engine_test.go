package billing_test

import (
	"time"

	"github.com/mohae/deepcopy"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pathline/lis/billing"
	"github.com/pathline/lis/config"
	"github.com/pathline/lis/labtests"
	"github.com/pathline/lis/test"
)

var _ = Describe("Compute", func() {
	prices := []float64{300, 500}

	It("computes a paid invoice with a discount and an overpayment", func() {
		totals, err := billing.Compute(prices, 200, 700, config.DiscountPolicyReject)
		Expect(err).ToNot(HaveOccurred())
		Expect(totals).To(Equal(billing.Totals{
			TotalAmount: 800,
			Discount:    200,
			FinalAmount: 600,
			PaidAmount:  700,
			Balance:     0,
			Profit:      100,
			Status:      billing.StatusPaid,
		}))
	})

	It("computes a partially paid invoice", func() {
		totals, err := billing.Compute(prices, 0, 400, config.DiscountPolicyReject)
		Expect(err).ToNot(HaveOccurred())
		Expect(totals.FinalAmount).To(Equal(800.0))
		Expect(totals.Balance).To(Equal(400.0))
		Expect(totals.Profit).To(Equal(0.0))
		Expect(totals.Status).To(Equal(billing.StatusPartial))
	})

	DescribeTable("derives the status from the paid amount",
		func(paid float64, expected billing.Status) {
			totals, err := billing.Compute(prices, 100, paid, config.DiscountPolicyReject)
			Expect(err).ToNot(HaveOccurred())
			Expect(totals.Status).To(Equal(expected))
		},
		Entry("nothing paid", 0.0, billing.StatusUnpaid),
		Entry("partially paid", 350.0, billing.StatusPartial),
		Entry("exactly paid", 700.0, billing.StatusPaid),
		Entry("overpaid", 900.0, billing.StatusPaid),
	)

	It("holds the balance and profit invariants for random amounts", func() {
		for i := 0; i < 200; i++ {
			list := make([]float64, test.Faker.IntBetween(1, 5))
			for j := range list {
				list[j] = float64(test.Faker.IntBetween(1, 2000))
			}
			total := 0.0
			for _, p := range list {
				total += p
			}
			discount := float64(test.Faker.IntBetween(0, int(total)))
			paid := float64(test.Faker.IntBetween(0, 2*int(total)+1))

			totals, err := billing.Compute(list, discount, paid, config.DiscountPolicyReject)
			Expect(err).ToNot(HaveOccurred())
			Expect(totals.FinalAmount).To(Equal(total - discount))
			Expect(totals.Balance).To(Equal(max(0, totals.FinalAmount-paid)))
			Expect(totals.Profit).To(Equal(max(0, paid-totals.FinalAmount)))
			if paid <= totals.FinalAmount {
				Expect(totals.Balance + min(paid, totals.FinalAmount)).To(Equal(totals.FinalAmount))
				Expect(totals.Profit).To(BeZero())
			}

			switch {
			case totals.Balance <= 0:
				Expect(totals.Status).To(Equal(billing.StatusPaid))
			case paid == 0:
				Expect(totals.Status).To(Equal(billing.StatusUnpaid))
			default:
				Expect(totals.Status).To(Equal(billing.StatusPartial))
			}
		}
	})

	It("rounds amounts to two decimals", func() {
		totals, err := billing.Compute([]float64{0.1, 0.2}, 0, 0.1, config.DiscountPolicyReject)
		Expect(err).ToNot(HaveOccurred())
		Expect(totals.TotalAmount).To(Equal(0.3))
		Expect(totals.Balance).To(Equal(0.2))
	})

	It("rejects negative amounts", func() {
		_, err := billing.Compute(prices, -1, 0, config.DiscountPolicyAllow)
		Expect(err).To(MatchError(billing.ErrNegativeDiscount))
		_, err = billing.Compute(prices, 0, -1, config.DiscountPolicyAllow)
		Expect(err).To(MatchError(billing.ErrNegativePaidAmount))
	})

	Describe("discount larger than the total", func() {
		It("is rejected by default", func() {
			_, err := billing.Compute(prices, 900, 0, config.DiscountPolicyReject)
			Expect(err).To(MatchError(billing.ErrDiscountExceedsTotal))
		})

		It("is capped when clamping", func() {
			totals, err := billing.Compute(prices, 900, 0, config.DiscountPolicyClamp)
			Expect(err).ToNot(HaveOccurred())
			Expect(totals.Discount).To(Equal(800.0))
			Expect(totals.FinalAmount).To(BeZero())
			Expect(totals.Status).To(Equal(billing.StatusPaid))
		})

		It("produces a negative final amount when allowed", func() {
			totals, err := billing.Compute(prices, 900, 0, config.DiscountPolicyAllow)
			Expect(err).ToNot(HaveOccurred())
			Expect(totals.FinalAmount).To(Equal(-100.0))
			Expect(totals.Balance).To(BeZero())
			Expect(totals.Profit).To(Equal(100.0))
		})
	})
})

var _ = Describe("ResolvePayments", func() {
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)

	It("stores explicit payments verbatim", func() {
		payments := []billing.Payment{
			{Mode: billing.PaymentModeCash, Amount: 100},
			{Mode: billing.PaymentModeUPI, Amount: 50},
		}
		stored, mode, err := billing.ResolvePayments(billing.PaymentModeCash, 999, payments, now)
		Expect(err).ToNot(HaveOccurred())
		Expect(stored).To(Equal(payments))
		Expect(mode).To(Equal(billing.PaymentModeMixed))
	})

	It("uses the mode of a single explicit payment", func() {
		_, mode, err := billing.ResolvePayments("", 0, []billing.Payment{{Mode: billing.PaymentModeCard, Amount: 10}}, now)
		Expect(err).ToNot(HaveOccurred())
		Expect(mode).To(Equal(billing.PaymentModeCard))
	})

	It("synthesizes a payment from the paid amount", func() {
		stored, mode, err := billing.ResolvePayments(billing.PaymentModeUPI, 250, nil, now)
		Expect(err).ToNot(HaveOccurred())
		Expect(mode).To(Equal(billing.PaymentModeUPI))
		Expect(stored).To(HaveLen(1))
		Expect(stored[0].Amount).To(Equal(250.0))
		Expect(*stored[0].Date).To(Equal(now))
	})

	It("records nothing when nothing was paid", func() {
		stored, mode, err := billing.ResolvePayments(billing.PaymentModeCash, 0, nil, now)
		Expect(err).ToNot(HaveOccurred())
		Expect(stored).To(BeEmpty())
		Expect(mode).To(Equal(billing.PaymentModeCash))
	})

	It("rejects unknown modes", func() {
		_, _, err := billing.ResolvePayments("Cheque", 10, nil, now)
		Expect(err).To(MatchError(billing.ErrInvalidPaymentMode))
	})

	It("never reports a mixed mode for a single payment", func() {
		_, _, err := billing.ResolvePayments(billing.PaymentModeMixed, 10, nil, now)
		Expect(err).To(MatchError(billing.ErrInvalidPaymentMode))

		stored, mode, err := billing.ResolvePayments(billing.PaymentModeMixed, 0, nil, now)
		Expect(err).ToNot(HaveOccurred())
		Expect(stored).To(BeEmpty())
		Expect(mode).To(BeEmpty())
	})
})

var _ = Describe("ApplyPayment", func() {
	var invoice *billing.Invoice

	BeforeEach(func() {
		invoice = &billing.Invoice{
			Totals:      billing.Derive(800, 0, 300),
			PaymentMode: billing.PaymentModeCash,
			Payments:    []billing.Payment{{Mode: billing.PaymentModeCash, Amount: 300}},
		}
	})

	It("recomputes the totals and switches to mixed", func() {
		totals, mode, err := billing.ApplyPayment(invoice, billing.Payment{Mode: billing.PaymentModeUPI, Amount: 500})
		Expect(err).ToNot(HaveOccurred())
		Expect(totals.PaidAmount).To(Equal(800.0))
		Expect(totals.Balance).To(BeZero())
		Expect(totals.Status).To(Equal(billing.StatusPaid))
		Expect(mode).To(Equal(billing.PaymentModeMixed))
		Expect(invoice.Payments).To(HaveLen(1))
	})

	It("leaves the invoice untouched", func() {
		original := deepcopy.Copy(*invoice).(billing.Invoice)
		_, _, err := billing.ApplyPayment(invoice, billing.Payment{Mode: billing.PaymentModeCard, Amount: 100})
		Expect(err).ToNot(HaveOccurred())
		Expect(*invoice).To(Equal(original))
	})

	It("rejects empty payments", func() {
		_, _, err := billing.ApplyPayment(invoice, billing.Payment{Mode: billing.PaymentModeUPI})
		Expect(err).To(MatchError(billing.ErrInvalidPayment))
	})

	It("rejects a mixed payment", func() {
		_, _, err := billing.ApplyPayment(invoice, billing.Payment{Mode: billing.PaymentModeMixed, Amount: 1})
		Expect(err).To(MatchError(billing.ErrInvalidPaymentMode))
	})
})

var _ = Describe("SampleTypes", func() {
	It("joins distinct sample types in first seen order", func() {
		tests := []*labtests.Test{
			{SampleType: "Serum"},
			{SampleType: "Blood"},
			{SampleType: "Serum"},
			{SampleType: ""},
			{SampleType: "Urine"},
		}
		Expect(billing.SampleTypes(tests)).To(Equal("Serum, Blood, Urine"))
	})
})

var _ = Describe("ResolveTests", func() {
	var a, b *labtests.Test

	BeforeEach(func() {
		idA, idB := primitive.NewObjectID(), primitive.NewObjectID()
		a = &labtests.Test{Id: &idA}
		b = &labtests.Test{Id: &idB}
	})

	It("orders tests like the requested ids", func() {
		tests, err := billing.ResolveTests([]string{b.Id.Hex(), a.Id.Hex()}, []*labtests.Test{a, b})
		Expect(err).ToNot(HaveOccurred())
		Expect(tests).To(Equal([]*labtests.Test{b, a}))
	})

	It("fails when some ids did not resolve", func() {
		_, err := billing.ResolveTests([]string{a.Id.Hex(), primitive.NewObjectID().Hex()}, []*labtests.Test{a})
		Expect(err).To(MatchError(billing.ErrTestsNotFound))
	})

	It("fails for repeated ids", func() {
		_, err := billing.ResolveTests([]string{a.Id.Hex(), a.Id.Hex()}, []*labtests.Test{a})
		Expect(err).To(MatchError(billing.ErrTestsNotFound))
	})
})
