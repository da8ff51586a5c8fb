package billing

import (
	"math"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/pathline/lis/config"
	"github.com/pathline/lis/labtests"
)

// Round rounds an amount to two decimals.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

// Compute derives the totals of a new invoice. policy decides what happens when the
// discount is larger than the total amount: reject it, clamp it to the total, or allow
// a negative final amount.
func Compute(prices []float64, discount, paid float64, policy string) (Totals, error) {
	if discount < 0 {
		return Totals{}, ErrNegativeDiscount
	}
	if paid < 0 {
		return Totals{}, ErrNegativePaidAmount
	}

	total := 0.0
	for _, price := range prices {
		total += price
	}
	total = Round(total)

	switch policy {
	case config.DiscountPolicyAllow:
	case config.DiscountPolicyClamp:
		discount = math.Min(discount, total)
	default:
		if discount > total {
			return Totals{}, ErrDiscountExceedsTotal
		}
	}

	return Derive(total, discount, paid), nil
}

// Derive computes final amount, balance, profit and status.
func Derive(total, discount, paid float64) Totals {
	final := Round(total - discount)
	balance := Round(math.Max(0, final-paid))
	return Totals{
		TotalAmount: total,
		Discount:    Round(discount),
		FinalAmount: final,
		PaidAmount:  Round(paid),
		Balance:     balance,
		Profit:      Round(math.Max(0, paid-final)),
		Status:      DeriveStatus(paid, balance),
	}
}

func DeriveStatus(paid, balance float64) Status {
	switch {
	case balance <= 0:
		return StatusPaid
	case paid == 0:
		return StatusUnpaid
	default:
		return StatusPartial
	}
}

// ResolvePayments returns the payments to store with a new invoice and the resulting
// payment mode. Explicit payments are kept as given. Otherwise a single payment of paid
// is recorded when a mode is set and something was paid.
func ResolvePayments(mode PaymentMode, paid float64, payments []Payment, now time.Time) ([]Payment, PaymentMode, error) {
	if mode != "" && !mode.Valid() {
		return nil, "", ErrInvalidPaymentMode
	}

	if len(payments) > 0 {
		return payments, modeOf(payments), nil
	}

	if mode == "" || paid <= 0 {
		if mode == PaymentModeMixed {
			mode = ""
		}
		return []Payment{}, mode, nil
	}
	if mode == PaymentModeMixed {
		return nil, "", ErrInvalidPaymentMode
	}
	return []Payment{{Mode: mode, Amount: Round(paid), Date: &now}}, mode, nil
}

// ApplyPayment returns the totals and payment mode of invoice after payment is added.
func ApplyPayment(invoice *Invoice, payment Payment) (Totals, PaymentMode, error) {
	if payment.Amount <= 0 {
		return Totals{}, "", ErrInvalidPayment
	}
	if !payment.Mode.Valid() || payment.Mode == PaymentModeMixed {
		return Totals{}, "", ErrInvalidPaymentMode
	}

	totals := Derive(invoice.TotalAmount, invoice.Discount, invoice.PaidAmount+payment.Amount)
	return totals, modeOf(append(append([]Payment{}, invoice.Payments...), payment)), nil
}

func modeOf(payments []Payment) PaymentMode {
	switch len(payments) {
	case 0:
		return ""
	case 1:
		return payments[0].Mode
	default:
		return PaymentModeMixed
	}
}

// SampleTypes joins the distinct sample types of tests in the order they first appear.
func SampleTypes(tests []*labtests.Test) string {
	seen := mapset.NewThreadUnsafeSet[string]()
	types := make([]string, 0, len(tests))
	for _, t := range tests {
		sampleType := strings.TrimSpace(t.SampleType)
		if sampleType == "" || !seen.Add(sampleType) {
			continue
		}
		types = append(types, sampleType)
	}
	return strings.Join(types, ", ")
}

// ResolveTests returns the active tests found for ids in the order of ids. It fails with
// ErrTestsNotFound unless every id resolved to its own test, so repeated ids fail too.
func ResolveTests(ids []string, found []*labtests.Test) ([]*labtests.Test, error) {
	if len(found) != len(ids) {
		return nil, ErrTestsNotFound
	}

	byId := make(map[string]*labtests.Test, len(found))
	for _, t := range found {
		byId[t.Id.Hex()] = t
	}

	ordered := make([]*labtests.Test, 0, len(ids))
	for _, id := range ids {
		t, ok := byId[id]
		if !ok {
			return nil, ErrTestsNotFound
		}
		ordered = append(ordered, t)
	}
	return ordered, nil
}
