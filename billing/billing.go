package billing

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pathline/lis/deletions"
	"github.com/pathline/lis/errors"
	"github.com/pathline/lis/labtests"
	"github.com/pathline/lis/patients"
	"github.com/pathline/lis/store"
)

const CollectionName = "invoices"

var (
	ErrNotFound             = fmt.Errorf("invoice %w", errors.NotFound)
	ErrPatientNotFound      = errors.Validation("patient not found")
	ErrTestsNotFound        = errors.Validation("tests not found")
	ErrTestsRequired        = errors.Validation("At least one test is required")
	ErrNegativeDiscount     = errors.Validation("Discount must not be negative")
	ErrNegativePaidAmount   = errors.Validation("Paid amount must not be negative")
	ErrDiscountExceedsTotal = errors.Validation("Discount must not exceed the total amount")
	ErrInvalidPayment       = errors.Validation("Payment amount must be greater than zero")
	ErrInvalidPaymentMode   = errors.Validation("Payment mode must be one of Cash, UPI, Card")
	ErrConcurrentPayment    = fmt.Errorf("%w: invoice was paid concurrently", errors.Conflict)
)

type Status string

const (
	StatusUnpaid  Status = "Unpaid"
	StatusPartial Status = "Partial"
	StatusPaid    Status = "Paid"
)

type PaymentMode string

const (
	PaymentModeCash  PaymentMode = "Cash"
	PaymentModeUPI   PaymentMode = "UPI"
	PaymentModeCard  PaymentMode = "Card"
	PaymentModeMixed PaymentMode = "Mixed"
)

var PaymentModes = []PaymentMode{PaymentModeCash, PaymentModeUPI, PaymentModeCard, PaymentModeMixed}

func (m PaymentMode) Valid() bool {
	for _, mode := range PaymentModes {
		if mode == m {
			return true
		}
	}
	return false
}

type Service interface {
	Create(ctx context.Context, create CreateInvoice) (*Invoice, error)
	Get(ctx context.Context, id string) (*InvoiceDetails, error)
	List(ctx context.Context, filter Filter, pagination store.Pagination) (*ListResult, error)
	RecordPayment(ctx context.Context, id string, payment Payment) (*Invoice, error)
	Stats(ctx context.Context, timeRange store.TimeRange) (*Stats, error)
	DailyStats(ctx context.Context, timeRange store.TimeRange) ([]DailyStat, error)
	Delete(ctx context.Context, id string, metadata deletions.Metadata) error
	// RepairOrphans creates the missing sample of invoices that have none.
	RepairOrphans(ctx context.Context, actor string) ([]*Invoice, error)
}

// Repository methods accept a mongo.SessionContext to participate in a transaction.
type Repository interface {
	Create(ctx context.Context, invoice *Invoice) (*Invoice, error)
	Get(ctx context.Context, id primitive.ObjectID) (*Invoice, error)
	GetDetails(ctx context.Context, id primitive.ObjectID) (*InvoiceDetails, error)
	List(ctx context.Context, filter Filter, pagination store.Pagination) (*ListResult, error)
	// AddPayment appends payment and stores totals if the paid amount is still previousPaid.
	AddPayment(ctx context.Context, id primitive.ObjectID, previousPaid float64, payment Payment, totals Totals, mode PaymentMode) (*Invoice, error)
	Stats(ctx context.Context, timeRange store.TimeRange) (*Stats, error)
	DailyStats(ctx context.Context, timeRange store.TimeRange, timezone string) ([]DailyStat, error)
	FindOrphans(ctx context.Context) ([]*Invoice, error)
	Delete(ctx context.Context, id primitive.ObjectID, metadata deletions.Metadata) error
}

type Payment struct {
	Mode       PaymentMode `json:"mode" bson:"mode"`
	Amount     float64     `json:"amount" bson:"amount"`
	Date       *time.Time  `json:"date,omitempty" bson:"date,omitempty"`
	ReceivedBy string      `json:"receivedBy,omitempty" bson:"receivedBy,omitempty"`
}

// Totals are the derived monetary attributes of an invoice.
type Totals struct {
	TotalAmount float64 `json:"totalAmount" bson:"totalAmount"`
	Discount    float64 `json:"discount" bson:"discount"`
	FinalAmount float64 `json:"finalAmount" bson:"finalAmount"`
	PaidAmount  float64 `json:"paidAmount" bson:"paidAmount"`
	Balance     float64 `json:"balance" bson:"balance"`
	Profit      float64 `json:"profit" bson:"profit"`
	Status      Status  `json:"status" bson:"status"`
}

type Invoice struct {
	Id          *primitive.ObjectID  `json:"_id,omitempty" bson:"_id,omitempty"`
	InvoiceId   string               `json:"invoiceId" bson:"invoiceId"`
	Patient     *primitive.ObjectID  `json:"patient" bson:"patient"`
	Tests       []primitive.ObjectID `json:"tests" bson:"tests"`
	Totals      `bson:",inline"`
	PaymentMode PaymentMode `json:"paymentMode,omitempty" bson:"paymentMode,omitempty"`
	Payments    []Payment   `json:"payments" bson:"payments"`
	CreatedBy   string      `json:"createdBy,omitempty" bson:"createdBy,omitempty"`
	CreatedTime time.Time   `json:"createdAt" bson:"createdTime"`
	UpdatedTime time.Time   `json:"updatedAt" bson:"updatedTime"`
}

// InvoiceDetails is an invoice with its patient, tests and sample code resolved. Tests
// keep the order of the invoice.
type InvoiceDetails struct {
	Invoice        `bson:",inline"`
	PatientDetails *patients.Patient `json:"patient,omitempty" bson:"patientDoc,omitempty"`
	TestDetails    []*labtests.Test  `json:"tests" bson:"testDocs"`
	SampleCode     string            `json:"sampleId,omitempty" bson:"sampleCode,omitempty"`
}

func (d *InvoiceDetails) OrderTests() {
	d.TestDetails = labtests.OrderByIds(d.TestDetails, d.Tests)
}

type CreateInvoice struct {
	PatientId   string      `json:"patientId"`
	TestIds     []string    `json:"testIds"`
	Discount    float64     `json:"discount"`
	PaidAmount  float64     `json:"paidAmount"`
	PaymentMode PaymentMode `json:"paymentMode,omitempty"`
	Payments    []Payment   `json:"payments,omitempty"`
	CreatedBy   string      `json:"-"`
}

type Filter struct {
	TimeRange store.TimeRange
	Status    *Status
	PatientId *primitive.ObjectID
	Search    *string
}

type ListResult struct {
	Invoices   []*InvoiceDetails `json:"invoices"`
	TotalCount int               `json:"total"`
}

type Stats struct {
	InvoiceCount   int     `json:"invoiceCount" bson:"invoiceCount"`
	TotalBilled    float64 `json:"totalBilled" bson:"totalBilled"`
	TotalCollected float64 `json:"totalCollected" bson:"totalCollected"`
	TotalBalance   float64 `json:"totalBalance" bson:"totalBalance"`
	TotalProfit    float64 `json:"totalProfit" bson:"totalProfit"`
	TotalLoss      float64 `json:"totalLoss" bson:"totalLoss"`
	NetEarnings    float64 `json:"netEarnings" bson:"netEarnings"`
}

type DailyStat struct {
	Date  string `json:"date" bson:"_id"`
	Stats `bson:",inline"`
}
