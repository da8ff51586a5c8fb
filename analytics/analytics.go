package analytics

import (
	"context"
	"time"

	"github.com/tealeg/xlsx/v3"

	"github.com/pathline/lis/billing"
	"github.com/pathline/lis/samples"
	"github.com/pathline/lis/store"
)

type Service interface {
	Dashboard(ctx context.Context, timeRange store.TimeRange) (*Dashboard, error)
	Export(ctx context.Context, timeRange store.TimeRange) (*xlsx.File, error)
}

type Repository interface {
	// Revenue is the sum of the paid amounts of invoices created in the range.
	Revenue(ctx context.Context, timeRange store.TimeRange) (float64, error)
	// CollectionCount counts samples collected in the range.
	CollectionCount(ctx context.Context, timeRange store.TimeRange) (int, error)
	// TestCount counts the tests billed in the range.
	TestCount(ctx context.Context, timeRange store.TimeRange) (int, error)
	PaymentMethods(ctx context.Context, timeRange store.TimeRange) ([]PaymentMethod, error)
}

type PaymentMethod struct {
	Mode   billing.PaymentMode `json:"mode" bson:"_id"`
	Count  int                 `json:"count" bson:"count"`
	Amount float64             `json:"amount" bson:"amount"`
}

type Dashboard struct {
	From             *time.Time                `json:"from,omitempty"`
	To               *time.Time                `json:"to,omitempty"`
	TodayRevenue     float64                   `json:"todayRevenue"`
	RangeRevenue     float64                   `json:"rangeRevenue"`
	TodayCollections int                       `json:"todayCollections"`
	TestCount        int                       `json:"testCount"`
	PaymentMethods   []PaymentMethod           `json:"paymentMethods"`
	Invoices         []*billing.InvoiceDetails `json:"invoices"`
	Samples          []*samples.SampleDetails  `json:"samples"`
}
