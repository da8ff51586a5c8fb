package outbox

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const CollectionName = "outbox"

// EventType identifies the kind of event
type EventType string

const (
	EventTypeInvoiceCreated      EventType = "invoiceCreated"
	EventTypePaymentRecorded     EventType = "paymentRecorded"
	EventTypeSampleStatusChanged EventType = "sampleStatusChanged"
	EventTypeResultsApproved     EventType = "resultsApproved"
)

// Event is the envelope written in the same transaction as the change it describes.
type Event struct {
	Id          *primitive.ObjectID `bson:"_id,omitempty"`
	EventType   EventType           `bson:"eventType"`
	CreatedTime time.Time           `bson:"createdTime"`
	Payload     bson.Raw            `bson:"payload"`
}

type InvoiceCreatedPayload struct {
	InvoiceId   string  `bson:"invoiceId"`
	InvoiceCode string  `bson:"invoiceCode"`
	SampleId    string  `bson:"sampleId"`
	PatientId   string  `bson:"patientId"`
	FinalAmount float64 `bson:"finalAmount"`
	PaidAmount  float64 `bson:"paidAmount"`
}

type PaymentRecordedPayload struct {
	InvoiceId string  `bson:"invoiceId"`
	Mode      string  `bson:"mode"`
	Amount    float64 `bson:"amount"`
	Status    string  `bson:"status"`
}

type SampleStatusChangedPayload struct {
	SampleId string `bson:"sampleId"`
	From     string `bson:"from"`
	To       string `bson:"to"`
	Actor    string `bson:"actor,omitempty"`
}

type ResultsApprovedPayload struct {
	SampleId   string `bson:"sampleId"`
	PatientId  string `bson:"patientId"`
	ApprovedBy string `bson:"approvedBy"`
	Count      int64  `bson:"count"`
}

//go:generate go tool mockgen -source=./outbox.go -destination=./test/mock_outbox.go -package test

type Repository interface {
	Create(ctx context.Context, event Event) error
	Initialize(ctx context.Context) error
}

// NewEvent creates an Event from a typed payload
func NewEvent(eventType EventType, payload interface{}) (Event, error) {
	raw, err := bson.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("error marshaling outbox event payload: %w", err)
	}

	return Event{
		EventType:   eventType,
		CreatedTime: time.Now(),
		Payload:     bson.Raw(raw),
	}, nil
}
