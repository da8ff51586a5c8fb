package test

import (
	"github.com/pathline/lis/billing"
	"github.com/pathline/lis/labtests"
	"github.com/pathline/lis/patients"
)

// NewCreateInvoice bills tests to patient without discount or payment.
func NewCreateInvoice(patient *patients.Patient, tests ...*labtests.Test) billing.CreateInvoice {
	ids := make([]string, 0, len(tests))
	for _, t := range tests {
		ids = append(ids, t.Id.Hex())
	}
	return billing.CreateInvoice{
		PatientId: patient.Id.Hex(),
		TestIds:   ids,
	}
}
