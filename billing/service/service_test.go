package service_test

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/pathline/lis/billing"
	"github.com/pathline/lis/billing/repository"
	"github.com/pathline/lis/billing/service"
	billingTest "github.com/pathline/lis/billing/test"
	"github.com/pathline/lis/codes"
	"github.com/pathline/lis/config"
	"github.com/pathline/lis/daterange"
	"github.com/pathline/lis/deletions"
	"github.com/pathline/lis/departments"
	departmentsRepository "github.com/pathline/lis/departments/repository"
	departmentsTest "github.com/pathline/lis/departments/test"
	"github.com/pathline/lis/errors"
	"github.com/pathline/lis/labtests"
	labtestsRepository "github.com/pathline/lis/labtests/repository"
	labtestsTest "github.com/pathline/lis/labtests/test"
	"github.com/pathline/lis/metrics"
	"github.com/pathline/lis/outbox"
	"github.com/pathline/lis/patients"
	patientsRepository "github.com/pathline/lis/patients/repository"
	patientsTest "github.com/pathline/lis/patients/test"
	"github.com/pathline/lis/pointer"
	"github.com/pathline/lis/results"
	resultsRepository "github.com/pathline/lis/results/repository"
	"github.com/pathline/lis/samples"
	samplesRepository "github.com/pathline/lis/samples/repository"
	samplesService "github.com/pathline/lis/samples/service"
	"github.com/pathline/lis/store"
	dbTest "github.com/pathline/lis/store/test"
)

var _ = Describe("Billing Service", func() {
	var database *mongo.Database
	var cfg *config.Config
	var repo billing.Repository
	var samplesRepo samples.Repository
	var resultsRepo results.Repository
	var testsRepo labtests.Service
	var department *departments.Department
	var patient *patients.Patient
	var testA, testB *labtests.Test
	var svc billing.Service
	var samplesSvc samples.Service

	BeforeEach(func() {
		database = dbTest.GetTestDatabase()
		logger := zap.NewNop().Sugar()
		lifecycle := fxtest.NewLifecycle(GinkgoT())
		cfg = &config.Config{
			DiscountPolicy: config.DiscountPolicyReject,
			TransitionMode: config.TransitionModePermissive,
			Timezone:       "UTC",
		}
		Expect(cfg.Validate()).To(Succeed())

		departmentsRepo, err := departmentsRepository.NewRepository(database, logger, lifecycle)
		Expect(err).ToNot(HaveOccurred())
		testsRepo, err = labtestsRepository.NewRepository(labtestsRepository.Params{
			Database:    database,
			Departments: departmentsRepo,
			Logger:      logger,
			Lifecycle:   lifecycle,
		})
		Expect(err).ToNot(HaveOccurred())
		patientDeletions, err := deletions.NewRepositoryFactory[patients.Patient]("patient", []string{"_id"})(database, logger, lifecycle)
		Expect(err).ToNot(HaveOccurred())
		patientsRepo, err := patientsRepository.NewRepository(patientsRepository.Params{
			Database:      database,
			DeletionsRepo: patientDeletions,
			Logger:        logger,
			Lifecycle:     lifecycle,
		})
		Expect(err).ToNot(HaveOccurred())
		invoiceDeletions, err := deletions.NewRepositoryFactory[billing.Invoice]("invoice", []string{"_id"})(database, logger, lifecycle)
		Expect(err).ToNot(HaveOccurred())
		repo, err = repository.NewRepository(repository.Params{
			Database:      database,
			DeletionsRepo: invoiceDeletions,
			Logger:        logger,
			Lifecycle:     lifecycle,
		})
		Expect(err).ToNot(HaveOccurred())
		sampleDeletions, err := deletions.NewRepositoryFactory[samples.Sample](samples.DeletionsType, []string{"_id"})(database, logger, lifecycle)
		Expect(err).ToNot(HaveOccurred())
		samplesRepo, err = samplesRepository.NewRepository(samplesRepository.Params{
			Database:      database,
			DeletionsRepo: sampleDeletions,
			Logger:        logger,
			Lifecycle:     lifecycle,
		})
		Expect(err).ToNot(HaveOccurred())
		resultDeletions, err := deletions.NewRepositoryFactory[results.Result]("result", []string{"_id"})(database, logger, lifecycle)
		Expect(err).ToNot(HaveOccurred())
		resultsRepo, err = resultsRepository.NewRepository(resultsRepository.Params{
			Database:      database,
			DeletionsRepo: resultDeletions,
			Logger:        logger,
			Lifecycle:     lifecycle,
		})
		Expect(err).ToNot(HaveOccurred())
		outboxRepo, err := outbox.NewRepository(database, logger, lifecycle)
		Expect(err).ToNot(HaveOccurred())
		lifecycle.RequireStart()

		registry := prometheus.NewRegistry()
		collector := metrics.NewCollectorWithRegistry(registry, registry)
		svc, err = service.NewService(service.Params{
			Client:     database.Client(),
			Repository: repo,
			Patients:   patientsRepo,
			Tests:      testsRepo,
			Samples:    samplesRepo,
			Results:    resultsRepo,
			Outbox:     outboxRepo,
			Codes:      codes.NewGenerator(database, cfg, logger),
			Resolver:   daterange.NewResolver(cfg),
			Config:     cfg,
			Metrics:    collector,
			Logger:     logger,
		})
		Expect(err).ToNot(HaveOccurred())

		workflow, err := samples.NewWorkflowWithMode(config.TransitionModePermissive)
		Expect(err).ToNot(HaveOccurred())
		samplesSvc, err = samplesService.NewService(samplesService.Params{
			Client:     database.Client(),
			Repository: samplesRepo,
			Results:    resultsRepo,
			Outbox:     outboxRepo,
			Workflow:   workflow,
			Metrics:    collector,
			Logger:     logger,
		})
		Expect(err).ToNot(HaveOccurred())

		department, err = departmentsRepo.Create(context.Background(), departmentsTest.RandomDepartment())
		Expect(err).ToNot(HaveOccurred())
		a := labtestsTest.RandomTest(*department.Id)
		a.Price = 300
		a.SampleType = "Serum"
		testA, err = testsRepo.Create(context.Background(), a)
		Expect(err).ToNot(HaveOccurred())
		b := labtestsTest.RandomTest(*department.Id)
		b.Price = 500
		b.SampleType = "Blood"
		testB, err = testsRepo.Create(context.Background(), b)
		Expect(err).ToNot(HaveOccurred())

		p := patientsTest.RandomPatient()
		p.PatientId = "PAT" + patientsTest.RandomMobile()
		patient, err = patientsRepo.Create(context.Background(), p)
		Expect(err).ToNot(HaveOccurred())
	})

	countFor := func(collection string) int64 {
		count, err := database.Collection(collection).CountDocuments(context.Background(), bson.M{"patient": patient.Id})
		Expect(err).ToNot(HaveOccurred())
		return count
	}

	Describe("Create", func() {
		It("computes the totals and creates exactly one sample", func() {
			create := billingTest.NewCreateInvoice(patient, testA, testB)
			create.Discount = 200
			create.PaidAmount = 700
			create.PaymentMode = billing.PaymentModeCash

			invoice, err := svc.Create(context.Background(), create)
			Expect(err).ToNot(HaveOccurred())
			Expect(invoice.InvoiceId).To(HavePrefix("INV"))
			Expect(invoice.Totals).To(Equal(billing.Totals{
				TotalAmount: 800,
				Discount:    200,
				FinalAmount: 600,
				PaidAmount:  700,
				Balance:     0,
				Profit:      100,
				Status:      billing.StatusPaid,
			}))
			Expect(invoice.Payments).To(HaveLen(1))
			Expect(invoice.PaymentMode).To(Equal(billing.PaymentModeCash))

			sample, err := samplesRepo.FindByInvoice(context.Background(), *invoice.Id)
			Expect(err).ToNot(HaveOccurred())
			Expect(sample.SampleId).To(HavePrefix("SMP"))
			Expect(sample.Tests).To(Equal(invoice.Tests))
			Expect(sample.SampleType).To(Equal("Serum, Blood"))
			Expect(sample.Status).To(Equal(samples.StatusPending))
			Expect(countFor(samples.CollectionName)).To(Equal(int64(1)))

			events, err := database.Collection(outbox.CollectionName).CountDocuments(context.Background(), bson.M{
				"eventType":           outbox.EventTypeInvoiceCreated,
				"payload.invoiceCode": invoice.InvoiceId,
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(Equal(int64(1)))
		})

		It("creates nothing when a test does not exist", func() {
			create := billingTest.NewCreateInvoice(patient, testA, testB)
			create.TestIds = append(create.TestIds, department.Id.Hex())

			_, err := svc.Create(context.Background(), create)
			Expect(err).To(MatchError(billing.ErrTestsNotFound))
			Expect(countFor(billing.CollectionName)).To(BeZero())
			Expect(countFor(samples.CollectionName)).To(BeZero())
		})

		It("does not bill archived tests", func() {
			Expect(testsRepo.Archive(context.Background(), testB.Id.Hex())).To(Succeed())
			_, err := svc.Create(context.Background(), billingTest.NewCreateInvoice(patient, testA, testB))
			Expect(err).To(MatchError(billing.ErrTestsNotFound))
		})

		It("requires an existing patient", func() {
			create := billingTest.NewCreateInvoice(patient, testA)
			create.PatientId = testA.Id.Hex()
			_, err := svc.Create(context.Background(), create)
			Expect(err).To(MatchError(billing.ErrPatientNotFound))
			Expect(errors.Code(err)).To(Equal(http.StatusBadRequest))
		})

		It("rejects a discount larger than the total", func() {
			create := billingTest.NewCreateInvoice(patient, testA)
			create.Discount = 301
			_, err := svc.Create(context.Background(), create)
			Expect(err).To(MatchError(billing.ErrDiscountExceedsTotal))
			Expect(countFor(billing.CollectionName)).To(BeZero())
		})

		It("stores explicit payments as mixed", func() {
			create := billingTest.NewCreateInvoice(patient, testA, testB)
			create.PaidAmount = 400
			create.Payments = []billing.Payment{
				{Mode: billing.PaymentModeCash, Amount: 100},
				{Mode: billing.PaymentModeUPI, Amount: 300},
			}
			invoice, err := svc.Create(context.Background(), create)
			Expect(err).ToNot(HaveOccurred())
			Expect(invoice.PaymentMode).To(Equal(billing.PaymentModeMixed))
			Expect(invoice.Status).To(Equal(billing.StatusPartial))
			Expect(invoice.Balance).To(Equal(400.0))
		})
	})

	Describe("Get", func() {
		It("populates the patient, the tests in invoice order and the sample code", func() {
			invoice, err := svc.Create(context.Background(), billingTest.NewCreateInvoice(patient, testB, testA))
			Expect(err).ToNot(HaveOccurred())

			details, err := svc.Get(context.Background(), invoice.Id.Hex())
			Expect(err).ToNot(HaveOccurred())
			Expect(details.PatientDetails.Id).To(Equal(patient.Id))
			Expect(details.TestDetails).To(HaveLen(2))
			Expect(details.TestDetails[0].Id).To(Equal(testB.Id))
			Expect(details.SampleCode).To(HavePrefix("SMP"))
		})
	})

	Describe("RecordPayment", func() {
		It("settles the balance", func() {
			create := billingTest.NewCreateInvoice(patient, testA, testB)
			create.PaidAmount = 400
			create.PaymentMode = billing.PaymentModeCash
			invoice, err := svc.Create(context.Background(), create)
			Expect(err).ToNot(HaveOccurred())
			Expect(invoice.Status).To(Equal(billing.StatusPartial))

			updated, err := svc.RecordPayment(context.Background(), invoice.Id.Hex(), billing.Payment{
				Mode:   billing.PaymentModeUPI,
				Amount: 400,
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(updated.PaidAmount).To(Equal(800.0))
			Expect(updated.Balance).To(BeZero())
			Expect(updated.Status).To(Equal(billing.StatusPaid))
			Expect(updated.PaymentMode).To(Equal(billing.PaymentModeMixed))
			Expect(updated.Payments).To(HaveLen(2))
		})
	})

	Describe("Delete", func() {
		It("removes the invoice, its sample and the sample results", func() {
			invoice, err := svc.Create(context.Background(), billingTest.NewCreateInvoice(patient, testA, testB))
			Expect(err).ToNot(HaveOccurred())
			sample, err := samplesRepo.FindByInvoice(context.Background(), *invoice.Id)
			Expect(err).ToNot(HaveOccurred())
			_, err = resultsRepo.Upsert(context.Background(), results.Result{
				Sample:      *sample.Id,
				Test:        *testA.Id,
				Patient:     patient.Id,
				ResultValue: "4.2",
				Status:      results.StatusEntered,
			})
			Expect(err).ToNot(HaveOccurred())

			Expect(svc.Delete(context.Background(), invoice.Id.Hex(), deletions.Metadata{DeletedByUserId: pointer.FromAny("admin")})).To(Succeed())

			_, err = repo.Get(context.Background(), *invoice.Id)
			Expect(err).To(MatchError(billing.ErrNotFound))
			_, err = samplesRepo.Get(context.Background(), *sample.Id)
			Expect(err).To(MatchError(samples.ErrNotFound))
			remaining, err := resultsRepo.ListBySample(context.Background(), *sample.Id)
			Expect(err).ToNot(HaveOccurred())
			Expect(remaining).To(BeEmpty())

			archived, err := database.Collection(deletions.CollectionName("sample")).CountDocuments(context.Background(), bson.M{
				"sample._id": sample.Id,
				"cascade":    "invoice",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(archived).To(Equal(int64(1)))
		})

		It("keeps the invoice when only its sample is deleted", func() {
			invoice, err := svc.Create(context.Background(), billingTest.NewCreateInvoice(patient, testA, testB))
			Expect(err).ToNot(HaveOccurred())
			sample, err := samplesRepo.FindByInvoice(context.Background(), *invoice.Id)
			Expect(err).ToNot(HaveOccurred())
			_, err = resultsRepo.Upsert(context.Background(), results.Result{
				Sample:      *sample.Id,
				Test:        *testB.Id,
				Patient:     patient.Id,
				ResultValue: "13.1",
				Status:      results.StatusEntered,
			})
			Expect(err).ToNot(HaveOccurred())

			Expect(samplesSvc.Delete(context.Background(), sample.Id.Hex(), deletions.Metadata{DeletedByUserId: pointer.FromAny("admin")})).To(Succeed())

			kept, err := repo.Get(context.Background(), *invoice.Id)
			Expect(err).ToNot(HaveOccurred())
			Expect(kept.Totals).To(Equal(invoice.Totals))
			Expect(kept.Tests).To(Equal(invoice.Tests))
			_, err = samplesRepo.Get(context.Background(), *sample.Id)
			Expect(err).To(MatchError(samples.ErrNotFound))
			remaining, err := resultsRepo.ListBySample(context.Background(), *sample.Id)
			Expect(err).ToNot(HaveOccurred())
			Expect(remaining).To(BeEmpty())
		})

		It("returns not found for unknown invoices", func() {
			err := svc.Delete(context.Background(), department.Id.Hex(), deletions.Metadata{})
			Expect(err).To(MatchError(billing.ErrNotFound))
		})
	})

	Describe("Stats", func() {
		BeforeEach(func() {
			_, err := database.Collection(billing.CollectionName).DeleteMany(context.Background(), bson.M{})
			Expect(err).ToNot(HaveOccurred())
		})

		It("aggregates profit, loss and net earnings for the range", func() {
			create := billingTest.NewCreateInvoice(patient, testA, testB)
			create.Discount = 200
			create.PaidAmount = 700
			create.PaymentMode = billing.PaymentModeCash
			_, err := svc.Create(context.Background(), create)
			Expect(err).ToNot(HaveOccurred())

			create = billingTest.NewCreateInvoice(patient, testA, testB)
			create.PaidAmount = 400
			create.PaymentMode = billing.PaymentModeCard
			_, err = svc.Create(context.Background(), create)
			Expect(err).ToNot(HaveOccurred())

			resolver := daterange.NewResolver(cfg)
			today := resolver.Today()
			stats, err := svc.Stats(context.Background(), today)
			Expect(err).ToNot(HaveOccurred())
			Expect(*stats).To(Equal(billing.Stats{
				InvoiceCount:   2,
				TotalBilled:    1400,
				TotalCollected: 1100,
				TotalBalance:   400,
				TotalProfit:    100,
				TotalLoss:      200,
				NetEarnings:    -100,
			}))

			list, err := svc.List(context.Background(), billing.Filter{
				TimeRange: today,
				Status:    pointer.FromAny(billing.StatusPartial),
			}, store.DefaultPagination())
			Expect(err).ToNot(HaveOccurred())
			Expect(list.TotalCount).To(Equal(1))

			empty, err := svc.Stats(context.Background(), store.TimeRange{
				From: time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2001, 1, 1, 23, 59, 59, 0, time.UTC),
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(*empty).To(Equal(billing.Stats{}))
		})

		It("returns ascending daily buckets including empty days", func() {
			_, err := svc.Create(context.Background(), billingTest.NewCreateInvoice(patient, testA))
			Expect(err).ToNot(HaveOccurred())

			resolver := daterange.NewResolver(cfg)
			week, err := resolver.Resolve(daterange.Query{}, daterange.Last7Days)
			Expect(err).ToNot(HaveOccurred())

			daily, err := svc.DailyStats(context.Background(), week)
			Expect(err).ToNot(HaveOccurred())
			Expect(daily).To(HaveLen(7))
			for i := 1; i < len(daily); i++ {
				Expect(daily[i].Date > daily[i-1].Date).To(BeTrue())
			}
			last := daily[len(daily)-1]
			Expect(last.Date).To(Equal(time.Now().UTC().Format(daterange.DateLayout)))
			Expect(last.InvoiceCount).To(Equal(1))
			Expect(last.TotalBilled).To(Equal(300.0))
			Expect(daily[0].InvoiceCount).To(BeZero())
		})
	})

	Describe("RepairOrphans", func() {
		It("creates the missing sample", func() {
			invoice, err := svc.Create(context.Background(), billingTest.NewCreateInvoice(patient, testB, testA))
			Expect(err).ToNot(HaveOccurred())
			sample, err := samplesRepo.FindByInvoice(context.Background(), *invoice.Id)
			Expect(err).ToNot(HaveOccurred())
			_, err = database.Collection(samples.CollectionName).DeleteOne(context.Background(), bson.M{"_id": sample.Id})
			Expect(err).ToNot(HaveOccurred())

			repaired, err := svc.RepairOrphans(context.Background(), "lisctl")
			Expect(err).ToNot(HaveOccurred())
			Expect(repaired).To(ContainElement(HaveField("Id", Equal(invoice.Id))))

			recreated, err := samplesRepo.FindByInvoice(context.Background(), *invoice.Id)
			Expect(err).ToNot(HaveOccurred())
			Expect(recreated.Tests).To(Equal(invoice.Tests))
			Expect(recreated.SampleType).To(Equal("Blood, Serum"))

			again, err := svc.RepairOrphans(context.Background(), "lisctl")
			Expect(err).ToNot(HaveOccurred())
			Expect(again).ToNot(ContainElement(HaveField("Id", Equal(invoice.Id))))
		})

		It("does not recreate samples that were deleted", func() {
			invoice, err := svc.Create(context.Background(), billingTest.NewCreateInvoice(patient, testA))
			Expect(err).ToNot(HaveOccurred())
			sample, err := samplesRepo.FindByInvoice(context.Background(), *invoice.Id)
			Expect(err).ToNot(HaveOccurred())
			Expect(samplesSvc.Delete(context.Background(), sample.Id.Hex(), deletions.Metadata{DeletedByUserId: pointer.FromAny("admin")})).To(Succeed())

			repaired, err := svc.RepairOrphans(context.Background(), "lisctl")
			Expect(err).ToNot(HaveOccurred())
			Expect(repaired).ToNot(ContainElement(HaveField("Id", Equal(invoice.Id))))

			_, err = samplesRepo.FindByInvoice(context.Background(), *invoice.Id)
			Expect(err).To(MatchError(samples.ErrNotFound))
		})
	})
})
