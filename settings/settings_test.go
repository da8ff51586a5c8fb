package settings_test

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pathline/lis/config"
	"github.com/pathline/lis/errors"
	"github.com/pathline/lis/settings"
)

var _ = Describe("Merge", func() {
	var current settings.Settings

	BeforeEach(func() {
		current = settings.Default(&config.Config{LabName: "Central Lab"})
		current.Phone = "0222"
		current.Pathologist = settings.Pathologist{Name: "Dr. Rao", Qualification: "MD"}
	})

	It("replaces scalar values", func() {
		merged, err := settings.Merge(current, []byte(`{"labName": "North Lab", "website": "https://north.example"}`))
		Expect(err).ToNot(HaveOccurred())
		Expect(merged.LabName).To(Equal("North Lab"))
		Expect(merged.Website).To(Equal("https://north.example"))
		Expect(merged.Phone).To(Equal("0222"))
	})

	It("merges nested objects key by key", func() {
		merged, err := settings.Merge(current, []byte(`{"pathologist": {"registration": "MCI-1"}}`))
		Expect(err).ToNot(HaveOccurred())
		Expect(merged.Pathologist).To(Equal(settings.Pathologist{
			Name:          "Dr. Rao",
			Qualification: "MD",
			Registration:  "MCI-1",
		}))
	})

	It("ignores read-only attributes", func() {
		merged, err := settings.Merge(current, []byte(`{"updatedBy": "someone"}`))
		Expect(err).ToNot(HaveOccurred())
		Expect(merged.UpdatedBy).To(BeEmpty())
	})

	It("rejects a body that is not an object", func() {
		_, err := settings.Merge(current, []byte(`["labName"]`))
		Expect(errors.Code(err)).To(Equal(http.StatusBadRequest))
	})

	It("rejects values of the wrong shape", func() {
		_, err := settings.Merge(current, []byte(`{"pathologist": "Dr. Who"}`))
		Expect(errors.Code(err)).To(Equal(http.StatusBadRequest))
	})
})

var _ = Describe("Settings", func() {
	It("requires a lab name", func() {
		s := settings.Default(&config.Config{})
		Expect(errors.Code(s.Validate())).To(Equal(http.StatusBadRequest))
	})
})
