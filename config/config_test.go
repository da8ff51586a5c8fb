package config_test

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"golang.org/x/text/language"

	"github.com/pathline/lis/config"
)

var _ = Describe("Config", func() {
	unset := func(keys ...string) {
		for _, k := range keys {
			Expect(os.Unsetenv(k)).To(Succeed())
		}
	}

	AfterEach(func() {
		unset("LIS_TIMEZONE", "LIS_DISCOUNT_POLICY", "LIS_SAMPLE_TRANSITIONS", "LIS_TOKEN_TTL", "LIS_LOCALE")
	})

	It("loads defaults", func() {
		cfg, err := config.NewConfig()
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.HttpPort).To(Equal(uint16(8080)))
		Expect(cfg.DiscountPolicy).To(Equal(config.DiscountPolicyReject))
		Expect(cfg.TransitionMode).To(Equal(config.TransitionModePermissive))
		Expect(cfg.TokenTTL).To(Equal(30 * 24 * time.Hour))
		Expect(cfg.Location()).To(Equal(time.Local))
	})

	It("loads the timezone", func() {
		Expect(os.Setenv("LIS_TIMEZONE", "Asia/Kolkata")).To(Succeed())
		cfg, err := config.NewConfig()
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Location().String()).To(Equal("Asia/Kolkata"))
	})

	It("rejects unknown discount policies", func() {
		Expect(os.Setenv("LIS_DISCOUNT_POLICY", "ignore")).To(Succeed())
		_, err := config.NewConfig()
		Expect(err).To(MatchError(ContainSubstring("invalid discount policy")))
	})

	It("rejects unknown transition modes", func() {
		Expect(os.Setenv("LIS_SAMPLE_TRANSITIONS", "backwards")).To(Succeed())
		_, err := config.NewConfig()
		Expect(err).To(MatchError(ContainSubstring("invalid sample transition mode")))
	})

	It("parses the locale", func() {
		Expect(os.Setenv("LIS_LOCALE", "en-GB")).To(Succeed())
		cfg, err := config.NewConfig()
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Language().String()).To(Equal("en-GB"))
	})

	It("rejects malformed locales", func() {
		Expect(os.Setenv("LIS_LOCALE", "not a locale!")).To(Succeed())
		_, err := config.NewConfig()
		Expect(err).To(MatchError(ContainSubstring("invalid locale")))
	})

	It("formats numbers in english when not loaded", func() {
		Expect(config.New().Language()).To(Equal(language.English))
	})
})
