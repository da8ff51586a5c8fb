package auth_test

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pathline/lis/auth"
	"github.com/pathline/lis/config"
)

var _ = Describe("TokenManager", func() {
	var manager *auth.TokenManager

	BeforeEach(func() {
		manager = auth.NewTokenManager(&config.Config{JwtSecret: "s3cret", TokenTTL: 30 * 24 * time.Hour})
	})

	It("round trips the user id and role", func() {
		token, expiresAt, err := manager.Issue("6650b5c7e1d2a3b4c5d6e7f8", "pathologist")
		Expect(err).ToNot(HaveOccurred())
		Expect(expiresAt).To(BeTemporally("~", time.Now().Add(30*24*time.Hour), time.Minute))

		claims, err := manager.Parse(token)
		Expect(err).ToNot(HaveOccurred())
		Expect(claims.Id).To(Equal("6650b5c7e1d2a3b4c5d6e7f8"))
		Expect(claims.Role).To(Equal("pathologist"))
	})

	It("rejects tokens signed with another secret", func() {
		other := auth.NewTokenManager(&config.Config{JwtSecret: "other", TokenTTL: time.Hour})
		token, _, err := other.Issue("6650b5c7e1d2a3b4c5d6e7f8", "admin")
		Expect(err).ToNot(HaveOccurred())

		_, err = manager.Parse(token)
		Expect(err).To(MatchError(auth.ErrTokenInvalid))
	})

	It("rejects expired tokens", func() {
		expired := auth.NewTokenManager(&config.Config{JwtSecret: "s3cret", TokenTTL: -time.Minute})
		token, _, err := expired.Issue("6650b5c7e1d2a3b4c5d6e7f8", "admin")
		Expect(err).ToNot(HaveOccurred())

		_, err = manager.Parse(token)
		Expect(err).To(MatchError(auth.ErrTokenExpired))
	})

	It("rejects unsigned tokens", func() {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": "x", "role": "admin", "iss": "lis"})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		Expect(err).ToNot(HaveOccurred())

		_, err = manager.Parse(signed)
		Expect(err).To(MatchError(auth.ErrTokenInvalid))
	})

	It("rejects garbage", func() {
		_, err := manager.Parse(strings.Repeat("a", 20))
		Expect(err).To(MatchError(auth.ErrTokenInvalid))
	})
})
