package auth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"

	"github.com/pathline/lis/auth"
	"github.com/pathline/lis/config"
	"github.com/pathline/lis/users"
	usersTest "github.com/pathline/lis/users/test"
)

type countingAuthenticator struct {
	calls int
	err   error
}

func (c *countingAuthenticator) ValidateAndSetAuthData(token string, ec echo.Context) (bool, error) {
	c.calls++
	if c.err != nil {
		return false, c.err
	}
	auth.SetAuthData(ec, &auth.Auth{SubjectId: token, Role: "technician"})
	return true, nil
}

var _ = Describe("Authentication", func() {
	var e *echo.Echo

	newContext := func(header string) (echo.Context, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(http.MethodGet, "/api/samples", nil)
		if header != "" {
			req.Header.Set(echo.HeaderAuthorization, header)
		}
		rec := httptest.NewRecorder()
		return e.NewContext(req, rec), rec
	}

	BeforeEach(func() {
		e = echo.New()
	})

	Describe("CachingAuthenticator", func() {
		It("calls the delegate once per token", func() {
			delegate := &countingAuthenticator{}
			caching, err := auth.NewCachingAuthenticator(10, time.Minute, delegate, func(a *auth.Auth) bool { return a != nil })
			Expect(err).ToNot(HaveOccurred())

			for i := 0; i < 3; i++ {
				c, _ := newContext("")
				valid, err := caching.ValidateAndSetAuthData("token-1", c)
				Expect(err).ToNot(HaveOccurred())
				Expect(valid).To(BeTrue())
				Expect(auth.GetAuthData(c.Request().Context()).SubjectId).To(Equal("token-1"))
			}
			Expect(delegate.calls).To(Equal(1))
		})

		It("does not cache failures", func() {
			delegate := &countingAuthenticator{err: auth.ErrUnauthenticated}
			caching, err := auth.NewCachingAuthenticator(10, time.Minute, delegate, func(a *auth.Auth) bool { return a != nil })
			Expect(err).ToNot(HaveOccurred())

			for i := 0; i < 2; i++ {
				c, _ := newContext("")
				_, err := caching.ValidateAndSetAuthData("bad", c)
				Expect(err).To(HaveOccurred())
			}
			Expect(delegate.calls).To(Equal(2))
		})

		It("expires entries", func() {
			delegate := &countingAuthenticator{}
			caching, err := auth.NewCachingAuthenticator(10, -time.Second, delegate, func(a *auth.Auth) bool { return a != nil })
			Expect(err).ToNot(HaveOccurred())

			for i := 0; i < 2; i++ {
				c, _ := newContext("")
				_, err := caching.ValidateAndSetAuthData("token-1", c)
				Expect(err).ToNot(HaveOccurred())
			}
			Expect(delegate.calls).To(Equal(2))
		})
	})

	Describe("JWTAuthenticator", func() {
		var ctrl *gomock.Controller
		var repo *usersTest.MockRepository
		var tokens *auth.TokenManager
		var authenticator *auth.JWTAuthenticator

		BeforeEach(func() {
			ctrl = gomock.NewController(GinkgoT())
			repo = usersTest.NewMockRepository(ctrl)
			tokens = auth.NewTokenManager(&config.Config{JwtSecret: "s3cret", TokenTTL: time.Hour})
			authenticator = auth.NewJWTAuthenticator(tokens, repo)
		})

		It("sets the identity of the user in the token", func() {
			id := primitive.NewObjectID()
			token, _, err := tokens.Issue(id.Hex(), "technician")
			Expect(err).ToNot(HaveOccurred())
			repo.EXPECT().Get(gomock.Any(), id.Hex()).Return(&users.User{Id: &id, Name: "Asha", Role: users.RolePathologist}, nil)

			c, _ := newContext("")
			valid, err := authenticator.ValidateAndSetAuthData(token, c)
			Expect(err).ToNot(HaveOccurred())
			Expect(valid).To(BeTrue())
			Expect(auth.GetAuthData(c.Request().Context())).To(Equal(&auth.Auth{SubjectId: id.Hex(), Role: "pathologist", Name: "Asha"}))
		})

		It("rejects tokens of deleted users", func() {
			id := primitive.NewObjectID()
			token, _, err := tokens.Issue(id.Hex(), "technician")
			Expect(err).ToNot(HaveOccurred())
			repo.EXPECT().Get(gomock.Any(), id.Hex()).Return(nil, users.ErrNotFound)

			c, _ := newContext("")
			valid, err := authenticator.ValidateAndSetAuthData(token, c)
			Expect(err).To(MatchError(auth.ErrUnauthenticated))
			Expect(valid).To(BeFalse())
		})
	})

	Describe("Middleware", func() {
		var handler echo.HandlerFunc

		BeforeEach(func() {
			mw := auth.NewAuthMiddleware(&countingAuthenticator{}, auth.AuthMiddlewareOpts{
				Skipper: func(c echo.Context) bool { return c.Request().URL.Path == "/ready" },
			})
			handler = mw(func(c echo.Context) error {
				return c.String(http.StatusOK, auth.SubjectId(c.Request().Context()))
			})
		})

		It("requires a bearer token", func() {
			c, _ := newContext("")
			err := handler(c)
			Expect(err).To(HaveOccurred())
			Expect(err.(*echo.HTTPError).Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects other schemes", func() {
			c, _ := newContext("Basic dXNlcjpwYXNz")
			err := handler(c)
			Expect(err.(*echo.HTTPError).Code).To(Equal(http.StatusUnauthorized))
		})

		It("passes authenticated requests through", func() {
			c, rec := newContext("Bearer user-42")
			Expect(handler(c)).To(Succeed())
			Expect(rec.Body.String()).To(Equal("user-42"))
		})

		It("maps authenticator errors to 401", func() {
			failing := auth.NewAuthMiddleware(&countingAuthenticator{err: fmt.Errorf("boom")}, auth.AuthMiddlewareOpts{})
			c, _ := newContext("Bearer user-42")
			err := failing(func(c echo.Context) error { return nil })(c)
			Expect(err.(*echo.HTTPError).Code).To(Equal(http.StatusUnauthorized))
		})

		It("honours the skipper", func() {
			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			rec := httptest.NewRecorder()
			Expect(handler(e.NewContext(req, rec))).To(Succeed())
			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})

	It("reads the subject from the context", func() {
		Expect(auth.SubjectId(context.Background())).To(BeEmpty())
	})
})
