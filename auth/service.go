package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pathline/lis/errors"
	"github.com/pathline/lis/users"
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", errors.Unauthorized)
	ErrAdminRegistration  = fmt.Errorf("%w: admin accounts cannot be self registered", errors.Forbidden)
)

// Session is returned after registration or login.
type Session struct {
	Id        string     `json:"_id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      users.Role `json:"role"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

type Service interface {
	Register(ctx context.Context, registration users.Registration) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Me(ctx context.Context) (*users.User, error)
	// Seed creates a user with any role, admin included. Used by the command line tooling.
	Seed(ctx context.Context, registration users.Registration) (*users.User, error)
}

type ServiceParams struct {
	fx.In

	Users  users.Repository
	Tokens *TokenManager
	Logger *zap.SugaredLogger
}

type service struct {
	users  users.Repository
	tokens *TokenManager
	logger *zap.SugaredLogger
}

func NewService(p ServiceParams) Service {
	return &service{users: p.Users, tokens: p.Tokens, logger: p.Logger}
}

// Register creates a user and signs them in. The very first account becomes an admin;
// afterwards admin accounts can only be seeded.
func (s *service) Register(ctx context.Context, registration users.Registration) (*Session, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		registration.Role = users.RoleAdmin
	} else if registration.Role == "" {
		registration.Role = users.RoleReceptionist
	} else if registration.Role == users.RoleAdmin {
		return nil, ErrAdminRegistration
	}

	user, err := s.Seed(ctx, registration)
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

func (s *service) Seed(ctx context.Context, registration users.Registration) (*users.User, error) {
	registration.Normalize()
	if err := registration.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, registration.Email); err == nil {
		return nil, users.ErrDuplicate
	} else if err != users.ErrNotFound {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(registration.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("unable to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, users.User{
		Name:         registration.Name,
		Email:        registration.Email,
		PasswordHash: string(hash),
		Role:         registration.Role,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("user registered", "userId", user.Id.Hex(), "role", user.Role)
	return user, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err == users.ErrNotFound {
		// Hash anyway so response time does not reveal whether the email exists
		_, _ = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warnw("failed login attempt", "userId", user.Id.Hex())
		return nil, ErrInvalidCredentials
	}

	return s.session(user)
}

func (s *service) Me(ctx context.Context) (*users.User, error) {
	subjectId := SubjectId(ctx)
	if subjectId == "" {
		return nil, errors.Unauthorized
	}
	return s.users.Get(ctx, subjectId)
}

func (s *service) session(user *users.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.Id.Hex(), string(user.Role))
	if err != nil {
		return nil, err
	}
	return &Session{
		Id:        user.Id.Hex(),
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}
