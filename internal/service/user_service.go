package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"field-ticket-service/internal/model"
)

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(user *model.User) (string, time.Time, error)
}

type UserService struct {
	users  UserStore
	issuer TokenIssuer
}

func NewUserService(users UserStore, issuer TokenIssuer) *UserService {
	return &UserService{users: users, issuer: issuer}
}

type LoginResult struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        *model.User `json:"user"`
}

func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrUnauthorized
	}
	token, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *UserService) Me(ctx context.Context, principal model.Principal) (*model.User, error) {
	user, err := s.users.GetByID(ctx, principal.UserID)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

func (s *UserService) Engineers(ctx context.Context, principal model.Principal) ([]model.User, error) {
	if principal.Role == "" {
		return nil, ErrPermissionDenied
	}
	return s.users.ListByRole(ctx, model.UserRoleEngineer)
}

type CreateUserInput struct {
	Name     string
	Email    string
	Role     string
	Password string
}

const minPasswordLength = 8

// Create registers a user. Used by the command line, not exposed over HTTP.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*model.User, error) {
	verr := NewValidationError()
	name := strings.TrimSpace(input.Name)
	if name == "" {
		verr.Add("name", "name is required")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		verr.Add("email", "email is invalid")
	}
	role := model.UserRole(strings.ToLower(strings.TrimSpace(input.Role)))
	if !role.Valid() {
		verr.Add("role", "role must be admin, engineer or requester")
	}
	if len(input.Password) < minPasswordLength {
		verr.Add("password", "password must be at least 8 characters")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{Name: name, Email: email, Role: role, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fieldError("email", "email is already registered")
		}
		return nil, err
	}
	return user, nil
}
