// Package authpw provides email/password registration and sign-in.
package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"nexacrm/api/internal/store"
	"nexacrm/api/internal/util"
)

const MinPasswordLength = 6

var (
	ErrMissingFields      = errors.New("name, email and password are required")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

// UserStore defines the storage interface for auth
type UserStore interface {
	CountUsers(ctx context.Context) (int, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	CreateUser(ctx context.Context, user store.User) (store.User, error)
	UpdateUser(ctx context.Context, user store.User) (store.User, error)
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	TouchLastLogin(ctx context.Context, userID string) error
}

// Service provides email/password authentication
type Service struct {
	store      UserStore
	ownerEmail string
	cost       int
}

func NewService(store UserStore, ownerEmail string) *Service {
	return &Service{
		store:      store,
		ownerEmail: NormalizeEmail(ownerEmail),
		cost:       bcrypt.DefaultCost,
	}
}

// WithCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsOwnerEmail reports whether email is the reserved owner address.
func (s *Service) IsOwnerEmail(email string) bool {
	return s.ownerEmail != "" && NormalizeEmail(email) == s.ownerEmail
}

func (s *Service) OwnerEmail() string {
	return s.ownerEmail
}

func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Company  *string
	Phone    *string
	// Role is honoured only when the account is not promoted to admin
	// by being first or the owner. Empty means "user".
	Role string
}

// Register creates an account. The first account ever created and the owner
// address become admins; the owner address is also flagged as owner.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (store.User, error) {
	name := strings.TrimSpace(req.Name)
	email := NormalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return store.User{}, ErrMissingFields
	}
	if len(req.Password) < MinPasswordLength {
		return store.User{}, ErrPasswordTooShort
	}

	taken, err := s.store.EmailTaken(ctx, email, "")
	if err != nil {
		return store.User{}, err
	}
	if taken {
		return store.User{}, ErrEmailTaken
	}

	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return store.User{}, err
	}

	isOwner := s.IsOwnerEmail(email)
	role := req.Role
	if role == "" {
		role = "user"
	}
	if count == 0 || isOwner {
		role = "admin"
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return store.User{}, err
	}

	return s.store.CreateUser(ctx, store.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsOwner:      isOwner,
		Company:      blankToNil(req.Company),
		Phone:        blankToNil(req.Phone),
	})
}

// Login checks credentials, promotes the owner address when needed and
// stamps last_login.
func (s *Service) Login(ctx context.Context, email, password string) (store.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return store.User{}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}

	if s.IsOwnerEmail(user.Email) && (user.Role != "admin" || !user.IsOwner) {
		user.Role = "admin"
		user.IsOwner = true
		if user, err = s.store.UpdateUser(ctx, user); err != nil {
			return store.User{}, fmt.Errorf("promote owner: %w", err)
		}
	}

	if err := s.store.TouchLastLogin(ctx, user.ID); err != nil {
		return store.User{}, err
	}
	return user, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" || next == "" {
		return ErrMissingFields
	}
	if len(next) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrWrongPassword
	}
	hash, err := s.HashPassword(next)
	if err != nil {
		return err
	}
	return s.store.UpdateUserPassword(ctx, userID, hash)
}

func blankToNil(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
