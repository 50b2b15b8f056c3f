package app

import (
	"context"
	"errors"
	"strings"

	"nexacrm/api/internal/authpw"
	"nexacrm/api/internal/session"
	"nexacrm/api/internal/store"
)

type AuthResult struct {
	Token string     `json:"token"`
	User  store.User `json:"user"`
}

type RegisterInput struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Company  *string `json:"company"`
	Phone    *string `json:"phone"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	user, err := s.passwords.Register(ctx, authpw.RegisterRequest{
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
		Company:  in.Company,
		Phone:    in.Phone,
	})
	if err != nil {
		return AuthResult{}, err
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return AuthResult{}, err
	}
	s.log.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("user registered")
	return AuthResult{Token: token, User: user}, nil
}

// Login verifies credentials. Failures are counted per e-mail address and
// further attempts are refused once session.MaxLoginFailures is reached.
func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	key := authpw.NormalizeEmail(email)
	if key == "" || password == "" {
		return AuthResult{}, validationError("Email and password are required")
	}

	failures, err := s.sessions.LoginFailures(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Msg("login throttle lookup failed")
	} else if failures >= session.MaxLoginFailures {
		return AuthResult{}, throttledError()
	}

	user, err := s.passwords.Login(ctx, key, password)
	if errors.Is(err, authpw.ErrInvalidCredentials) {
		if _, recordErr := s.sessions.RecordLoginFailure(ctx, key); recordErr != nil {
			s.log.Warn().Err(recordErr).Msg("login failure not recorded")
		}
		return AuthResult{}, err
	}
	if err != nil {
		return AuthResult{}, err
	}
	if err := s.sessions.ResetLoginFailures(ctx, key); err != nil {
		s.log.Warn().Err(err).Msg("login throttle reset failed")
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Token: token, User: user}, nil
}

// Logout revokes the presented token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, current Session) error {
	return s.sessions.RevokeToken(ctx, current.JTI, current.ExpiresAt)
}

func (s *Service) Me(ctx context.Context, userID string) (store.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if isNotFound(err) {
		return store.User{}, notFoundError("User not found")
	}
	return user, err
}

type ProfileUpdate struct {
	Name    *string          `json:"name"`
	Company nullable[string] `json:"company"`
	Phone   nullable[string] `json:"phone"`
}

func (s *Service) UpdateMe(ctx context.Context, userID string, in ProfileUpdate) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return validationError("Name cannot be empty")
		}
		user.Name = name
	}
	in.Company.apply(&user.Company)
	in.Phone.apply(&user.Phone)
	_, err = s.store.UpdateUser(ctx, user)
	return err
}

func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	return s.passwords.ChangePassword(ctx, userID, current, next)
}
