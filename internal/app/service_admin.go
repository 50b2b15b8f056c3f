package app

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"nexacrm/api/internal/authpw"
	"nexacrm/api/internal/rbac"
	"nexacrm/api/internal/store"
)

const (
	topUsersLimit        = 10
	recentActivityLimit  = 20
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

type AdminStats struct {
	store.TableCounts
	LeadsPerStatus []StatusCount         `json:"leadsPerStatus"`
	TasksPerUser   []store.UserTaskCount `json:"tasksPerUser"`
	RecentActivity []store.ActivityEntry `json:"recentActivity"`
}

// AdminStats gathers the dashboard numbers with one query per table, run
// concurrently.
func (s *Service) AdminStats(ctx context.Context) (AdminStats, error) {
	names := store.CountNames()
	counts := make([]int, len(names))
	var (
		byStatus []store.CountBucket
		topUsers []store.UserTaskCount
		recent   []store.ActivityEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			count, err := s.store.Count(gctx, name)
			counts[i] = count
			return err
		})
	}
	g.Go(func() (err error) {
		byStatus, err = s.store.LeadCounts(gctx, "", "status")
		return err
	})
	g.Go(func() (err error) {
		topUsers, err = s.store.TopUsersByTaskCount(gctx, topUsersLimit)
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.store.ListActivity(gctx, store.ActivityFilter{Limit: recentActivityLimit})
		return err
	})
	if err := g.Wait(); err != nil {
		return AdminStats{}, err
	}

	var stats AdminStats
	for i, name := range names {
		stats.Set(name, counts[i])
	}
	stats.LeadsPerStatus = make([]StatusCount, 0, len(byStatus))
	for _, bucket := range byStatus {
		stats.LeadsPerStatus = append(stats.LeadsPerStatus, StatusCount{Status: bucket.Key, Count: bucket.Count})
	}
	stats.TasksPerUser = topUsers
	stats.RecentActivity = recent
	if stats.TasksPerUser == nil {
		stats.TasksPerUser = []store.UserTaskCount{}
	}
	if stats.RecentActivity == nil {
		stats.RecentActivity = []store.ActivityEntry{}
	}
	return stats, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]store.UserSummary, error) {
	return s.store.ListUserSummaries(ctx)
}

type AdminUserInput struct {
	Name     *string          `json:"name"`
	Email    *string          `json:"email"`
	Password *string          `json:"password"`
	Role     *string          `json:"role"`
	Company  nullable[string] `json:"company"`
	Phone    nullable[string] `json:"phone"`
}

func (in AdminUserInput) role() (string, error) {
	if in.Role == nil || strings.TrimSpace(*in.Role) == "" {
		return "", nil
	}
	role := strings.TrimSpace(*in.Role)
	if !rbac.Valid(role) {
		return "", validationError(fmt.Sprintf("Invalid role %q", role))
	}
	return role, nil
}

// CreateUser adds an account on behalf of an admin. The owner address is
// always created as the owner admin.
func (s *Service) CreateUser(ctx context.Context, current Session, in AdminUserInput) (store.User, error) {
	role, err := in.role()
	if err != nil {
		return store.User{}, err
	}
	user, err := s.passwords.Register(ctx, authpw.RegisterRequest{
		Name:     stringValue(in.Name),
		Email:    stringValue(in.Email),
		Password: stringValue(in.Password),
		Company:  in.Company.Value,
		Phone:    in.Phone.Value,
		Role:     role,
	})
	if err != nil {
		return store.User{}, err
	}
	s.logActivity(ctx, current.UserID, "created_user", "user", user.ID, "Created user: "+user.Email)
	s.sendWelcome(user, current.Name)
	return user, nil
}

func (s *Service) sendWelcome(user store.User, createdBy string) {
	if s.mailer == nil || !s.mailer.IsConfigured() {
		return
	}
	go func() {
		if err := s.mailer.SendWelcome(user.Email, user.Name, user.Role, createdBy); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("welcome e-mail failed")
		}
	}()
}

func subjectOf(user store.User) rbac.Subject {
	return rbac.Subject{ID: user.ID, Email: user.Email, Role: user.Role, IsOwner: user.IsOwner}
}

func (s *Service) targetUser(ctx context.Context, userID string) (store.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if isNotFound(err) {
		return store.User{}, notFoundError("User not found")
	}
	return user, err
}

// UpdateUser applies an admin edit. Owner-protected accounts can only be
// edited by themselves and never change role.
func (s *Service) UpdateUser(ctx context.Context, current Session, userID string, in AdminUserInput) error {
	target, err := s.targetUser(ctx, userID)
	if err != nil {
		return err
	}
	role, err := in.role()
	if err != nil {
		return err
	}
	subject := subjectOf(target)
	if err := rbac.CheckUpdate(current.UserID, subject, s.passwords.OwnerEmail(), role); err != nil {
		return err
	}

	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		target.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil && strings.TrimSpace(*in.Email) != "" {
		email := authpw.NormalizeEmail(*in.Email)
		if email != target.Email {
			taken, err := s.store.EmailTaken(ctx, email, target.ID)
			if err != nil {
				return err
			}
			if taken {
				return conflictError("Email already registered")
			}
			target.Email = email
		}
	}
	in.Company.apply(&target.Company)
	in.Phone.apply(&target.Phone)
	target.Role = rbac.ResolveRole(subject, s.passwords.OwnerEmail(), role)

	var hash string
	if in.Password != nil && *in.Password != "" {
		if len(*in.Password) < authpw.MinPasswordLength {
			return authpw.ErrPasswordTooShort
		}
		if hash, err = s.passwords.HashPassword(*in.Password); err != nil {
			return err
		}
	}

	if _, err := s.store.UpdateUser(ctx, target); err != nil {
		if isNotFound(err) {
			return notFoundError("User not found")
		}
		return err
	}
	if hash != "" {
		if err := s.store.UpdateUserPassword(ctx, target.ID, hash); err != nil {
			return err
		}
	}
	s.logActivity(ctx, current.UserID, "updated_user", "user", target.ID, "Updated user: "+target.Email)
	return nil
}

func (s *Service) DeleteUser(ctx context.Context, current Session, userID string) error {
	if userID == current.UserID {
		return rbac.ErrSelfDelete
	}
	target, err := s.targetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := rbac.CheckDelete(current.UserID, subjectOf(target), s.passwords.OwnerEmail()); err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		if isNotFound(err) {
			return notFoundError("User not found")
		}
		return err
	}
	s.logActivity(ctx, current.UserID, "deleted_user", "user", userID, "Deleted user: "+target.Email)
	return nil
}

type ActivityParams struct {
	UserID string
	Limit  int
	Offset int
}

func (s *Service) ListActivity(ctx context.Context, params ActivityParams) ([]store.ActivityEntry, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	limit = min(limit, maxActivityLimit)
	return s.store.ListActivity(ctx, store.ActivityFilter{
		UserID: strings.TrimSpace(params.UserID),
		Limit:  limit,
		Offset: max(params.Offset, 0),
	})
}
