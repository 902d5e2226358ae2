package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/makerhub/internal/errs"
	"github.com/and161185/makerhub/internal/model"
	"github.com/and161185/makerhub/internal/repository"
)

// UserService defines account administration. Every method except Get is admin-only.
type UserService interface {
	List(ctx context.Context, caller Principal, f model.UserFilter) (model.Page[model.User], error)
	// Get returns any account to admins and the caller's own account to everyone else.
	Get(ctx context.Context, caller Principal, id uuid.UUID) (*model.User, error)
	Update(ctx context.Context, caller Principal, id uuid.UUID, upd ProfileUpdate) (*model.User, error)
	SetRole(ctx context.Context, caller Principal, id uuid.UUID, role string) error
	SetActive(ctx context.Context, caller Principal, id uuid.UUID, active bool) error
	Delete(ctx context.Context, caller Principal, id uuid.UUID) error
}

type UserServiceImpl struct {
	users repository.UserRepository
	log   *zap.Logger
}

// NewUserService constructs UserService.
func NewUserService(users repository.UserRepository, log *zap.Logger) *UserServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserServiceImpl{users: users, log: log}
}

func requireAdmin(caller Principal) error {
	if !caller.IsAdmin() {
		return errs.ErrForbidden
	}
	return nil
}

// List returns one page of accounts.
func (s *UserServiceImpl) List(ctx context.Context, caller Principal, f model.UserFilter) (model.Page[model.User], error) {
	if err := requireAdmin(caller); err != nil {
		return model.Page[model.User]{}, err
	}
	if err := pageBounds(&f.Page, &f.Size); err != nil {
		return model.Page[model.User]{}, err
	}
	if f.Role != "" && !validRole(f.Role) {
		return model.Page[model.User]{}, fmt.Errorf("%w: unknown role %q", errs.ErrValidation, f.Role)
	}
	items, total, err := s.users.List(ctx, f)
	if err != nil {
		return model.Page[model.User]{}, err
	}
	return model.NewPage(items, total, f.Page, f.Size), nil
}

// Get loads one account.
func (s *UserServiceImpl) Get(ctx context.Context, caller Principal, id uuid.UUID) (*model.User, error) {
	if !caller.IsAdmin() && caller.UserID != id {
		return nil, errs.ErrForbidden
	}
	return s.users.GetByID(ctx, id)
}

// Update applies a partial profile change to any account.
func (s *UserServiceImpl) Update(ctx context.Context, caller Principal, id uuid.UUID, upd ProfileUpdate) (*model.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return applyProfile(ctx, s.users, id, upd)
}

// SetRole changes the role of another account.
func (s *UserServiceImpl) SetRole(ctx context.Context, caller Principal, id uuid.UUID, role string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if !validRole(role) {
		return fmt.Errorf("%w: unknown role %q", errs.ErrValidation, role)
	}
	if caller.UserID == id {
		return fmt.Errorf("%w: cannot change your own role", errs.ErrValidation)
	}
	if err := s.users.SetRole(ctx, id, role); err != nil {
		return err
	}
	s.log.Info("user role changed", zap.Stringer("user_id", id), zap.String("role", role), zap.Stringer("by", caller.UserID))
	return nil
}

// SetActive enables or disables sign-in. A disabled account can neither log in nor refresh.
func (s *UserServiceImpl) SetActive(ctx context.Context, caller Principal, id uuid.UUID, active bool) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if caller.UserID == id && !active {
		return fmt.Errorf("%w: cannot deactivate your own account", errs.ErrValidation)
	}
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.log.Info("user status changed", zap.Stringer("user_id", id), zap.Bool("active", active), zap.Stringer("by", caller.UserID))
	return nil
}

// Delete removes another account.
func (s *UserServiceImpl) Delete(ctx context.Context, caller Principal, id uuid.UUID) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if caller.UserID == id {
		return fmt.Errorf("%w: cannot delete your own account", errs.ErrValidation)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("user deleted", zap.Stringer("user_id", id), zap.Stringer("by", caller.UserID))
	return nil
}

func validRole(role string) bool { return role == model.RoleUser || role == model.RoleAdmin }
