package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/makerhub/internal/errs"
	"github.com/and161185/makerhub/internal/model"
	"github.com/and161185/makerhub/internal/repository"
)

// Registration statuses.
const (
	RegistrationConfirmed = "confirmed"
	RegistrationCancelled = "cancelled"
	RegistrationAttended  = "attended"
)

// RegistrationService defines event sign-ups. Register is public, the rest admin-only.
type RegistrationService interface {
	Register(ctx context.Context, caller *Principal, eventID uuid.UUID, in model.RegistrationInput) (*model.Registration, error)
	List(ctx context.Context, caller *Principal, f model.RegistrationFilter) (model.Page[model.Registration], error)
	SetStatus(ctx context.Context, caller *Principal, id uuid.UUID, status string) error
	Delete(ctx context.Context, caller *Principal, id uuid.UUID) error
}

type RegistrationServiceImpl struct {
	repo repository.RegistrationRepository
	log  *zap.Logger
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(repo repository.RegistrationRepository, log *zap.Logger) *RegistrationServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationServiceImpl{repo: repo, log: log}
}

// eventTerms are the event data fields that gate registration.
type eventTerms struct {
	Status       string `json:"status"`
	MaxAttendees int    `json:"max_attendees"`
}

// admit accepts sign-ups for visible events that are neither over nor cancelled and still have room.
func admit(caller *Principal) repository.AdmitFunc {
	return func(ev *model.Entry, confirmed int) error {
		if _, err := visible(caller, ev); err != nil {
			return err
		}
		var terms eventTerms
		if len(ev.Data) > 0 {
			// kind data is free-form; unreadable terms impose no limits
			_ = json.Unmarshal(ev.Data, &terms)
		}
		switch terms.Status {
		case "cancelled", "completed":
			return fmt.Errorf("%w: event is not available for registration", errs.ErrValidation)
		}
		if terms.MaxAttendees > 0 && confirmed >= terms.MaxAttendees {
			return fmt.Errorf("%w: event is full", errs.ErrValidation)
		}
		return nil
	}
}

// Register signs someone up for an event. The same email may register once per event.
func (s *RegistrationServiceImpl) Register(ctx context.Context, caller *Principal, eventID uuid.UUID, in model.RegistrationInput) (*model.Registration, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", errs.ErrValidation)
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	reg := &model.Registration{
		ID:                  id,
		EventID:             eventID,
		Name:                name,
		Email:               in.Email,
		Phone:               in.Phone,
		Organization:        in.Organization,
		ExperienceLevel:     in.ExperienceLevel,
		Interests:           in.Interests,
		DietaryRestrictions: in.DietaryRestrictions,
		SpecialRequirements: in.SpecialRequirements,
		Status:              RegistrationConfirmed,
	}
	if err := s.repo.Create(ctx, reg, admit(caller)); err != nil {
		return nil, err
	}
	s.log.Info("event registration", zap.Stringer("event_id", eventID), zap.Stringer("registration_id", id))
	return reg, nil
}

// List returns one page of registrations.
func (s *RegistrationServiceImpl) List(ctx context.Context, caller *Principal, f model.RegistrationFilter) (model.Page[model.Registration], error) {
	if err := adminOnly(caller); err != nil {
		return model.Page[model.Registration]{}, err
	}
	if err := pageBounds(&f.Page, &f.Size); err != nil {
		return model.Page[model.Registration]{}, err
	}
	if f.Status != "" && !validRegistrationStatus(f.Status) {
		return model.Page[model.Registration]{}, fmt.Errorf("%w: unknown status %q", errs.ErrValidation, f.Status)
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return model.Page[model.Registration]{}, err
	}
	return model.NewPage(items, total, f.Page, f.Size), nil
}

// SetStatus moves a registration to confirmed, cancelled or attended.
func (s *RegistrationServiceImpl) SetStatus(ctx context.Context, caller *Principal, id uuid.UUID, status string) error {
	if err := adminOnly(caller); err != nil {
		return err
	}
	if !validRegistrationStatus(status) {
		return fmt.Errorf("%w: status must be one of %s, %s, %s", errs.ErrValidation,
			RegistrationConfirmed, RegistrationCancelled, RegistrationAttended)
	}
	return s.repo.SetStatus(ctx, id, status)
}

// Delete removes a registration.
func (s *RegistrationServiceImpl) Delete(ctx context.Context, caller *Principal, id uuid.UUID) error {
	if err := adminOnly(caller); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// adminOnly distinguishes anonymous callers (401) from non-admins (403).
func adminOnly(caller *Principal) error {
	if caller == nil {
		return errs.ErrUnauthorized
	}
	return requireAdmin(*caller)
}

func validRegistrationStatus(s string) bool {
	switch s {
	case RegistrationConfirmed, RegistrationCancelled, RegistrationAttended:
		return true
	}
	return false
}
