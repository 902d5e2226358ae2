package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/and161185/makerhub/internal/errs"
	"github.com/and161185/makerhub/internal/model"
	"github.com/and161185/makerhub/internal/repository"
)

// Listing bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	MaxPage         = 100_000
)

// pageBounds defaults page/size to 1/DefaultPageSize and rejects values past the bounds.
func pageBounds(page, size *int) error {
	if *page <= 0 {
		*page = 1
	}
	if *size <= 0 {
		*size = DefaultPageSize
	}
	if *size > MaxPageSize {
		return fmt.Errorf("%w: size must be at most %d", errs.ErrValidation, MaxPageSize)
	}
	if *page > MaxPage {
		return fmt.Errorf("%w: page must be at most %d", errs.ErrValidation, MaxPage)
	}
	return nil
}

// Entry statuses. Only published entries are visible to non-admins.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusNew       = "new" // contact submissions
)

// KindPolicy is the access policy of one content kind. Admins may do anything.
type KindPolicy struct {
	PublicRead   bool
	PublicCreate bool
}

var kindPolicies = map[string]KindPolicy{
	"communities":  {PublicRead: true},
	"projects":     {PublicRead: true},
	"events":       {PublicRead: true},
	"blog":         {PublicRead: true},
	"store":        {PublicRead: true},
	"gallery":      {PublicRead: true},
	"partners":     {PublicRead: true},
	"team-members": {PublicRead: true},
	"contact":      {PublicCreate: true},
}

// Kinds returns the known content kinds, sorted.
func Kinds() []string {
	out := make([]string, 0, len(kindPolicies))
	for k := range kindPolicies {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// EntryService defines content operations. A nil caller is an anonymous request.
type EntryService interface {
	List(ctx context.Context, caller *Principal, f model.EntryFilter) (model.Page[model.Entry], error)
	Get(ctx context.Context, caller *Principal, kind string, id uuid.UUID) (*model.Entry, error)
	GetBySlug(ctx context.Context, caller *Principal, kind, slug string) (*model.Entry, error)
	Create(ctx context.Context, caller *Principal, kind string, in model.EntryInput) (*model.Entry, error)
	Update(ctx context.Context, caller *Principal, kind string, id uuid.UUID, in model.EntryInput) (*model.Entry, error)
	Delete(ctx context.Context, caller *Principal, kind string, id uuid.UUID, baseVer int64) (int64, error)
}

type EntryServiceImpl struct {
	repo repository.EntryRepository
}

// NewEntryService constructs EntryService.
func NewEntryService(repo repository.EntryRepository) *EntryServiceImpl {
	return &EntryServiceImpl{repo: repo}
}

func isAdmin(p *Principal) bool { return p != nil && p.IsAdmin() }

func (s *EntryServiceImpl) canRead(caller *Principal, kind string) error {
	pol, ok := kindPolicies[kind]
	if !ok {
		return fmt.Errorf("unknown kind %q: %w", kind, errs.ErrNotFound)
	}
	if pol.PublicRead || isAdmin(caller) {
		return nil
	}
	if caller == nil {
		return errs.ErrUnauthorized
	}
	return errs.ErrForbidden
}

func (s *EntryServiceImpl) canCreate(caller *Principal, kind string) error {
	pol, ok := kindPolicies[kind]
	if !ok {
		return fmt.Errorf("unknown kind %q: %w", kind, errs.ErrNotFound)
	}
	if pol.PublicCreate {
		return nil
	}
	return s.canModify(caller, kind)
}

func (s *EntryServiceImpl) canModify(caller *Principal, kind string) error {
	if _, ok := kindPolicies[kind]; !ok {
		return fmt.Errorf("unknown kind %q: %w", kind, errs.ErrNotFound)
	}
	switch {
	case caller == nil:
		return errs.ErrUnauthorized
	case !caller.IsAdmin():
		return errs.ErrForbidden
	}
	return nil
}

// List returns one page. Page/size default to 1/DefaultPageSize; values past MaxPage or MaxPageSize are rejected.
func (s *EntryServiceImpl) List(ctx context.Context, caller *Principal, f model.EntryFilter) (model.Page[model.Entry], error) {
	if err := s.canRead(caller, f.Kind); err != nil {
		return model.Page[model.Entry]{}, err
	}
	if err := pageBounds(&f.Page, &f.Size); err != nil {
		return model.Page[model.Entry]{}, err
	}
	if !isAdmin(caller) {
		f.Status = StatusPublished
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return model.Page[model.Entry]{}, err
	}
	return model.NewPage(items, total, f.Page, f.Size), nil
}

// Get returns one visible entry.
func (s *EntryServiceImpl) Get(ctx context.Context, caller *Principal, kind string, id uuid.UUID) (*model.Entry, error) {
	if err := s.canRead(caller, kind); err != nil {
		return nil, err
	}
	e, err := s.repo.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return visible(caller, e)
}

// GetBySlug returns one visible entry by slug.
func (s *EntryServiceImpl) GetBySlug(ctx context.Context, caller *Principal, kind, slug string) (*model.Entry, error) {
	if err := s.canRead(caller, kind); err != nil {
		return nil, err
	}
	e, err := s.repo.GetBySlug(ctx, kind, slug)
	if err != nil {
		return nil, err
	}
	return visible(caller, e)
}

func visible(caller *Principal, e *model.Entry) (*model.Entry, error) {
	if e.Status != StatusPublished && !isAdmin(caller) {
		return nil, errs.ErrNotFound
	}
	return e, nil
}

// Create validates input and stores a new entry at version 1.
func (s *EntryServiceImpl) Create(ctx context.Context, caller *Principal, kind string, in model.EntryInput) (*model.Entry, error) {
	if err := s.canCreate(caller, kind); err != nil {
		return nil, err
	}
	e, err := buildEntry(kind, in)
	if err != nil {
		return nil, err
	}
	if e.Status == "" {
		e.Status = StatusPublished
		if kind == "contact" {
			e.Status = StatusNew
		}
	}
	if !isAdmin(caller) {
		// public submissions cannot choose their own visibility
		e.Status, e.Featured = StatusNew, false
	}
	if e.ID, err = uuid.NewV4(); err != nil {
		return nil, err
	}
	if caller != nil {
		uid := caller.UserID
		e.CreatedBy = &uid
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Update replaces an entry's fields. in.BaseVer must equal the stored version.
func (s *EntryServiceImpl) Update(ctx context.Context, caller *Principal, kind string, id uuid.UUID, in model.EntryInput) (*model.Entry, error) {
	if err := s.canModify(caller, kind); err != nil {
		return nil, err
	}
	if in.BaseVer <= 0 {
		return nil, fmt.Errorf("%w: base_ver is required", errs.ErrValidation)
	}
	e, err := buildEntry(kind, in)
	if err != nil {
		return nil, err
	}
	if e.Status == "" {
		e.Status = StatusPublished
	}
	e.ID = id
	if _, err := s.repo.Update(ctx, e, in.BaseVer); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, kind, id)
}

// Delete tombstones an entry. baseVer 0 deletes unconditionally.
func (s *EntryServiceImpl) Delete(ctx context.Context, caller *Principal, kind string, id uuid.UUID, baseVer int64) (int64, error) {
	if err := s.canModify(caller, kind); err != nil {
		return 0, err
	}
	if baseVer < 0 {
		return 0, fmt.Errorf("%w: negative base_ver", errs.ErrValidation)
	}
	return s.repo.Delete(ctx, kind, id, baseVer)
}

func buildEntry(kind string, in model.EntryInput) (*model.Entry, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", errs.ErrValidation)
	}
	slug := in.Slug
	if slug == "" {
		slug = Slugify(title)
	}
	if !slugRe.MatchString(slug) {
		return nil, fmt.Errorf("%w: invalid slug %q", errs.ErrValidation, slug)
	}
	data := bytes.TrimSpace(in.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}
	if data[0] != '{' || !json.Valid(data) {
		return nil, fmt.Errorf("%w: data must be a JSON object", errs.ErrValidation)
	}
	return &model.Entry{
		Kind:     kind,
		Slug:     slug,
		Title:    title,
		Status:   in.Status,
		Featured: in.Featured,
		Data:     json.RawMessage(data),
	}, nil
}

// Slugify lowercases s, drops diacritics and joins alphanumeric runs with '-'.
func Slugify(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if t, _, err := transform.String(stripMarks, s); err == nil {
		s = t
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
