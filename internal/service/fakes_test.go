package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/makerhub/internal/errs"
	"github.com/and161185/makerhub/internal/limiter"
	"github.com/and161185/makerhub/internal/model"
	"github.com/and161185/makerhub/internal/repository"
)

type fakeUsers struct {
	mu     sync.Mutex
	byName map[string]*model.User

	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.byName == nil {
		f.byName = map[string]*model.User{}
	}
	for _, ex := range f.byName {
		if ex.Username == u.Username || ex.Email == u.Email {
			return errs.ErrAlreadyExists
		}
	}
	cpy := *u
	f.byName[u.Username] = &cpy
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byName {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, ex := range f.byName {
		if ex.ID == u.ID {
			cpy := *u
			f.byName[name] = &cpy
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeUsers) List(_ context.Context, flt model.UserFilter) ([]model.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, u := range f.byName {
		if flt.Role == "" || u.Role == flt.Role {
			out = append(out, *u)
		}
	}
	return out, len(out), nil
}

func (f *fakeUsers) update(id uuid.UUID, fn func(*model.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byName {
		if u.ID == id {
			fn(u)
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeUsers) SetRole(_ context.Context, id uuid.UUID, role string) error {
	return f.update(id, func(u *model.User) { u.Role = role })
}

func (f *fakeUsers) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	return f.update(id, func(u *model.User) { u.IsActive = active })
}

func (f *fakeUsers) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, u := range f.byName {
		if u.ID == id {
			delete(f.byName, name)
			return nil
		}
	}
	return errs.ErrNotFound
}

type fakeTokens struct {
	mu   sync.Mutex
	recs map[string]*model.RefreshToken

	createErr error
}

var _ repository.TokenRepository = (*fakeTokens)(nil)

func (f *fakeTokens) Create(_ context.Context, t *model.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.recs == nil {
		f.recs = map[string]*model.RefreshToken{}
	}
	cpy := *t
	f.recs[t.Hash] = &cpy
	return nil
}

func (f *fakeTokens) Consume(_ context.Context, hash string, now time.Time) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[hash]
	if !ok || rec.Revoked || !rec.ExpiresAt.After(now) {
		return uuid.Nil, errs.ErrNotFound
	}
	rec.Revoked = true
	return rec.UserID, nil
}

func (f *fakeTokens) Revoke(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.recs[hash]; ok {
		rec.Revoked = true
	}
	return nil
}

type fakeLimiter struct {
	allowWait time.Duration
	allowErr  error

	failBlock time.Duration
	failErr   error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (time.Duration, error) {
	l.allowCalls++
	return l.allowWait, l.allowErr
}

func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}

func (l *fakeLimiter) Failure(context.Context, string, []byte) (time.Duration, error) {
	l.failureCalls++
	return l.failBlock, l.failErr
}

type fakeEntries struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.Entry

	lastFilter model.EntryFilter
	listErr    error
}

var _ repository.EntryRepository = (*fakeEntries)(nil)

func newFakeEntries() *fakeEntries { return &fakeEntries{byID: map[uuid.UUID]*model.Entry{}} }

func (f *fakeEntries) Create(_ context.Context, e *model.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ex := range f.byID {
		if ex.Kind == e.Kind && ex.Slug == e.Slug {
			return errs.ErrAlreadyExists
		}
	}
	e.Ver = 1
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cpy := *e
	f.byID[e.ID] = &cpy
	return nil
}

func (f *fakeEntries) Update(_ context.Context, e *model.Entry, baseVer int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[e.ID]
	if !ok || cur.Kind != e.Kind {
		return 0, errs.ErrNotFound
	}
	if cur.Ver != baseVer {
		return 0, errs.ErrVersionConflict
	}
	cpy := *e
	cpy.Ver = cur.Ver + 1
	cpy.CreatedAt, cpy.CreatedBy = cur.CreatedAt, cur.CreatedBy
	f.byID[e.ID] = &cpy
	return cpy.Ver, nil
}

func (f *fakeEntries) Delete(_ context.Context, kind string, id uuid.UUID, baseVer int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[id]
	if !ok || cur.Kind != kind {
		return 0, errs.ErrNotFound
	}
	if baseVer != 0 && cur.Ver != baseVer {
		return 0, errs.ErrVersionConflict
	}
	delete(f.byID, id)
	return cur.Ver + 1, nil
}

func (f *fakeEntries) Get(_ context.Context, kind string, id uuid.UUID) (*model.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok || e.Kind != kind {
		return nil, errs.ErrNotFound
	}
	c := *e
	return &c, nil
}

func (f *fakeEntries) GetBySlug(_ context.Context, kind, slug string) (*model.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.byID {
		if e.Kind == kind && e.Slug == slug {
			c := *e
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeEntries) List(_ context.Context, flt model.EntryFilter) ([]model.Entry, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = flt
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	var out []model.Entry
	for _, e := range f.byID {
		if e.Kind == flt.Kind && (flt.Status == "" || e.Status == flt.Status) {
			out = append(out, *e)
		}
	}
	return out, len(out), nil
}

// fakeRegistrations admits against events held in memory.
type fakeRegistrations struct {
	mu     sync.Mutex
	events map[uuid.UUID]*model.Entry
	regs   map[uuid.UUID]*model.Registration

	lastFilter model.RegistrationFilter
}

var _ repository.RegistrationRepository = (*fakeRegistrations)(nil)

func newFakeRegistrations(events ...*model.Entry) *fakeRegistrations {
	f := &fakeRegistrations{events: map[uuid.UUID]*model.Entry{}, regs: map[uuid.UUID]*model.Registration{}}
	for _, e := range events {
		f.events[e.ID] = e
	}
	return f
}

func (f *fakeRegistrations) Create(_ context.Context, r *model.Registration, admit repository.AdmitFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[r.EventID]
	if !ok {
		return errs.ErrNotFound
	}
	confirmed := 0
	for _, ex := range f.regs {
		if ex.EventID != r.EventID {
			continue
		}
		if ex.Status == RegistrationConfirmed {
			confirmed++
		}
	}
	if err := admit(ev, confirmed); err != nil {
		return err
	}
	for _, ex := range f.regs {
		if ex.EventID == r.EventID && strings.EqualFold(ex.Email, r.Email) {
			return errs.ErrAlreadyExists
		}
	}
	r.CreatedAt = time.Now()
	cpy := *r
	f.regs[r.ID] = &cpy
	return nil
}

func (f *fakeRegistrations) List(_ context.Context, flt model.RegistrationFilter) ([]model.Registration, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = flt
	var out []model.Registration
	for _, r := range f.regs {
		if flt.EventID != nil && r.EventID != *flt.EventID {
			continue
		}
		if flt.Status != "" && r.Status != flt.Status {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (f *fakeRegistrations) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[id]
	if !ok {
		return errs.ErrNotFound
	}
	r.Status = status
	return nil
}

func (f *fakeRegistrations) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.regs[id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.regs, id)
	return nil
}
