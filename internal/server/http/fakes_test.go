package httpserver

import (
	"context"
	"io"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/makerhub/internal/errs"
	"github.com/and161185/makerhub/internal/model"
	"github.com/and161185/makerhub/internal/service"
)

var (
	userID  = uuid.Must(uuid.FromString("7f0c7e1e-4e57-4a55-9a43-6f2b0f1f2a11"))
	adminID = uuid.Must(uuid.FromString("3d4c1c1b-3b9c-4c7c-8c3e-2a7a0d8a9b22"))
)

// fakeAuth accepts "user-token" and "admin-token".
type fakeAuth struct {
	mu        sync.Mutex
	loginErr  error
	lastLogin [3]string
	lastRT    string
	refreshOK string
	users     map[uuid.UUID]*model.User
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		refreshOK: "r1",
		users: map[uuid.UUID]*model.User{
			userID:  {ID: userID, Username: "alice", Email: "alice@example.com", Role: model.RoleUser, IsActive: true},
			adminID: {ID: adminID, Username: "root", Email: "root@example.com", Role: model.RoleAdmin, IsActive: true},
		},
	}
}

var testPair = model.TokenPair{AccessToken: "a2", RefreshToken: "r2", TokenType: "bearer", ExpiresIn: 1800}

func (f *fakeAuth) Register(_ context.Context, in service.RegisterInput) (*model.User, error) {
	if in.Username == "alice" {
		return nil, errs.ErrAlreadyExists
	}
	return &model.User{ID: uuid.Must(uuid.NewV4()), Username: in.Username, Role: model.RoleUser}, nil
}

func (f *fakeAuth) AdminCreateUser(_ context.Context, caller service.Principal, in service.RegisterInput) (*model.User, error) {
	if !caller.IsAdmin() {
		return nil, errs.ErrForbidden
	}
	return &model.User{ID: uuid.Must(uuid.NewV4()), Username: in.Username, Role: in.Role}, nil
}

func (f *fakeAuth) Login(_ context.Context, username, password, client string) (model.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLogin = [3]string{username, password, client}
	if f.loginErr != nil {
		return model.TokenPair{}, f.loginErr
	}
	return testPair, nil
}

func (f *fakeAuth) Refresh(_ context.Context, rt string) (model.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRT = rt
	if rt != f.refreshOK {
		return model.TokenPair{}, errs.ErrUnauthorized
	}
	return testPair, nil
}

func (f *fakeAuth) Logout(_ context.Context, rt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRT = rt
	return nil
}

func (f *fakeAuth) Authenticate(token string) (service.Principal, error) {
	switch token {
	case "user-token":
		return service.Principal{UserID: userID, Role: model.RoleUser}, nil
	case "admin-token":
		return service.Principal{UserID: adminID, Role: model.RoleAdmin}, nil
	}
	return service.Principal{}, errs.ErrUnauthorized
}

func (f *fakeAuth) Me(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return u, nil
}

func (f *fakeAuth) UpdateMe(ctx context.Context, id uuid.UUID, upd service.ProfileUpdate) (*model.User, error) {
	u, err := f.Me(ctx, id)
	if err != nil {
		return nil, err
	}
	cp := *u
	if upd.FullName != nil {
		cp.FullName = *upd.FullName
	}
	return &cp, nil
}

// fakeEntries records the last call and returns canned results.
type fakeEntries struct {
	mu         sync.Mutex
	lastFilter model.EntryFilter
	lastCaller *service.Principal
	lastKind   string
	lastInput  model.EntryInput
	lastVer    int64
	entry      *model.Entry
	err        error
}

func (f *fakeEntries) record(caller *service.Principal, kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCaller, f.lastKind = caller, kind
}

func (f *fakeEntries) List(_ context.Context, caller *service.Principal, fl model.EntryFilter) (model.Page[model.Entry], error) {
	f.record(caller, fl.Kind)
	f.lastFilter = fl
	if f.err != nil {
		return model.Page[model.Entry]{}, f.err
	}
	var items []model.Entry
	if f.entry != nil {
		items = append(items, *f.entry)
	}
	return model.NewPage(items, len(items), 1, 10), nil
}

func (f *fakeEntries) Get(_ context.Context, caller *service.Principal, kind string, id uuid.UUID) (*model.Entry, error) {
	f.record(caller, kind)
	if f.err != nil {
		return nil, f.err
	}
	if f.entry == nil || f.entry.ID != id {
		return nil, errs.ErrNotFound
	}
	return f.entry, nil
}

func (f *fakeEntries) GetBySlug(_ context.Context, caller *service.Principal, kind, slug string) (*model.Entry, error) {
	f.record(caller, kind)
	if f.entry == nil || f.entry.Slug != slug {
		return nil, errs.ErrNotFound
	}
	return f.entry, nil
}

func (f *fakeEntries) Create(_ context.Context, caller *service.Principal, kind string, in model.EntryInput) (*model.Entry, error) {
	f.record(caller, kind)
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.Entry{ID: uuid.Must(uuid.NewV4()), Kind: kind, Title: in.Title, Slug: in.Slug, Ver: 1}, nil
}

func (f *fakeEntries) Update(_ context.Context, caller *service.Principal, kind string, id uuid.UUID, in model.EntryInput) (*model.Entry, error) {
	f.record(caller, kind)
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.Entry{ID: id, Kind: kind, Title: in.Title, Ver: in.BaseVer + 1}, nil
}

func (f *fakeEntries) Delete(_ context.Context, caller *service.Principal, kind string, _ uuid.UUID, baseVer int64) (int64, error) {
	f.record(caller, kind)
	f.lastVer = baseVer
	if f.err != nil {
		return 0, f.err
	}
	return baseVer + 1, nil
}

type fakeUploads struct {
	max      int64
	name     string
	category string
	content  []byte
}

func (f *fakeUploads) MaxSize() int64 { return f.max }

func (f *fakeUploads) Save(_ context.Context, caller *service.Principal, category, name string, r io.Reader) (*model.Upload, error) {
	if caller == nil {
		return nil, errs.ErrUnauthorized
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.name, f.category, f.content = name, category, b
	return &model.Upload{Filename: "x.png", URL: "/uploads/images/x.png", Category: category, OriginalName: name, Size: int64(len(b))}, nil
}

// fakeUserAdmin serves the accounts held by fakeAuth.
type fakeUserAdmin struct {
	auth       *fakeAuth
	lastFilter model.UserFilter
	lastRole   string
	lastActive *bool
}

func (f *fakeUserAdmin) List(_ context.Context, caller service.Principal, fl model.UserFilter) (model.Page[model.User], error) {
	if !caller.IsAdmin() {
		return model.Page[model.User]{}, errs.ErrForbidden
	}
	f.lastFilter = fl
	users := []model.User{*f.auth.users[adminID], *f.auth.users[userID]}
	return model.NewPage(users, len(users), 1, 10), nil
}

func (f *fakeUserAdmin) Get(ctx context.Context, caller service.Principal, id uuid.UUID) (*model.User, error) {
	if !caller.IsAdmin() && caller.UserID != id {
		return nil, errs.ErrForbidden
	}
	return f.auth.Me(ctx, id)
}

func (f *fakeUserAdmin) Update(ctx context.Context, caller service.Principal, id uuid.UUID, upd service.ProfileUpdate) (*model.User, error) {
	if !caller.IsAdmin() {
		return nil, errs.ErrForbidden
	}
	return f.auth.UpdateMe(ctx, id, upd)
}

func (f *fakeUserAdmin) SetRole(_ context.Context, caller service.Principal, id uuid.UUID, role string) error {
	if !caller.IsAdmin() {
		return errs.ErrForbidden
	}
	if role != model.RoleUser && role != model.RoleAdmin {
		return errs.ErrValidation
	}
	if _, ok := f.auth.users[id]; !ok {
		return errs.ErrNotFound
	}
	f.lastRole = role
	return nil
}

func (f *fakeUserAdmin) SetActive(_ context.Context, caller service.Principal, id uuid.UUID, active bool) error {
	if !caller.IsAdmin() {
		return errs.ErrForbidden
	}
	if _, ok := f.auth.users[id]; !ok {
		return errs.ErrNotFound
	}
	f.lastActive = &active
	return nil
}

func (f *fakeUserAdmin) Delete(_ context.Context, caller service.Principal, id uuid.UUID) error {
	if !caller.IsAdmin() {
		return errs.ErrForbidden
	}
	if caller.UserID == id {
		return errs.ErrValidation
	}
	if _, ok := f.auth.users[id]; !ok {
		return errs.ErrNotFound
	}
	return nil
}

// fakeRegistrations records the last call.
type fakeRegistrations struct {
	lastCaller *service.Principal
	lastEvent  uuid.UUID
	lastInput  model.RegistrationInput
	lastFilter model.RegistrationFilter
	lastStatus string
	err        error
}

func (f *fakeRegistrations) Register(_ context.Context, caller *service.Principal, eventID uuid.UUID, in model.RegistrationInput) (*model.Registration, error) {
	f.lastCaller, f.lastEvent, f.lastInput = caller, eventID, in
	if f.err != nil {
		return nil, f.err
	}
	return &model.Registration{ID: uuid.Must(uuid.NewV4()), EventID: eventID, Name: in.Name, Email: in.Email, Status: service.RegistrationConfirmed}, nil
}

func (f *fakeRegistrations) List(_ context.Context, caller *service.Principal, fl model.RegistrationFilter) (model.Page[model.Registration], error) {
	f.lastCaller, f.lastFilter = caller, fl
	if caller == nil {
		return model.Page[model.Registration]{}, errs.ErrUnauthorized
	}
	if !caller.IsAdmin() {
		return model.Page[model.Registration]{}, errs.ErrForbidden
	}
	return model.NewPage([]model.Registration{{Name: "Ada", Status: service.RegistrationConfirmed}}, 1, 1, 10), nil
}

func (f *fakeRegistrations) SetStatus(_ context.Context, caller *service.Principal, _ uuid.UUID, status string) error {
	f.lastCaller, f.lastStatus = caller, status
	if caller == nil || !caller.IsAdmin() {
		return errs.ErrForbidden
	}
	return f.err
}

func (f *fakeRegistrations) Delete(_ context.Context, caller *service.Principal, _ uuid.UUID) error {
	f.lastCaller = caller
	if caller == nil || !caller.IsAdmin() {
		return errs.ErrForbidden
	}
	return f.err
}
