package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/makerhub/internal/errs"
	"github.com/and161185/makerhub/internal/model"
)

var (
	admin  = &Principal{UserID: uuid.Must(uuid.NewV4()), Role: model.RoleAdmin}
	member = &Principal{UserID: uuid.Must(uuid.NewV4()), Role: model.RoleUser}
)

func TestKinds(t *testing.T) {
	kinds := Kinds()
	require.Contains(t, kinds, "blog")
	require.Contains(t, kinds, "team-members")
	require.Len(t, kinds, 9)
	require.IsIncreasing(t, kinds)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello, World!":           "hello-world",
		"  Open Night 2025  ":     "open-night-2025",
		"Café Électronique":       "cafe-electronique",
		"--Robots & Lasers--":     "robots-lasers",
		"3D printing: the basics": "3d-printing-the-basics",
	}
	for in, want := range cases {
		require.Equal(t, want, Slugify(in), in)
	}
}

func TestEntries_Create_DerivesSlugAndDefaults(t *testing.T) {
	repo := newFakeEntries()
	s := NewEntryService(repo)

	e, err := s.Create(context.Background(), admin, "blog", model.EntryInput{Title: "First Post", Data: json.RawMessage(`{"body":"hi"}`)})
	require.NoError(t, err)
	require.Equal(t, "first-post", e.Slug)
	require.Equal(t, StatusPublished, e.Status)
	require.EqualValues(t, 1, e.Ver)
	require.Equal(t, admin.UserID, *e.CreatedBy)

	e, err = s.Create(context.Background(), admin, "events", model.EntryInput{Title: "Meetup"})
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(e.Data))

	_, err = s.Create(context.Background(), admin, "blog", model.EntryInput{Title: "First Post"})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestEntries_Create_Validation(t *testing.T) {
	s := NewEntryService(newFakeEntries())
	ctx := context.Background()

	for name, in := range map[string]model.EntryInput{
		"no title":     {Title: "  "},
		"bad slug":     {Title: "x", Slug: "Not A Slug"},
		"array data":   {Title: "x", Data: json.RawMessage(`[1,2]`)},
		"invalid json": {Title: "x", Data: json.RawMessage(`{"a":`)},
	} {
		_, err := s.Create(ctx, admin, "blog", in)
		require.ErrorIs(t, err, errs.ErrValidation, name)
	}
}

func TestEntries_AccessPolicy(t *testing.T) {
	s := NewEntryService(newFakeEntries())
	ctx := context.Background()
	in := model.EntryInput{Title: "Hello"}

	_, err := s.Create(ctx, nil, "blog", in)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	_, err = s.Create(ctx, member, "blog", in)
	require.ErrorIs(t, err, errs.ErrForbidden)

	_, err = s.List(ctx, nil, model.EntryFilter{Kind: "nope"})
	require.ErrorIs(t, err, errs.ErrNotFound)

	// contact: anyone may submit, only admins may read
	c, err := s.Create(ctx, nil, "contact", model.EntryInput{Title: "Question", Status: StatusPublished, Featured: true})
	require.NoError(t, err)
	require.Equal(t, StatusNew, c.Status)
	require.False(t, c.Featured)
	require.Nil(t, c.CreatedBy)

	_, err = s.List(ctx, nil, model.EntryFilter{Kind: "contact"})
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	_, err = s.List(ctx, member, model.EntryFilter{Kind: "contact"})
	require.ErrorIs(t, err, errs.ErrForbidden)
	page, err := s.List(ctx, admin, model.EntryFilter{Kind: "contact"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
}

func TestEntries_DraftsHiddenFromPublic(t *testing.T) {
	repo := newFakeEntries()
	s := NewEntryService(repo)
	ctx := context.Background()

	draft, err := s.Create(ctx, admin, "projects", model.EntryInput{Title: "Secret", Status: StatusDraft})
	require.NoError(t, err)
	_, err = s.Create(ctx, admin, "projects", model.EntryInput{Title: "Public"})
	require.NoError(t, err)

	page, err := s.List(ctx, nil, model.EntryFilter{Kind: "projects", Status: StatusDraft})
	require.NoError(t, err)
	require.Equal(t, StatusPublished, repo.lastFilter.Status)
	require.Len(t, page.Items, 1)

	_, err = s.Get(ctx, member, "projects", draft.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.GetBySlug(ctx, nil, "projects", "secret")
	require.ErrorIs(t, err, errs.ErrNotFound)

	got, err := s.GetBySlug(ctx, admin, "projects", "secret")
	require.NoError(t, err)
	require.Equal(t, draft.ID, got.ID)
}

func TestEntries_List_Paging(t *testing.T) {
	repo := newFakeEntries()
	s := NewEntryService(repo)
	ctx := context.Background()

	page, err := s.List(ctx, nil, model.EntryFilter{Kind: "events"})
	require.NoError(t, err)
	require.Equal(t, 1, repo.lastFilter.Page)
	require.Equal(t, DefaultPageSize, repo.lastFilter.Size)
	require.NotNil(t, page.Items)

	_, err = s.List(ctx, nil, model.EntryFilter{Kind: "events", Size: MaxPageSize + 1})
	require.ErrorIs(t, err, errs.ErrValidation)

	// would overflow the offset
	_, err = s.List(ctx, nil, model.EntryFilter{Kind: "events", Page: math.MaxInt})
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = s.List(ctx, nil, model.EntryFilter{Kind: "events", Page: MaxPage})
	require.NoError(t, err)

	repo.listErr = errors.New("boom")
	_, err = s.List(ctx, nil, model.EntryFilter{Kind: "events"})
	require.Error(t, err)
}

func TestEntries_Update_OptimisticConcurrency(t *testing.T) {
	s := NewEntryService(newFakeEntries())
	ctx := context.Background()
	e, err := s.Create(ctx, admin, "store", model.EntryInput{Title: "Arduino kit", Data: json.RawMessage(`{"price":30}`)})
	require.NoError(t, err)

	_, err = s.Update(ctx, admin, "store", e.ID, model.EntryInput{Title: "Arduino kit"})
	require.ErrorIs(t, err, errs.ErrValidation)

	upd, err := s.Update(ctx, admin, "store", e.ID, model.EntryInput{Title: "Arduino kit", Data: json.RawMessage(`{"price":25}`), BaseVer: 1})
	require.NoError(t, err)
	require.EqualValues(t, 2, upd.Ver)
	require.JSONEq(t, `{"price":25}`, string(upd.Data))

	_, err = s.Update(ctx, admin, "store", e.ID, model.EntryInput{Title: "Stale", BaseVer: 1})
	require.ErrorIs(t, err, errs.ErrVersionConflict)

	_, err = s.Update(ctx, member, "store", e.ID, model.EntryInput{Title: "x", BaseVer: 2})
	require.ErrorIs(t, err, errs.ErrForbidden)
}

func TestEntries_Delete(t *testing.T) {
	s := NewEntryService(newFakeEntries())
	ctx := context.Background()
	e, err := s.Create(ctx, admin, "gallery", model.EntryInput{Title: "Laser cutter"})
	require.NoError(t, err)

	_, err = s.Delete(ctx, nil, "gallery", e.ID, 0)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	_, err = s.Delete(ctx, admin, "gallery", e.ID, -1)
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = s.Delete(ctx, admin, "gallery", e.ID, 5)
	require.ErrorIs(t, err, errs.ErrVersionConflict)

	ver, err := s.Delete(ctx, admin, "gallery", e.ID, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, ver)

	_, err = s.Get(ctx, admin, "gallery", e.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
