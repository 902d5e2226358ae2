package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/makerhub/internal/errs"
	"github.com/and161185/makerhub/internal/model"
)

var entryCols = []string{"id", "kind", "slug", "title", "status", "featured", "data", "ver", "created_by", "created_at", "updated_at"}

func entryRow(rows *pgxmock.Rows, id uuid.UUID, slug string, ver int64) *pgxmock.Rows {
	now := time.Now()
	return rows.AddRow(id, "blog", slug, "Title "+slug, "published", false,
		json.RawMessage(`{"body":"hi"}`), ver, (*uuid.UUID)(nil), now, now)
}

func TestEntryRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntryRepo(db)
	ctx := context.Background()
	author := uuid.Must(uuid.NewV4())
	e := &model.Entry{
		ID: uuid.Must(uuid.NewV4()), Kind: "blog", Slug: "hello", Title: "Hello",
		Status: "draft", Data: json.RawMessage(`{}`), CreatedBy: &author,
	}
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO entries \(id, kind, slug, title, status, featured, data, ver, created_by\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, 1, \$8\) RETURNING created_at, updated_at`).
		WithArgs(e.ID, e.Kind, e.Slug, e.Title, e.Status, e.Featured, e.Data, e.CreatedBy).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	require.NoError(t, r.Create(ctx, e))
	require.EqualValues(t, 1, e.Ver)
	require.Equal(t, now, e.CreatedAt)

	mock.ExpectQuery(`INSERT INTO entries`).
		WithArgs(e.ID, e.Kind, e.Slug, e.Title, e.Status, e.Featured, e.Data, e.CreatedBy).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
	require.ErrorIs(t, r.Create(ctx, e), errs.ErrAlreadyExists)
}

func TestEntryRepo_Update_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntryRepo(db)
	e := &model.Entry{ID: uuid.Must(uuid.NewV4()), Kind: "events", Slug: "s", Title: "T", Status: "published", Data: json.RawMessage(`{}`)}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT ver FROM entries WHERE id=\$1 AND kind=\$2 AND NOT deleted FOR UPDATE`).
		WithArgs(e.ID, e.Kind).
		WillReturnRows(pgxmock.NewRows([]string{"ver"}).AddRow(int64(3)))
	mock.ExpectExec(`UPDATE entries SET slug=\$3, title=\$4, status=\$5, featured=\$6, data=\$7, ver=\$8, updated_at=now\(\) WHERE id=\$1 AND kind=\$2`).
		WithArgs(e.ID, e.Kind, e.Slug, e.Title, e.Status, e.Featured, e.Data, int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	ver, err := r.Update(context.Background(), e, 3)
	require.NoError(t, err)
	require.EqualValues(t, 4, ver)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_Update_Conflict(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntryRepo(db)
	e := &model.Entry{ID: uuid.Must(uuid.NewV4()), Kind: "events"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT ver FROM entries`).
		WithArgs(e.ID, e.Kind).
		WillReturnRows(pgxmock.NewRows([]string{"ver"}).AddRow(int64(5)))
	mock.ExpectRollback()

	_, err := r.Update(context.Background(), e, 4)
	require.ErrorIs(t, err, errs.ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_Update_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntryRepo(db)
	e := &model.Entry{ID: uuid.Must(uuid.NewV4()), Kind: "events"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT ver FROM entries`).
		WithArgs(e.ID, e.Kind).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := r.Update(context.Background(), e, 1)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestEntryRepo_Update_SlugTaken(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntryRepo(db)
	e := &model.Entry{ID: uuid.Must(uuid.NewV4()), Kind: "blog", Slug: "taken"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT ver FROM entries`).
		WithArgs(e.ID, e.Kind).
		WillReturnRows(pgxmock.NewRows([]string{"ver"}).AddRow(int64(1)))
	mock.ExpectExec(`UPDATE entries SET`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
	mock.ExpectRollback()

	_, err := r.Update(context.Background(), e, 1)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestEntryRepo_Update_TxBeginErr(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntryRepo(db)

	mock.ExpectBegin().WillReturnError(errors.New("boom"))
	_, err := r.Update(context.Background(), &model.Entry{}, 1)
	require.Error(t, err)
}

func TestEntryRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntryRepo(db)
	id := uuid.Must(uuid.NewV4())

	// unconditional delete
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT ver FROM entries WHERE id=\$1 AND kind=\$2 AND NOT deleted FOR UPDATE`).
		WithArgs(id, "blog").
		WillReturnRows(pgxmock.NewRows([]string{"ver"}).AddRow(int64(7)))
	mock.ExpectExec(`UPDATE entries SET deleted=true, ver=\$3, updated_at=now\(\) WHERE id=\$1 AND kind=\$2`).
		WithArgs(id, "blog", int64(8)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	ver, err := r.Delete(context.Background(), "blog", id, 0)
	require.NoError(t, err)
	require.EqualValues(t, 8, ver)

	// stale base version
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT ver FROM entries`).
		WithArgs(id, "blog").
		WillReturnRows(pgxmock.NewRows([]string{"ver"}).AddRow(int64(8)))
	mock.ExpectRollback()
	_, err = r.Delete(context.Background(), "blog", id, 7)
	require.ErrorIs(t, err, errs.ErrVersionConflict)

	// already a tombstone
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT ver FROM entries`).
		WithArgs(id, "blog").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()
	_, err = r.Delete(context.Background(), "blog", id, 0)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_GetAndGetBySlug(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntryRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`FROM entries WHERE kind=\$1 AND id=\$2 AND NOT deleted`).
		WithArgs("blog", id).
		WillReturnRows(entryRow(pgxmock.NewRows(entryCols), id, "hello", 2))
	e, err := r.Get(ctx, "blog", id)
	require.NoError(t, err)
	require.Equal(t, "hello", e.Slug)
	require.EqualValues(t, 2, e.Ver)
	require.JSONEq(t, `{"body":"hi"}`, string(e.Data))

	mock.ExpectQuery(`FROM entries WHERE kind=\$1 AND slug=\$2 AND NOT deleted`).
		WithArgs("blog", "hello").
		WillReturnRows(entryRow(pgxmock.NewRows(entryCols), id, "hello", 2))
	e, err = r.GetBySlug(ctx, "blog", "hello")
	require.NoError(t, err)
	require.Equal(t, id, e.ID)

	mock.ExpectQuery(`FROM entries WHERE kind=\$1 AND slug=\$2`).
		WithArgs("blog", "nope").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetBySlug(ctx, "blog", "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestEntryRepo_List_Filters(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntryRepo(db)
	featured := true
	f := model.EntryFilter{Kind: "projects", Status: "published", Featured: &featured, Search: "robot", Page: 2, Size: 10}

	cond := `kind=$1 AND NOT deleted AND status=$2 AND featured=$3 AND title ILIKE '%' || $4 || '%' ESCAPE '\'`
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM entries WHERE ` + cond)).
		WithArgs("projects", "published", true, "robot").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))
	rows := pgxmock.NewRows(entryCols)
	entryRow(rows, uuid.Must(uuid.NewV4()), "robot-arm", 1)
	entryRow(rows, uuid.Must(uuid.NewV4()), "robot-dog", 3)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM entries WHERE `+cond+` ORDER BY created_at DESC, id LIMIT $5 OFFSET $6`)).
		WithArgs("projects", "published", true, "robot", 10, 10).
		WillReturnRows(rows)

	items, total, err := r.List(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, 12, total)
	require.Len(t, items, 2)
	require.Equal(t, "robot-dog", items[1].Slug)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_List_SearchIsLiteral(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntryRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM entries WHERE kind=$1 AND NOT deleted AND title ILIKE`)).
		WithArgs("blog", `100\% cotton\_tee \\ v2`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`ORDER BY created_at DESC`).
		WithArgs("blog", `100\% cotton\_tee \\ v2`, 10, 0).
		WillReturnRows(pgxmock.NewRows(entryCols))

	items, total, err := r.List(context.Background(), model.EntryFilter{Kind: "blog", Search: `100% cotton_tee \ v2`, Page: 1, Size: 10})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, "plain", escapeLike("plain"))
	require.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}

func TestEntryRepo_List_CountErr(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntryRepo(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM entries WHERE kind=\$1 AND NOT deleted`).
		WithArgs("blog").
		WillReturnError(errors.New("boom"))
	_, _, err := r.List(context.Background(), model.EntryFilter{Kind: "blog", Page: 1, Size: 10})
	require.Error(t, err)
}
