package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/makerhub/internal/errs"
	"github.com/and161185/makerhub/internal/model"
	"github.com/and161185/makerhub/internal/service"
)

const (
	maxJSONBody = 1 << 20
	// multipart framing around the file part
	uploadOverhead = 1 << 20
)

// Uploader stores uploaded files.
type Uploader interface {
	Save(ctx context.Context, caller *service.Principal, category, name string, r io.Reader) (*model.Upload, error)
	MaxSize() int64
}

// Services are the application services behind the API.
type Services struct {
	Auth          service.AuthService
	Users         service.UserService
	Entries       service.EntryService
	Registrations service.RegistrationService
	Uploads       Uploader
}

// Handlers implements the REST endpoints over the service layer.
type Handlers struct {
	auth    service.AuthService
	users   service.UserService
	entries service.EntryService
	regs    service.RegistrationService
	uploads Uploader
	log     *zap.Logger
}

// NewHandlers wires services into HTTP handlers.
func NewHandlers(svc Services, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		auth:    svc.Auth,
		users:   svc.Users,
		entries: svc.Entries,
		regs:    svc.Registrations,
		uploads: svc.Uploads,
		log:     log,
	}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, h.log, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON body", errs.ErrValidation)
	}
	return nil
}

func requireCaller(r *http.Request) (service.Principal, error) {
	p := PrincipalFromCtx(r.Context())
	if p == nil {
		return service.Principal{}, errs.ErrUnauthorized
	}
	return *p, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func userCreated(u *model.User) model.APIResponse {
	return model.APIResponse{
		Success: true,
		Message: "User created successfully",
		Data:    map[string]any{"id": u.ID.String(), "username": u.Username, "role": u.Role},
	}
}

// Register creates a regular account.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.auth.Register(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userCreated(u))
}

// AdminCreateUser creates an account with any role.
func (h *Handlers) AdminCreateUser(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.auth.AdminCreateUser(r.Context(), caller, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userCreated(u))
}

// Login accepts form-encoded credentials.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, fmt.Errorf("%w: invalid form", errs.ErrValidation))
		return
	}
	h.login(w, r, r.PostForm.Get("username"), r.PostForm.Get("password"))
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginJSON accepts JSON credentials.
func (h *Handlers) LoginJSON(w http.ResponseWriter, r *http.Request) {
	var in loginBody
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	h.login(w, r, in.Username, in.Password)
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request, username, password string) {
	if username == "" || password == "" {
		h.fail(w, r, fmt.Errorf("%w: username and password are required", errs.ErrValidation))
		return
	}
	pair, err := h.auth.Login(r.Context(), username, password, clientIP(r))
	if errors.Is(err, errs.ErrUnauthorized) {
		err = withDetail(err, "Incorrect username or password")
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

// refreshToken reads the token from the JSON body or the refresh_token query parameter.
func refreshToken(w http.ResponseWriter, r *http.Request) (string, error) {
	if rt := r.URL.Query().Get("refresh_token"); rt != "" {
		return rt, nil
	}
	var in refreshBody
	if err := decodeJSON(w, r, &in); err != nil {
		return "", err
	}
	if in.RefreshToken == "" {
		return "", fmt.Errorf("%w: refresh_token is required", errs.ErrValidation)
	}
	return in.RefreshToken, nil
}

// Refresh rotates a token pair.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	rt, err := refreshToken(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pair, err := h.auth.Refresh(r.Context(), rt)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// Logout revokes a refresh token.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	rt, err := refreshToken(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.auth.Logout(r.Context(), rt); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{Success: true, Message: "Logged out"})
}

// Me returns the caller's profile.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.auth.Me(r.Context(), caller.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateMe applies a partial profile update.
func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var upd service.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.auth.UpdateMe(r.Context(), caller.UserID, upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// paging reads the optional page and size query parameters.
func paging(q url.Values) (page, size int, err error) {
	for name, dst := range map[string]*int{"page": &page, "size": &size} {
		s := q.Get(name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return 0, 0, fmt.Errorf("%w: %s must be a positive integer", errs.ErrValidation, name)
		}
		*dst = n
	}
	return page, size, nil
}

func entryFilter(r *http.Request) (model.EntryFilter, error) {
	q := r.URL.Query()
	f := model.EntryFilter{
		Kind:   chi.URLParam(r, "kind"),
		Status: q.Get("status"),
		Search: q.Get("search"),
	}
	var err error
	if f.Page, f.Size, err = paging(q); err != nil {
		return f, err
	}
	if s := q.Get("featured"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return f, fmt.Errorf("%w: featured must be a boolean", errs.ErrValidation)
		}
		f.Featured = &b
	}
	return f, nil
}

func entryID(r *http.Request) (uuid.UUID, error) { return pathID(r, "id") }

func pathID(r *http.Request, param string) (uuid.UUID, error) {
	return uuidParam(param, chi.URLParam(r, param))
}

func uuidParam(name, s string) (uuid.UUID, error) {
	id, err := uuid.FromString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed %s", errs.ErrValidation, name)
	}
	return id, nil
}

// ListEntries returns one page of a kind.
func (h *Handlers) ListEntries(w http.ResponseWriter, r *http.Request) {
	f, err := entryFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.entries.List(r.Context(), PrincipalFromCtx(r.Context()), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetEntry returns one entry by id.
func (h *Handlers) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.entries.Get(r.Context(), PrincipalFromCtx(r.Context()), chi.URLParam(r, "kind"), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// GetEntryBySlug returns one entry by slug.
func (h *Handlers) GetEntryBySlug(w http.ResponseWriter, r *http.Request) {
	e, err := h.entries.GetBySlug(r.Context(), PrincipalFromCtx(r.Context()), chi.URLParam(r, "kind"), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// CreateEntry stores a new entry.
func (h *Handlers) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var in model.EntryInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.entries.Create(r.Context(), PrincipalFromCtx(r.Context()), chi.URLParam(r, "kind"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// UpdateEntry replaces an entry; the body must carry base_ver.
func (h *Handlers) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in model.EntryInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.entries.Update(r.Context(), PrincipalFromCtx(r.Context()), chi.URLParam(r, "kind"), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteEntry tombstones an entry. An optional ?ver= enables the version check.
func (h *Handlers) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var baseVer int64
	if s := r.URL.Query().Get("ver"); s != "" {
		if baseVer, err = strconv.ParseInt(s, 10, 64); err != nil {
			h.fail(w, r, fmt.Errorf("%w: ver must be an integer", errs.ErrValidation))
			return
		}
	}
	ver, err := h.entries.Delete(r.Context(), PrincipalFromCtx(r.Context()), chi.URLParam(r, "kind"), id, baseVer)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{
		Success: true,
		Message: "Deleted",
		Data:    map[string]any{"id": id.String(), "ver": ver},
	})
}

// Upload streams the "file" part of a multipart body into storage.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	caller := PrincipalFromCtx(r.Context())
	if caller == nil {
		h.fail(w, r, errs.ErrUnauthorized)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxSize()+uploadOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: multipart body expected", errs.ErrValidation))
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			h.fail(w, r, fmt.Errorf("%w: file part is missing", errs.ErrValidation))
			return
		}
		if err != nil {
			var mbe *http.MaxBytesError
			if !errors.As(err, &mbe) {
				err = fmt.Errorf("%w: malformed multipart body", errs.ErrValidation)
			}
			h.fail(w, r, err)
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		up, err := h.uploads.Save(r.Context(), caller, chi.URLParam(r, "category"), part.FileName(), part)
		_ = part.Close()
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, up)
		return
	}
}
