package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/and161185/makerhub/internal/errs"
	"github.com/and161185/makerhub/internal/model"
	"github.com/and161185/makerhub/internal/service"
)

// ListUsers returns one page of accounts (admin).
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	f := model.UserFilter{Role: q.Get("role"), Search: q.Get("search")}
	if f.Page, f.Size, err = paging(q); err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.users.List(r.Context(), caller, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetUser returns one account.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.users.Get(r.Context(), caller, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateUser applies a partial profile update to any account (admin).
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var upd service.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.users.Update(r.Context(), caller, id, upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// DeleteUser removes an account (admin).
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.users.Delete(r.Context(), caller, id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{
		Success: true,
		Message: "User deleted successfully",
		Data:    map[string]any{"user_id": id.String()},
	})
}

type roleBody struct {
	Role string `json:"role"`
}

// SetUserRole changes a role; the role comes from ?role= or the JSON body.
func (h *Handlers) SetUserRole(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	role := r.URL.Query().Get("role")
	if role == "" {
		var in roleBody
		if err := decodeJSON(w, r, &in); err != nil {
			h.fail(w, r, err)
			return
		}
		role = in.Role
	}
	if err := h.users.SetRole(r.Context(), caller, id, role); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{
		Success: true,
		Message: "User role updated to " + role,
		Data:    map[string]any{"user_id": id.String(), "new_role": role},
	})
}

type activeBody struct {
	IsActive *bool `json:"is_active"`
}

// SetUserStatus activates or deactivates an account; the flag comes from ?is_active= or the JSON body.
func (h *Handlers) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	active, err := activeFlag(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.users.SetActive(r.Context(), caller, id, active); err != nil {
		h.fail(w, r, err)
		return
	}
	word := "deactivated"
	if active {
		word = "activated"
	}
	writeJSON(w, http.StatusOK, model.APIResponse{
		Success: true,
		Message: "User " + word + " successfully",
		Data:    map[string]any{"user_id": id.String(), "is_active": active},
	})
}

func activeFlag(w http.ResponseWriter, r *http.Request) (bool, error) {
	if s := r.URL.Query().Get("is_active"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, fmt.Errorf("%w: is_active must be a boolean", errs.ErrValidation)
		}
		return b, nil
	}
	var in activeBody
	if err := decodeJSON(w, r, &in); err != nil {
		return false, err
	}
	if in.IsActive == nil {
		return false, fmt.Errorf("%w: is_active is required", errs.ErrValidation)
	}
	return *in.IsActive, nil
}
