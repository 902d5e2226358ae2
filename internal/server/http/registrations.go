package httpserver

import (
	"net/http"

	"github.com/and161185/makerhub/internal/model"
)

// RegisterForEvent signs someone up for an event. No account is needed.
func (h *Handlers) RegisterForEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in model.RegistrationInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	reg, err := h.regs.Register(r.Context(), PrincipalFromCtx(r.Context()), eventID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// ListRegistrations returns one page of registrations (admin).
func (h *Handlers) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.RegistrationFilter{Status: q.Get("status"), Search: q.Get("search")}
	var err error
	if f.Page, f.Size, err = paging(q); err != nil {
		h.fail(w, r, err)
		return
	}
	if s := q.Get("event_id"); s != "" {
		id, err := uuidParam("event_id", s)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		f.EventID = &id
	}
	page, err := h.regs.List(r.Context(), PrincipalFromCtx(r.Context()), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type statusBody struct {
	Status string `json:"status"`
}

// SetRegistrationStatus changes a registration's status; it comes from ?status= or the JSON body.
func (h *Handlers) SetRegistrationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := r.URL.Query().Get("status")
	if status == "" {
		var in statusBody
		if err := decodeJSON(w, r, &in); err != nil {
			h.fail(w, r, err)
			return
		}
		status = in.Status
	}
	if err := h.regs.SetStatus(r.Context(), PrincipalFromCtx(r.Context()), id, status); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{
		Success: true,
		Message: "Registration status updated to " + status,
		Data:    map[string]any{"id": id.String(), "registration_status": status},
	})
}

// DeleteRegistration removes a registration (admin).
func (h *Handlers) DeleteRegistration(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.regs.Delete(r.Context(), PrincipalFromCtx(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{Success: true, Message: "Registration deleted successfully"})
}
