// Package http provides HTTP handlers that expose the account store to a
// form UI.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/atinyakov/AccountKeeper/internal/labels"
	"github.com/atinyakov/AccountKeeper/internal/models"
	"github.com/atinyakov/AccountKeeper/internal/service"
	"github.com/atinyakov/AccountKeeper/internal/validation"
	"github.com/go-chi/chi/v5"
)

// AccountService defines the store operations required by AccountHandler.
type AccountService interface {
	AddAccount(ctx context.Context) (models.Account, error)
	RemoveAccount(ctx context.Context, id int64) error
	UpdateAccount(ctx context.Context, id int64, patch models.AccountPatch) error
	TogglePasswordVisibility(ctx context.Context, id int64) error
	Accounts() []models.Account
	Account(id int64) (models.Account, bool)
	AllLabels() []models.Label
	UniqueLabels() []models.Label
	Validate(id int64) (validation.Result, bool)
}

// AccountHandler handles HTTP requests for account CRUD and label aggregates.
type AccountHandler struct {
	// Accounts performs the underlying store operations.
	Accounts AccountService
}

// PatchRequest is the JSON body of PATCH /api/accounts/{id}. Labels may be
// either a ";"-separated string or a list of {"text": ...} objects.
type PatchRequest struct {
	Labels       json.RawMessage    `json:"labels,omitempty"`
	RecordType   *models.RecordType `json:"recordType,omitempty"`
	Login        *string            `json:"login,omitempty"`
	Password     *string            `json:"password,omitempty"`
	ShowPassword *bool              `json:"showPassword,omitempty"`
	Touched      map[string]bool    `json:"touched,omitempty"`
}

// Patch converts the request into a store patch.
func (p PatchRequest) Patch() models.AccountPatch {
	patch := models.AccountPatch{
		RecordType:   p.RecordType,
		Login:        p.Login,
		Password:     p.Password,
		ShowPassword: p.ShowPassword,
		Touched:      p.Touched,
	}
	if len(p.Labels) > 0 {
		parsed := labels.ParseJSON(p.Labels)
		patch.Labels = &parsed
	}
	return patch
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// List handles GET /api/accounts.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"accounts": h.Accounts.Accounts()})
}

// Create handles POST /api/accounts and returns the new account. It answers
// 409 when no further account id is available.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	acc, err := h.Accounts.AddAccount(r.Context())
	if errors.Is(err, service.ErrIDsExhausted) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

// Get handles GET /api/accounts/{id}.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	acc, found := h.Accounts.Account(id)
	if !found {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// Update handles PATCH /api/accounts/{id} and returns the updated account.
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	var req PatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if _, found := h.Accounts.Account(id); !found {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	if err := h.Accounts.UpdateAccount(r.Context(), id, req.Patch()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.Get(w, r)
}

// Delete handles DELETE /api/accounts/{id}. Deleting an unknown id succeeds.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	if err := h.Accounts.RemoveAccount(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TogglePassword handles POST /api/accounts/{id}/password-visibility.
func (h *AccountHandler) TogglePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	if _, found := h.Accounts.Account(id); !found {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	if err := h.Accounts.TogglePasswordVisibility(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.Get(w, r)
}

// Validation handles GET /api/accounts/{id}/validation.
func (h *AccountHandler) Validation(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	res, found := h.Accounts.Validate(id)
	if !found {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Labels handles GET /api/labels. With ?unique=true each text is listed once.
func (h *AccountHandler) Labels(w http.ResponseWriter, r *http.Request) {
	unique, _ := strconv.ParseBool(r.URL.Query().Get("unique"))
	if unique {
		writeJSON(w, http.StatusOK, map[string]any{"labels": h.Accounts.UniqueLabels()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"labels": h.Accounts.AllLabels()})
}
