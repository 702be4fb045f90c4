// Package http exposes the list service as a JSON API. The caller's
// identity arrives in the X-Actor-ID header, set by the authenticating
// proxy in front of this service.
package http

import (
	"encoding/json"
	stderrors "errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fedilist/fedilist/internal/errors"
	"github.com/fedilist/fedilist/internal/list/domain"
	"github.com/fedilist/fedilist/internal/list/service"
)

const actorHeader = "X-Actor-ID"

// Handler serves the list JSON API.
type Handler struct {
	svc  *service.Service
	logf func(format string, args ...any)
}

// NewHandler builds a handler around the list service.
func NewHandler(svc *service.Service, logf func(format string, args ...any)) (*Handler, error) {
	if svc == nil {
		return nil, errors.New(errors.CodeUnknown, "list service is required")
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Handler{svc: svc, logf: logf}, nil
}

// Routes registers the API on a mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/lists", h.createList)
	mux.HandleFunc("GET /v1/lists", h.listLists)
	mux.HandleFunc("GET /v1/lists/{listID}", h.getList)
	mux.HandleFunc("PATCH /v1/lists/{listID}", h.updateList)
	mux.HandleFunc("GET /v1/lists/{listID}/pending", h.listPending)
	mux.HandleFunc("POST /v1/lists/{listID}/items", h.addItem)
	mux.HandleFunc("DELETE /v1/lists/{listID}/items/{itemID}", h.removeItem)
	mux.HandleFunc("POST /v1/lists/{listID}/items/{itemID}/position", h.repositionItem)
	mux.HandleFunc("POST /v1/lists/{listID}/items/{itemID}/moderation", h.moderateItem)
}

type listPayload struct {
	ID          string `json:"id"`
	RemoteID    string `json:"remote_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerID     string `json:"owner_id"`
	Privacy     string `json:"privacy"`
	Curation    string `json:"curation"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type itemPayload struct {
	ID            string `json:"id"`
	RemoteID      string `json:"remote_id"`
	ListID        string `json:"list_id"`
	ResourceIRI   string `json:"resource_iri"`
	ContributorID string `json:"contributor_id"`
	Position      int    `json:"position"`
	Approved      bool   `json:"approved"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func toListPayload(list domain.List) listPayload {
	return listPayload{
		ID:          list.ID,
		RemoteID:    list.RemoteID,
		Name:        list.Name,
		Description: list.Description,
		OwnerID:     list.OwnerID,
		Privacy:     string(list.Privacy),
		Curation:    string(list.Curation),
		CreatedAt:   list.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   list.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toItemPayloads(items []domain.ListItem) []itemPayload {
	payloads := make([]itemPayload, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, itemPayload{
			ID:            item.ID,
			RemoteID:      item.RemoteID,
			ListID:        item.ListID,
			ResourceIRI:   item.ResourceIRI,
			ContributorID: item.ContributorID,
			Position:      item.Position,
			Approved:      item.Approved,
			CreatedAt:     item.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:     item.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return payloads
}

func (h *Handler) createList(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Privacy     string `json:"privacy"`
		Curation    string `json:"curation"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	list, err := h.svc.CreateList(r.Context(), actor(r), service.CreateListInput{
		Name:        body.Name,
		Description: body.Description,
		Privacy:     domain.Privacy(body.Privacy),
		Curation:    domain.Curation(body.Curation),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toListPayload(list))
}

func (h *Handler) updateList(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Privacy     string `json:"privacy"`
		Curation    string `json:"curation"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	list, err := h.svc.UpdateList(r.Context(), actor(r), r.PathValue("listID"), domain.UpdateListInput{
		Name:        body.Name,
		Description: body.Description,
		Privacy:     domain.Privacy(body.Privacy),
		Curation:    domain.Curation(body.Curation),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toListPayload(list))
}

func (h *Handler) getList(w http.ResponseWriter, r *http.Request) {
	list, items, err := h.svc.GetList(r.Context(), actor(r), r.PathValue("listID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct {
		List  listPayload   `json:"list"`
		Items []itemPayload `json:"items"`
	}{toListPayload(list), toItemPayloads(items)})
}

func (h *Handler) listLists(w http.ResponseWriter, r *http.Request) {
	pageSize := 0
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeJSON(w, http.StatusBadRequest, errorBody("INVALID_PAGE_SIZE", "page_size must be a positive integer"))
			return
		}
		pageSize = parsed
	}
	page, err := h.svc.ListLists(r.Context(), pageSize, r.URL.Query().Get("page_token"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	payloads := make([]listPayload, 0, len(page.Lists))
	for _, list := range page.Lists {
		payloads = append(payloads, toListPayload(list))
	}
	h.writeJSON(w, http.StatusOK, struct {
		Lists         []listPayload `json:"lists"`
		NextPageToken string        `json:"next_page_token,omitempty"`
	}{payloads, page.NextPageToken})
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.svc.ListPending(r.Context(), actor(r), r.PathValue("listID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct {
		Items []itemPayload `json:"items"`
	}{toItemPayloads(pending)})
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ResourceIRI string `json:"resource_iri"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	item, err := h.svc.AddItem(r.Context(), actor(r), r.PathValue("listID"), body.ResourceIRI)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusCreated
	if !item.Approved {
		// Pending contributions are accepted but not yet part of the
		// visible list.
		status = http.StatusAccepted
	}
	h.writeJSON(w, status, toItemPayloads([]domain.ListItem{item})[0])
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	err := h.svc.RemoveItem(r.Context(), actor(r), r.PathValue("listID"), r.PathValue("itemID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) repositionItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Position int `json:"position"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	err := h.svc.RepositionItem(r.Context(), actor(r), r.PathValue("listID"), r.PathValue("itemID"), body.Position)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) moderateItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Approve bool `json:"approve"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	item, err := h.svc.ModerateItem(r.Context(), actor(r), r.PathValue("listID"), r.PathValue("itemID"), body.Approve)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !body.Approve {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, toItemPayloads([]domain.ListItem{item})[0])
}

func actor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(actorHeader))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	defer func() {
		_ = r.Body.Close()
	}()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody("INVALID_BODY", "request body is not valid JSON"))
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		h.logf("internal error: %v", err)
	}
	message := err.Error()
	var domainErr *errors.Error
	if stderrors.As(err, &domainErr) {
		message = domainErr.Message
	}
	h.writeJSON(w, code.HTTPStatus(), errorBody(string(code), message))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logf("encode response: %v", err)
	}
}

func errorBody(code, message string) any {
	return struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}{struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{code, message}}
}
