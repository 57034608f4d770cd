package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	alertapp "router-supervisor/internal/alerts/application"
	alerts "router-supervisor/internal/alerts/domain"
	"router-supervisor/internal/auth"
)

// Handler provides alert HTTP endpoints.
type Handler struct {
	service *alertapp.Service
}

// NewHandler constructs a handler.
func NewHandler(service *alertapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("alerts handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP handles /api/v1/alerts and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/alerts":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
		return
	case r.URL.Path == "/api/v1/alerts/summary":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSummary(w, r)
		return
	case strings.HasPrefix(r.URL.Path, "/api/v1/alerts/"):
		h.handleAction(w, r)
		return
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := alerts.Filter{
		Status:   query.Get("status"),
		Severity: alerts.Severity(query.Get("severity")),
		RouterID: query.Get("router_id"),
		Type:     query.Get("type"),
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		http.Error(w, "invalid severity", http.StatusBadRequest)
		return
	}

	list, err := h.service.ListAlerts(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []alerts.Alert{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summary)
}

type actionRequest struct {
	Comment string `json:"comment"`
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := parts[0]
	action := parts[1]

	var body actionRequest
	if r.Body != nil {
		// missing or empty bodies are fine, comments are optional
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	actor := auth.SubjectFromContext(r.Context())

	var (
		alert *alerts.Alert
		err   error
	)
	switch action {
	case "acknowledge":
		alert, err = h.service.Acknowledge(r.Context(), id, actor, body.Comment)
	case "resolve":
		alert, err = h.service.Resolve(r.Context(), id, actor, body.Comment)
	case "dismiss":
		alert, err = h.service.Dismiss(r.Context(), id, actor)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		respondAlertError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(alert)
}

func respondAlertError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, alerts.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, alerts.ErrAlertNotActive), errors.Is(err, alerts.ErrAlertTerminal):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
