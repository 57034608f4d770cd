package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	alerts "router-supervisor/internal/alerts/domain"
)

// RuleStore is the persistence surface for rule management.
type RuleStore interface {
	Create(ctx context.Context, rule *alerts.ThresholdRule) error
	Update(ctx context.Context, rule *alerts.ThresholdRule) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*alerts.ThresholdRule, error)
	List(ctx context.Context) ([]alerts.ThresholdRule, error)
}

// RulesHandler provides threshold rule CRUD endpoints.
type RulesHandler struct {
	store RuleStore
}

// NewRulesHandler constructs a rules handler.
func NewRulesHandler(store RuleStore) (*RulesHandler, error) {
	if store == nil {
		return nil, errors.New("rules handler: nil store")
	}
	return &RulesHandler{store: store}, nil
}

type rulePayload struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	KPI             string   `json:"kpi"`
	Operator        string   `json:"operator"`
	Threshold       float64  `json:"threshold"`
	Severity        string   `json:"severity"`
	RouterID        string   `json:"router_id"`
	InterfaceID     string   `json:"interface_id"`
	Active          *bool    `json:"active"`
	CooldownMinutes int      `json:"cooldown_minutes"`
	EmailRecipients []string `json:"email_recipients"`
}

// ServeHTTP handles /api/v1/rules and subroutes.
func (h *RulesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/rules":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/rules/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/rules/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, id)
		case http.MethodPut:
			h.handleUpdate(w, r, id)
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *RulesHandler) handleList(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rules == nil {
		rules = []alerts.ThresholdRule{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rules)
}

func (h *RulesHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	rule, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rule == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rule)
}

func (h *RulesHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload rulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	rule := payload.toRule("rule-" + uuid.NewString())
	if err := rule.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.Create(r.Context(), rule); err != nil {
		respondRuleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(rule)
}

func (h *RulesHandler) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var payload rulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	rule := payload.toRule(id)
	rule.CreatedAt = existing.CreatedAt
	if err := rule.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.Update(r.Context(), rule); err != nil {
		respondRuleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rule)
}

func (h *RulesHandler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Delete(r.Context(), id); err != nil {
		respondRuleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (p rulePayload) toRule(id string) *alerts.ThresholdRule {
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	return &alerts.ThresholdRule{
		ID:              id,
		Name:            p.Name,
		Description:     p.Description,
		KPI:             p.KPI,
		Operator:        alerts.Operator(p.Operator),
		Threshold:       p.Threshold,
		Severity:        alerts.Severity(p.Severity),
		RouterID:        p.RouterID,
		InterfaceID:     p.InterfaceID,
		Active:          active,
		CooldownMinutes: p.CooldownMinutes,
		EmailRecipients: p.EmailRecipients,
	}
}

func respondRuleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, alerts.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, alerts.ErrDuplicateRule):
		http.Error(w, "duplicate rule", http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
