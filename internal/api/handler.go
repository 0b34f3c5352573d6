package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/kartoza/brb-engine/internal/brb"
	"github.com/kartoza/brb-engine/internal/config"
	"github.com/kartoza/brb-engine/internal/httputil"
	"github.com/kartoza/brb-engine/internal/models"
	"github.com/kartoza/brb-engine/internal/ruletable"
	"github.com/kartoza/brb-engine/internal/store"
)

// Handler provides HTTP API endpoints
type Handler struct {
	ruleStore *store.Store
	cfg       config.Config
}

// NewHandler creates a new API handler
func NewHandler(ruleStore *store.Store, cfg config.Config) *Handler {
	return &Handler{
		ruleStore: ruleStore,
		cfg:       cfg,
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")

	// Rule base management
	r.HandleFunc("/rulebases", h.handleListRuleBases).Methods("GET")
	r.HandleFunc("/rulebases", h.handleCreateRuleBase).Methods("POST")
	r.HandleFunc("/rulebases/{id}", h.handleGetRuleBase).Methods("GET")
	r.HandleFunc("/rulebases/{id}", h.handleDeleteRuleBase).Methods("DELETE")
	r.HandleFunc("/rulebases/{id}/rules", h.handleListRules).Methods("GET")

	// Inference
	r.HandleFunc("/rulebases/{id}/infer", h.handleInfer).Methods("POST")
}

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo returns server information
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"version":      h.cfg.Version,
		"store_loaded": h.ruleStore != nil,
	}
	httputil.RespondJSON(w, http.StatusOK, info)
}

// handleListRuleBases returns the stored rule bases
func (h *Handler) handleListRuleBases(w http.ResponseWriter, r *http.Request) {
	if h.ruleStore == nil {
		httputil.RespondJSON(w, http.StatusOK, []string{})
		return
	}
	summaries, err := h.ruleStore.List()
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.RespondJSON(w, http.StatusOK, summaries)
}

// handleCreateRuleBase validates and persists an inline rule base
func (h *Handler) handleCreateRuleBase(w http.ResponseWriter, r *http.Request) {
	if h.ruleStore == nil {
		httputil.RespondError(w, http.StatusServiceUnavailable, "no rule store loaded")
		return
	}

	var req models.CreateRuleBaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	table := &ruletable.Table{Rows: req.Rules}
	id, err := h.ruleStore.Save(&req.Vocabulary, table)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, models.CreateRuleBaseResponse{ID: id})
}

// handleGetRuleBase returns one rule base summary
func (h *Handler) handleGetRuleBase(w http.ResponseWriter, r *http.Request) {
	if h.ruleStore == nil {
		httputil.RespondError(w, http.StatusNotFound, "no rule store loaded")
		return
	}
	id := mux.Vars(r)["id"]
	summary, err := h.ruleStore.Get(id)
	if err != nil {
		httputil.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	httputil.RespondJSON(w, http.StatusOK, summary)
}

// handleDeleteRuleBase removes a rule base
func (h *Handler) handleDeleteRuleBase(w http.ResponseWriter, r *http.Request) {
	if h.ruleStore == nil {
		httputil.RespondError(w, http.StatusNotFound, "no rule store loaded")
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.ruleStore.Delete(id); err != nil {
		httputil.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// handleListRules returns the rule table of a rule base
func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	if h.ruleStore == nil {
		httputil.RespondError(w, http.StatusNotFound, "no rule store loaded")
		return
	}
	id := mux.Vars(r)["id"]
	if _, err := h.ruleStore.Get(id); err != nil {
		httputil.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	table, err := h.ruleStore.LoadTable(id)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.RespondJSON(w, http.StatusOK, table.Rows)
}

// handleInfer runs one inference call against a stored rule base
func (h *Handler) handleInfer(w http.ResponseWriter, r *http.Request) {
	if h.ruleStore == nil {
		httputil.RespondError(w, http.StatusNotFound, "no rule store loaded")
		return
	}

	id := mux.Vars(r)["id"]
	model, err := h.ruleStore.LoadModel(id)
	if err != nil {
		if strings.HasPrefix(err.Error(), "unknown rule base") {
			httputil.RespondError(w, http.StatusNotFound, err.Error())
		} else {
			httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	var req models.InferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input, err := brb.NewAttributeInput(req.Evidence)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := model.Run(input)
	if err != nil {
		var unknown *brb.UnknownAttributeError
		if errors.As(err, &unknown) {
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
		} else {
			httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	httputil.RespondJSON(w, http.StatusOK, models.InferResponse{
		Beliefs:     result.Beliefs,
		Ignorance:   result.Ignorance,
		Activations: result.Activations,
	})
}
