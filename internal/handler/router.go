package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/agent-mesh/region-router/internal/domain"
	rerrors "github.com/agent-mesh/region-router/internal/errors"
	"github.com/agent-mesh/region-router/internal/service"
	"github.com/agent-mesh/region-router/pkg/logger"
	"github.com/gorilla/mux"
)

// RouterHandler exposes the routing engine's decision, feedback, and
// introspection API to the external traffic-dispatch layer
type RouterHandler struct {
	router *service.RegionRouter
	logger *logger.Logger
}

// NewRouterHandler creates a new router API handler
func NewRouterHandler(router *service.RegionRouter, logger *logger.Logger) *RouterHandler {
	return &RouterHandler{
		router: router,
		logger: logger,
	}
}

// RouteResponse is the payload for a successful routing decision
type RouteResponse struct {
	Region    domain.RegionConfig `json:"region"`
	Strategy  string              `json:"strategy"`
	Timestamp time.Time           `json:"timestamp"`
}

// FeedbackResponse acknowledges a traffic feedback report
type FeedbackResponse struct {
	RegionID  string    `json:"region_id"`
	Recorded  string    `json:"recorded"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse represents error responses
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// RegisterRoutes attaches the API surface to a mux router
func (h *RouterHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/route", h.RouteHandler).Methods(http.MethodGet)
	r.HandleFunc("/regions", h.ListRegionsHandler).Methods(http.MethodGet)
	r.HandleFunc("/regions/health", h.RegionHealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/regions/{id}/success", h.SuccessHandler).Methods(http.MethodPost)
	r.HandleFunc("/regions/{id}/failure", h.FailureHandler).Methods(http.MethodPost)
	r.HandleFunc("/circuit-breakers", h.CircuitBreakersHandler).Methods(http.MethodGet)
	r.HandleFunc("/metrics", h.MetricsHandler).Methods(http.MethodGet)
}

// RouteHandler handles GET /route?country=&capability=&residency=
func (h *RouterHandler) RouteHandler(w http.ResponseWriter, r *http.Request) {
	query := domain.RouteQuery{
		SourceCountry: r.URL.Query().Get("country"),
		Capability:    r.URL.Query().Get("capability"),
		DataResidency: r.URL.Query().Get("residency"),
	}

	region, err := h.router.GetOptimalRegion(query)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, RouteResponse{
		Region:    *region,
		Strategy:  string(h.router.Policy().Strategy),
		Timestamp: time.Now().UTC(),
	})
}

// ListRegionsHandler handles GET /regions
func (h *RouterHandler) ListRegionsHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.router.Catalog().All())
}

// RegionHealthHandler handles GET /regions/health
func (h *RouterHandler) RegionHealthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.router.RegionHealthStatus())
}

// CircuitBreakersHandler handles GET /circuit-breakers
func (h *RouterHandler) CircuitBreakersHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.router.CircuitBreakerStatus())
}

// MetricsHandler handles GET /metrics
func (h *RouterHandler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.router.Metrics().Stats())
}

// SuccessHandler handles POST /regions/{id}/success
func (h *RouterHandler) SuccessHandler(w http.ResponseWriter, r *http.Request) {
	h.feedback(w, r, true)
}

// FailureHandler handles POST /regions/{id}/failure
func (h *RouterHandler) FailureHandler(w http.ResponseWriter, r *http.Request) {
	h.feedback(w, r, false)
}

func (h *RouterHandler) feedback(w http.ResponseWriter, r *http.Request, success bool) {
	regionID := mux.Vars(r)["id"]

	var err error
	outcome := "success"
	if success {
		err = h.router.RecordSuccess(regionID)
	} else {
		err = h.router.RecordFailure(regionID)
		outcome = "failure"
	}

	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, FeedbackResponse{
		RegionID:  regionID,
		Recorded:  outcome,
		Timestamp: time.Now().UTC(),
	})

	h.logger.WithFields(map[string]interface{}{
		"component": "router_api",
		"region_id": regionID,
		"outcome":   outcome,
	}).Debug("Recorded traffic feedback")
}

func (h *RouterHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *RouterHandler) writeError(w http.ResponseWriter, err error) {
	response := ErrorResponse{
		Error:     err.Error(),
		Code:      string(rerrors.GetErrorCode(err)),
		Timestamp: time.Now().UTC(),
	}

	status := rerrors.GetHTTPStatusCode(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)

	h.logger.WithFields(map[string]interface{}{
		"component": "router_api",
		"error":     err.Error(),
		"status":    status,
	}).Warn("API error response")
}
