package view

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/puzzle-health/tracker/internal/shared/auth"
	"github.com/puzzle-health/tracker/internal/shared/config"
	"github.com/puzzle-health/tracker/internal/shared/errors"
	"github.com/puzzle-health/tracker/internal/shared/types"
)

// Handler provides HTTP handlers for the role-scoped views
type Handler struct {
	resolver *Resolver
	phi      config.PHIConfig
}

// NewHandler creates a new view handler
func NewHandler(resolver *Resolver, phi config.PHIConfig) *Handler {
	return &Handler{resolver: resolver, phi: phi}
}

// Routes registers the view routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/views", func(r chi.Router) {
		r.Get("/health-system/{orgID}", h.HealthSystem)
		r.Get("/chain/{chainID}", h.Chain)
		r.Get("/facility/{facilityID}", h.Facility)
		r.Get("/care-team", h.CareTeam)
	})

	return r
}

// request parses the shared view parameters. The mask flag defaults from
// configuration and may be overridden per request; the scope identifiers in
// the path are always checked against the caller's claims by the resolver.
func (h *Handler) request(r *http.Request) Request {
	req := Request{
		Query:   r.URL.Query().Get("q"),
		MaskPHI: h.phi.MaskByDefault,
	}
	if m := r.URL.Query().Get("mask"); m != "" {
		if v, err := strconv.ParseBool(m); err == nil {
			req.MaskPHI = v
		}
	}
	if id, err := types.ParseID(r.URL.Query().Get("facility_id")); err == nil {
		req.FacilityID = id
	}
	return req
}

func caller(r *http.Request) (*auth.User, error) {
	user := auth.GetUser(r.Context())
	if user == nil {
		return nil, errors.Unauthorized("authentication required")
	}
	return user, nil
}

// HealthSystem resolves the health-system view for an organization
func (h *Handler) HealthSystem(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	orgID := types.ID(chi.URLParam(r, "orgID"))
	v, err := h.resolver.HealthSystem(r.Context(), user, orgID, h.request(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Chain resolves the SNF-chain view
func (h *Handler) Chain(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	chainID := types.ID(chi.URLParam(r, "chainID"))
	v, err := h.resolver.Chain(r.Context(), user, chainID, h.request(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Facility resolves the single-facility view
func (h *Handler) Facility(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	facilityID := types.ID(chi.URLParam(r, "facilityID"))
	v, err := h.resolver.Facility(r.Context(), user, facilityID, h.request(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// CareTeam resolves the central-team view over the whole population
func (h *Handler) CareTeam(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	v, err := h.resolver.CareTeam(r.Context(), user, h.request(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	appErr, ok := err.(*errors.AppError)
	if !ok {
		appErr = errors.Internal(err)
	}
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]any{
		"error":   appErr.Message,
		"code":    appErr.Code,
		"details": appErr.Details,
	})
}
