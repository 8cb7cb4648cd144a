package network

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/puzzle-health/tracker/internal/analytics"
	"github.com/puzzle-health/tracker/internal/patient"
	"github.com/puzzle-health/tracker/internal/shared/auth"
	"github.com/puzzle-health/tracker/internal/shared/errors"
	"github.com/puzzle-health/tracker/internal/shared/types"
)

// PatientSource provides the enriched patient cohort a facility's derived
// metrics are computed from
type PatientSource interface {
	ListEnriched(ctx context.Context, filter patient.ListFilter) ([]patient.Patient, error)
}

// Handler provides HTTP handlers for the care network structure. Facility
// responses carry metrics computed from the live cohort on every read;
// nothing derived is stored or cached.
type Handler struct {
	repo     Repository
	patients PatientSource
}

// NewHandler creates a new network handler
func NewHandler(repo Repository, patients PatientSource) *Handler {
	return &Handler{repo: repo, patients: patients}
}

// Routes registers the network routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/organizations", func(r chi.Router) {
		r.Get("/", h.ListHealthSystems)
		r.Get("/{orgID}/facilities", h.ListOrgFacilities)
	})

	r.Route("/chains", func(r chi.Router) {
		r.Get("/", h.ListChains)
		r.Get("/{chainID}/facilities", h.ListChainFacilities)
	})

	r.Route("/facilities/{facilityID}", func(r chi.Router) {
		r.Get("/", h.GetFacility)
		r.Get("/metrics", h.GetFacilityMetrics)
	})

	return r
}

// FacilityResponse is a facility with its derived metrics attached
type FacilityResponse struct {
	Facility
	Metrics analytics.FacilityMetrics `json:"metrics"`
}

func (h *Handler) withMetrics(ctx context.Context, f Facility) (FacilityResponse, error) {
	cohort, err := h.patients.ListEnriched(ctx, patient.ListFilter{FacilityID: &f.ID})
	if err != nil {
		return FacilityResponse{}, err
	}
	return FacilityResponse{
		Facility: f,
		Metrics:  analytics.ComputeFacilityMetrics(f.EngagementBase, f.LastAckMinutes, cohort),
	}, nil
}

func (h *Handler) respondFacilities(w http.ResponseWriter, r *http.Request, facilities []Facility) {
	out := make([]FacilityResponse, 0, len(facilities))
	for _, f := range facilities {
		fr, err := h.withMetrics(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, fr)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"facilities": out,
		"total":      len(out),
	})
}

// ListHealthSystems lists all health systems. Open to any authenticated
// caller; structural names carry no patient data.
func (h *Handler) ListHealthSystems(w http.ResponseWriter, r *http.Request) {
	if auth.GetUser(r.Context()) == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	systems, err := h.repo.ListHealthSystems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": systems, "total": len(systems)})
}

// ListChains lists all SNF chains
func (h *Handler) ListChains(w http.ResponseWriter, r *http.Request) {
	if auth.GetUser(r.Context()) == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	chains, err := h.repo.ListChains(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chains": chains, "total": len(chains)})
}

// ListOrgFacilities lists an organization's facilities with derived metrics.
// An org with no facilities returns an empty list, not an error.
func (h *Handler) ListOrgFacilities(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	orgID := types.ID(chi.URLParam(r, "orgID"))
	if !user.CoversOrg(orgID) {
		writeError(w, errors.Forbidden("caller scope does not cover requested organization"))
		return
	}

	facilities, err := h.repo.ListFacilities(r.Context(), ListFacilitiesFilter{OrgID: &orgID})
	if err != nil {
		writeError(w, err)
		return
	}
	h.respondFacilities(w, r, facilities)
}

// ListChainFacilities lists a chain's facilities with derived metrics
func (h *Handler) ListChainFacilities(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	chainID := types.ID(chi.URLParam(r, "chainID"))
	if !user.CoversChain(chainID) {
		writeError(w, errors.Forbidden("caller scope does not cover requested chain"))
		return
	}

	facilities, err := h.repo.ListFacilities(r.Context(), ListFacilitiesFilter{ChainID: &chainID})
	if err != nil {
		writeError(w, err)
		return
	}
	h.respondFacilities(w, r, facilities)
}

func (h *Handler) facilityForCaller(r *http.Request) (*Facility, error) {
	user := auth.GetUser(r.Context())
	if user == nil {
		return nil, errors.Unauthorized("authentication required")
	}

	facilityID := types.ID(chi.URLParam(r, "facilityID"))
	f, err := h.repo.GetFacility(r.Context(), facilityID)
	if err != nil {
		return nil, err
	}
	if !user.CoversFacility(f.ID) && !user.CoversOrg(f.OrgID) && !user.CoversChain(f.ChainID) {
		return nil, errors.Forbidden("caller scope does not cover requested facility")
	}
	return f, nil
}

// GetFacility retrieves one facility with derived metrics
func (h *Handler) GetFacility(w http.ResponseWriter, r *http.Request) {
	f, err := h.facilityForCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	fr, err := h.withMetrics(r.Context(), *f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fr)
}

// GetFacilityMetrics retrieves only the derived metrics block
func (h *Handler) GetFacilityMetrics(w http.ResponseWriter, r *http.Request) {
	f, err := h.facilityForCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	fr, err := h.withMetrics(r.Context(), *f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fr.Metrics)
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
