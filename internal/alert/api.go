package alert

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/puzzle-health/tracker/internal/network"
	"github.com/puzzle-health/tracker/internal/patient"
	"github.com/puzzle-health/tracker/internal/phi"
	"github.com/puzzle-health/tracker/internal/shared/auth"
	"github.com/puzzle-health/tracker/internal/shared/config"
	"github.com/puzzle-health/tracker/internal/shared/errors"
	"github.com/puzzle-health/tracker/internal/shared/types"
)

// Handler provides the HTTP surface for patient records and the alert
// lifecycle. Every patient leaves this handler with risk tier and alerts
// populated; raw repository records never reach the wire.
type Handler struct {
	svc      *Service
	repo     patient.Repository
	networks network.Repository
	phi      config.PHIConfig
}

// NewHandler creates a new patient/alert handler
func NewHandler(svc *Service, repo patient.Repository, networks network.Repository, phi config.PHIConfig) *Handler {
	return &Handler{svc: svc, repo: repo, networks: networks, phi: phi}
}

// Routes registers the patient and alert routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/patients", func(r chi.Router) {
		r.Get("/", h.ListPatients)

		r.Route("/{patientID}", func(r chi.Router) {
			r.Get("/", h.GetPatient)
			r.Post("/interventions", h.CreateIntervention)
			r.Post("/contact", h.RecordContact)
		})
	})

	r.Route("/alerts", func(r chi.Router) {
		r.Route("/{alertID}", func(r chi.Router) {
			r.Post("/acknowledge", h.AcknowledgeAlert)
			r.Post("/resolve", h.ResolveAlert)
		})
	})

	return r
}

func (h *Handler) maskFlag(r *http.Request) bool {
	mask := h.phi.MaskByDefault
	if m := r.URL.Query().Get("mask"); m != "" {
		if v, err := strconv.ParseBool(m); err == nil {
			mask = v
		}
	}
	return mask
}

// coversPatientScope checks the caller's claims against the facility owning
// the cohort being read. Care team covers everything; other roles must cover
// the facility directly or through its parents.
func (h *Handler) coversPatientScope(r *http.Request, user *auth.User, facilityID types.ID) (bool, error) {
	if user.Role == auth.RoleCareTeam {
		return true, nil
	}
	f, err := h.networks.GetFacility(r.Context(), facilityID)
	if err != nil {
		return false, err
	}
	return user.CoversFacility(f.ID) || user.CoversOrg(f.OrgID) || user.CoversChain(f.ChainID), nil
}

// ListPatients lists patients, optionally scoped to a facility and filtered
// by program status. The unscoped form is central-team only.
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	filter := patient.ListFilter{Search: r.URL.Query().Get("q")}

	if fid := r.URL.Query().Get("facility_id"); fid != "" {
		facilityID := types.ID(fid)
		covered, err := h.coversPatientScope(r, user, facilityID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !covered {
			writeError(w, errors.Forbidden("caller scope does not cover requested facility"))
			return
		}
		filter.FacilityID = &facilityID
	} else if user.Role != auth.RoleCareTeam {
		writeError(w, errors.Forbidden("population-wide listing is central-team only"))
		return
	}

	switch r.URL.Query().Get("status") {
	case "home":
		home := true
		filter.AtHome = &home
	case "in_snf":
		home := false
		filter.AtHome = &home
	case "":
	default:
		writeError(w, errors.BadRequest("status must be home or in_snf"))
		return
	}

	patients, err := h.svc.ListEnriched(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	mask := h.maskFlag(r)
	for i := range patients {
		patients[i].Name = phi.Mask(mask, patients[i].Name)
		patients[i].MRN = phi.Mask(mask, patients[i].MRN)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"patients": patients,
		"total":    len(patients),
	})
}

// GetPatient retrieves one patient with the full record
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	p, err := h.svc.GetEnriched(r.Context(), types.ID(chi.URLParam(r, "patientID")))
	if err != nil {
		writeError(w, err)
		return
	}

	covered, err := h.coversPatientScope(r, user, p.FacilityID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !covered {
		writeError(w, errors.Forbidden("caller scope does not cover this patient"))
		return
	}

	mask := h.maskFlag(r)
	p.Name = phi.Mask(mask, p.Name)
	p.MRN = phi.Mask(mask, p.MRN)

	writeJSON(w, http.StatusOK, p)
}

// CreateInterventionRequest is the payload for logging an intervention
type CreateInterventionRequest struct {
	Type string `json:"type"`
	By   string `json:"by"`
	Note string `json:"note"`
}

// CreateIntervention appends an intervention to the patient's log. Appends
// are independent and idempotent-safe with respect to concurrent reads; the
// repository serializes writes per record.
func (h *Handler) CreateIntervention(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req CreateInterventionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Type == "" {
		writeError(w, errors.Validation("missing required fields", map[string]string{"type": "required"}))
		return
	}
	if req.By == "" {
		req.By = user.ID.String()
	}

	iv := patient.Intervention{
		When: time.Now().UTC().Format("2006-01-02"),
		Type: req.Type,
		By:   req.By,
		Note: req.Note,
	}
	if err := h.repo.AppendIntervention(r.Context(), types.ID(chi.URLParam(r, "patientID")), iv); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, iv)
}

// RecordContact stamps a successful outreach contact, which clears the
// missed-call condition on the next alert regeneration
func (h *Handler) RecordContact(w http.ResponseWriter, r *http.Request) {
	if auth.GetUser(r.Context()) == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	now := time.Now().UTC()
	if err := h.repo.RecordContact(r.Context(), types.ID(chi.URLParam(r, "patientID")), now); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"last_contact_at": now})
}

// AcknowledgeAlert moves an open alert to acknowledged
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	a, err := h.svc.Acknowledge(r.Context(), types.ID(chi.URLParam(r, "alertID")), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ResolveAlert moves an open or acknowledged alert to resolved
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	a, err := h.svc.Resolve(r.Context(), types.ID(chi.URLParam(r, "alertID")), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
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
