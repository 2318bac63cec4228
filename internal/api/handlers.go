package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gestionvital/prospector/internal/engine"
	"github.com/gestionvital/prospector/internal/lead"
)

// Handlers serves the dashboard API against the lead store. Edits go
// through the same load/save path as the cycle runner, so the CSV stays
// the single source of truth.
type Handlers struct {
	store engine.Store
	loc   *time.Location
}

// NewHandlers creates the API handlers.
func NewHandlers(store engine.Store, loc *time.Location) *Handlers {
	if loc == nil {
		loc = time.Local
	}
	return &Handlers{store: store, loc: loc}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListLeads returns the full collection, optionally filtered by status.
func (h *Handlers) ListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.store.Load()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "loading leads: "+err.Error())
		return
	}

	if filter := r.URL.Query().Get("status"); filter != "" {
		status := lead.Status(filter)
		if !status.Valid() {
			respondError(w, http.StatusBadRequest, "unknown status "+filter)
			return
		}
		filtered := leads[:0:0]
		for _, l := range leads {
			if l.Status == status {
				filtered = append(filtered, l)
			}
		}
		leads = filtered
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"leads": leads,
		"total": len(leads),
	})
}

// createLeadRequest is the manual-add payload.
type createLeadRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Category string `json:"category"`
	Phone    string `json:"phone"`
}

// CreateLead appends a manually sourced prospect as New.
func (h *Handlers) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Phone == "" {
		respondError(w, http.StatusBadRequest, "name and phone are required")
		return
	}

	leads, err := h.store.Load()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "loading leads: "+err.Error())
		return
	}

	l := lead.Lead{
		ID:       uuid.New().String(),
		Name:     req.Name,
		Location: req.Location,
		Category: req.Category,
		Status:   lead.StatusNew,
		Phone:    req.Phone,
	}
	leads = append(leads, l)

	if err := h.store.Save(leads); err != nil {
		respondError(w, http.StatusInternalServerError, "saving leads: "+err.Error())
		return
	}

	log.Printf("[API] Lead %q added manually", l.Name)
	respondJSON(w, http.StatusCreated, l)
}

// updateStatusRequest is the manual status edit payload.
type updateStatusRequest struct {
	Status lead.Status `json:"status"`
}

// manualStatuses are the transitions allowed from outside the engine:
// booking an appointment, recording an opt-out, or re-opening a record.
var manualStatuses = map[lead.Status]bool{
	lead.StatusScheduled: true,
	lead.StatusRejected:  true,
	lead.StatusNew:       true,
}

// UpdateLeadStatus applies a manual administrative edit to one record.
func (h *Handlers) UpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !manualStatuses[req.Status] {
		respondError(w, http.StatusBadRequest, "status must be Scheduled, Rejected or New")
		return
	}

	leads, err := h.store.Load()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "loading leads: "+err.Error())
		return
	}

	for i := range leads {
		if leads[i].ID != id {
			continue
		}
		leads[i].Status = req.Status
		if err := h.store.Save(leads); err != nil {
			respondError(w, http.StatusInternalServerError, "saving leads: "+err.Error())
			return
		}
		log.Printf("[API] Lead %s set to %s", id, req.Status)
		respondJSON(w, http.StatusOK, leads[i])
		return
	}

	respondError(w, http.StatusNotFound, "lead not found")
}

// Stats returns campaign counters for the dashboard.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	leads, err := h.store.Load()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "loading leads: "+err.Error())
		return
	}

	now := time.Now().In(h.loc)
	byStatus := map[lead.Status]int{}
	byStep := map[int]int{}
	contactedToday := 0
	for _, l := range leads {
		byStatus[l.Status]++
		byStep[l.SequenceStep]++
		if l.ContactedOn(now, h.loc) {
			contactedToday++
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":           len(leads),
		"by_status":       byStatus,
		"by_step":         byStep,
		"contacted_today": contactedToday,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
