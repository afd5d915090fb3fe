package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadtrigger/internal/middleware"
	"github.com/patrickwarner/openadtrigger/internal/models"
)

type registerResponse struct {
	ID       string   `json:"id"`
	Warnings []string `json:"warnings,omitempty"`
}

// CreateCampaign registers a new campaign. Invalid definitions are rejected
// in full with every failing field listed.
func (s *Server) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := s.register(w, r, "", true)
	s.observe("campaigns", "POST", status, start)
}

// UpdateCampaign replaces the campaign at {id}. The stored definition is
// untouched unless the new one validates. is_active defaults to the stored
// campaign's state when the body omits it.
func (s *Server) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := mux.Vars(r)["id"]
	status := http.StatusNotFound
	if current, ok := s.Registry.Get(id); !ok {
		writeError(w, status, "campaign not found")
	} else {
		status = s.register(w, r, id, current.Active)
	}
	s.observe("campaigns/{id}", "PUT", status, start)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, id string, active bool) int {
	logger := middleware.LoggerFromRequest(r, s.Logger)

	c := models.Campaign{Active: active}
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return http.StatusBadRequest
	}
	if id != "" {
		c.ID = id
	}
	if !s.Limiter.Allow(c.AdvertiserID) {
		logger.Warn("campaign write rate limited", zap.String("advertiser_id", c.AdvertiserID))
		writeError(w, http.StatusTooManyRequests, "rate limited")
		return http.StatusTooManyRequests
	}

	assigned, err := s.Registry.Register(c)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			logger.Info("campaign rejected", zap.String("campaign_id", c.ID), zap.Int("fields", len(verr.Fields)))
			writeJSON(w, http.StatusUnprocessableEntity, verr)
			return http.StatusUnprocessableEntity
		}
		logger.Error("register campaign", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return http.StatusInternalServerError
	}

	stored, _ := s.Registry.Get(assigned)
	for _, warning := range stored.Warnings {
		logger.Warn("campaign registered with warning", zap.String("campaign_id", assigned), zap.String("warning", warning))
	}
	s.refreshCampaignGauge()

	status := http.StatusCreated
	action := "create"
	if id != "" {
		status = http.StatusOK
		action = "update"
	}
	s.notifyUpdate(r.Context(), action, assigned)
	writeJSON(w, status, registerResponse{ID: assigned, Warnings: stored.Warnings})
	return status
}

// ListCampaigns returns the active campaigns placed at ?location=, or every
// registered campaign when no location is given.
func (s *Server) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var out []models.Campaign
	if loc := r.URL.Query().Get("location"); loc != "" {
		out = s.Registry.List(loc)
	} else {
		out = s.Registry.All()
	}
	if out == nil {
		out = []models.Campaign{}
	}
	writeJSON(w, http.StatusOK, out)
	s.observe("campaigns", "GET", http.StatusOK, start)
}

func (s *Server) GetCampaign(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	c, ok := s.Registry.Get(mux.Vars(r)["id"])
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
		writeError(w, status, "campaign not found")
	} else {
		writeJSON(w, status, c)
	}
	s.observe("campaigns/{id}", "GET", status, start)
}

func (s *Server) DeactivateCampaign(w http.ResponseWriter, r *http.Request) {
	s.setActive(w, r, false)
}

func (s *Server) ActivateCampaign(w http.ResponseWriter, r *http.Request) {
	s.setActive(w, r, true)
}

func (s *Server) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	start := time.Now()
	id := mux.Vars(r)["id"]
	endpoint, action := "campaigns/{id}/deactivate", "deactivate"
	op := s.Registry.Deactivate
	if active {
		endpoint, action = "campaigns/{id}/activate", "activate"
		op = s.Registry.Activate
	}

	status := http.StatusNoContent
	switch err := op(id); {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
		writeError(w, status, "campaign not found")
	case err != nil:
		middleware.LoggerFromRequest(r, s.Logger).Error(action+" campaign", zap.String("campaign_id", id), zap.Error(err))
		status = http.StatusInternalServerError
		writeError(w, status, "internal error")
	default:
		s.refreshCampaignGauge()
		s.notifyUpdate(r.Context(), action, id)
		w.WriteHeader(status)
	}
	s.observe(endpoint, "POST", status, start)
}
