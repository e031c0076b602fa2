package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/smartpot-io/smartpot-core/internal/infrastructure/mqtt"
	"github.com/smartpot-io/smartpot-core/internal/pot"
	"github.com/smartpot-io/smartpot-core/internal/provisioning"
)

// defaultMeasurementCount is returned when the count query parameter is absent.
const defaultMeasurementCount = 20

// maxMeasurementCount caps how many measurements a single request may fetch.
const maxMeasurementCount = 1000

// waterRequest is the request body for POST /pots/{id}/actions/water.
type waterRequest struct {
	DurationSec int `json:"duration_sec"`
}

// pairResponse is the response body for POST /pots/{id}/actions/pair.
//
// Credential is present only on the very first pairing of a pot and is
// never retrievable again.
type pairResponse struct {
	PotID        string `json:"pot_id"`
	UserID       string `json:"user_id"`
	IsOwner      bool   `json:"is_owner"`
	IsAdmin      bool   `json:"is_admin"`
	FirstPairing bool   `json:"first_pairing"`
	Credential   string `json:"credential,omitempty"`
}

// handleListPots returns every pot the authenticated user is connected to.
func (s *Server) handleListPots(w http.ResponseWriter, r *http.Request) {
	pots, err := s.pots.UserPots(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		s.logger.Error("listing pots failed", "error", err)
		writeInternalError(w, "failed to list pots")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pots":  pots,
		"count": len(pots),
	})
}

// handleGetPot returns a single pot's registry entry.
func (s *Server) handleGetPot(w http.ResponseWriter, r *http.Request) {
	p, err := s.pots.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writePotError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// handlePair connects the authenticated user to a pot.
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	result, err := s.pots.Pair(r.Context(), chi.URLParam(r, "id"), userIDFromContext(r.Context()))
	if err != nil {
		s.writePotError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pairResponse{
		PotID:        result.PotID,
		UserID:       result.UserID,
		IsOwner:      result.IsOwner,
		IsAdmin:      result.IsAdmin,
		FirstPairing: result.FirstPairing,
		Credential:   result.Credential,
	})
}

// handleWater commands a pot to run its pump.
func (s *Server) handleWater(w http.ResponseWriter, r *http.Request) {
	var req waterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.pots.Water(r.Context(), chi.URLParam(r, "id"), req.DurationSec); err != nil {
		s.writePotError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"pot_id":       chi.URLParam(r, "id"),
		"duration_sec": req.DurationSec,
	})
}

// handleTransfer makes the authenticated user the pot's owner.
//
// This is a long-poll: the response is held until the pot confirms a
// physical hard reset or the rendezvous window closes.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	potID := chi.URLParam(r, "id")
	userID := userIDFromContext(r.Context())

	if err := s.pots.TransferOwnership(r.Context(), potID, userID); err != nil {
		s.writePotError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pot_id":   potID,
		"owner_id": userID,
	})
}

// handlePushConfig sends a configuration to a pot and persists it.
func (s *Server) handlePushConfig(w http.ResponseWriter, r *http.Request) {
	var cfg pot.DeviceConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	potID := chi.URLParam(r, "id")
	if err := s.pots.PushConfig(r.Context(), potID, cfg); err != nil {
		s.writePotError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pot_id": potID,
		"config": cfg,
	})
}

// handleMeasurements returns the most recent measurements for a pot.
func (s *Server) handleMeasurements(w http.ResponseWriter, r *http.Request) {
	count := defaultMeasurementCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "count must be a positive integer")
			return
		}
		count = parsed
	}
	if count > maxMeasurementCount {
		count = maxMeasurementCount
	}

	potID := chi.URLParam(r, "id")
	measures, err := s.pots.Measurements(r.Context(), potID, count)
	if err != nil {
		s.writePotError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pot_id":       potID,
		"measurements": measures,
		"count":        len(measures),
	})
}

// handleWateringStatus returns whether the pot is currently watering.
func (s *Server) handleWateringStatus(w http.ResponseWriter, r *http.Request) {
	potID := chi.URLParam(r, "id")
	watering, err := s.pots.WateringStatus(r.Context(), potID)
	if err != nil {
		s.writePotError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pot_id":   potID,
		"watering": watering,
	})
}

// writePotError maps pot domain errors to HTTP responses.
func (s *Server) writePotError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pot.ErrPotNotFound):
		writeNotFound(w, "pot not found")
	case errors.Is(err, pot.ErrUserNotFound):
		writeNotFound(w, "user not found")
	case errors.Is(err, pot.ErrInvalidDuration),
		errors.Is(err, pot.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, pot.ErrAlreadyConnected):
		writeConflict(w, "already connected to this pot")
	case errors.Is(err, pot.ErrResetTimeout):
		writeError(w, http.StatusGatewayTimeout, ErrCodeResetTimeout,
			"pot did not confirm a hard reset within the transfer window")
	case errors.Is(err, pot.ErrTransferIncomplete):
		s.logger.Error("ownership transfer incomplete", "error", err)
		writeError(w, http.StatusInternalServerError, ErrCodeTransferHalt,
			"reset confirmed but ownership record was not updated; contact support")
	case errors.Is(err, provisioning.ErrIssueFailed):
		s.logger.Error("credential issuance failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable,
			"broker credential could not be issued; retry pairing")
	case errors.Is(err, mqtt.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable,
			"broker connection unavailable")
	default:
		s.logger.Error("pot operation failed", "error", err)
		writeInternalError(w, "operation failed")
	}
}
