// Package httpapi exposes the controller's command/status surface over HTTP
// (C16): a thin chi router sitting in front of the controller core. It is
// the in-scope half of the MQTT/REST bridge collaborator; no broker
// integration or dashboard rendering happens here.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
)

// Controller is the subset of the controller core the HTTP surface depends
// on. Handlers never block on irrigation completion (§6).
type Controller interface {
	StartAutoCycle(ctx context.Context)
	ManualIrrigate(ctx context.Context, circuitID int, liters float64) error
	StopAllIrrigation()
	GetStatusMessage() model.StatusMessage
}

// Handler holds the controller dependency for every route.
type Handler struct {
	ctrl Controller
	log  zerolog.Logger
}

// NewHandler builds an HTTP handler bound to a controller instance.
func NewHandler(ctrl Controller, log zerolog.Logger) *Handler {
	return &Handler{ctrl: ctrl, log: log.With().Str("handler", "httpapi").Logger()}
}

// NewRouter assembles the full chi router: CORS, status, and command routes.
func NewRouter(ctrl Controller, log zerolog.Logger) http.Handler {
	h := NewHandler(ctrl, log)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/status", h.HandleGetStatus)
	r.Get("/status/text", h.HandleGetStatusText)
	r.Post("/irrigation/auto", h.HandleStartAuto)
	r.Post("/irrigation/manual/{circuit_id}", h.HandleStartManual)
	r.Post("/irrigation/stop", h.HandleStopAll)

	return r
}

// HandleGetStatus handles GET /status: the structured status message (§6).
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	msg := h.ctrl.GetStatusMessage()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(msg); err != nil {
		h.log.Error().Err(err).Msg("failed to encode status response")
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// HandleGetStatusText handles GET /status/text: the legacy text status line
// from spec.md §6 — "Controller State:<S>, Auto Enabled:<bool>, Auto
// Paused:<bool>, Currently Irrigating Zones:[<ids>]".
func (h *Handler) HandleGetStatusText(w http.ResponseWriter, r *http.Request) {
	msg := h.ctrl.GetStatusMessage()

	var irrigating []int
	for _, z := range msg.Zones {
		if z.Active {
			irrigating = append(irrigating, z.CircuitID)
		}
	}

	line := fmt.Sprintf("Controller State:%s, Auto Enabled:%t, Auto Paused:%t, Currently Irrigating Zones:%v",
		msg.ControllerState, msg.AutoEnabled, msg.AutoPaused, irrigating)

	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, line)
}

// HandleStartAuto handles POST /irrigation/auto: start_auto(). Dispatches
// and returns immediately, per spec.md §6.
func (h *Handler) HandleStartAuto(w http.ResponseWriter, r *http.Request) {
	h.ctrl.StartAutoCycle(r.Context())
	w.WriteHeader(http.StatusAccepted)
}

// manualIrrigateRequest is the POST /irrigation/manual/{circuit_id} body.
type manualIrrigateRequest struct {
	Liters float64 `json:"liters"`
}

// HandleStartManual handles POST /irrigation/manual/{circuit_id}:
// start_manual(circuit_id, liters).
func (h *Handler) HandleStartManual(w http.ResponseWriter, r *http.Request) {
	circuitIDStr := chi.URLParam(r, "circuit_id")
	circuitID, err := strconv.Atoi(circuitIDStr)
	if err != nil {
		http.Error(w, "invalid circuit_id", http.StatusBadRequest)
		return
	}

	var req manualIrrigateRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	if err := h.ctrl.ManualIrrigate(r.Context(), circuitID, req.Liters); err != nil {
		h.log.Warn().Err(err).Int("circuit_id", circuitID).Msg("manual irrigation rejected")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// HandleStopAll handles POST /irrigation/stop: stop_all().
func (h *Handler) HandleStopAll(w http.ResponseWriter, r *http.Request) {
	h.ctrl.StopAllIrrigation()
	w.WriteHeader(http.StatusAccepted)
}
