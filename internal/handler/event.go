package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cortexai/ingest/internal/models"
	"github.com/rs/zerolog/log"
)

// PipelineRunner runs one invocation per trigger event.
type PipelineRunner interface {
	Run(ctx context.Context, event models.TriggerEvent) *models.RunResult
}

// RunRecorder persists terminal run summaries (the Postgres ledger).
type RunRecorder interface {
	Record(ctx context.Context, event models.TriggerEvent, res *models.RunResult, startedAt time.Time) error
}

// EventHandler receives storage trigger events, bare or Pub/Sub-wrapped.
type EventHandler struct {
	pipeline PipelineRunner
	recorder RunRecorder // optional
}

func NewEventHandler(p PipelineRunner, rec RunRecorder) *EventHandler {
	return &EventHandler{pipeline: p, recorder: rec}
}

// HandleGCSEvent handles POST /events/gcs
func (h *EventHandler) HandleGCSEvent(w http.ResponseWriter, r *http.Request) {
	event, err := decodeEvent(r)
	if err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid event payload: "+err.Error())
		return
	}
	if event.Bucket == "" || event.Name == "" {
		models.WriteError(w, http.StatusBadRequest, "event must carry bucket and name")
		return
	}

	startedAt := time.Now().UTC()
	res := h.pipeline.Run(r.Context(), event)

	if h.recorder != nil {
		if err := h.recorder.Record(r.Context(), event, res, startedAt); err != nil {
			log.Warn().Err(err).Str("invocation", res.InvocationID).Msg("run ledger write failed")
		}
	}

	code := http.StatusOK
	if res.Status == models.StatusFailed {
		code = http.StatusInternalServerError
		if res.ErrorKind == models.KindMalformedRequest {
			// Malformed names never become loadable; a retry would fail
			// identically, so tell the push source not to redeliver.
			code = http.StatusBadRequest
		}
	}
	models.WriteJSON(w, code, models.EventResponse{
		Status: string(res.Status),
		Result: res,
	})
}

// decodeEvent accepts either a bare {bucket,name} body or the Pub/Sub
// push envelope with base64 data.
func decodeEvent(r *http.Request) (models.TriggerEvent, error) {
	var event models.TriggerEvent

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return event, err
	}

	var envelope models.PubSubEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Message.Data != "" {
		data, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
		if err != nil {
			return event, err
		}
		raw = data
	}

	if err := json.Unmarshal(raw, &event); err != nil {
		return event, err
	}
	return event, nil
}
