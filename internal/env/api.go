package environment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-faster/jx"

	"gitstar-worker/internal/stories/jobs"
)

const maxRequestBody = 64 << 10

type enqueuer interface {
	Enqueue(ctx context.Context, payload jobs.Payload) (int64, error)
}

type notifier interface {
	Notify()
}

// apiHandler serves the admin endpoints that feed the workers.
type apiHandler struct {
	jobs               enqueuer
	starScan           notifier
	defaultTokenUserID int64
	logger             *slog.Logger
}

func newAPIHandler(jobs enqueuer, starScan notifier, defaultTokenUserID int64, logger *slog.Logger) *apiHandler {
	return &apiHandler{
		jobs:               jobs,
		starScan:           starScan,
		defaultTokenUserID: defaultTokenUserID,
		logger:             logger,
	}
}

func (h *apiHandler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs/update-user", h.enqueueUpdateUser)
	mux.HandleFunc("POST /star-scan/wake", h.wakeStarScan)
	return mux
}

func (h *apiHandler) enqueueUpdateUser(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	payload, err := decodeEnqueueRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request: "+err.Error())
		return
	}
	if payload.TokenUserID == 0 {
		payload.TokenUserID = h.defaultTokenUserID
	}

	id, err := h.jobs.Enqueue(r.Context(), payload)
	switch {
	case errors.Is(err, jobs.ErrMalformedPayload):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("Failed to enqueue update user job", "error", err)
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}

	h.logger.Info("Update user job enqueued", "job_id", id, "kind", payload.Kind())

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("job_id", func(e *jx.Encoder) { e.Int64(id) })
	})
	writeJSON(w, http.StatusAccepted, e.Bytes())
}

// decodeEnqueueRequest reads {"user_id"|"user_name", "token_user_id"?}.
// Validation is left to the job service once defaults are applied.
func decodeEnqueueRequest(body []byte) (jobs.Payload, error) {
	var p jobs.Payload
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "user_id":
			v, err := d.Int64()
			if err != nil {
				return err
			}
			p.UserID = &v
		case "user_name":
			v, err := d.Str()
			if err != nil {
				return err
			}
			p.UserName = &v
		case "token_user_id":
			v, err := d.Int64()
			if err != nil {
				return err
			}
			p.TokenUserID = v
		default:
			return d.Skip()
		}
		return nil
	})
	return p, err
}

func (h *apiHandler) wakeStarScan(w http.ResponseWriter, _ *http.Request) {
	h.starScan.Notify()
	w.WriteHeader(http.StatusAccepted)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("error", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, status, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
