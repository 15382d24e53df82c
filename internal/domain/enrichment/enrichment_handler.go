package enrichment

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
	"github.com/FACorreiaa/aqarbay-api/pkg/httpx"
)

type Handler struct {
	queue  *Queue
	logger *slog.Logger
}

func NewHandler(queue *Queue, logger *slog.Logger) *Handler {
	return &Handler{queue: queue, logger: logger}
}

func jobID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid job id", types.ErrBadRequest)
	}
	return id, nil
}

// GetJob serves GET /api/admin/enrichment/jobs/{id}. With ?wait=true it
// blocks until the job finishes or the request is cancelled.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	var job types.EnrichmentJob
	if r.URL.Query().Get("wait") == "true" {
		job, err = h.queue.Await(r.Context(), id)
		if err != nil && job.ID == uuid.Nil {
			httpx.WriteError(w, r, err)
			return
		}
	} else {
		job, err = h.queue.Get(id)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, job)
}

// CancelJob serves DELETE /api/admin/enrichment/jobs/{id}.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	job, err := h.queue.Cancel(id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "enrichment job cancel requested",
		slog.String("job_id", id.String()),
		slog.String("status", string(job.Status)))
	httpx.WriteJSON(w, http.StatusAccepted, job)
}
