package server

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/jobfinder/assistant/internal/indexer"
)

// JobsHandler serves the indexing endpoints.
type JobsHandler struct {
	ix *indexer.Indexer
}

// NewJobsHandler creates a JobsHandler.
func NewJobsHandler(ix *indexer.Indexer) *JobsHandler {
	return &JobsHandler{ix: ix}
}

type reindexResponse struct {
	JobID     int64 `json:"job_id"`
	Inserted  int   `json:"inserted"`
	Updated   int   `json:"updated"`
	Unchanged int   `json:"unchanged"`
	Deleted   int   `json:"deleted"`
	Failed    int   `json:"failed"`
	Coalesced bool  `json:"coalesced,omitempty"`
}

// Reindex rebuilds the retrieval documents for one job. A request while a
// reindex for the same job is in flight is coalesced and reports so.
func (h *JobsHandler) Reindex(c *fiber.Ctx) error {
	jobID, err := parseJobID(c)
	if err != nil {
		return respondError(c, http.StatusBadRequest, "invalid job id")
	}

	report, err := h.ix.Reindex(c.Context(), jobID)
	if err != nil {
		return respondAppError(c, err)
	}
	return respondJSON(c, http.StatusOK, reindexResponse{
		JobID:     report.JobID,
		Inserted:  report.Inserted,
		Updated:   report.Updated,
		Unchanged: report.Unchanged,
		Deleted:   report.Deleted,
		Failed:    report.Failed,
		Coalesced: report.Coalesced,
	})
}

// Delete removes a job's retrieval documents and nulls chat references to
// it. The crawler owns the job row itself.
func (h *JobsHandler) Delete(c *fiber.Ctx) error {
	jobID, err := parseJobID(c)
	if err != nil {
		return respondError(c, http.StatusBadRequest, "invalid job id")
	}
	if err := h.ix.DeleteJob(c.Context(), jobID); err != nil {
		return respondAppError(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseJobID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}
