package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"authgrid/api/internal/models"
	"authgrid/api/internal/repository"
)

type auditEntryResponse struct {
	ID          string                        `json:"id"`
	TargetTable string                        `json:"targetTable"`
	TargetID    string                        `json:"targetId"`
	Action      string                        `json:"action"`
	Changes     map[string]models.FieldChange `json:"changes,omitempty"`
	ActorID     string                        `json:"actorId,omitempty"`
	PerformedAt string                        `json:"performedAt"`
	IPAddress   string                        `json:"ipAddress,omitempty"`
	Endpoint    string                        `json:"endpoint,omitempty"`
	Context     map[string]any                `json:"context,omitempty"`
}

// ListAudit filters the trail by target, actor and time window. Snapshots
// stay out of the listing; the changes map is the reviewable diff.
func (h HandlerSet) ListAudit(c *gin.Context) {
	filter := repository.AuditFilter{
		TargetTable: c.Query("table"),
		TargetID:    c.Query("targetId"),
		ActorID:     c.Query("actorId"),
	}

	if raw := c.Query("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondFail(c, http.StatusBadRequest, "bad_input", "from must be RFC 3339")
			return
		}
		filter.From = ts
	}
	if raw := c.Query("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondFail(c, http.StatusBadRequest, "bad_input", "to must be RFC 3339")
			return
		}
		filter.To = ts
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondFail(c, http.StatusBadRequest, "bad_input", "limit must be a positive integer")
			return
		}
		if n > 500 {
			n = 500
		}
		filter.Limit = n
	}

	entries, err := h.audits.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:          e.ID,
			TargetTable: e.TargetTable,
			TargetID:    e.TargetID,
			Action:      string(e.Action),
			Changes:     e.Changes,
			ActorID:     e.ActorID,
			PerformedAt: e.PerformedAt.UTC().Format(time.RFC3339),
			IPAddress:   e.IPAddress,
			Endpoint:    e.Endpoint,
			Context:     e.Context,
		})
	}
	respond(c, http.StatusOK, gin.H{"entries": out})
}
