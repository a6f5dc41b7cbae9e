package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	auditrepo "github.com/clinicmgr/clinic/internal/database/audit"
	"github.com/clinicmgr/clinic/internal/entities"
)

type AuditController struct {
	reader AuditReader
}

func NewAuditController(reader AuditReader) *AuditController {
	return &AuditController{reader: reader}
}

// Events returns the activity log, newest first, filtered by ?user_id=,
// ?type=, ?entity=, ?entity_id= and ?since=YYYY-MM-DD.
// GET /api/audit
func (ac *AuditController) Events(c *gin.Context) {
	limit, offset := parsePagination(c, 50, 500)
	filter := auditrepo.Filter{
		EventType:  entities.AuditEventType(c.Query("type")),
		EntityType: strings.TrimSpace(c.Query("entity")),
		Limit:      limit,
		Offset:     offset,
	}

	userID, ok := parseOptionalQueryID(c, "user_id")
	if !ok {
		return
	}
	if userID != nil {
		filter.UserID = *userID
	}
	entityID, ok := parseOptionalQueryID(c, "entity_id")
	if !ok {
		return
	}
	if entityID != nil {
		filter.EntityID = *entityID
	}
	if since := c.Query("since"); since != "" {
		t, err := time.ParseInLocation(entities.DayLayout, since, time.Local)
		if err != nil {
			respondBadRequest(c, "invalid since, expected YYYY-MM-DD")
			return
		}
		filter.Since = t
	}

	events, total, err := ac.reader.Events(filter)
	if err != nil {
		respondInternalError(c, err, "load audit events")
		return
	}
	c.JSON(http.StatusOK, paginated(emptyIfNil(events), total, limit, offset))
}

// ForRecord returns the history of one record.
// GET /api/audit/:entity/:id
func (ac *AuditController) ForRecord(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	events, err := ac.reader.ForRecord(c.Param("entity"), id)
	if err != nil {
		respondInternalError(c, err, "load record history")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(events))
}
