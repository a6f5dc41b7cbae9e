package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/clinicmgr/clinic/internal/auth"
	"github.com/clinicmgr/clinic/internal/entities"
)

// GetUserID extracts the authenticated user's ID from the Gin context.
// Returns auth.DefaultUserID (0) when auth is disabled.
func GetUserID(c *gin.Context) uint {
	return auth.GetUserID(c)
}

// userRef returns the user ID for nullable "created by" columns.
func userRef(c *gin.Context) *uint {
	id := GetUserID(c)
	if id == 0 {
		return nil
	}
	return &id
}

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // additional context (validation errors, etc.)
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// PaginatedResponse wraps paginated data with metadata.
type PaginatedResponse struct {
	Data       any   `json:"data"`
	Total      int64 `json:"total"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	HasMore    bool  `json:"has_more"`
	TotalPages int   `json:"total_pages,omitempty"`
}

// --- Error Response Helpers ---

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found"})
}

// respondInternalError logs the error and sends a 500 Internal Server Error response.
// The actual error is logged but not exposed to the client.
func respondInternalError(c *gin.Context, err error, context string) {
	log.Error().Err(err).Str("context", context).Str("request_id", requestID(c)).Msg("internal error")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// respondError sends an error response with the given status code.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// respondStoreError maps a repository error to its status. Known sentinels
// are echoed; anything else is logged and hidden behind a 500.
func respondStoreError(c *gin.Context, err error, context string) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		respondInternalError(c, err, context)
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// --- Success Response Helpers ---

func respondSuccess(c *gin.Context, message string) {
	c.JSON(http.StatusOK, SuccessResponse{Message: message})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// respondAccepted sends a 202 Accepted response (for async operations).
func respondAccepted(c *gin.Context, message string, data any) {
	c.JSON(http.StatusAccepted, SuccessResponse{Message: message, Data: data})
}

// --- Parameter Parsing ---

// parseIDParam extracts and validates an unsigned integer ID from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (uint, bool) {
	idStr := c.Param(paramName)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}

// parseOptionalQueryID reads an optional ID filter such as ?doctor_id=.
func parseOptionalQueryID(c *gin.Context, paramName string) (*uint, bool) {
	idStr := c.Query(paramName)
	if idStr == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid "+paramName)
		return nil, false
	}
	v := uint(id)
	return &v, true
}

// parseDayQuery reads a YYYY-MM-DD query value, defaulting to today.
func parseDayQuery(c *gin.Context, name string, now time.Time) (string, bool) {
	day := c.Query(name)
	if day == "" {
		return now.Format(entities.DayLayout), true
	}
	if _, err := time.Parse(entities.DayLayout, day); err != nil {
		respondBadRequest(c, "invalid "+name+", expected YYYY-MM-DD")
		return "", false
	}
	return day, true
}

// parseRangeQuery reads ?from=&to=, defaulting to the current month.
func parseRangeQuery(c *gin.Context, now time.Time) (string, string, bool) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	from := c.DefaultQuery("from", monthStart.Format(entities.DayLayout))
	to := c.DefaultQuery("to", now.Format(entities.DayLayout))

	fromDay, err := time.Parse(entities.DayLayout, from)
	if err != nil {
		respondBadRequest(c, "invalid from, expected YYYY-MM-DD")
		return "", "", false
	}
	toDay, err := time.Parse(entities.DayLayout, to)
	if err != nil {
		respondBadRequest(c, "invalid to, expected YYYY-MM-DD")
		return "", "", false
	}
	if toDay.Before(fromDay) {
		respondBadRequest(c, "to must not be before from")
		return "", "", false
	}
	return from, to, true
}

// parsePagination reads ?limit=&offset= with a default and a hard cap.
func parsePagination(c *gin.Context, defaultLimit, maxLimit int) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func paginated(data any, total int64, limit, offset int) PaginatedResponse {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return PaginatedResponse{
		Data:       data,
		Total:      total,
		Limit:      limit,
		Offset:     offset,
		HasMore:    int64(offset+limit) < total,
		TotalPages: pages,
	}
}

// emptyIfNil keeps JSON lists as [] instead of null.
func emptyIfNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
