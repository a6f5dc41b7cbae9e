package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type ReportsController struct {
	reports ReportStore
	now     func() time.Time
}

func NewReportsController(reports ReportStore) *ReportsController {
	return &ReportsController{reports: reports, now: time.Now}
}

// Dashboard returns today's counters for the front desk.
// GET /api/reports/dashboard
func (rc *ReportsController) Dashboard(c *gin.Context) {
	d, err := rc.reports.Dashboard(c.Request.Context(), rc.now())
	if err != nil {
		respondInternalError(c, err, "dashboard")
		return
	}
	c.JSON(http.StatusOK, d)
}

// GET /api/reports/daily?day=
func (rc *ReportsController) Daily(c *gin.Context) {
	day, ok := parseDayQuery(c, "day", rc.now())
	if !ok {
		return
	}
	rep, err := rc.reports.Daily(c.Request.Context(), day)
	if err != nil {
		respondInternalError(c, err, "daily report")
		return
	}
	c.JSON(http.StatusOK, rep)
}

// Monthly defaults to the current month.
// GET /api/reports/monthly?year=&month=
func (rc *ReportsController) Monthly(c *gin.Context) {
	now := rc.now()
	year, err := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(now.Year())))
	if err != nil || year < 2000 || year > 9999 {
		respondBadRequest(c, "invalid year")
		return
	}
	month, err := strconv.Atoi(c.DefaultQuery("month", strconv.Itoa(int(now.Month()))))
	if err != nil || month < 1 || month > 12 {
		respondBadRequest(c, "month must be 1-12")
		return
	}

	rep, err := rc.reports.Monthly(c.Request.Context(), year, time.Month(month))
	if err != nil {
		respondInternalError(c, err, "monthly report")
		return
	}
	c.JSON(http.StatusOK, rep)
}

// Revenue sums paid amounts per invoice type for invoices issued in ?from..?to.
// GET /api/reports/revenue
func (rc *ReportsController) Revenue(c *gin.Context) {
	from, to, ok := parseRangeQuery(c, rc.now())
	if !ok {
		return
	}
	byType, err := rc.reports.RevenueByType(c.Request.Context(), from, to)
	if err != nil {
		respondInternalError(c, err, "revenue by type")
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "by_type": byType})
}

// Statistics collects the chart data for the reports page.
// GET /api/reports/statistics
func (rc *ReportsController) Statistics(c *gin.Context) {
	now := rc.now()
	from, to, ok := parseRangeQuery(c, now)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	visitTypes, err := rc.reports.VisitTypeStats(ctx, from, to)
	if err != nil {
		respondInternalError(c, err, "visit type statistics")
		return
	}
	appointments, err := rc.reports.AppointmentStats(ctx, from, to)
	if err != nil {
		respondInternalError(c, err, "appointment statistics")
		return
	}
	genders, err := rc.reports.PatientsByGender(ctx)
	if err != nil {
		respondInternalError(c, err, "gender breakdown")
		return
	}
	ages, err := rc.reports.PatientsByAgeGroup(ctx, now)
	if err != nil {
		respondInternalError(c, err, "age breakdown")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"from":               from,
		"to":                 to,
		"visit_types":        visitTypes,
		"appointments":       appointments,
		"patients_by_gender": genders,
		"patients_by_age":    ages,
	})
}
