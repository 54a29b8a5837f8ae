package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/hunttickets/backoffice_backend/accesscontrol"
	"github.com/hunttickets/backoffice_backend/config"
	"github.com/hunttickets/backoffice_backend/middlewares"
	"github.com/hunttickets/backoffice_backend/models"
	"github.com/hunttickets/backoffice_backend/models/reports"
	"github.com/hunttickets/backoffice_backend/settlement"
	"github.com/hunttickets/backoffice_backend/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App holds what the handlers need; main builds it from the gorm stores.
type App struct {
	Reports  *settlement.Service
	Access   *accesscontrol.Engine
	Advances models.AdvanceStore
}

func NewApp(stores *models.Stores) *App {
	return &App{
		Reports:  settlement.NewService(stores),
		Access:   accesscontrol.NewEngineFromConfig(stores),
		Advances: stores.Advances,
	}
}

func registerRoutes(r *gin.Engine, app *App) {
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	events := r.Group("/events/:eventId")
	events.GET("/financial-report", app.financialReportHandler)
	events.GET("/financial-report/export", app.exportReportHandler)
	events.GET("/settlement", app.settlementHandler)
	events.GET("/advances", app.listAdvancesHandler)
	events.POST("/advances", middlewares.RequireSession(), app.createAdvanceHandler)
	events.GET("/access-control/stats", app.accessStatsHandler)
	events.GET("/access-control/credentials", app.credentialsHandler)
	events.GET("/access-control/orphans", app.orphansHandler)
	events.GET("/access-control/missing", app.missingHandler)

	r.PUT("/advances/:id", middlewares.RequireSession(), app.updateAdvanceHandler)
	r.DELETE("/advances/:id", middlewares.RequireSession(), app.deleteAdvanceHandler)

	r.NoRoute(customNotFoundHandler)
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// writeError maps the error taxonomy onto HTTP statuses. Unknown errors are 500
// and go through c.Error so CustomErrorLogger picks them up.
func writeError(c *gin.Context, err error) {
	var fetchErr *utils.FetchError
	switch {
	case errors.Is(err, utils.ErrInvalidInput):
		body := gin.H{"error": err.Error()}
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			body["fields"] = utils.ProcessValidationErrors(validationErrors)
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &fetchErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "source": fetchErr.Source, "retryable": true})
	case errors.Is(err, utils.ErrFeeConfigMissing):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrLocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retryable": true})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (app *App) financialReportHandler(c *gin.Context) {
	result, err := app.Reports.FinancialReport(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (app *App) exportReportHandler(c *gin.Context) {
	ctx := c.Request.Context()
	eventId := c.Param("eventId")

	result, err := app.Reports.FinancialReport(ctx, eventId)
	if err != nil {
		writeError(c, err)
		return
	}
	if result.Report == nil {
		c.Status(http.StatusNoContent)
		return
	}
	advances, err := models.GetAdvances(ctx, app.Advances, eventId)
	if err != nil {
		writeError(c, utils.NewFetchError("advances", err))
		return
	}
	ledger := settlement.FoldAdvances(result.Report.SettlementAmount, advances)

	f, err := reports.ExportFinancialReport(result.Report, &ledger)
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", reports.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=settlement-%s.xlsx", eventId))
	if err := f.Write(c.Writer); err != nil {
		config.LogError(config.GetLogger(), "main", "exportReportHandler", "write xlsx", eventId, err)
	}
}

func (app *App) settlementHandler(c *gin.Context) {
	view, err := app.Reports.Settlement(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (app *App) listAdvancesHandler(c *gin.Context) {
	advances, err := models.GetAdvances(c.Request.Context(), app.Advances, c.Param("eventId"))
	if err != nil {
		writeError(c, err)
		return
	}
	if advances == nil {
		advances = []*models.Advance{}
	}
	c.JSON(http.StatusOK, gin.H{"data": advances})
}

func bindAdvance(c *gin.Context) (*models.NewAdvance, bool) {
	var input models.NewAdvance
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return nil, false
	}
	return &input, true
}

func (app *App) createAdvanceHandler(c *gin.Context) {
	input, ok := bindAdvance(c)
	if !ok {
		return
	}
	advance, err := models.CreateAdvance(c.Request.Context(), app.Advances, c.Param("eventId"), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, advance)
}

func (app *App) updateAdvanceHandler(c *gin.Context) {
	input, ok := bindAdvance(c)
	if !ok {
		return
	}
	advance, err := models.UpdateAdvance(c.Request.Context(), app.Advances, c.Param("id"), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, advance)
}

func (app *App) deleteAdvanceHandler(c *gin.Context) {
	advance, err := models.DeleteAdvance(c.Request.Context(), app.Advances, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, advance)
}

func (app *App) accessStatsHandler(c *gin.Context) {
	stats, err := app.Access.Stats(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (app *App) missingHandler(c *gin.Context) {
	report, err := app.Access.MissingByTransaction(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (app *App) orphansHandler(c *gin.Context) {
	report, err := app.Access.DetectOrphans(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// parseListInput reads page, pageSize, search, scanned and source from the query string.
func parseListInput(c *gin.Context) (accesscontrol.ListInput, error) {
	in := accesscontrol.ListInput{
		EventId: c.Param("eventId"),
		Search:  c.Query("search"),
	}
	var err error
	if v := c.Query("page"); v != "" {
		if in.Page, err = strconv.Atoi(v); err != nil {
			return in, utils.InvalidInput("page must be a number")
		}
	}
	if v := c.Query("pageSize"); v != "" {
		if in.PageSize, err = strconv.Atoi(v); err != nil {
			return in, utils.InvalidInput("pageSize must be a number")
		}
	}
	if v := c.Query("scanned"); v != "" {
		scanned, err := strconv.ParseBool(v)
		if err != nil {
			return in, utils.InvalidInput("scanned must be true or false")
		}
		in.Scanned = &scanned
	}
	if v := c.Query("source"); v != "" {
		source, err := models.ParseChannel(v)
		if err != nil {
			return in, err
		}
		in.Source = &source
	}
	return in, nil
}

func (app *App) credentialsHandler(c *gin.Context) {
	in, err := parseListInput(c)
	if err != nil {
		writeError(c, err)
		return
	}
	page, err := app.Access.ListCredentials(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
