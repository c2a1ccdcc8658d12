package triage

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/triage/internal/platform/auth"
	"github.com/ehr/triage/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("/triage", auth.RequireRole("admin", "physician", "nurse", "receptionist"))
	readGroup.GET("", h.SearchTriages)
	readGroup.GET("/queue", h.ListWaitingQueue)
	readGroup.GET("/protocols", h.ListProtocols)
	readGroup.GET("/stats", h.CountByLevel)
	readGroup.GET("/history/:id", h.GetHistory)
	readGroup.GET("/:id", h.GetTriage)

	writeGroup := api.Group("/triage", auth.RequireRole("admin", "physician", "nurse"))
	writeGroup.POST("", h.SubmitTriage)
	writeGroup.POST("/classify", h.Classify)
	writeGroup.POST("/:id/retriage", h.Retriage)
	writeGroup.POST("/:id/cancel", h.CancelTriage)
}

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// httpError maps err to an echo error carrying an ErrorBody.
func httpError(err error) error {
	status := http.StatusInternalServerError
	switch KindOf(err) {
	case KindValidation:
		status = http.StatusBadRequest
	case KindConflict:
		status = http.StatusConflict
	case KindNotFound:
		status = http.StatusNotFound
	}
	body := ErrorBody{Code: CodeOf(err), Message: "internal error"}
	var te *Error
	if errors.As(err, &te) && status != http.StatusInternalServerError {
		body.Message = te.Message
	}
	return echo.NewHTTPError(status, body).SetInternal(err)
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{Code: CodeInvalidRequest, Message: msg})
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, badRequest("invalid id")
	}
	return id, nil
}

func evaluator(c echo.Context) string {
	if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
		return uid
	}
	return "anonymous"
}

func (h *Handler) SubmitTriage(c echo.Context) error {
	var sub Submission
	if err := c.Bind(&sub); err != nil {
		return badRequest(err.Error())
	}
	rec, err := h.svc.SubmitTriage(c.Request().Context(), sub, evaluator(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Classify(c echo.Context) error {
	var sub Submission
	if err := c.Bind(&sub); err != nil {
		return badRequest(err.Error())
	}
	res, err := h.svc.Classify(sub)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Retriage(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var sub Submission
	if err := c.Bind(&sub); err != nil {
		return badRequest(err.Error())
	}
	rec, err := h.svc.Retriage(c.Request().Context(), id, sub, evaluator(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelTriage(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}
	if err := h.svc.CancelTriage(c.Request().Context(), id, req.Reason); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetTriage(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.GetTriage(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListWaitingQueue(c echo.Context) error {
	critical, _ := strconv.ParseBool(c.QueryParam("critical"))
	entries, err := h.svc.ListWaitingQueue(c.Request().Context(), critical)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  entries,
		"total": len(entries),
	})
}

func (h *Handler) GetHistory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.GetHistory(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

var searchParams = []string{"patient_id", "encounter_id", "level", "pathway", "status", "protocol", "complaint"}

func (h *Handler) SearchTriages(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := make(map[string]string)
	for _, k := range searchParams {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.SearchTriages(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListProtocols(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Engine().Catalog())
}

// CountByLevel reads from and to as RFC 3339 timestamps or plain dates.
// The window defaults to the last 24 hours.
func (h *Handler) CountByLevel(c echo.Context) error {
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	var err error
	if v := c.QueryParam("from"); v != "" {
		if from, err = parseTime(v); err != nil {
			return badRequest("invalid 'from'")
		}
	}
	if v := c.QueryParam("to"); v != "" {
		if to, err = parseTime(v); err != nil {
			return badRequest("invalid 'to'")
		}
	}
	counts, err := h.svc.CountByLevel(c.Request().Context(), from, to)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"from":   from,
		"to":     to,
		"counts": counts,
	})
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
