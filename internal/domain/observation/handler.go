package observation

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careflow/careflow/internal/domain/catalog"
	"github.com/careflow/careflow/internal/platform/auth"
	"github.com/careflow/careflow/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse", "lab_tech"))
	readGroup.GET("/observations/:id", h.Get)
	readGroup.GET("/observations/:id/children", h.ListChildren)
	readGroup.GET("/patients/:patientId/observations", h.ListByPatient)

	entryGroup := api.Group("", auth.RequireRole("admin", "physician", "lab_tech"))
	entryGroup.POST("/observations", h.Add)
	entryGroup.PUT("/observations/:id/result", h.RecordResult)
	entryGroup.PUT("/observations/:id/edit", h.EditResult)
	entryGroup.POST("/observations/:id/notes", h.AddNote)

	approveGroup := api.Group("", auth.RequireRole("admin", "physician"))
	approveGroup.POST("/observations/:id/approve", h.Approve)
	approveGroup.POST("/observations/:id/cancel", h.Cancel)
	approveGroup.POST("/observations/:id/entered-in-error", h.MarkEnteredInError)
}

type addRequest struct {
	PatientID     uuid.UUID        `json:"patient_id"`
	TemplateID    uuid.UUID        `json:"observation_template_id"`
	DataType      catalog.DataType `json:"permitted_data_type"`
	ResultValue   string           `json:"result_value"`
	SourceDoctype string           `json:"source_doctype"`
	SourceID      *uuid.UUID       `json:"source_id"`
	ParentID      *uuid.UUID       `json:"parent_observation"`
	SpecimenID    *uuid.UUID       `json:"specimen_id"`
	InvoiceRef    *string          `json:"invoice_ref"`
	AsOf          string           `json:"as_of"`
}

func (h *Handler) Add(c echo.Context) error {
	var req addRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var asOf time.Time
	if req.AsOf != "" {
		t, err := time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid as_of date")
		}
		asOf = t
	}
	o, err := h.svc.AddObservation(c.Request().Context(), AddObservationInput{
		PatientID:     req.PatientID,
		TemplateID:    req.TemplateID,
		DataType:      req.DataType,
		ResultValue:   req.ResultValue,
		SourceDoctype: req.SourceDoctype,
		SourceID:      req.SourceID,
		ParentID:      req.ParentID,
		SpecimenID:    req.SpecimenID,
		InvoiceRef:    req.InvoiceRef,
		AsOf:          asOf,
	})
	if err != nil {
		return statusFor(err)
	}
	return c.JSON(http.StatusCreated, o)
}

type resultRequest struct {
	Value    string           `json:"value"`
	DataType catalog.DataType `json:"permitted_data_type"`
}

func (h *Handler) RecordResult(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req resultRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o, err := h.svc.RecordResult(c.Request().Context(), id, req.Value)
	if err != nil {
		return statusFor(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) EditResult(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req resultRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o, err := h.svc.EditResult(c.Request().Context(), id, req.DataType, req.Value)
	if err != nil {
		return statusFor(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) AddNote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Note string `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddNote(c.Request().Context(), id, req.Note); err != nil {
		return statusFor(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.svc.Approve(c.Request().Context(), id)
	if err != nil {
		return statusFor(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Cancel(c.Request().Context(), id); err != nil {
		return statusFor(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkEnteredInError(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.svc.MarkEnteredInError(c.Request().Context(), id)
	if err != nil {
		return statusFor(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "observation not found")
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) ListChildren(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListChildren(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func statusFor(err error) *echo.HTTPError {
	if errors.Is(err, ErrInvalidResultFormat) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}
