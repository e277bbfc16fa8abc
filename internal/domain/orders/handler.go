package orders

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	readGroup.GET("/service-requests", h.List)
	readGroup.GET("/service-requests/:id", h.Get)
	readGroup.GET("/order-groups/:orderGroup/service-requests", h.ListByOrderGroup)

	orderGroup := api.Group("", auth.RequireRole("admin", "physician"))
	orderGroup.POST("/service-requests", h.Create)
	orderGroup.POST("/service-requests/:id/activate", h.Activate)
	orderGroup.POST("/service-requests/:id/fan-out", h.FanOut)
	orderGroup.POST("/service-requests/:id/cancel", h.Cancel)
	orderGroup.POST("/order-groups/:orderGroup/cancel", h.CancelCascade)

	billingGroup := api.Group("", auth.RequireRole("admin", "billing"))
	billingGroup.POST("/service-requests/:id/invoice", h.UpdateInvoiceDetails)

	taskGroup := api.Group("", auth.RequireRole("admin", "nurse"))
	taskGroup.GET("/service-requests/:id/tasks", h.ListNursingTasks)
	taskGroup.POST("/service-requests/:id/task-done", h.MarkTaskDone)
}

func (h *Handler) Create(c echo.Context) error {
	var sr ServiceRequest
	if err := c.Bind(&sr); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateServiceRequest(c.Request().Context(), &sr); err != nil {
		return statusFor(err)
	}
	return c.JSON(http.StatusCreated, sr)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sr, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "service request not found")
	}
	return c.JSON(http.StatusOK, sr)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByOrderGroup(c echo.Context) error {
	orderGroup, err := uuid.Parse(c.Param("orderGroup"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order group")
	}
	items, err := h.svc.ListByOrderGroup(c.Request().Context(), orderGroup)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Activate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sr, err := h.svc.Activate(c.Request().Context(), id)
	if err != nil {
		return statusFor(err)
	}
	return c.JSON(http.StatusOK, sr)
}

func (h *Handler) FanOut(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	result, err := h.svc.FanOut(c.Request().Context(), id)
	if err != nil {
		return statusFor(err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sr, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return statusFor(err)
	}
	return c.JSON(http.StatusOK, sr)
}

func (h *Handler) CancelCascade(c echo.Context) error {
	orderGroup, err := uuid.Parse(c.Param("orderGroup"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order group")
	}
	cancelled, err := h.svc.CancelCascade(c.Request().Context(), orderGroup)
	if err != nil {
		var cascadeErr *CancelCascadeError
		if errors.As(err, &cascadeErr) {
			return c.JSON(http.StatusMultiStatus, map[string]interface{}{
				"cancelled": cancelled,
				"error":     cascadeErr.Error(),
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"cancelled": cancelled})
}

func (h *Handler) UpdateInvoiceDetails(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Qty int `json:"qty"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sr, err := h.svc.UpdateInvoiceDetails(c.Request().Context(), id, req.Qty)
	if err != nil {
		return statusFor(err)
	}
	return c.JSON(http.StatusOK, sr)
}

func (h *Handler) ListNursingTasks(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	tasks, err := h.svc.ListNursingTasks(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "service request not found")
	}
	return c.JSON(http.StatusOK, tasks)
}

func (h *Handler) MarkTaskDone(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.MarkTaskDone(c.Request().Context(), id); err != nil {
		return statusFor(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func statusFor(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrPaymentRequired):
		return echo.NewHTTPError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, ErrMissingTemplateReference), errors.Is(err, ErrMissingMedicationReference):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
