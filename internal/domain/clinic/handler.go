package clinic

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/eyecare/clinic/internal/platform/auth"
	"github.com/eyecare/clinic/pkg/pagination"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – every clinic role
	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleFrontDesk, auth.RoleBilling))
	read.GET("/patients", h.ListPatients)
	read.GET("/patients/:id", h.GetPatient)
	read.GET("/patients/:id/record", h.GetPatientRecord)
	read.GET("/patients/:id/balance", h.GetOutstandingBalance)
	read.GET("/appointments", h.ListAppointments)
	read.GET("/appointments/:id", h.GetAppointment)
	read.GET("/examinations", h.ListExaminations)
	read.GET("/examinations/:id", h.GetExamination)
	read.GET("/orders", h.ListOrders)
	read.GET("/orders/queue", h.GetLabOrderQueue)
	read.GET("/orders/:id", h.GetOrder)
	read.GET("/billing", h.ListBilling)
	read.GET("/billing/export", h.ExportBilling)
	read.GET("/billing/:id", h.GetBillingRecord)

	// Clinical and front office writes
	clinical := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleFrontDesk))
	clinical.POST("/patients", h.CreatePatient)
	clinical.PATCH("/patients/:id", h.UpdatePatient)
	clinical.DELETE("/patients/:id", h.DeletePatient)
	clinical.POST("/patients/:id/notes", h.AddPatientNote)
	clinical.POST("/appointments", h.CreateAppointment)
	clinical.PATCH("/appointments/:id", h.UpdateAppointment)
	clinical.DELETE("/appointments/:id", h.DeleteAppointment)
	clinical.POST("/examinations", h.CreateExamination)
	clinical.PATCH("/examinations/:id", h.UpdateExamination)
	clinical.DELETE("/examinations/:id", h.DeleteExamination)
	clinical.POST("/orders", h.CreateOrder)
	clinical.PATCH("/orders/:id", h.UpdateOrder)
	clinical.DELETE("/orders/:id", h.DeleteOrder)
	clinical.POST("/orders/queue/:index/up", h.MoveLabOrderUp)
	clinical.POST("/orders/queue/:index/down", h.MoveLabOrderDown)

	// Billing writes
	billing := api.Group("", auth.RequireRole(auth.RoleFrontDesk, auth.RoleBilling))
	billing.POST("/billing", h.CreateBillingRecord)
	billing.POST("/billing/link", h.LinkBilling)
	billing.PATCH("/billing/:id", h.UpdateBillingRecord)
	billing.DELETE("/billing/:id", h.DeleteBillingRecord)
}

// errorBody is the JSON error shape; Fields is set for validation failures.
type errorBody struct {
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// httpError maps service errors onto HTTP status codes.
func httpError(err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, errorBody{Message: ve.Error(), Fields: ve.Fields})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func bindError(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func deleted(entity, id string, ok bool, err error) error {
	if err != nil {
		return httpError(err)
	}
	if !ok {
		return httpError(notFound(entity, id))
	}
	return nil
}

func listResponse[T any](c echo.Context, items []T) error {
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewPage(items, pg))
}

// -- Patients --

func (h *Handler) ListPatients(c echo.Context) error {
	list, err := h.svc.SearchPatients(c.Request().Context(), c.QueryParam("q"), c.QueryParam("status"))
	if err != nil {
		return httpError(err)
	}
	return listResponse(c, list)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.GetPatientByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetPatientRecord(c echo.Context) error {
	rec, err := h.svc.GetPatientRecord(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) GetOutstandingBalance(c echo.Context) error {
	bal, err := h.svc.OutstandingBalance(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"patientId": c.Param("id"), "outstandingBalance": bal})
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return bindError(err)
	}
	created, err := h.svc.CreatePatient(c.Request().Context(), p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	var patch PatientPatch
	if err := c.Bind(&patch); err != nil {
		return bindError(err)
	}
	p, err := h.svc.UpdatePatient(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	ok, err := h.svc.DeletePatient(c.Request().Context(), c.Param("id"))
	if err := deleted("patient", c.Param("id"), ok, err); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddPatientNote(c echo.Context) error {
	var n Note
	if err := c.Bind(&n); err != nil {
		return bindError(err)
	}
	if n.Author == "" {
		n.Author = auth.UserIDFromContext(c.Request().Context())
	}
	p, err := h.svc.AddPatientNote(c.Request().Context(), c.Param("id"), n)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

// -- Appointments --

func (h *Handler) ListAppointments(c echo.Context) error {
	list, err := h.svc.FilterAppointments(c.Request().Context(), AppointmentFilter{
		Provider:  c.QueryParam("provider"),
		View:      c.QueryParam("view"),
		Date:      c.QueryParam("date"),
		Status:    c.QueryParam("status"),
		PatientID: c.QueryParam("patient_id"),
	})
	if err != nil {
		return httpError(err)
	}
	return listResponse(c, list)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	a, err := h.svc.GetAppointmentByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return bindError(err)
	}
	created, err := h.svc.CreateAppointment(c.Request().Context(), a)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	var patch AppointmentPatch
	if err := c.Bind(&patch); err != nil {
		return bindError(err)
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	ok, err := h.svc.DeleteAppointment(c.Request().Context(), c.Param("id"))
	if err := deleted("appointment", c.Param("id"), ok, err); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Examinations --

func (h *Handler) ListExaminations(c echo.Context) error {
	ctx := c.Request().Context()
	var list []Examination
	var err error
	if pid := c.QueryParam("patient_id"); pid != "" {
		list, err = h.svc.GetExaminationsByPatientID(ctx, pid)
	} else {
		list, err = h.svc.GetExaminations(ctx)
	}
	if err != nil {
		return httpError(err)
	}
	return listResponse(c, list)
}

func (h *Handler) GetExamination(c echo.Context) error {
	e, err := h.svc.GetExaminationByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) CreateExamination(c echo.Context) error {
	var e Examination
	if err := c.Bind(&e); err != nil {
		return bindError(err)
	}
	created, err := h.svc.CreateExamination(c.Request().Context(), e)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateExamination(c echo.Context) error {
	var patch ExaminationPatch
	if err := c.Bind(&patch); err != nil {
		return bindError(err)
	}
	e, err := h.svc.UpdateExamination(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteExamination(c echo.Context) error {
	ok, err := h.svc.DeleteExamination(c.Request().Context(), c.Param("id"))
	if err := deleted("examination", c.Param("id"), ok, err); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Orders --

func (h *Handler) ListOrders(c echo.Context) error {
	list, err := h.svc.FilterOrders(c.Request().Context(),
		c.QueryParam("patient_id"), c.QueryParam("status"), c.QueryParam("priority"))
	if err != nil {
		return httpError(err)
	}
	return listResponse(c, list)
}

func (h *Handler) GetOrder(c echo.Context) error {
	o, err := h.svc.GetOrderByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) CreateOrder(c echo.Context) error {
	var o Order
	if err := c.Bind(&o); err != nil {
		return bindError(err)
	}
	created, err := h.svc.CreateOrder(c.Request().Context(), o)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateOrder(c echo.Context) error {
	var patch OrderPatch
	if err := c.Bind(&patch); err != nil {
		return bindError(err)
	}
	o, err := h.svc.UpdateOrder(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) DeleteOrder(c echo.Context) error {
	ok, err := h.svc.DeleteOrder(c.Request().Context(), c.Param("id"))
	if err := deleted("order", c.Param("id"), ok, err); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetLabOrderQueue(c echo.Context) error {
	q, err := h.svc.LabOrderQueue(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) moveLabOrder(c echo.Context, move func(context.Context, int) (bool, error)) error {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid index")
	}
	ctx := c.Request().Context()
	moved, err := move(ctx, i)
	if err != nil {
		return httpError(err)
	}
	q, err := h.svc.LabOrderQueue(ctx)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"moved": moved, "queue": q})
}

func (h *Handler) MoveLabOrderUp(c echo.Context) error {
	return h.moveLabOrder(c, h.svc.MoveLabOrderUp)
}

func (h *Handler) MoveLabOrderDown(c echo.Context) error {
	return h.moveLabOrder(c, h.svc.MoveLabOrderDown)
}

// -- Billing --

func (h *Handler) ListBilling(c echo.Context) error {
	list, err := h.svc.FilterBilling(c.Request().Context(), c.QueryParam("patient_id"), c.QueryParam("status"))
	if err != nil {
		return httpError(err)
	}
	return listResponse(c, list)
}

func (h *Handler) GetBillingRecord(c echo.Context) error {
	b, err := h.svc.GetBillingRecordByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) CreateBillingRecord(c echo.Context) error {
	var b BillingRecord
	if err := c.Bind(&b); err != nil {
		return bindError(err)
	}
	created, err := h.svc.CreateBillingRecord(c.Request().Context(), b)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) LinkBilling(c echo.Context) error {
	var req LinkRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	b, err := h.svc.LinkBilling(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) UpdateBillingRecord(c echo.Context) error {
	var patch BillingPatch
	if err := c.Bind(&patch); err != nil {
		return bindError(err)
	}
	b, err := h.svc.UpdateBillingRecord(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) DeleteBillingRecord(c echo.Context) error {
	ok, err := h.svc.DeleteBillingRecord(c.Request().Context(), c.Param("id"))
	if err := deleted("billing record", c.Param("id"), ok, err); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ExportBilling(c echo.Context) error {
	pid := c.QueryParam("patient_id")
	data, err := h.svc.ExportBilling(c.Request().Context(), pid)
	if err != nil {
		return httpError(err)
	}
	name := "billing.xlsx"
	if pid != "" {
		name = "billing-" + pid + ".xlsx"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, xlsxContentType, data)
}
