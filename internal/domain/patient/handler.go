package patient

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/his/his-backend/internal/platform/middleware"
)

const (
	msgFetchFailed  = "Error fetching patients"
	msgAddFailed    = "Error adding patient"
	msgUpdateFailed = "Error updating patient"
	msgDeleteFailed = "Error deleting patient"

	msgAdded   = "Patient added"
	msgUpdated = "Patient updated"
	msgDeleted = "Patient deleted"
)

type MessageResponse struct {
	Message string `json:"message"`
}

type CreateResponse struct {
	Message   string `json:"message"`
	PatientID int64  `json:"patient_id"`
}

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients", h.ListPatients)
	g.POST("/patients", h.CreatePatient)
	g.PUT("/patients/:id", h.UpdatePatient)
	g.DELETE("/patients/:id", h.DeletePatient)
}

func (h *Handler) ListPatients(c echo.Context) error {
	records, err := h.svc.List(c.Request().Context())
	if err != nil {
		return h.fail(c, err, msgFetchFailed)
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var in PatientInput
	if err := c.Bind(&in); err != nil {
		return h.fail(c, err, msgAddFailed)
	}
	id, err := h.svc.Create(c.Request().Context(), &in)
	if err != nil {
		return h.fail(c, err, msgAddFailed)
	}
	return c.JSON(http.StatusCreated, CreateResponse{Message: msgAdded, PatientID: id})
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return h.fail(c, err, msgUpdateFailed)
	}
	var in PatientInput
	if err := c.Bind(&in); err != nil {
		return h.fail(c, err, msgUpdateFailed)
	}
	if err := h.svc.Update(c.Request().Context(), id, &in); err != nil {
		return h.fail(c, err, msgUpdateFailed, id)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: msgUpdated})
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		// An id that does not parse names no patient, so there is nothing to delete.
		h.logger.Debug().Err(err).Msg("delete of unparsable patient id")
		return c.JSON(http.StatusOK, MessageResponse{Message: msgDeleted})
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return h.fail(c, err, msgDeleteFailed, id)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: msgDeleted})
}

// fail logs the cause and answers 500 with the operation's message only.
func (h *Handler) fail(c echo.Context, err error, msg string, id ...int64) error {
	rid, _ := c.Get("request_id").(string)
	evt := h.logger.Error().Err(err).Str("request_id", rid)
	if len(id) > 0 {
		evt = evt.Int64("patient_id", id[0])
	}
	evt.Msg(msg)
	return c.JSON(http.StatusInternalServerError, middleware.ErrorResponse{Error: msg})
}

func patientID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidPatientID, c.Param("id"))
	}
	return id, nil
}
