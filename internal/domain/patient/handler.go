package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/chart/internal/platform/auth"
	"github.com/ehr/chart/internal/platform/validation"
	"github.com/ehr/chart/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(append(auth.Clinicians, auth.RoleRegistrar)...))
	readGroup.GET("/patients", h.ListPatients)
	readGroup.GET("/patients/:pid", h.GetPatient)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleRegistrar))
	writeGroup.POST("/patients", h.CreatePatient)
}

type createRequest struct {
	ID        string `json:"id"`
	MRN       string `json:"mrn" validate:"required,max=64"`
	FirstName string `json:"first_name" validate:"required,max=128"`
	LastName  string `json:"last_name" validate:"required,max=128"`
	BirthDate string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Gender    string `json:"gender" validate:"omitempty,oneof=male female other unknown"`
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validation.ValidateStruct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p := &Patient{
		ID:        req.ID,
		MRN:       req.MRN,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		BirthDate: req.BirthDate,
		Gender:    req.Gender,
	}
	if err := h.svc.Register(c.Request().Context(), p); err != nil {
		if errors.Is(err, ErrDuplicateMRN) || errors.Is(err, ErrDuplicateID) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.Get(c.Request().Context(), c.Param("pid"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient "+c.Param("pid")+" not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	summaries := make([]Summary, len(patients))
	for i, p := range patients {
		summaries[i] = p.Summary()
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(summaries, total, pg.Limit, pg.Offset))
}
