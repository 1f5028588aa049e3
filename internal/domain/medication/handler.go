package medication

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/chart/internal/platform/auth"
	"github.com/ehr/chart/internal/platform/validation"
	"github.com/ehr/chart/pkg/pagination"
)

type Handler struct {
	mgr    *Manager
	engine *validation.Engine
}

func NewHandler(mgr *Manager, engine *validation.Engine) *Handler {
	return &Handler{mgr: mgr, engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/medications/discontinuation-reasons", h.ListDiscontinuationReasons)
	api.GET("/medications/form-rules", h.ListFormRules)

	read := api.Group("/patients/:pid/medications", auth.RequireRole(auth.Clinicians...))
	read.GET("", h.ListMedications)
	read.GET("/:mid", h.GetMedication)

	write := api.Group("/patients/:pid/medications", auth.RequireRole(auth.RolePhysician))
	write.POST("", h.CreateMedication)
	write.PATCH("/:mid", h.UpdateMedication)
	write.POST("/:mid/discontinue", h.DiscontinueMedication)
	write.POST("/:mid/status", h.ChangeStatus)
}

// httpError maps manager errors onto HTTP status codes.
func httpError(err error) error {
	var nf *NotFoundError
	var te *TransitionError
	switch {
	case errors.As(err, &nf):
		return echo.NewHTTPError(http.StatusNotFound, nf.Error())
	case errors.As(err, &te):
		return echo.NewHTTPError(http.StatusConflict, te.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

type dosageRequest struct {
	Amount float64 `json:"amount" validate:"gt=0,max_decimals=3"`
	Unit   string  `json:"unit" validate:"required,max=20"`
}

type frequencyRequest struct {
	Times  int    `json:"times" validate:"min=1,max=24"`
	Period Period `json:"period" validate:"oneof=daily weekly monthly"`
}

type createRequest struct {
	Name                  string             `json:"name" validate:"required,max=200"`
	GenericName           string             `json:"generic_name" validate:"max=200"`
	Dosage                dosageRequest      `json:"dosage"`
	Frequency             frequencyRequest   `json:"frequency"`
	Route                 Route              `json:"route" validate:"required"`
	StartDate             string             `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate               string             `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Status                Status             `json:"status" validate:"omitempty,oneof=active on-hold discontinued completed"`
	DiscontinuationReason string             `json:"discontinuation_reason"`
	PrescribedBy          *Prescriber        `json:"prescribed_by"`
	Indication            string             `json:"indication"`
	Notes                 string             `json:"notes"`
	Duration              *Duration          `json:"duration"`
	WeightBased           *WeightBasedDosing `json:"weight_based"`
}

func (r createRequest) toNew() NewMedication {
	in := NewMedication{
		Name:                  r.Name,
		GenericName:           r.GenericName,
		Dosage:                Dosage{Amount: r.Dosage.Amount, Unit: r.Dosage.Unit},
		Frequency:             Frequency{Times: r.Frequency.Times, Period: r.Frequency.Period},
		Route:                 r.Route,
		StartDate:             r.StartDate,
		EndDate:               r.EndDate,
		Status:                r.Status,
		DiscontinuationReason: r.DiscontinuationReason,
		Indication:            r.Indication,
		Notes:                 r.Notes,
		Duration:              r.Duration,
		WeightBased:           r.WeightBased,
	}
	if r.PrescribedBy != nil {
		in.PrescribedBy = *r.PrescribedBy
	}
	return in
}

type updateRequest struct {
	Name         *string            `json:"name" validate:"omitempty,min=1,max=200"`
	GenericName  *string            `json:"generic_name" validate:"omitempty,max=200"`
	Dosage       *dosageRequest     `json:"dosage"`
	Frequency    *frequencyRequest  `json:"frequency"`
	Route        *Route             `json:"route"`
	StartDate    *string            `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate      *string            `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	PrescribedBy *Prescriber        `json:"prescribed_by"`
	Indication   *string            `json:"indication"`
	Notes        *string            `json:"notes"`
	Duration     *Duration          `json:"duration"`
	WeightBased  *WeightBasedDosing `json:"weight_based"`
}

func (r updateRequest) toChanges() Changes {
	ch := Changes{
		Name:         r.Name,
		GenericName:  r.GenericName,
		Route:        r.Route,
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		PrescribedBy: r.PrescribedBy,
		Indication:   r.Indication,
		Notes:        r.Notes,
		Duration:     r.Duration,
		WeightBased:  r.WeightBased,
	}
	if r.Dosage != nil {
		ch.Dosage = &Dosage{Amount: r.Dosage.Amount, Unit: r.Dosage.Unit}
	}
	if r.Frequency != nil {
		ch.Frequency = &Frequency{Times: r.Frequency.Times, Period: r.Frequency.Period}
	}
	return ch
}

type discontinueRequest struct {
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status Status `json:"status" validate:"required"`
	Reason string `json:"reason"`
}

func (h *Handler) CreateMedication(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validation.ValidateStruct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	in := req.toNew()
	if in.PrescribedBy.ID == "" {
		if id, ok := auth.IdentityFromContext(c.Request().Context()); ok {
			in.PrescribedBy = Prescriber{ID: id.ID, Name: id.Name}
		}
	}

	state := h.engine.EvaluateForm(FormData(in), FormRules())
	if !state.IsValid {
		return c.JSON(http.StatusUnprocessableEntity, state)
	}

	med, err := h.mgr.Create(c.Request().Context(), c.Param("pid"), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, med)
}

func (h *Handler) GetMedication(c echo.Context) error {
	med, found, err := h.mgr.GetOne(c.Request().Context(), c.Param("pid"), c.Param("mid"))
	if err != nil {
		return httpError(err)
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "medication not found")
	}
	return c.JSON(http.StatusOK, med)
}

// ListMedications serves the all, active and history views of a
// patient's medication list, optionally filtered by status.
func (h *Handler) ListMedications(c echo.Context) error {
	ctx := c.Request().Context()
	pid := c.Param("pid")

	var (
		meds []Medication
		err  error
	)
	switch c.QueryParam("view") {
	case "", "all":
		meds, err = h.mgr.GetAll(ctx, pid)
	case "active":
		meds, err = h.mgr.GetActive(ctx, pid)
	case "history":
		meds, err = h.mgr.GetHistory(ctx, pid)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "view must be all, active or history")
	}
	if err != nil {
		return httpError(err)
	}

	if s := Status(c.QueryParam("status")); s != "" {
		if !s.IsValid() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status: "+string(s))
		}
		filtered := meds[:0]
		for _, m := range meds {
			if m.Status == s {
				filtered = append(filtered, m)
			}
		}
		meds = filtered
	}

	return c.JSON(http.StatusOK, pagination.Page(meds, pagination.FromContext(c)))
}

func (h *Handler) UpdateMedication(c echo.Context) error {
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validation.ValidateStruct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.mgr.Update(c.Request().Context(), c.Param("pid"), c.Param("mid"), req.toChanges())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) DiscontinueMedication(c echo.Context) error {
	var req discontinueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	state := h.engine.EvaluateForm(map[string]interface{}{"reason": req.Reason}, DiscontinueRules())
	if !state.IsValid {
		return c.JSON(http.StatusUnprocessableEntity, state)
	}
	med, err := h.mgr.Discontinue(c.Request().Context(), c.Param("pid"), c.Param("mid"), req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, med)
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validation.ValidateStruct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	med, err := h.mgr.ChangeStatus(c.Request().Context(), c.Param("pid"), c.Param("mid"), req.Status, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, med)
}

func (h *Handler) ListDiscontinuationReasons(c echo.Context) error {
	return c.JSON(http.StatusOK, DiscontinuationReasons)
}

func (h *Handler) ListFormRules(c echo.Context) error {
	return c.JSON(http.StatusOK, validation.Specs(FormRules()))
}
