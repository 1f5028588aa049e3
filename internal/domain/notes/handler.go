package notes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/chart/internal/platform/auth"
	"github.com/ehr/chart/internal/platform/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/templates", h.ListTemplates)
	api.GET("/templates/:template/rules", h.GetTemplateRules)
	api.POST("/templates/:template/evaluate", h.EvaluateTemplate)
	api.POST("/templates/:template/completion", h.CheckCompletion)

	api.GET("/patients/:pid/chart-entries", h.ListEntries)
	api.GET("/patients/:pid/chart-entries/:eid", h.GetEntry)
	api.POST("/patients/:pid/chart-entries", h.CreateEntry, auth.RequireRole(auth.RolePhysician, auth.RoleNurse))
}

func httpError(err error) error {
	var nf *NotFoundError
	switch {
	case errors.As(err, &nf):
		return echo.NewHTTPError(http.StatusNotFound, nf.Error())
	case errors.Is(err, ErrUnknownTemplate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) template(c echo.Context) (TemplateType, error) {
	t := TemplateType(c.Param("template"))
	if !t.IsValid() {
		return "", echo.NewHTTPError(http.StatusNotFound, "unknown template: "+string(t))
	}
	return t, nil
}

func (h *Handler) ListTemplates(c echo.Context) error {
	return c.JSON(http.StatusOK, Templates())
}

func (h *Handler) GetTemplateRules(c echo.Context) error {
	t, err := h.template(c)
	if err != nil {
		return err
	}
	rules, _ := Rules(t)
	return c.JSON(http.StatusOK, validation.Specs(rules))
}

type dataRequest struct {
	Data map[string]interface{} `json:"data"`
}

func (h *Handler) EvaluateTemplate(c echo.Context) error {
	t, err := h.template(c)
	if err != nil {
		return err
	}
	var req dataRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st, err := h.svc.Evaluate(t, req.Data)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

// CheckCompletion reports whether the required fields of a template are
// filled in, which gates saving independently of warnings.
func (h *Handler) CheckCompletion(c echo.Context) error {
	t, err := h.template(c)
	if err != nil {
		return err
	}
	var req dataRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"template": t,
		"complete": ValidateRequiredFieldsCompletion(req.Data, t),
	})
}

type createEntryRequest struct {
	Template TemplateType           `json:"template" validate:"required"`
	Title    string                 `json:"title" validate:"max=200"`
	Data     map[string]interface{} `json:"data"`
}

func (h *Handler) CreateEntry(c echo.Context) error {
	var req createEntryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validation.ValidateStruct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	in := NewEntry{Template: req.Template, Title: req.Title, Data: req.Data}
	if id, ok := auth.IdentityFromContext(c.Request().Context()); ok {
		in.Author = Author{ID: id.ID, Name: id.Name}
	}

	entry, state, err := h.svc.Create(c.Request().Context(), c.Param("pid"), in)
	if err != nil {
		var vf *ValidationFailedError
		if errors.As(err, &vf) {
			return c.JSON(http.StatusUnprocessableEntity, vf.State)
		}
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"entry":      entry,
		"validation": state,
	})
}

func (h *Handler) ListEntries(c echo.Context) error {
	entries, err := h.svc.List(c.Request().Context(), c.Param("pid"))
	if err != nil {
		return httpError(err)
	}
	if t := TemplateType(c.QueryParam("template")); t != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Template == t {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) GetEntry(c echo.Context) error {
	entry, err := h.svc.Get(c.Request().Context(), c.Param("pid"), c.Param("eid"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entry)
}
