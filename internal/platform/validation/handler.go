package validation

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// RuleSource resolves a named rule set such as a chart template.
type RuleSource func(name string) ([]Rule, bool)

type Handler struct {
	engine   *Engine
	registry *Registry
	catalog  RuleSource
}

func NewHandler(engine *Engine, registry *Registry, catalog RuleSource) *Handler {
	return &Handler{engine: engine, registry: registry, catalog: catalog}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/validation")
	g.GET("/validators", h.ListNamedValidators)
	g.POST("/evaluate", h.Evaluate)
	g.POST("/sessions", h.OpenSession)
	g.GET("/sessions/:sid", h.GetSession)
	g.DELETE("/sessions/:sid", h.CloseSession)
	g.POST("/sessions/:sid/fields", h.ValidateSessionField)
	g.GET("/sessions/:sid/fields/:field", h.GetSessionField)
	g.POST("/sessions/:sid/form", h.ValidateSessionForm)
	g.POST("/sessions/:sid/errors", h.AddSessionError)
	g.DELETE("/sessions/:sid/errors", h.ClearSessionErrors)
}

// ruleSelector lets callers reference a catalog rule set or send rules.
type ruleSelector struct {
	Template string     `json:"template,omitempty"`
	Rules    []RuleSpec `json:"rules,omitempty"`
}

func (h *Handler) resolveRules(sel ruleSelector) ([]Rule, error) {
	if sel.Template != "" {
		if h.catalog == nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "no rule catalog configured")
		}
		rules, ok := h.catalog(sel.Template)
		if !ok {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "unknown template: "+sel.Template)
		}
		return rules, nil
	}
	rules, err := ParseRules(sel.Rules)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return rules, nil
}

func (h *Handler) session(c echo.Context) (*Session, error) {
	s, err := h.registry.Get(c.Param("sid"))
	if err != nil {
		return nil, contextHTTPError(err)
	}
	return s, nil
}

func contextHTTPError(err error) error {
	var ce *ContextError
	if errors.As(err, &ce) {
		return echo.NewHTTPError(http.StatusConflict, ce.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) ListNamedValidators(c echo.Context) error {
	return c.JSON(http.StatusOK, NamedValidators())
}

type evaluateRequest struct {
	ruleSelector
	Data map[string]interface{} `json:"data"`
}

func (h *Handler) Evaluate(c echo.Context) error {
	var req evaluateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rules, err := h.resolveRules(req.ruleSelector)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.engine.EvaluateForm(req.Data, rules))
}

func (h *Handler) OpenSession(c echo.Context) error {
	id, _ := h.registry.Open()
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) GetSession(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	st, err := s.State()
	if err != nil {
		return contextHTTPError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) CloseSession(c echo.Context) error {
	h.registry.Close(c.Param("sid"))
	return c.NoContent(http.StatusNoContent)
}

type fieldRequest struct {
	ruleSelector
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

func (h *Handler) ValidateSessionField(c echo.Context) error {
	var req fieldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Field == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "field is required")
	}
	s, err := h.session(c)
	if err != nil {
		return err
	}
	rules, err := h.resolveRules(req.ruleSelector)
	if err != nil {
		return err
	}
	found, err := s.ValidateField(req.Field, req.Value, rules)
	if err != nil {
		return contextHTTPError(err)
	}
	st, err := s.State()
	if err != nil {
		return contextHTTPError(err)
	}
	if found == nil {
		found = []ValidationError{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"field":  req.Field,
		"issues": found,
		"state":  st,
	})
}

func (h *Handler) GetSessionField(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	field := c.Param("field")
	errs, err := s.FieldErrors(field)
	if err != nil {
		return contextHTTPError(err)
	}
	warns, err := s.FieldWarnings(field)
	if err != nil {
		return contextHTTPError(err)
	}
	infos, err := s.FieldInfos(field)
	if err != nil {
		return contextHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"field":    field,
		"errors":   errs,
		"warnings": warns,
		"infos":    infos,
	})
}

func (h *Handler) ValidateSessionForm(c echo.Context) error {
	var req evaluateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, err := h.session(c)
	if err != nil {
		return err
	}
	rules, err := h.resolveRules(req.ruleSelector)
	if err != nil {
		return err
	}
	st, err := s.ValidateForm(req.Data, rules)
	if err != nil {
		return contextHTTPError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) AddSessionError(c echo.Context) error {
	var ve ValidationError
	if err := c.Bind(&ve); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if ve.Field == "" || ve.Type == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "field and type are required")
	}
	if !ve.Severity.IsValid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid severity: "+string(ve.Severity))
	}
	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := s.AddError(ve); err != nil {
		return contextHTTPError(err)
	}
	st, err := s.State()
	if err != nil {
		return contextHTTPError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ClearSessionErrors(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	fields := c.QueryParams()["field"]
	if err := s.Clear(fields...); err != nil {
		return contextHTTPError(err)
	}
	st, err := s.State()
	if err != nil {
		return contextHTTPError(err)
	}
	return c.JSON(http.StatusOK, st)
}
