package mockdata

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/chart/internal/platform/auth"
	"github.com/ehr/chart/pkg/pagination"
)

// Handler serves the demo formulary and prescriber directory.
type Handler struct {
	catalog *Catalog
	doctors []Doctor
}

func NewHandler(catalog *Catalog, doctors []Doctor) *Handler {
	return &Handler{catalog: catalog, doctors: doctors}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.Clinicians...))
	read.GET("/drugs", h.SearchDrugs)
	read.GET("/doctors", h.ListDoctors)
}

type drugSearchResponse struct {
	*pagination.Response
	Suggestions []string `json:"suggestions,omitempty"`
}

// SearchDrugs handles GET /drugs?q=. A query with no match returns an empty
// page with "did you mean" suggestions.
func (h *Handler) SearchDrugs(c echo.Context) error {
	matches, suggestions := h.catalog.Search(c.QueryParam("q"))
	return c.JSON(http.StatusOK, drugSearchResponse{
		Response:    pagination.Page(matches, pagination.FromContext(c)),
		Suggestions: suggestions,
	})
}

func (h *Handler) ListDoctors(c echo.Context) error {
	return c.JSON(http.StatusOK, pagination.Page(h.doctors, pagination.FromContext(c)))
}
