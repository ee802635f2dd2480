package network

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/fernlabs/clover/pkg/context"
	networkpkg "github.com/fernlabs/clover/pkg/network"
)

var validate = validator.New()

type buildRequest struct {
	CompanyNumber string `validate:"required,alphanum,min=2,max=10"`
	PracticeID    string `validate:"required,max=128"`
}

// Handler handles network build and opportunity API endpoints
type Handler struct {
	builder       *networkpkg.Builder
	opportunities *networkpkg.OpportunityService
	logger        ectologger.Logger
}

// NewHandler creates a new network handler
func NewHandler(builder *networkpkg.Builder, opportunities *networkpkg.OpportunityService, logger ectologger.Logger) *Handler {
	return &Handler{
		builder:       builder,
		opportunities: opportunities,
		logger:        logger,
	}
}

// Register registers the network routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/:companyNumber/build", h.Build)
	g.GET("/:companyNumber/connections", h.GetCompanyConnections)
	g.GET("/opportunities", h.GetOpportunities)
	g.GET("/directors/:directorID/appointments", h.GetDirectorAppointments)
}

func (h *Handler) requireBuilder(c echo.Context) (*networkpkg.Builder, error) {
	// Prefer explicitly provided service (useful for tests), falling back to
	// DI-from-context.
	if h != nil && h.builder != nil {
		return h.builder, nil
	}

	ctx := c.Request().Context()
	_, builder, err := ectoinject.GetContext[*networkpkg.Builder](ctx)
	if err != nil || builder == nil {
		return nil, httperror.NewHTTPError(http.StatusServiceUnavailable, "network builder unavailable")
	}
	return builder, nil
}

func (h *Handler) requireOpportunities(c echo.Context) (*networkpkg.OpportunityService, error) {
	if h != nil && h.opportunities != nil {
		return h.opportunities, nil
	}

	ctx := c.Request().Context()
	_, svc, err := ectoinject.GetContext[*networkpkg.OpportunityService](ctx)
	if err != nil || svc == nil {
		return nil, httperror.NewHTTPError(http.StatusServiceUnavailable, "opportunity service unavailable")
	}
	return svc, nil
}

// Build triggers a network discovery for the practice's source company
// @Summary Build a company's director network
// @Description Walk the company's active officers and persist their network
// @Tags Network
// @Produce json
// @Param companyNumber path string true "Source company number"
// @Success 200 {object} models.BuildResult
// @Failure 400 {object} httperror.HTTPError
// @Failure 500 {object} httperror.HTTPError
// @Router /api/v1/network/{companyNumber}/build [post]
func (h *Handler) Build(c echo.Context) error {
	ctx := c.Request().Context()
	practiceID := context.GetPracticeID(ctx)

	builder, err := h.requireBuilder(c)
	if err != nil {
		return err
	}

	companyNumber := c.Param("companyNumber")
	if practiceID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "practice id header is required")
	}
	if err := validate.Struct(buildRequest{CompanyNumber: companyNumber, PracticeID: practiceID}); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := builder.Build(ctx, practiceID, companyNumber)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// GetOpportunities lists the practice's network opportunities
// @Summary List network opportunities
// @Description Return persisted warm-introduction opportunities, newest first
// @Tags Network
// @Produce json
// @Success 200 {array} models.NetworkOpportunity
// @Failure 400 {object} httperror.HTTPError
// @Failure 500 {object} httperror.HTTPError
// @Router /api/v1/network/opportunities [get]
func (h *Handler) GetOpportunities(c echo.Context) error {
	ctx := c.Request().Context()
	practiceID := context.GetPracticeID(ctx)

	svc, err := h.requireOpportunities(c)
	if err != nil {
		return err
	}

	if practiceID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "practice id header is required")
	}

	opportunities, err := svc.GetNetworkOpportunities(ctx, practiceID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, opportunities)
}

// GetCompanyConnections lists the connections discovered from one source company
// @Summary List a source company's connections
// @Description Return the connections discovered from one source company, newest first
// @Tags Network
// @Produce json
// @Param companyNumber path string true "Source company number"
// @Success 200 {array} models.NetworkOpportunity
// @Failure 400 {object} httperror.HTTPError
// @Failure 500 {object} httperror.HTTPError
// @Router /api/v1/network/{companyNumber}/connections [get]
func (h *Handler) GetCompanyConnections(c echo.Context) error {
	ctx := c.Request().Context()
	practiceID := context.GetPracticeID(ctx)

	svc, err := h.requireOpportunities(c)
	if err != nil {
		return err
	}

	companyNumber := c.Param("companyNumber")
	if practiceID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "practice id header is required")
	}
	if err := validate.Struct(buildRequest{CompanyNumber: companyNumber, PracticeID: practiceID}); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	connections, err := svc.GetCompanyConnections(ctx, practiceID, companyNumber)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, connections)
}

// GetDirectorAppointments lists a director's recorded appointment history
// @Summary List a director's appointments
// @Description Return the appointments recorded for a director, most recent first
// @Tags Network
// @Produce json
// @Param directorID path string true "Director id"
// @Success 200 {array} models.Appointment
// @Failure 400 {object} httperror.HTTPError
// @Failure 500 {object} httperror.HTTPError
// @Router /api/v1/network/directors/{directorID}/appointments [get]
func (h *Handler) GetDirectorAppointments(c echo.Context) error {
	ctx := c.Request().Context()

	svc, err := h.requireOpportunities(c)
	if err != nil {
		return err
	}

	directorID := c.Param("directorID")
	if directorID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "director id is required")
	}

	appointments, err := svc.GetDirectorAppointments(ctx, directorID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, appointments)
}
