package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rulegraph/internal/generator"
	"rulegraph/internal/graph"
	"rulegraph/internal/index"
	"rulegraph/internal/resolver"

	"github.com/gin-gonic/gin"
)

// Handlers holds the HTTP handlers of the API.
type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleHealth handles GET /api/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Success:   true,
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// HandleCountries handles GET /api/countries.
func (h *Handlers) HandleCountries(c *gin.Context) {
	c.JSON(http.StatusOK, CountriesResponse{
		Success:   true,
		Default:   h.svc.DefaultCountry(),
		Countries: h.svc.Datasets(),
	})
}

// HandleVariables handles GET /api/variables.
//
// Query Parameters:
//
//	country - dataset id (optional)
func (h *Handlers) HandleVariables(c *gin.Context) {
	ds, vars, err := h.svc.Variables(c.Request.Context(), c.Query("country"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, VariablesResponse{
		Success:   true,
		Country:   ds.Country,
		Variables: vars,
		Total:     len(vars),
	})
}

// HandleSearch handles GET /api/search.
//
// Query Parameters:
//
//	q       - search text; fewer than two characters returns no results
//	country - dataset id (optional)
func (h *Handlers) HandleSearch(c *gin.Context) {
	query := c.Query("q")
	ds, results, err := h.svc.Search(c.Request.Context(), c.Query("country"), query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SearchResponse{
		Success: true,
		Country: ds.Country,
		Query:   query,
		Results: results,
	})
}

// HandleVariable handles GET /api/variable/:name.
//
// Query Parameters:
//
//	country     - dataset id (optional)
//	detailLevel - Minimal, Summary or Full (default Summary)
//	date        - YYYY-MM-DD parameter date (default latest)
func (h *Handlers) HandleVariable(c *gin.Context) {
	level, asOf, err := valueOptions(c)
	if err != nil {
		writeError(c, err)
		return
	}
	ds, details, err := h.svc.Describe(c.Request.Context(), c.Query("country"), c.Param("name"), level, asOf)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, VariableResponse{
		Success:  true,
		Country:  ds.Country,
		Variable: details,
	})
}

// HandleGraph handles POST /api/graph.
//
// Request Body:
//
//	graph.Request; absent fields keep their defaults
//
// Query Parameters:
//
//	format - "vis" (default) or "mermaid"
func (h *Handlers) HandleGraph(c *gin.Context) {
	logger := requestLogger(c)

	req := graph.DefaultRequest()
	if n := h.svc.cfg.Graph.DefaultMaxDepth; n > 0 {
		req.MaxDepth = n
	}
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if q := c.Query("country"); q != "" && req.Country == "" {
		req.Country = q
	}

	format := strings.ToLower(c.DefaultQuery("format", "vis"))
	if format != "vis" && format != "mermaid" {
		writeError(c, invalidRequest("format must be vis or mermaid"))
		return
	}

	ds, g, err := h.svc.Graph(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	logger.Info("graph built",
		"country", req.Country,
		"variable", req.Variable,
		"nodes", len(g.Nodes),
		"edges", len(g.Edges))

	resp := GraphResponse{
		Success: true,
		Country: ds.Country,
		Stats:   g.Stats(),
	}
	if format == "mermaid" {
		resp.Mermaid = generator.NewMermaidGenerator().GenerateDependencyGraph(g)
	} else {
		resp.Graph = generator.NewFormatter(ds).Format(g, req)
	}
	c.JSON(http.StatusOK, resp)
}

// HandleParameter handles GET /api/parameter/*path.
//
// Query Parameters:
//
//	country     - dataset id (optional)
//	detailLevel - Minimal, Summary or Full (default Summary)
//	date        - YYYY-MM-DD (default latest)
func (h *Handlers) HandleParameter(c *gin.Context) {
	level, asOf, err := valueOptions(c)
	if err != nil {
		writeError(c, err)
		return
	}
	ds, info, err := h.svc.Parameter(c.Request.Context(), c.Query("country"), c.Param("path"), level, asOf)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ParameterResponse{
		Success:   true,
		Country:   ds.Country,
		Parameter: info,
	})
}

// HandleImpact handles GET /api/impact/:name.
//
// Query Parameters:
//
//	country - dataset id (optional)
//	hops    - maximum reverse distance, 0 for unbounded (default 0)
func (h *Handlers) HandleImpact(c *gin.Context) {
	hops := 0
	if raw := c.Query("hops"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, invalidRequest("hops must be a non-negative integer"))
			return
		}
		hops = n
	}
	ds, report, err := h.svc.Impact(c.Request.Context(), c.Query("country"), c.Param("name"), hops)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ImpactResponse{
		Success: true,
		Country: ds.Country,
		Impact:  report,
	})
}

// HandleReload handles POST /api/reload.
//
// Query Parameters:
//
//	country - dataset id (optional)
func (h *Handlers) HandleReload(c *gin.Context) {
	logger := requestLogger(c)
	ds, err := h.svc.Reload(c.Request.Context(), c.Query("country"))
	if err != nil {
		writeError(c, err)
		return
	}
	logger.Info("dataset reloaded", "country", ds.Country, "version", ds.Repo.Version())
	c.JSON(http.StatusOK, ReloadResponse{
		Success: true,
		Dataset: datasetInfo(ds),
	})
}

func valueOptions(c *gin.Context) (resolver.DetailLevel, time.Time, error) {
	level, err := resolver.ParseDetailLevel(c.DefaultQuery("detailLevel", string(resolver.Summary)))
	if err != nil {
		return "", time.Time{}, invalidRequest("detailLevel must be one of Minimal, Summary, Full")
	}
	var asOf time.Time
	if raw := c.Query("date"); raw != "" {
		asOf, err = resolver.ParseDate(raw)
		if err != nil {
			return "", time.Time{}, invalidRequest("date must be a YYYY-MM-DD date")
		}
	}
	return level, asOf, nil
}

func invalidRequest(msg string) error {
	return fmt.Errorf("%w: %s", graph.ErrInvalidRequest, msg)
}

// writeError maps domain errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, graph.ErrInvalidRequest):
		status, code = http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, graph.ErrVariableNotFound):
		status, code = http.StatusNotFound, "VARIABLE_NOT_FOUND"
	case errors.Is(err, ErrParameterNotFound):
		status, code = http.StatusNotFound, "PARAMETER_NOT_FOUND"
	case errors.Is(err, index.ErrUnknownDataset):
		status, code = http.StatusNotFound, "UNKNOWN_DATASET"
	}

	logger := requestLogger(c)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	} else {
		logger.Warn("request rejected", "status", status, "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func requestLogger(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}
