package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers the /api endpoints with the given router group.
//
// Endpoints:
//
//	GET  /api/health             - liveness
//	GET  /api/countries          - configured datasets
//	GET  /api/variables          - every variable of a dataset
//	GET  /api/search             - ranked variable search
//	GET  /api/variable/:name     - variable details and used-by
//	GET  /api/impact/:name       - variables affected by a change
//	POST /api/graph              - dependency graph
//	GET  /api/parameter/*path    - resolved parameter
//	POST /api/reload             - rebuild a dataset
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.GET("/health", handlers.HandleHealth)
	rg.GET("/countries", handlers.HandleCountries)
	rg.GET("/variables", handlers.HandleVariables)
	rg.GET("/search", handlers.HandleSearch)
	rg.GET("/variable/:name", handlers.HandleVariable)
	rg.GET("/impact/:name", handlers.HandleImpact)
	rg.POST("/graph", handlers.HandleGraph)
	rg.GET("/parameter/*path", handlers.HandleParameter)
	rg.POST("/reload", handlers.HandleReload)
}

// NewRouter builds the engine with middleware, the API group and the
// Prometheus endpoint.
func NewRouter(svc *Service, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(logger), Recovery(), CORS())
	RegisterRoutes(router.Group("/api"), NewHandlers(svc))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// NewHTTPServer wraps the router in an http.Server listening on addr.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
