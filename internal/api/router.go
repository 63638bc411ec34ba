// Package api exposes the diagnosis service over HTTP.
package api

import (
	"context"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/yuki5321/AIsindan/internal/diagnosis"
)

// DefaultMaxBodyBytes fits a 5 MiB image after base64 expansion.
const DefaultMaxBodyBytes = 8 << 20

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	ServiceName    string
	FrontendOrigin string
	AdminToken     string
	MaxBodyBytes   int64
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter builds the gin engine. db may be nil when the service runs
// without a database.
func NewRouter(svc *diagnosis.Service, db HealthChecker, opts Options) *gin.Engine {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "dermadx"
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestID(),
		otelgin.Middleware(opts.ServiceName),
		requestLogger(),
		limitBodySize(opts.MaxBodyBytes),
		cors.New(corsConfig(opts.FrontendOrigin)),
	)

	h := &handlers{svc: svc, db: db, service: opts.ServiceName}

	router.GET("/", h.banner)
	router.GET("/health", h.banner)
	router.GET("/healthz", h.healthz)
	router.GET("/readyz", h.readyz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}
	router.POST("/predict_image", rateLimit(limiter), h.predictImage)
	router.POST("/refine_diagnosis", h.refineDiagnosis)

	apiGroup := router.Group("/api")
	apiGroup.POST("/diagnose/symptoms", h.diagnoseSymptoms)
	apiGroup.GET("/conditions", h.listConditions)
	apiGroup.GET("/conditions/:id", h.getCondition)
	apiGroup.GET("/symptoms", h.listSymptoms)
	// Admin routes exist only when a token is configured.
	if opts.AdminToken != "" {
		apiGroup.POST("/admin/reload-index", requireToken(opts.AdminToken), h.reloadIndex)
	}

	return router
}

func corsConfig(origin string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if origin == "" || origin == "*" {
		cfg.AllowAllOrigins = true
		return cfg
	}
	for _, o := range strings.Split(origin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}
	return cfg
}
