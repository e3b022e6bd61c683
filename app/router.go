// Package app wires shared HTTP routes for both local and Lambda execution.
package app

import (
	"time"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/metrics"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/auth"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the shared HTTP router for both local and Lambda execution.
func NewRouter(deps *Deps) (*gin.Engine, error) {
	h := &handlers{Deps: deps, log: logging.OrNop(deps.Log)}
	if deps.Profiles != nil {
		h.gate = newProfileGate(deps.Profiles)
	}

	router := gin.Default()
	router.Use(metrics.Middleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Stripe-Signature"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/api/health", h.health)
	router.GET("/api/intel", h.intel)
	router.GET("/api/products", h.listProducts)
	router.GET("/robots.txt", h.robots)
	router.GET("/metrics", metrics.Handler())
	router.GET("/api/property-search", h.propertySearch)
	router.POST("/api/webhooks/stripe", h.stripeWebhook)

	cron := router.Group("/api/cron", cronAuth(deps.CronSecret))
	cron.GET("/ingest", h.cronIngest)
	cron.POST("/ingest", h.cronIngest)
	cron.GET("/sentinel", h.cronSentinel)
	cron.POST("/sentinel", h.cronSentinel)

	protected := router.Group("/api")
	protected.Use(auth.Middleware(deps.Verifier, auth.MiddlewareConfig{
		Logger: h.log,
		OnAuthenticated: h.gate.OnAuthenticated,
	}))
	protected.POST("/profile/ensure", h.ensureProfile)
	protected.GET("/properties", h.listProperties)
	protected.POST("/properties", h.addProperty)
	protected.PATCH("/properties/:id", h.updateProperty)
	protected.DELETE("/properties/:id", h.deleteProperty)
	protected.POST("/properties/import", h.importProperties)
	protected.POST("/notifications/violation", h.sendViolation)
	protected.POST("/billing/checkout", h.startCheckout)
	protected.GET("/billing/status/:sessionId", h.checkoutStatus)
	protected.POST("/billing/portal", h.billingPortal)
	protected.GET("/onboarding/tier", h.onboardingTier)
	protected.GET("/onboarding/progress", h.onboardingProgress)
	protected.POST("/onboarding/milestones", h.markMilestone)

	return router, nil
}
