package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/analytics"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/billing"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/products"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/search"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/validation"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	msgNotConfigured  = "Database not configured"
	msgInvalidRequest = "Invalid request body"

	maxWebhookBytes = int64(65536)
	maxImportBytes  = int64(2 << 20)
)

type handlers struct {
	*Deps
	log  *zap.Logger
	gate *profileGate
}

// resultStatus maps an action result onto HTTP. Store and processor
// failures stay 200 with ok:false, matching what the UI expects.
func resultStatus(r models.Result) int {
	switch {
	case r.OK:
		return http.StatusOK
	case r.Error == models.MsgNotAuthenticated:
		return http.StatusUnauthorized
	case len(r.Fields) > 0:
		return http.StatusBadRequest
	}
	return http.StatusOK
}

func notConfigured(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, models.Fail(msgNotConfigured))
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, models.Fail(msgInvalidRequest))
}

func (h *handlers) health(c *gin.Context) {
	payload := gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "DoggyBagg API",
		"version":   "1.0.0",
	}

	db := "skipped"
	switch {
	case h.DBErr != nil:
		db = "error"
	case h.DB != nil:
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			h.log.Warn("health check store read failed", zap.Error(err))
			db = "degraded"
		} else {
			db = "ok"
		}
	}
	payload["db"] = db

	status := http.StatusOK
	if db != "ok" && db != "skipped" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, payload)
}

func (h *handlers) intel(c *gin.Context) {
	site := h.SiteURL
	c.Header("Cache-Control", "public, s-maxage=3600, stale-while-revalidate=86400")
	c.JSON(http.StatusOK, gin.H{
		"name":        "DoggyBagg Ordinance",
		"description": "San Diego municipal compliance monitoring. Precision ordinance oversight for property investors.",
		"url":         site,
		"agentCard":   site + "/.well-known/agent.json",
		"schema": gin.H{
			"organization": site + "/#organization",
			"faq":          "Embedded FAQPage JSON-LD on homepage and /help",
		},
		"endpoints": gin.H{
			"homepage": site,
			"docs":     site + "/docs",
			"learn":    site + "/learn/str-compliance-san-diego",
			"help":     site + "/help",
			"refer":    site + "/refer",
		},
		"topics": []string{
			"San Diego ADU regulations",
			"STR permit compliance",
			"STRO license monitoring",
			"Code enforcement alerts",
			"Municipal ordinance updates",
			"San Diego land use",
		},
		"updatedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

type productView struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	PriceInCents  int64       `json:"priceInCents"`
	Price         string      `json:"price"`
	SearchCredits int         `json:"searchCredits"`
	Tier          models.Tier `json:"tier,omitempty"`
	Features      []string    `json:"features"`
	Mode          string      `json:"mode"`
}

func (h *handlers) listProducts(c *gin.Context) {
	all := products.All()
	out := make([]productView, 0, len(all))
	for _, p := range all {
		out = append(out, productView{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			PriceInCents:  p.PriceInCents,
			Price:         products.FormatPrice(p.PriceInCents),
			SearchCredits: p.SearchCredits,
			Tier:          p.Tier,
			Features:      p.Features,
			Mode:          p.Mode(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"products": out})
}

var disallowed = []string{"/dashboard", "/upload", "/checkout/", "/auth/", "/protected", "/api/"}

func (h *handlers) robots(c *gin.Context) {
	var b strings.Builder
	b.WriteString("User-Agent: *\nAllow: /\n")
	for _, p := range disallowed {
		b.WriteString("Disallow: " + p + "\n")
	}
	b.WriteString("\nSitemap: " + h.SiteURL + "/sitemap.xml\n")
	c.String(http.StatusOK, b.String())
}

func (h *handlers) propertySearch(c *gin.Context) {
	if h.Search == nil {
		c.JSON(http.StatusOK, gin.H{"results": []search.Result{}})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	results, err := h.Search.Search(ctx, c.Query("q"), c.ClientIP())
	if errors.Is(err, search.ErrRateLimited) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests", "results": []search.Result{}})
		return
	}
	if err != nil {
		h.log.Error("property search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed", "results": []search.Result{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// cronAuth requires "Authorization: Bearer <secret>". An unset secret locks
// the cron routes.
func cronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("Authorization")
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte("Bearer "+secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func (h *handlers) cronIngest(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Minute)
	defer cancel()

	res := h.Ingest.Run(ctx)
	if !res.Success {
		h.log.Warn("ingest sync failed", zap.Strings("errors", res.Errors))
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) cronSentinel(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Minute)
	defer cancel()

	out, err := h.Sentinel.Run(ctx)
	if err != nil {
		h.log.Error("sentinel run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": out})
}

func (h *handlers) stripeWebhook(c *gin.Context) {
	if h.Webhook == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": billing.ErrWebhookNotConfigured.Error()})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	res, err := h.Webhook.Handle(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		var sigErr *billing.SignatureError
		switch {
		case errors.Is(err, billing.ErrMissingSignature), errors.As(err, &sigErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.log.Error("stripe webhook failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) ensureProfile(c *gin.Context) {
	if h.Profiles == nil {
		notConfigured(c)
		return
	}
	res := h.Profiles.Ensure(c.Request.Context())
	if res.OK && h.gate != nil {
		h.gate.mark(auth.UserID(c.Request.Context()))
	}
	c.JSON(resultStatus(res), res)
}

func (h *handlers) listProperties(c *gin.Context) {
	if h.Properties == nil {
		notConfigured(c)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	res := h.Properties.List(ctx)
	c.JSON(resultStatus(res.Result), res)
}

func (h *handlers) addProperty(c *gin.Context) {
	if h.Properties == nil {
		notConfigured(c)
		return
	}
	var in validation.AddPropertyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	res := h.Properties.Add(ctx, in)
	if res.OK && res.Property != nil {
		h.track(c, analytics.EventPropertyAdded, map[string]any{"stro_tier": res.Property.STROTier})
	}
	c.JSON(resultStatus(res.Result), res)
}

func (h *handlers) updateProperty(c *gin.Context) {
	if h.Properties == nil {
		notConfigured(c)
		return
	}
	var in validation.UpdatePropertyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	res := h.Properties.Update(ctx, c.Param("id"), in)
	c.JSON(resultStatus(res), res)
}

func (h *handlers) deleteProperty(c *gin.Context) {
	if h.Properties == nil {
		notConfigured(c)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	res := h.Properties.Delete(ctx, c.Param("id"))
	c.JSON(resultStatus(res), res)
}

// importProperties accepts either a multipart "file" field or a raw CSV body.
func (h *handlers) importProperties(c *gin.Context) {
	if h.Properties == nil {
		notConfigured(c)
		return
	}

	var r io.Reader = io.LimitReader(c.Request.Body, maxImportBytes)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			badRequest(c)
			return
		}
		f, err := fh.Open()
		if err != nil {
			badRequest(c)
			return
		}
		defer f.Close()
		r = io.LimitReader(f, maxImportBytes)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	res := h.Properties.Import(ctx, r)
	if res.OK {
		h.track(c, analytics.EventPropertiesImport, map[string]any{"imported": res.Imported, "rejected": len(res.RowErrors)})
	}
	c.JSON(resultStatus(res.Result), res)
}

func (h *handlers) sendViolation(c *gin.Context) {
	userID := auth.UserID(c.Request.Context())
	if userID == "" {
		c.JSON(http.StatusUnauthorized, models.NotAuthenticated())
		return
	}
	if h.Notify == nil {
		notConfigured(c)
		return
	}

	var v models.Violation
	if err := c.ShouldBindJSON(&v); err != nil {
		badRequest(c)
		return
	}
	v.PropertyAddress = strings.TrimSpace(v.PropertyAddress)
	if v.PropertyAddress == "" {
		c.JSON(http.StatusBadRequest, models.Result{
			Error:  "Property address is required",
			Fields: map[string]string{"property_address": "Property address is required"},
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	res := h.Notify.SendViolation(ctx, userID, v)
	c.JSON(resultStatus(res), res)
}

type checkoutRequest struct {
	ProductID string `json:"productId"`
}

func (h *handlers) startCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 20*time.Second)
	defer cancel()

	secret, err := h.Checkout.Start(ctx, req.ProductID)
	if err != nil {
		c.JSON(billingStatus(err), models.Fail(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "clientSecret": secret})
}

func (h *handlers) checkoutStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	status, err := h.Checkout.Status(ctx, c.Param("sessionId"))
	if err != nil {
		h.log.Warn("checkout status lookup failed", zap.String("session_id", c.Param("sessionId")), zap.Error(err))
		c.JSON(billingStatus(err), models.Fail(err.Error()))
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *handlers) billingPortal(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 20*time.Second)
	defer cancel()

	url, err := h.Checkout.PortalURL(ctx)
	if err != nil {
		c.JSON(billingStatus(err), models.Fail(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "url": url})
}

func billingStatus(err error) int {
	switch {
	case errors.Is(err, billing.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, billing.ErrProductNotFound):
		return http.StatusBadRequest
	case errors.Is(err, billing.ErrNoCustomer):
		return http.StatusNotFound
	case errors.Is(err, billing.ErrNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func (h *handlers) onboardingTier(c *gin.Context) {
	if h.Onboarding == nil {
		notConfigured(c)
		return
	}
	res := h.Onboarding.Tier(c.Request.Context())
	c.JSON(resultStatus(res.Result), res)
}

func (h *handlers) onboardingProgress(c *gin.Context) {
	if h.Onboarding == nil {
		notConfigured(c)
		return
	}
	res := h.Onboarding.Progress(c.Request.Context())
	c.JSON(resultStatus(res.Result), res)
}

type milestoneRequest struct {
	Milestone models.Milestone `json:"milestone"`
}

func (h *handlers) markMilestone(c *gin.Context) {
	if h.Onboarding == nil {
		notConfigured(c)
		return
	}
	var req milestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	res := h.Onboarding.MarkMilestone(c.Request.Context(), req.Milestone)
	c.JSON(resultStatus(res), res)
}

func (h *handlers) track(c *gin.Context, event string, props map[string]any) {
	if h.Tracker == nil {
		return
	}
	h.Tracker.Capture(auth.UserID(c.Request.Context()), event, props)
}
