// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/kargo/app/dto"
	"github.com/amirphl/kargo/app/handlers"
	"github.com/amirphl/kargo/app/middleware"
	"github.com/amirphl/kargo/config"
	"github.com/amirphl/kargo/docs"
	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cache"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthPath = "/api/v1/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// HealthProbe reports whether a backing dependency is reachable
type HealthProbe func(ctx context.Context) error

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app       *fiber.App
	cfg       *config.ProductionConfig
	logWriter io.Writer
	probes    map[string]HealthProbe

	authMiddleware  *middleware.AuthMiddleware
	authHandler     handlers.AuthHandlerInterface
	quoteHandler    handlers.QuoteHandlerInterface
	pickupHandler   handlers.PickupRequestHandlerInterface
	purchaseHandler handlers.PurchaseRequestHandlerInterface
	shipmentHandler handlers.ShipmentHandlerInterface
	trackingHandler handlers.TrackingHandlerInterface
	guestHandler    handlers.GuestHandlerInterface
	pricingHandler  handlers.AdminPricingHandlerInterface
	userHandler     handlers.AdminUserHandlerInterface
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	logWriter io.Writer,
	probes map[string]HealthProbe,
	authMiddleware *middleware.AuthMiddleware,
	authHandler handlers.AuthHandlerInterface,
	quoteHandler handlers.QuoteHandlerInterface,
	pickupHandler handlers.PickupRequestHandlerInterface,
	purchaseHandler handlers.PurchaseRequestHandlerInterface,
	shipmentHandler handlers.ShipmentHandlerInterface,
	trackingHandler handlers.TrackingHandlerInterface,
	guestHandler handlers.GuestHandlerInterface,
	pricingHandler handlers.AdminPricingHandlerInterface,
	userHandler handlers.AdminUserHandlerInterface,
) Router {
	if logWriter == nil {
		logWriter = os.Stdout
	}

	app := fiber.New(fiber.Config{
		AppName:      "Kargo API",
		ServerHeader: "Kargo",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ProxyHeader:  cfg.Server.ProxyHeader,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
	})

	return &FiberRouter{
		app:             app,
		cfg:             cfg,
		logWriter:       logWriter,
		probes:          probes,
		authMiddleware:  authMiddleware,
		authHandler:     authHandler,
		quoteHandler:    quoteHandler,
		pickupHandler:   pickupHandler,
		purchaseHandler: purchaseHandler,
		shipmentHandler: shipmentHandler,
		trackingHandler: trackingHandler,
		guestHandler:    guestHandler,
		pricingHandler:  pricingHandler,
		userHandler:     userHandler,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	if r.cfg.Deployment.IsDevelopment() {
		// an empty host makes the UI call the origin it was loaded from
		docs.SwaggerInfo.Host = r.cfg.Deployment.APIDomain
		api.Get("/swagger.json", r.serveSwaggerJSON)
		r.app.Get("/swagger", r.serveSwaggerUI)
		log.Println("API documentation enabled for development")
	}

	api.Use(r.rateLimiter(r.cfg.Security.GlobalRateLimit, func(c fiber.Ctx) bool {
		return c.Path() == healthPath
	}))

	r.setupPublicRoutes(api)
	r.setupClientRoutes(api)
	r.setupAdminRoutes(api)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

func (r *FiberRouter) setupPublicRoutes(api fiber.Router) {
	api.Post("/quotes/estimate", r.quoteHandler.Estimate)
	api.Get("/tracking/:trackingNumber", r.trackingHandler.Track)

	// Anonymous writes share a stricter budget
	strict := r.rateLimiter(r.cfg.Security.GuestRateLimit, nil)

	api.Get("/captcha", strict, r.guestHandler.Captcha)

	guest := api.Group("/guest", strict)
	guest.Post("/pickup-requests", r.guestHandler.CreatePickupRequest)
	guest.Post("/purchase-requests", r.guestHandler.CreatePurchaseRequest)
	guest.Get("/requests/track", r.guestHandler.TrackRequest)

	api.Post("/prospects/:uuid/register", strict, r.guestHandler.RegisterProspect)

	auth := api.Group("/auth", strict)
	auth.Post("/refresh", r.authHandler.Refresh)
}

func (r *FiberRouter) setupClientRoutes(api fiber.Router) {
	authenticated := r.authMiddleware.Authenticate()

	quotes := api.Group("/quotes", authenticated)
	quotes.Post("/", r.quoteHandler.Create)
	quotes.Get("/", r.quoteHandler.List)
	quotes.Get("/:uuid", r.quoteHandler.Get)
	quotes.Get("/:uuid/history", r.quoteHandler.History)
	quotes.Post("/:uuid/submit", r.quoteHandler.Submit)
	quotes.Post("/:uuid/send", r.quoteHandler.Send)
	quotes.Post("/:uuid/accept", r.quoteHandler.Accept)
	quotes.Post("/:uuid/reject", r.quoteHandler.Reject)
	quotes.Post("/:uuid/expire", r.quoteHandler.Expire)
	quotes.Post("/:uuid/start-treatment", r.quoteHandler.StartTreatment)
	quotes.Post("/:uuid/validate", r.quoteHandler.Validate)
	quotes.Post("/:uuid/cancel", r.quoteHandler.Cancel)
	quotes.Put("/:uuid/payment-method", r.quoteHandler.ChangePaymentMethod)
	quotes.Post("/:uuid/payment-received", r.quoteHandler.PaymentReceived)

	pickups := api.Group("/pickup-requests", authenticated)
	pickups.Post("/", r.pickupHandler.Create)
	pickups.Get("/", r.pickupHandler.List)
	pickups.Get("/:uuid", r.pickupHandler.Get)
	pickups.Get("/:uuid/history", r.pickupHandler.History)
	pickups.Post("/:uuid/schedule", r.pickupHandler.Schedule)
	pickups.Post("/:uuid/complete", r.pickupHandler.Complete)
	pickups.Post("/:uuid/cancel", r.pickupHandler.Cancel)

	purchases := api.Group("/purchase-requests", authenticated)
	purchases.Post("/", r.purchaseHandler.Create)
	purchases.Get("/", r.purchaseHandler.List)
	purchases.Get("/:uuid", r.purchaseHandler.Get)
	purchases.Get("/:uuid/history", r.purchaseHandler.History)
	purchases.Post("/:uuid/start-treatment", r.purchaseHandler.StartTreatment)
	purchases.Post("/:uuid/complete", r.purchaseHandler.Complete)
	purchases.Post("/:uuid/cancel", r.purchaseHandler.Cancel)
}

// Role gates here are coarse; every flow re-checks the actor against its own guard table.
func (r *FiberRouter) setupAdminRoutes(api fiber.Router) {
	admin := api.Group("/admin", r.authMiddleware.Authenticate())
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	pricing := admin.Group("/pricing-config", adminOnly)
	pricing.Get("/", r.pricingHandler.GetPricingConfig)
	pricing.Put("/", r.pricingHandler.UpdatePricingConfig)
	pricing.Get("/versions", r.pricingHandler.ListPricingConfigVersions)

	rates := admin.Group("/transport-rates", adminOnly)
	rates.Get("/", r.pricingHandler.ListTransportRates)
	rates.Post("/", r.pricingHandler.SaveTransportRate)
	rates.Get("/export", r.pricingHandler.ExportTransportRates)
	rates.Post("/import", r.pricingHandler.ImportTransportRates)
	rates.Patch("/:id/active", r.pricingHandler.SetTransportRateActive)

	users := admin.Group("/users", adminOnly)
	users.Get("/", r.userHandler.ListUsers)
	users.Post("/", r.userHandler.CreateUser)
	users.Patch("/:id/role", r.userHandler.ChangeRole)
	users.Patch("/:id/active", r.userHandler.SetActive)

	prospects := admin.Group("/prospects", middleware.RequireRoles(models.RoleAdmin, models.RoleOperationsManager))
	prospects.Get("/", r.userHandler.ListProspects)
	prospects.Post("/:uuid/invite", r.userHandler.InviteProspect)

	shipments := admin.Group("/shipments", middleware.RequireRoles(models.RoleAdmin, models.RoleOperationsManager, models.RoleFinanceManager))
	shipments.Get("/", r.shipmentHandler.List)
	shipments.Get("/:uuid", r.shipmentHandler.Get)
	shipments.Get("/:uuid/history", r.shipmentHandler.History)
	shipments.Post("/:uuid/events", r.shipmentHandler.AddEvent)
	shipments.Post("/:uuid/status", r.shipmentHandler.Transition)
	shipments.Put("/:uuid/actual-cost", middleware.RequireRoles(models.RoleAdmin, models.RoleFinanceManager), r.shipmentHandler.RecordActualCost)
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	sec := r.cfg.Security

	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             sec.XSSProtection,
		ContentTypeNosniff:        sec.XContentTypeOptions,
		XFrameOptions:             sec.XFrameOptions,
		HSTSMaxAge:                sec.HSTSMaxAge,
		ContentSecurityPolicy:     sec.CSPPolicy,
		ReferrerPolicy:            sec.ReferrerPolicy,
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     sec.AllowedOrigins,
		AllowMethods:     sec.AllowedMethods,
		AllowHeaders:     sec.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-Response-Time", "Content-Disposition"},
		AllowCredentials: sec.AllowCredentials,
		MaxAge:           sec.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				// Workbooks are already zip archives
				return strings.HasSuffix(c.Path(), "/export")
			},
		}))
	}

	// Only the swagger document is cacheable
	r.app.Use(cache.New(cache.Config{
		Next: func(c fiber.Ctx) bool {
			return c.Method() != fiber.MethodGet || !strings.HasSuffix(c.Path(), "/swagger.json")
		},
		Expiration:          30 * time.Minute,
		DisableCacheControl: false,
	}))

	if r.cfg.Logging.EnableAccessLog && r.cfg.Logging.Allows("info") {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","pid":"${pid}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","route":"${route}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Stream:     r.logWriter,
			Next: func(c fiber.Ctx) bool {
				return c.Path() == healthPath || c.Path() == r.cfg.Metrics.Path
			},
		}))
	}

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics(healthPath, r.cfg.Metrics.Path))
	}

	r.app.Use(r.securityMiddleware)
	r.app.Use(r.apiKeyMiddleware)

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.GetRespHeader("X-Request-ID"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

func (r *FiberRouter) rateLimiter(max int, next func(c fiber.Ctx) bool) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: next,
	})
}

func (r *FiberRouter) securityMiddleware(c fiber.Ctx) error {
	c.Set("X-Response-Time", utils.UTCNow().Format(time.RFC3339))

	if slices.Contains(r.cfg.Security.IPBlacklist, c.IP()) {
		return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
			Success: false,
			Message: "Access denied from this IP address",
			Error: dto.ErrorDetail{
				Code: "ACCESS_DENIED",
			},
		})
	}

	return c.Next()
}

// apiKeyMiddleware gates everything except health and metrics behind a shared key when configured
func (r *FiberRouter) apiKeyMiddleware(c fiber.Ctx) error {
	sec := r.cfg.Security
	if !sec.RequireAPIKey || c.Path() == healthPath || c.Path() == r.cfg.Metrics.Path {
		return c.Next()
	}

	apiKey := c.Get(sec.APIKeyHeader)
	if apiKey == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "API key is required",
			Error: dto.ErrorDetail{
				Code: "MISSING_API_KEY",
			},
		})
	}
	if !slices.Contains(sec.AllowedAPIKeys, apiKey) {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Invalid API key",
			Error: dto.ErrorDetail{
				Code: "INVALID_API_KEY",
			},
		})
	}

	return c.Next()
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// healthCheck pings every registered dependency and answers 503 when one is down
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	status := fiber.StatusOK
	checks := make(map[string]string, len(r.probes))
	for name, probe := range r.probes {
		if err := probe(ctx); err != nil {
			checks[name] = "down"
			status = fiber.StatusServiceUnavailable
			log.Printf(`{"time":"%s","level":"warn","event":"health_probe_failed","dependency":"%s","error":%q}`,
				utils.UTCNow().Format(time.RFC3339), name, err.Error())
			continue
		}
		checks[name] = "up"
	}

	message := "Service is healthy"
	if status != fiber.StatusOK {
		message = "Service is degraded"
	}
	return c.Status(status).JSON(dto.APIResponse{
		Success: status == fiber.StatusOK,
		Message: message,
		Data: fiber.Map{
			"status":       strings.ToLower(strings.TrimPrefix(message, "Service is ")),
			"timestamp":    utils.UTCNow().Unix(),
			"version":      r.cfg.Deployment.Version,
			"commit":       r.cfg.Deployment.CommitHash,
			"build_time":   r.cfg.Deployment.BuildTime,
			"service":      "kargo-api",
			"dependencies": checks,
		},
	})
}

func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	c.Set("Content-Type", "application/json")
	return c.SendString(docs.SwaggerInfo.ReadDoc())
}

func (r *FiberRouter) serveSwaggerUI(c fiber.Ctx) error {
	htmlContent := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Kargo API - Swagger UI</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css" />
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: '/api/v1/swagger.json',
                dom_id: '#swagger-ui',
                deepLinking: true,
                validatorUrl: null
            });
        };
    </script>
</body>
</html>`

	c.Set("Content-Type", "text/html")
	return c.SendString(htmlContent)
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": c.GetRespHeader("X-Request-ID"),
			},
		},
	})
}

// errorHandler renders errors that escaped the handlers; fiber errors keep their status and message
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if code < fiber.StatusInternalServerError {
			message = e.Message
			errorCode = "REQUEST_ERROR"
		}
	}

	requestID := c.GetRespHeader("X-Request-ID")
	log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"unhandled_error","status":%d,"error":%q}`,
		utils.UTCNow().Format(time.RFC3339), requestID, code, err.Error())

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
