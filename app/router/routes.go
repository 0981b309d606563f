// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"errors"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/treebio/treebio/app/dto"
	"github.com/treebio/treebio/app/handlers"
	"github.com/treebio/treebio/app/middleware"
	"github.com/treebio/treebio/config"
	"github.com/treebio/treebio/utils"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown(timeout time.Duration) error
	GetApp() *fiber.App
}

// Handlers groups every HTTP handler mounted by the router
type Handlers struct {
	Auth       *handlers.AuthHandler
	Profile    *handlers.ProfileHandler
	Link       *handlers.LinkHandler
	SocialLink *handlers.SocialLinkHandler
	LinkClick  *handlers.LinkClickHandler
	Analytics  *handlers.AnalyticsHandler
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	cfg      *config.ProductionConfig
	handlers Handlers
	auth     *middleware.AuthMiddleware
	logger   zerolog.Logger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg *config.ProductionConfig, h Handlers, auth *middleware.AuthMiddleware, logger zerolog.Logger) Router {
	logger = logger.With().Str("component", "router").Logger()

	app := fiber.New(fiber.Config{
		AppName:      "treebio API",
		ServerHeader: "treebio",
		ErrorHandler: newErrorHandler(logger),
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
		ProxyHeader: cfg.Server.ProxyHeader,
	})

	return &FiberRouter{
		app:      app,
		cfg:      cfg,
		handlers: h,
		auth:     auth,
		logger:   logger,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.logger.Info().Msg("setting up routes")

	r.setupMiddleware()

	// Health check route (no rate limiting)
	r.app.Get("/api/v1/health", r.healthCheck)

	// Click-through redirects get their own, tighter limiter
	r.app.Get("/l/:id", r.limiter(r.cfg.Security.RedirectLimit), r.handlers.LinkClick.Redirect)

	api := r.app.Group("/api/v1", r.limiter(r.cfg.Security.GlobalRateLimit))

	// Public routes
	api.Get("/profiles/:username", r.handlers.Profile.PublicProfile)

	authn, user := r.auth.Authenticate(), r.auth.RequireUser()

	// Onboarding only needs a verified token; the local user may not exist yet
	api.Post("/auth/onboard", authn, r.handlers.Auth.Onboard)

	// Authenticated routes
	api.Get("/me", authn, user, r.handlers.Auth.Me)
	api.Put("/profile", authn, user, r.handlers.Profile.UpdateProfile)

	links := api.Group("/links", authn, user)
	links.Post("/", r.handlers.Link.CreateLink)
	links.Get("/", r.handlers.Link.ListLinks)
	links.Put("/:id", r.handlers.Link.UpdateLink)
	links.Delete("/:id", r.handlers.Link.DeleteLink)

	socials := api.Group("/social-links", authn, user)
	socials.Post("/", r.handlers.SocialLink.AddSocialLink)
	socials.Get("/", r.handlers.SocialLink.ListSocialLinks)
	socials.Put("/:id", r.handlers.SocialLink.UpdateSocialLink)
	socials.Delete("/:id", r.handlers.SocialLink.DeleteSocialLink)

	analytics := api.Group("/analytics", authn, user)
	analytics.Get("/summary", r.handlers.Analytics.Summary)
	analytics.Get("/overview", r.handlers.Analytics.Overview)
	analytics.Get("/visits", r.handlers.Analytics.DailyVisits)
	analytics.Get("/visits/recent", r.handlers.Analytics.RecentVisitors)
	analytics.Get("/links/top", r.handlers.Analytics.TopLinks)
	analytics.Get("/links/:id", r.handlers.Analytics.LinkAnalytics)
	analytics.Get("/export", r.handlers.Analytics.Export)

	r.app.Use(r.notFoundHandler)

	r.logger.Info().Int("routes", len(r.app.GetRoutes(true))).Msg("routes configured")
}

func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))

	// Recovery middleware with structured panic logging
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error().
				Str("request_id", requestid.FromContext(c)).
				Interface("panic", e).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Str("ip", c.IP()).
				Msg("panic recovered")
		},
	}))

	r.app.Use(middleware.Metrics())
	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(middleware.AccessLog(r.logger))
	}

	sec := r.cfg.Security
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        sec.XContentTypeOptions,
		XFrameOptions:             sec.XFrameOptions,
		HSTSMaxAge:                sec.HSTSMaxAge,
		HSTSExcludeSubdomains:     !sec.HSTSIncludeSubDoms,
		HSTSPreloadEnabled:        sec.HSTSPreload,
		ContentSecurityPolicy:     sec.CSPPolicy,
		ReferrerPolicy:            sec.ReferrerPolicy,
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
		ExposeHeaders:    []string{fiber.HeaderXRequestID},
		AllowCredentials: sec.AllowCredentials,
		MaxAge:           sec.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				// xlsx is already deflated
				return strings.HasPrefix(c.Path(), "/api/v1/analytics/export")
			},
		}))
	}
}

// limiter returns a per-client rate limiter, or a pass-through when max is not positive
func (r *FiberRouter) limiter(max int) fiber.Handler {
	if max <= 0 {
		return func(c fiber.Ctx) error { return c.Next() }
	}
	window := r.cfg.Security.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return handlers.ErrorResponse(c, fiber.StatusTooManyRequests, "Too many requests", "RATE_LIMIT_EXCEEDED", nil)
		},
	})
}

func (r *FiberRouter) Start(address string) error {
	r.logger.Info().Str("address", address).Msg("starting server")
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

func (r *FiberRouter) Shutdown(timeout time.Duration) error {
	return r.app.ShutdownWithTimeout(timeout)
}

func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":      "ok",
			"timestamp":   utils.UTCNow().Unix(),
			"version":     r.cfg.Deployment.Version,
			"environment": r.cfg.Deployment.Environment,
			"service":     "treebio-api",
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "Endpoint not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

func newErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "An internal server error occurred"
		errCode := "INTERNAL_ERROR"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			if code < fiber.StatusInternalServerError {
				message = fe.Message
				errCode = "REQUEST_ERROR"
			}
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error().Err(err).Int("status", code).Str("path", c.Path()).Msg("unhandled error")
		}

		return c.Status(code).JSON(dto.APIResponse{
			Success: false,
			Message: message,
			Error: dto.ErrorDetail{
				Code: errCode,
				Details: fiber.Map{
					"timestamp":  utils.UTCNow().Unix(),
					"request_id": requestid.FromContext(c),
				},
			},
		})
	}
}
