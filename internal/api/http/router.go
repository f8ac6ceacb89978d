package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/car-marketplace/internal/api/http/handlers"
	"github.com/spec-kit/car-marketplace/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Auth     *handlers.AuthHandler
	Listings *handlers.ListingsHandler
	Reviews  *handlers.ReviewsHandler
	Chat     *handlers.ChatHandler
	Admin    *handlers.AdminHandler

	Gate        *auth.AuthGate
	RateLimiter fiber.Handler
	Cache       *ResponseCache

	MediaBaseURL string
	MediaDir     string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	if cfg.MediaBaseURL != "" && cfg.MediaDir != "" {
		app.Static(cfg.MediaBaseURL, cfg.MediaDir)
	}

	api := app.Group("/api")
	rateLimit := cfg.RateLimiter
	if rateLimit == nil {
		rateLimit = func(c *fiber.Ctx) error { return c.Next() }
	}

	authGroup := api.Group("/auth", rateLimit)
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)

	profile := api.Group("/profile", cfg.Gate.Handle)
	profile.Get("/me", cfg.Auth.Profile)
	profile.Patch("/me", cfg.Auth.UpdateProfile)

	catalog := api.Group("/catalog")
	cached := cfg.Cache.Handler()
	invalidate := cfg.Cache.Invalidate()
	catalog.Get("/listings", cached, cfg.Gate.Optional, cfg.Listings.List)
	catalog.Get("/listings/:id", cached, cfg.Gate.Optional, cfg.Listings.Get)
	catalog.Post("/listings", cfg.Gate.Handle, invalidate, cfg.Listings.Create)
	catalog.Patch("/listings/:id", cfg.Gate.Handle, invalidate, cfg.Listings.Update)
	catalog.Delete("/listings/:id", cfg.Gate.Handle, invalidate, cfg.Listings.Delete)
	catalog.Post("/listings/:id/images", cfg.Gate.Handle, invalidate, cfg.Listings.UploadImage)
	catalog.Delete("/images/:id", cfg.Gate.Handle, invalidate, cfg.Listings.DeleteImage)
	catalog.Post("/listings/:id/favorite", cfg.Gate.Handle, cfg.Listings.AddFavorite)
	catalog.Delete("/listings/:id/favorite", cfg.Gate.Handle, cfg.Listings.RemoveFavorite)
	catalog.Get("/favorites", cfg.Gate.Handle, cfg.Listings.ListFavorites)

	reviews := api.Group("/reviews")
	reviews.Get("/seller/:id", cfg.Reviews.ListBySeller)
	reviews.Get("/seller/:id/stats", cfg.Reviews.SellerStats)
	reviews.Post("", cfg.Gate.Handle, cfg.Reviews.Create)
	reviews.Delete("/:id", cfg.Gate.Handle, cfg.Reviews.Delete)

	chat := api.Group("/chat", cfg.Gate.Handle)
	chat.Get("/conversations", cfg.Chat.List)
	chat.Post("/conversations", cfg.Chat.Start)
	chat.Get("/conversations/:id", cfg.Chat.Get)
	chat.Get("/conversations/:id/messages", cfg.Chat.ListMessages)
	chat.Post("/conversations/:id/messages", cfg.Chat.PostMessage)

	admin := api.Group("/admin", cfg.Gate.Handle, auth.RequireStaff())
	admin.Post("/listings/approve", invalidate, cfg.Admin.ApproveListings)
	admin.Post("/listings/reject", invalidate, cfg.Admin.RejectListings)
	admin.Post("/conversations/archive", cfg.Admin.ArchiveConversations)
}
