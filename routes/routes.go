package routes

import (
	"github.com/julienschmidt/httprouter"

	"treadline/cart"
	"treadline/middleware"
	"treadline/orders"
	"treadline/pay"
	"treadline/ratelim"
	"treadline/reviews"
)

func AddCartRoutes(router *httprouter.Router, h *cart.Handler, rateLimiter *ratelim.RateLimiter) {
	user := middleware.Chain(rateLimiter.Limit, middleware.Authenticate)

	router.GET("/api/cart", user(h.GetCart))
	router.POST("/api/cart/items", user(h.AddItem))
	router.PATCH("/api/cart/items/:productId", user(h.UpdateItem))
	router.DELETE("/api/cart/items/:productId", user(h.RemoveItem))
	router.POST("/api/cart/clear", user(h.ClearCart))

	router.POST("/api/cart/services/:productId/installation", user(h.ToggleInstallation))
	router.POST("/api/cart/services/:productId/addons/:index", user(h.ToggleAddon))
}

// AddCheckoutRoutes needs Authenticate ahead of Idempotent so keys are scoped per user.
func AddCheckoutRoutes(router *httprouter.Router, h *cart.Handler, records pay.Records, rateLimiter *ratelim.RateLimiter) {
	router.POST("/api/checkout",
		middleware.Chain(
			rateLimiter.Limit,
			middleware.Authenticate,
			pay.Idempotent(records),
		)(h.CreatePayment),
	)
}

func AddOrderRoutes(router *httprouter.Router, h *orders.Handler, rateLimiter *ratelim.RateLimiter) {
	user := middleware.Chain(rateLimiter.Limit, middleware.Authenticate)

	router.GET("/api/orders/:id", user(h.GetOrder))
	router.GET("/api/orders/:id/invoice", user(h.DownloadInvoice))

	router.GET("/api/admin/orders",
		middleware.Chain(
			rateLimiter.Limit,
			middleware.Authenticate,
			middleware.RequireRoles("admin"),
		)(h.ListOrders),
	)
}

func AddReviewRoutes(router *httprouter.Router, h *reviews.Handler, rateLimiter *ratelim.RateLimiter) {
	router.GET("/api/reviews/:productType/:productId", rateLimiter.Limit(middleware.OptionalAuth(h.GetReviews)))
	router.POST("/api/reviews/:productType/:productId", rateLimiter.Limit(middleware.Authenticate(h.AddReview)))
	router.PUT("/api/reviews/:productType/:productId/:reviewId", rateLimiter.Limit(middleware.Authenticate(h.EditReview)))
	router.DELETE("/api/reviews/:productType/:productId/:reviewId", rateLimiter.Limit(middleware.Authenticate(h.DeleteReview)))
}
