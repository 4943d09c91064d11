package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/shopnow-backend/services/shop-service/controllers"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/middleware"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
)

// Handlers bundles the controllers mounted by Register.
type Handlers struct {
	Products *controllers.ProductController
	Carts    *controllers.CartController
	Orders   *controllers.OrderController
	Reviews  *controllers.ReviewController
	Users    *controllers.UserController
	Webhook  *controllers.WebhookController
	Auth     middleware.Authenticator
}

// Register mounts the Stripe webhook at the root and everything else under /api/v1.
// apiMiddleware runs on /api only, so the webhook keeps its raw body.
func Register(r *gin.Engine, h Handlers, apiMiddleware ...gin.HandlerFunc) {
	r.POST("/webhook-checkout", h.Webhook.StripeCheckout)

	v1 := r.Group("/api/v1", apiMiddleware...)
	protect := middleware.Protect(h.Auth)
	admin := middleware.RestrictTo(models.RoleAdmin)
	customer := middleware.RestrictTo(models.RoleUser)

	registerProductRoutes(v1, h, protect, admin, customer)
	registerReviewRoutes(v1, h, protect, admin, customer)
	registerCartRoutes(v1, h, protect, admin)
	registerOrderRoutes(v1, h, protect, admin, customer)
	registerUserRoutes(v1, h, protect, admin)
}

func registerProductRoutes(v1 *gin.RouterGroup, h Handlers, protect, admin, customer gin.HandlerFunc) {
	products := v1.Group("/products")
	{
		products.GET("", h.Products.List)
		products.GET("/most/popular", h.Products.MostPopular)
		products.GET("/:Id", h.Products.Get)
		products.POST("", protect, admin, h.Products.Create)
		products.PATCH("/:Id", protect, admin, h.Products.Update)
		products.DELETE("/:Id", protect, admin, h.Products.Delete)
		products.POST("/:Id/images", protect, admin, h.Products.PresignImage)
	}

	nested := products.Group("/:Id/reviews", protect)
	{
		nested.GET("", h.Reviews.ListForProduct)
		nested.POST("", customer, h.Reviews.CreateMine)
	}
}

func registerReviewRoutes(v1 *gin.RouterGroup, h Handlers, protect, admin, customer gin.HandlerFunc) {
	reviews := v1.Group("/reviews", protect)
	{
		reviews.GET("", h.Reviews.ListForProduct)
		reviews.POST("", customer, h.Reviews.CreateMine)

		reviews.GET("/my-reviews", customer, h.Reviews.ListMine)
		reviews.GET("/my-reviews/:reviewId", customer, h.Reviews.GetMine)
		reviews.PATCH("/my-reviews/:reviewId", customer, h.Reviews.UpdateMine)
		reviews.DELETE("/my-reviews/:reviewId", customer, h.Reviews.DeleteMine)

		reviews.GET("/:Id", admin, h.Reviews.Get)
		reviews.PATCH("/:Id", admin, h.Reviews.Update)
		reviews.DELETE("/:Id", admin, h.Reviews.Delete)
	}
}

func registerCartRoutes(v1 *gin.RouterGroup, h Handlers, protect, admin gin.HandlerFunc) {
	carts := v1.Group("/carts", protect)
	{
		owner := middleware.RestrictTo(models.RoleUser, models.RoleAdmin)
		carts.GET("/my-cart", owner, h.Carts.GetMyCart)
		carts.PATCH("/my-cart", owner, h.Carts.UpdateMyCart)
		carts.GET("", admin, h.Carts.List)
	}
}

func registerOrderRoutes(v1 *gin.RouterGroup, h Handlers, protect, admin, customer gin.HandlerFunc) {
	orders := v1.Group("/orders", protect)
	{
		orders.POST("/payment-intent", customer, h.Orders.PaymentIntent)
		orders.POST("/checkout-session", customer, h.Orders.CheckoutSession)
		orders.GET("/my-orders", customer, h.Orders.MyOrders)
		orders.GET("/my-orders/:orderId", customer, h.Orders.MyOrder)

		orders.GET("", admin, h.Orders.List)
		orders.POST("", admin, h.Orders.Create)
		orders.GET("/:Id", admin, h.Orders.Get)
		orders.PATCH("/:Id", admin, h.Orders.Update)
		orders.DELETE("/:Id", admin, h.Orders.Delete)
	}
}

func registerUserRoutes(v1 *gin.RouterGroup, h Handlers, protect, admin gin.HandlerFunc) {
	users := v1.Group("/users")
	{
		users.POST("/signup", h.Users.Signup)
		users.POST("/signin", h.Users.Signin)
		users.GET("/signout", h.Users.Signout)
		users.POST("/forgot-password", h.Users.ForgotPassword)
		users.PATCH("/reset-password/:resetToken", h.Users.ResetPassword)
	}

	me := users.Group("", protect)
	{
		me.PATCH("/update-my-password", h.Users.UpdateMyPassword)
		me.GET("/me", h.Users.GetMe)
		me.PATCH("/update-me", h.Users.UpdateMe)
		me.DELETE("/delete-me", h.Users.DeleteMe)

		me.GET("", admin, h.Users.List)
		me.POST("", admin, h.Users.Create)
		me.GET("/:Id", admin, h.Users.Get)
		me.PATCH("/:Id", admin, h.Users.Update)
		me.DELETE("/:Id", admin, h.Users.Delete)
	}
}
