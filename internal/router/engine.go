package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/marketplace/pkg/auth"
	"julianmorley.ca/con-plar/marketplace/pkg/global"
	"julianmorley.ca/con-plar/marketplace/pkg/logger"
	"julianmorley.ca/con-plar/marketplace/pkg/metrics"
)

const serviceName = "marketplace-api"

func InitEngine(cfg *global.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(logger.LoggerMiddleware(log))
	router.Use(metrics.MetricsMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "X-Total-Count", "X-Cache"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	return router
}

func InitializeRoutes(router *gin.Engine, h *Handler) {
	router.GET("/metrics", metrics.PrometheusHandler())

	api := router.Group("/api")
	{
		api.GET("/health", h.HealthCheck)

		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", h.Register)
			authRoutes.POST("/login", h.Login)
		}

		products := api.Group("/products")
		{
			products.GET("/", h.GetAllProducts)
			products.GET("/:id", h.GetProductByID)
			products.POST("/", Authenticate(h.issuer), RequireCapability(auth.CapSell), h.CreateProduct)
		}

		secured := api.Group("")
		secured.Use(Authenticate(h.issuer))

		cart := secured.Group("/cart")
		cart.Use(RequireCapability(auth.CapShop))
		{
			cart.POST("/add", h.AddToCart)
			cart.GET("/:user_id", h.GetCart)
			cart.PUT("/item", h.UpdateCartItem)
			cart.DELETE("/item", h.RemoveFromCart)
			cart.DELETE("/:user_id", h.ClearCart)
		}

		payments := secured.Group("/payments")
		{
			payments.POST("/create_order", RequireCapability(auth.CapShop), h.CreatePaymentOrder)
			payments.POST("/verify", RequireCapability(auth.CapShop), h.VerifyPayment)
			payments.GET("/", RequireCapability(auth.CapAdmin), h.ListPayments)
		}

		orders := secured.Group("/orders")
		{
			orders.GET("/", RequireCapability(auth.CapAdmin), h.GetAllOrders)
			orders.GET("/summary", RequireCapability(auth.CapAdmin), h.GetSalesSummary)
			orders.GET("/user/:user_id", h.GetUserOrders)
			orders.GET("/:order_id", h.GetOrder)
			orders.PUT("/:order_id/status", RequireCapability(auth.CapFulfil), h.UpdateOrderStatus)
			orders.PUT("/:order_id/cancel", RequireCapability(auth.CapShop), h.CancelOrder)
		}

		customers := secured.Group("/customers")
		{
			customers.GET("/", RequireCapability(auth.CapAdmin), h.GetAllCustomers)
			customers.GET("/:id", h.GetCustomerByID)
			customers.POST("/:id/addresses", h.AddCustomerAddress)
		}

		secured.GET("/recommendations/:user_id", RequireCapability(auth.CapShop), h.GetRecommendations)
	}
}
