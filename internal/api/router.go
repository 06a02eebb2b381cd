package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/contactly/contactly/internal/auth"
	"github.com/contactly/contactly/internal/avatar"
	"github.com/contactly/contactly/internal/handlers"
	"github.com/contactly/contactly/internal/middleware"
	"github.com/contactly/contactly/internal/ratelimit"
	"github.com/contactly/contactly/internal/services"
)

// Dependencies bundles everything the router needs. Limiter and Uploader are
// optional; a nil limiter disables rate limiting and a nil uploader disables
// avatar uploads.
type Dependencies struct {
	DB          *gorm.DB
	Tokens      *iauth.TokenService
	Users       *services.UserService
	Contacts    *services.ContactService
	Limiter     ratelimit.Limiter
	Uploader    avatar.Uploader
	CORSOrigins []string
}

// NewRouter assembles the HTTP surface: public auth endpoints, the guarded
// API, and the operational endpoints.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(deps.CORSOrigins))

	router.NoRoute(middleware.NotFoundHandler)

	health := handlers.NewHealthHandler(deps.DB)
	router.GET("/health", health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handlers.NewAuthHandler(deps.Users)
	userHandler := handlers.NewUserHandler(deps.Users, deps.Uploader)
	contactHandler := handlers.NewContactHandler(deps.Contacts)

	apiGroup := router.Group("/api")

	authGroup := apiGroup.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.GET("/verify", authHandler.Verify)
		authGroup.POST("/resend-verification", authHandler.ResendVerification)
		authGroup.POST("/login", authHandler.Login)
	}

	protected := apiGroup.Group("")
	protected.Use(middleware.Auth(deps.Tokens, deps.DB))
	{
		users := protected.Group("/users")
		{
			users.GET("/me", middleware.RateLimit(deps.Limiter), userHandler.Me)
			users.POST("/me/avatar", userHandler.UploadAvatar)
			users.DELETE("/me", userHandler.Delete)
		}

		contacts := protected.Group("/contacts")
		{
			contacts.POST("", contactHandler.Create)
			contacts.GET("", contactHandler.List)
			contacts.GET("/upcoming-birthdays", contactHandler.UpcomingBirthdays)
			contacts.GET("/:id", contactHandler.Get)
			contacts.PUT("/:id", contactHandler.Replace)
			contacts.PATCH("/:id", contactHandler.Update)
			contacts.DELETE("/:id", contactHandler.Delete)
		}
	}

	return router
}
