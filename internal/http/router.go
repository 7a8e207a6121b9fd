package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/FeruzLatifov/univer-back-sub003/internal/config"
	"github.com/FeruzLatifov/univer-back-sub003/internal/http/handler"
	httpmiddleware "github.com/FeruzLatifov/univer-back-sub003/internal/http/middleware"
	"github.com/FeruzLatifov/univer-back-sub003/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(
	cfg config.Config,
	authHandler *handler.AuthHandler,
	oauthHandler *handler.OAuthHandler,
	menuHandler *handler.MenuHandler,
	session *httpmiddleware.Session,
	rateLimiter *middleware.RateLimiter,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/auth/login", authHandler.Login)

	oauth := r.Group("/oauth")
	{
		oauth.GET("/authorize", oauthHandler.Authorize)
		oauth.POST("/authorize", session.Require, oauthHandler.AuthorizeSubmit)
		oauth.POST("/token", oauthHandler.Token)
		oauth.GET("/userinfo", oauthHandler.UserInfo)
		oauth.POST("/revoke", oauthHandler.Revoke)
	}

	api := r.Group("/api", session.Require)
	{
		api.GET("/menu", menuHandler.Get)
		api.POST("/menu/invalidate", menuHandler.Invalidate)
	}

	return r
}
