package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"field-ticket-service/api"
	"field-ticket-service/internal/http/middleware"
)

type RouterOptions struct {
	Env           string
	Log           zerolog.Logger
	StorageRoot   string
	StoragePrefix string
	// MaxUploadBytes bounds the in-memory part of multipart forms.
	MaxUploadBytes int64
}

func NewRouter(handler *Handler, authMiddleware gin.HandlerFunc, opts RouterOptions) *gin.Engine {
	if opts.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	useJSONFieldNames()

	router := gin.New()
	router.Use(middleware.RequestLogger(opts.Log))
	router.Use(middleware.Recovery(opts.Log, opts.Env == "development"))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"*"},
		ExposeHeaders:   []string{"Content-Type", "Content-Disposition", "X-Request-ID"},
		MaxAge:          12 * time.Hour,
	}))
	if opts.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = opts.MaxUploadBytes
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/swagger", func(c *gin.Context) { c.Redirect(http.StatusFound, "/swagger/") })
	router.GET("/swagger/*any", func(c *gin.Context) {
		switch strings.TrimPrefix(c.Param("any"), "/") {
		case "openapi.json":
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		case "":
			c.Request.URL.Path = "/swagger/index.html"
			c.Request.RequestURI = "/swagger/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/openapi.json"))(c)
	})
	if opts.StorageRoot != "" {
		prefix := opts.StoragePrefix
		if prefix == "" {
			prefix = "/storage"
		}
		router.Static(prefix, opts.StorageRoot)
	}

	handler.Register(router, authMiddleware)

	return router
}
