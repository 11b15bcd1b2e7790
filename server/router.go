// Package server exposes the build farm over HTTP and runs its periodic jobs.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cache"
	"github.com/gin-contrib/cache/persistence"
	"github.com/gin-gonic/gin"
	"github.com/hetznercloud/hcloud-go/hcloud"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/gin-swagger/swaggerFiles"

	"github.com/hashworks/buildfarm/builds"
	"github.com/hashworks/buildfarm/dispatcher"
	"github.com/hashworks/buildfarm/domination"
	"github.com/hashworks/buildfarm/store"
)

const LISTING_CACHE_DURATION = 5 * time.Second

type Server struct {
	Store         *store.Store
	Dispatcher    *dispatcher.Dispatcher
	Engine        *domination.Engine
	Creator       *builds.Creator
	HetznerClient *hcloud.Client
	// WorkerPort is the port workers on Hetzner VMs listen on.
	WorkerPort int
	Logger     *slog.Logger
	cacheStore *persistence.InMemoryStore
}

func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Next()
	}
}

func (s *Server) NewRouter() *gin.Engine {
	router := gin.Default()

	s.cacheStore = persistence.NewInMemoryStore(time.Second)

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusTemporaryRedirect, "/api/swagger/index.html")
	})

	api := router.Group("/api")
	api.Use(CORS())

	openapiURL := ginSwagger.URL("/api/swagger/doc.json")
	api.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, openapiURL))

	apiV1 := api.Group("/v1")
	apiV1.GET("/queue", cache.CachePage(s.cacheStore, LISTING_CACHE_DURATION, s.apiV1ListQueue))
	apiV1.PUT("/builds/:id/result", s.apiV1ReportBuildResult)

	buildersV1 := apiV1.Group("/builders")
	buildersV1.GET("", cache.CachePage(s.cacheStore, LISTING_CACHE_DURATION, s.apiV1ListBuilders))
	buildersV1.POST("/:name/enable", s.apiV1EnableBuilder)
	buildersV1.POST("/:name/abort", s.apiV1AbortBuilder)

	sourcesV1 := apiV1.Group("/sources")
	sourcesV1.POST("/:id/publish", s.apiV1PublishSource)
	sourcesV1.POST("/:id/delete", s.apiV1DeleteSource)
	sourcesV1.POST("/:id/obsolete", s.apiV1ObsoleteSource)
	sourcesV1.POST("/:id/override", s.apiV1OverrideSource)

	binariesV1 := apiV1.Group("/binaries")
	binariesV1.POST("/:id/delete", s.apiV1DeleteBinary)
	binariesV1.POST("/:id/override", s.apiV1OverrideBinary)

	archivesV1 := apiV1.Group("/archives")
	archivesV1.POST("/:id/enable", s.apiV1EnableArchive)
	archivesV1.POST("/:id/disable", s.apiV1DisableArchive)
	archivesV1.POST("/:id/dominate", s.apiV1DominateArchive)

	return router
}
