package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/ytpipe-go/api/handlers"
	"github.com/yourusername/ytpipe-go/api/middleware"
	"github.com/yourusername/ytpipe-go/internal/app"
	"github.com/yourusername/ytpipe-go/internal/domain"
	"github.com/yourusername/ytpipe-go/pkg/logger"
)

// Services are the components the HTTP API exposes
type Services struct {
	Session handlers.SessionController
	Tools   handlers.ToolVerifier
	Library handlers.MediaLibrary
	History domain.SessionRepository // nil disables the history endpoints
	Ring    *logger.RingBuffer
	LogsDir string
	Events  *handlers.EventsHandler
	Version string
}

// ServicesFromApp collects the API services of a wired application
func ServicesFromApp(a *app.App, events *handlers.EventsHandler, version string) Services {
	svc := Services{
		Session: a.Session,
		Tools:   a.Checker,
		Library: a.Library,
		Ring:    a.Ring,
		LogsDir: a.Config.Logging.LogsDir,
		Events:  events,
		Version: version,
	}
	if a.History != nil {
		svc.History = a.History
	}
	return svc
}

// SetupRouter sets up the HTTP router
func SetupRouter(svc Services, logAdapter *logger.LoggerAdapter) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.LoggerWithAdapter(logAdapter))
	router.Use(middleware.RecoveryWithAdapter(logAdapter))
	router.Use(middleware.CORS())

	log := logAdapter.General()

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(svc.Session, svc.Tools, svc.Version)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		downloadHandler := handlers.NewDownloadHandler(svc.Session, log)
		v1.POST("/download", downloadHandler.StartDownload)
		v1.POST("/stop", downloadHandler.StopDownload)
		v1.POST("/toggle", downloadHandler.Toggle)
		v1.GET("/status", downloadHandler.GetStatus)

		if svc.Events != nil {
			v1.GET("/events", svc.Events.HandleWebSocket)
		}

		filesHandler := handlers.NewFilesHandler(svc.Library)
		v1.GET("/files", filesHandler.ListFiles)
		v1.DELETE("/files/:name", filesHandler.DeleteFile)

		if svc.History != nil {
			historyHandler := handlers.NewHistoryHandler(svc.History, log)
			history := v1.Group("/history")
			{
				history.GET("", historyHandler.ListHistory)
				history.GET("/stats", historyHandler.GetStats)
				history.GET("/:id", historyHandler.GetSession)
				history.DELETE("/:id", historyHandler.DeleteSession)
			}
		}

		logHandler := handlers.NewLogHandler(svc.Ring, svc.LogsDir)
		logs := v1.Group("/logs")
		{
			logs.GET("", logHandler.GetLogs)
			logs.DELETE("", logHandler.ClearLogs)
			logs.GET("/download", logHandler.GetDownloadLog)
			logs.GET("/download/sessions", logHandler.GetSessions)
			logs.GET("/download/export", logHandler.ExportDownloadLog)
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/category/:category", logHandler.GetCategoryLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.String(http.StatusNotFound, "not found")
	})

	return router
}
