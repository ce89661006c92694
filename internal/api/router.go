package api

import (
	"time"

	"parking_market/internal/api/handler"
	"parking_market/internal/api/middleware"
	"parking_market/internal/realtime"
	"parking_market/internal/repository"
	"parking_market/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RouterDeps are the services exposed over HTTP. EventLog and Cron may be nil.
type RouterDeps struct {
	Sessions       *service.SessionService
	Auth           *service.AuthService
	Hub            *realtime.Hub
	EventLog       repository.RealtimeEventLogRepository
	Cron           *service.CronService
	WSManager      *handler.WebSocketManager
	AllowedOrigins []string
	Logger         *logrus.Logger
}

func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	authMw := middleware.NewAuthMiddleware(deps.Auth, deps.Logger)
	sessionH := handler.NewSessionHandler(deps.Sessions, deps.Logger)
	searchH := handler.NewSearchHandler(deps.Sessions)
	windowH := handler.NewTimeWindowHandler(deps.Sessions)
	sheetH := handler.NewSheetHandler(deps.Sessions)
	realtimeH := handler.NewRealtimeHandler(deps.Hub, deps.EventLog, deps.Logger)

	reporters := map[string]handler.StatusReporter{
		"sessions":    func() interface{} { return deps.Sessions.Count() },
		"subscribers": func() interface{} { return deps.Hub.SubscriberCount() },
		"ws_clients":  func() interface{} { return deps.WSManager.ClientCount() },
	}
	if deps.Cron != nil {
		reporters["jobs"] = func() interface{} { return deps.Cron.JobStatus() }
	}
	r.GET("/healthz", handler.NewHealthHandler(reporters).Health)

	wsHandler := handler.NewWebSocketHandler(deps.WSManager, sessionH.Snapshot, deps.Logger)
	r.GET("/ws", wsHandler.HandleWebSocket)

	v1 := r.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", sessionH.CreateSession)
			sessions.GET("/:id", sessionH.GetSession)
			sessions.DELETE("/:id", sessionH.CloseSession)
			sessions.POST("/:id/refresh", sessionH.Refresh)
			sessions.PUT("/:id/viewport", sessionH.SetViewport)
			sessions.PUT("/:id/filters", sessionH.SetFilters)
			sessions.POST("/:id/selection/:space_id", sessionH.Select)
			sessions.DELETE("/:id/selection", sessionH.Deselect)
			sessions.GET("/:id/route/:space_id", sessionH.Route)
			sessions.GET("/:id/notifications", sessionH.Notifications)

			sessions.POST("/:id/search", searchH.SetQuery)
			sessions.GET("/:id/search", searchH.GetState)
			sessions.DELETE("/:id/search", searchH.Dismiss)
			sessions.POST("/:id/search/select", searchH.SelectResult)

			sessions.PUT("/:id/time-window/:bound", windowH.SetBound)
			sessions.POST("/:id/time-window/apply", windowH.Apply)
			sessions.DELETE("/:id/time-window", windowH.Clear)

			sessions.POST("/:id/sheets/:sheet/:action", sheetH.Action)

			sessions.POST("/:id/bookings/:space_id", authMw.Authenticate(), sessionH.StartBooking)
			sessions.POST("/:id/details/:space_id", authMw.Authenticate(), sessionH.OpenDetail)
		}

		details := v1.Group("/details")
		details.Use(authMw.Authenticate())
		{
			details.GET("/:id", sessionH.GetDetail)
			details.DELETE("/:id", sessionH.CloseDetail)
		}

		rt := v1.Group("/realtime")
		rt.Use(authMw.Authenticate(), authMw.AuthorizeRole("admin", "service"))
		{
			rt.POST("/events", realtimeH.Ingest)
			rt.GET("/events", realtimeH.ListEvents)
			rt.GET("/events/:event_id", realtimeH.GetEvent)
		}
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}
