package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/queuedesk-io/queuedesk/internal/repository"
	"github.com/queuedesk-io/queuedesk/internal/service"
)

// RouterConfig carries the dependencies the public router needs.
type RouterConfig struct {
	Queues        repository.QueueStore
	Tickets       repository.TicketStore
	Fields        repository.CustomFieldStore
	Intake        *service.TicketService
	Logger        *log.Logger
	EnableMetrics bool
}

// NewRouter builds the gin engine serving the public pages.
func NewRouter(cfg RouterConfig) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	handler := NewPublicHandler(cfg.Queues, cfg.Tickets, cfg.Fields, cfg.Intake, cfg.Logger)
	engine.GET("/", handler.ShowForm)
	engine.POST("/", handler.Submit)
	engine.GET("/view", handler.View)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.EnableMetrics {
		engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	return engine
}
