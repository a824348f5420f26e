package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tiendaweb/tienda-backend/internal/app/service"
	apperrors "github.com/tiendaweb/tienda-backend/internal/errors"
	"github.com/tiendaweb/tienda-backend/internal/middleware"
	ws "github.com/tiendaweb/tienda-backend/internal/websocket"
)

type DashboardController struct {
	dashboardService service.DashboardService
	hub              *ws.Hub
	upgrader         websocket.Upgrader
}

// NewDashboardController builds the controller. Websocket upgrades are
// accepted from allowedOrigins; "*" accepts any origin.
func NewDashboardController(dashboardService service.DashboardService, hub *ws.Hub, allowedOrigins []string) *DashboardController {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &DashboardController{
		dashboardService: dashboardService,
		hub:              hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
	}
}

// GetStats returns the headline numbers of the store
// GET /api/dashboard/stats
func (ctrl *DashboardController) GetStats(c *gin.Context) {
	stats, err := ctrl.dashboardService.Stats()
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to compute dashboard stats", err)
		apperrors.InternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// StreamStats upgrades to a websocket that receives the stats periodically
// GET /api/dashboard/ws
func (ctrl *DashboardController) StreamStats(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("Failed to upgrade to WebSocket", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}

	client := ws.NewClient(ctrl.hub, ws.NewConn(conn), userID)
	ctrl.hub.Attach(client)

	go client.WritePump()
	go client.ReadPump()
}
