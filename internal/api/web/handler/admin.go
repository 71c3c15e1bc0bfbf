package handler

import (
	"net/http"

	"github.com/JrMarcco/jsignage/internal/api/web/httperr"
	"github.com/JrMarcco/jsignage/internal/pkg/registry"
	"github.com/JrMarcco/jsignage/internal/service/broadcast"
	"github.com/gin-gonic/gin"
)

type NodesResponse struct {
	Nodes []registry.ServiceInstance `json:"nodes"`
}

type AdminHandler struct {
	broadcaster broadcast.Broadcaster

	// registry 为 nil 表示单机部署
	registry    registry.Registry
	serviceName string
}

func (h *AdminHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.broadcaster.Stats())
}

func (h *AdminHandler) Nodes(c *gin.Context) {
	if h.registry == nil {
		c.JSON(http.StatusOK, NodesResponse{Nodes: []registry.ServiceInstance{}})
		return
	}

	nodes, err := h.registry.ListService(c.Request.Context(), h.serviceName)
	if err != nil {
		httperr.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, NodesResponse{Nodes: nodes})
}

func NewAdminHandler(broadcaster broadcast.Broadcaster, rgst registry.Registry, serviceName string) *AdminHandler {
	return &AdminHandler{
		broadcaster: broadcaster,
		registry:    rgst,
		serviceName: serviceName,
	}
}
