package http

import (
	"context"
	"net/http"

	"sprinta/internal/infrastructure/distributed"

	"github.com/gin-gonic/gin"
)

type InstanceLister interface {
	Instances(ctx context.Context) ([]distributed.InstanceInfo, error)
}

// ClusterHandler reports the instances sharing the cluster channel.
type ClusterHandler struct {
	presence InstanceLister
}

func NewClusterHandler(presence InstanceLister) *ClusterHandler {
	return &ClusterHandler{presence: presence}
}

func (h *ClusterHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/cluster/instances", h.Instances)
}

func (h *ClusterHandler) Instances(c *gin.Context) {
	list, err := h.presence.Instances(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instances": list})
}
