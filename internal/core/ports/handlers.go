package ports

import (
	"github.com/gin-gonic/gin"
)

type NotificationHTTPHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	UnreadCount(c *gin.Context)
	GetPreferences(c *gin.Context)
	SavePreferences(c *gin.Context)
	Stats(c *gin.Context)
}

type StreamHTTPHandler interface {
	Stream(c *gin.Context)
	Preflight(c *gin.Context)
}
