package web

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// setupMiddleware adds panic recovery and request logging through logrus.
func setupMiddleware(engine *gin.Engine) {
	engine.Use(gin.Recovery())
	engine.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debugf("%s %s", c.Request.Method, c.Request.URL.Path)
	})
}
