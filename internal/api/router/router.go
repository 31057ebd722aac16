package router

import (
	"fmt"

	"github.com/cuongbtq/pool-relayer/internal/api/dto"
	"github.com/cuongbtq/pool-relayer/internal/api/handler"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, recorder RequestRecorder) (*gin.Engine, error) {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil, fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	if err := dto.RegisterValidators(v); err != nil {
		return nil, err
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())
	if recorder != nil {
		r.Use(MetricsMiddleware(recorder))
	}

	h := handler.NewRelayerHandler(deps)

	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/status", h.Status)
	r.GET("/job/:job_id", h.GetJob)
	r.POST("/transaction", h.CreateTransaction)

	return r, nil
}
