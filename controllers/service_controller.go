package controllers

import (
	"net/http"

	derrors "handv-deploy/internal/errors"
	"handv-deploy/internal/models"
	"handv-deploy/services"

	"github.com/gin-gonic/gin"
)

type ServiceController struct {
	supervisor *services.Supervisor
}

/**
 * Create service controller
 * @param {*services.Supervisor} supervisor - lifecycle supervisor
 * @returns {*ServiceController}
 * @example
 * controller := controllers.NewServiceController(services.NewDefaultSupervisor(cfg, metrics, false))
 * controller.RegisterRoutes(router)
 */
func NewServiceController(supervisor *services.Supervisor) *ServiceController {
	return &ServiceController{supervisor: supervisor}
}

func (s *ServiceController) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/handv/api/v1")
	api.GET("/services", s.ListServices)
	api.GET("/services/:name", s.GetService)
	api.POST("/services/:name/start", s.StartService)
	api.POST("/services/:name/stop", s.StopService)
	api.POST("/services/:name/restart", s.RestartService)
}

func (s *ServiceController) fail(c *gin.Context, code string, err error) {
	status := http.StatusInternalServerError
	if derrors.IsPrecondition(err) {
		status = http.StatusNotFound
	}
	c.JSON(status, models.ErrorResponse{Code: code, Error: err.Error()})
}

// ListServices
//
//	@Summary	List services
//	@Tags		Services
//	@Produce	json
//	@Success	200	{array}		models.ServiceStatus
//	@Failure	500	{object}	models.ErrorResponse
//	@Router		/handv/api/v1/services [get]
func (s *ServiceController) ListServices(c *gin.Context) {
	statuses, err := s.supervisor.StatusAll()
	if err != nil {
		s.fail(c, "service.status_failed", err)
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func (s *ServiceController) GetService(c *gin.Context) {
	st, err := s.supervisor.Status(c.Param("name"))
	if err != nil {
		s.fail(c, "service.status_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary	Start service
// @Tags		Services
// @Param		name	path	string	true	"Service name"
// @Success	200	{object}	models.ServiceStatus
// @Router		/handv/api/v1/services/{name}/start [post]
func (s *ServiceController) StartService(c *gin.Context) {
	st, err := s.supervisor.Start(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.fail(c, "service.start_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *ServiceController) StopService(c *gin.Context) {
	name := c.Param("name")
	if err := s.supervisor.Stop(c.Request.Context(), name); err != nil {
		s.fail(c, "service.stop_failed", err)
		return
	}
	st, err := s.supervisor.Status(name)
	if err != nil {
		s.fail(c, "service.status_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *ServiceController) RestartService(c *gin.Context) {
	st, err := s.supervisor.Restart(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.fail(c, "service.restart_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}
