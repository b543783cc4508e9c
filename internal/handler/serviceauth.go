package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/authgrid/backend/internal/model"
	"github.com/authgrid/backend/internal/service"
)

type ServiceAuthHandler struct {
	svc *service.ServiceAuthService
}

func NewServiceAuthHandler(svc *service.ServiceAuthService) *ServiceAuthHandler {
	return &ServiceAuthHandler{svc: svc}
}

// Register godoc
// @Summary Register a service client
// @Description Returns the client secret exactly once; only its hash is stored.
// @Tags service
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.RegisterServiceRequest true "Service name and optional description"
// @Success 201 {object} model.RegisterServiceResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /api/v1/service/register [post]
func (h *ServiceAuthHandler) Register(c *gin.Context) {
	var req model.RegisterServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	resp, err := h.svc.RegisterService(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Token godoc
// @Summary Issue a service token
// @Description client_credentials grant only.
// @Tags service
// @Accept json
// @Produce json
// @Param request body model.ServiceTokenRequest true "Client credentials"
// @Success 200 {object} model.ServiceTokenResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/service/token [post]
func (h *ServiceAuthHandler) Token(c *gin.Context) {
	var req model.ServiceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	resp, err := h.svc.GetToken(c.Request.Context(), req)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
