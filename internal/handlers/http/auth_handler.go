package http

import (
	"net/http"
	"strings"

	"github.com/alicesotero/CoLab/internal/core/domain"
	"github.com/alicesotero/CoLab/internal/core/services"
	"github.com/alicesotero/CoLab/pkg/auth"
	"github.com/alicesotero/CoLab/pkg/errors"
	"github.com/alicesotero/CoLab/pkg/validation"

	"github.com/gin-gonic/gin"
)

// AuthHandler exposes account creation and login over plain HTTP so clients
// can obtain a token before opening the websocket.
type AuthHandler struct {
	registry *services.SessionRegistry
	tokens   *auth.TokenManager
}

func NewAuthHandler(registry *services.SessionRegistry, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{
		registry: registry,
		tokens:   tokens,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
	}
}

type RegisterRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=50"`
	Password    string `json:"password" binding:"required,min=6,max=128"`
	FirstName   string `json:"firstName" binding:"required,max=100"`
	LastName    string `json:"lastName" binding:"required,max=100"`
	PhoneNumber string `json:"phoneNumber" binding:"max=20"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required,max=128"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.Username = strings.TrimSpace(req.Username)

	if err := validation.ValidateUsername(req.Username); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidatePhoneNumber(req.PhoneNumber); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	user, err := h.registry.CreateAccount(c.Request.Context(), services.Registration{
		Username:    req.Username,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		c.Error(err)
		return
	}

	token, err := h.tokens.Issue(user.Username, user.Admin)
	if err != nil {
		c.Error(errors.NewInternalError("failed to issue token"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":   token,
		"profile": profileResponse(user),
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	user, err := h.registry.VerifyCredentials(c.Request.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		c.Error(err)
		return
	}

	token, err := h.tokens.Issue(user.Username, user.Admin)
	if err != nil {
		c.Error(errors.NewInternalError("failed to issue token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"profile": profileResponse(user),
	})
}

func profileResponse(user *domain.User) gin.H {
	return gin.H{
		"username":        user.Username,
		"firstName":       user.FirstName,
		"lastName":        user.LastName,
		"phoneNumber":     user.PhoneNumber,
		"isAdmin":         user.Admin,
		"allowedRooms":    user.AllowedRooms,
		"pendingRequests": user.PendingRequests,
	}
}
