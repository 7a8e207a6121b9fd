package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FeruzLatifov/univer-back-sub003/internal/http/middleware"
	"github.com/FeruzLatifov/univer-back-sub003/internal/service"
)

// AuthHandler serves first-party session authentication.
type AuthHandler struct {
	Auth *service.AuthService
}

// NewAuthHandler creates the handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// Login verifies credentials and issues a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `form:"email" json:"email" binding:"required"`
		Password string `form:"password" json:"password" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "email and password are required."})
		return
	}

	session, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password, middleware.Issuer(c.Request))
	if err != nil {
		var authErr *service.AuthError
		if errors.As(err, &authErr) {
			c.JSON(authErr.Status, gin.H{"error": authErr.Code, "error_description": authErr.Description})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": err.Error()})
		return
	}

	c.JSON(http.StatusOK, session)
}
