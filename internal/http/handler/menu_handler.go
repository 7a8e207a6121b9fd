package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FeruzLatifov/univer-back-sub003/internal/http/middleware"
	"github.com/FeruzLatifov/univer-back-sub003/internal/service"
)

// MenuHandler serves the permission-filtered navigation tree.
type MenuHandler struct {
	Menu *service.MenuService
}

// NewMenuHandler creates the handler.
func NewMenuHandler(menu *service.MenuService) *MenuHandler {
	return &MenuHandler{Menu: menu}
}

// Get returns the filtered, localized menu for the authenticated user.
func (h *MenuHandler) Get(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}

	result, err := h.Menu.GetMenuForUser(c.Request.Context(), principal, c.Query("locale"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Invalidate drops the cached menu entries for a user. Role IDs cover the
// role-switch path; when omitted the caller's current role is used.
func (h *MenuHandler) Invalidate(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}

	var req struct {
		UserID  int64   `json:"user_id"`
		RoleIDs []int64 `json:"role_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid invalidation request."})
		return
	}

	userID := req.UserID
	if userID == 0 {
		userID = principal.UserID
	}
	roleIDs := req.RoleIDs
	if len(roleIDs) == 0 {
		roleIDs = []int64{principal.RoleID}
	}

	if err := h.Menu.InvalidateUser(c.Request.Context(), userID, roleIDs...); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
