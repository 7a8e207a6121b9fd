package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FeruzLatifov/univer-back-sub003/internal/domain/oauth"
	"github.com/FeruzLatifov/univer-back-sub003/internal/http/middleware"
	"github.com/FeruzLatifov/univer-back-sub003/internal/service"
)

// OAuthHandler serves the authorization-server endpoints.
type OAuthHandler struct {
	Tokens *service.TokenService
}

// NewOAuthHandler creates the handler set.
func NewOAuthHandler(tokens *service.TokenService) *OAuthHandler {
	return &OAuthHandler{Tokens: tokens}
}

// Authorize validates the client and redirect URI and returns the consent
// descriptor the login UI renders.
func (h *OAuthHandler) Authorize(c *gin.Context) {
	clientID := strings.TrimSpace(c.Query("client_id"))
	redirectURI := strings.TrimSpace(c.Query("redirect_uri"))
	if clientID == "" || redirectURI == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "client_id and redirect_uri are required."})
		return
	}

	client, err := h.Tokens.AuthorizeClient(c.Request.Context(), clientID, redirectURI)
	if err != nil {
		h.respondOAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"client_id":    client.ID,
		"client_name":  client.Name,
		"redirect_uri": client.RedirectURI,
		"scope":        strings.TrimSpace(c.Query("scope")),
		"state":        c.Query("state"),
	})
}

// AuthorizeSubmit issues an authorization code for the authenticated user.
func (h *OAuthHandler) AuthorizeSubmit(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}

	var req struct {
		ClientID    string `form:"client_id" json:"client_id" binding:"required"`
		RedirectURI string `form:"redirect_uri" json:"redirect_uri" binding:"required"`
		Scope       string `form:"scope" json:"scope"`
		State       string `form:"state" json:"state"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid authorization request."})
		return
	}

	client, err := h.Tokens.AuthorizeClient(c.Request.Context(), req.ClientID, req.RedirectURI)
	if err != nil {
		h.respondOAuthError(c, err)
		return
	}

	code, err := h.Tokens.IssueAuthorizationCode(c.Request.Context(), client.ID, principal.UserID, strings.Fields(req.Scope))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": err.Error()})
		return
	}

	redirect, err := url.Parse(client.RedirectURI)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid redirect URI."})
		return
	}
	query := redirect.Query()
	query.Set("code", code.Code)
	if req.State != "" {
		query.Set("state", req.State)
	}
	redirect.RawQuery = query.Encode()

	c.JSON(http.StatusOK, gin.H{
		"redirect_url": redirect.String(),
		"code":         code.Code,
		"expires_in":   int64(time.Until(code.ExpiresAt).Seconds()),
	})
}

// Token handles the grant exchanges.
func (h *OAuthHandler) Token(c *gin.Context) {
	var req struct {
		GrantType    string `form:"grant_type" json:"grant_type" binding:"required"`
		Code         string `form:"code" json:"code"`
		ClientID     string `form:"client_id" json:"client_id"`
		ClientSecret string `form:"client_secret" json:"client_secret"`
		RedirectURI  string `form:"redirect_uri" json:"redirect_uri"`
		RefreshToken string `form:"refresh_token" json:"refresh_token"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid token request."})
		return
	}

	var (
		pair *service.TokenPair
		err  error
	)
	switch strings.ToLower(req.GrantType) {
	case "authorization_code":
		if req.RedirectURI != "" {
			if _, err := h.Tokens.AuthorizeClient(c.Request.Context(), req.ClientID, req.RedirectURI); err != nil {
				h.respondOAuthError(c, err)
				return
			}
		}
		pair, err = h.Tokens.ExchangeAuthorizationCode(c.Request.Context(), req.Code, req.ClientID, req.ClientSecret)
	case "refresh_token":
		pair, err = h.Tokens.RefreshAccessToken(c.Request.Context(), req.RefreshToken, req.ClientID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_grant_type", "error_description": "Unsupported grant type."})
		return
	}

	if err != nil {
		h.respondOAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

// UserInfo resolves an opaque access token to its subject and scopes.
func (h *OAuthHandler) UserInfo(c *gin.Context) {
	token := strings.TrimSpace(c.Query("access_token"))
	if token == "" {
		token = bearerToken(c)
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Access token required."})
		return
	}

	access, err := h.Tokens.ValidateAccessToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": err.Error()})
		return
	}
	if access == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Token is invalid, expired, or revoked."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sub":       strconv.FormatInt(access.UserID, 10),
		"client_id": access.ClientID,
		"scopes":    access.Scopes,
		"exp":       access.ExpiresAt.Unix(),
	})
}

// Revoke invalidates a token. Revocation is idempotent; only a token that
// never existed reports success=false.
func (h *OAuthHandler) Revoke(c *gin.Context) {
	var req struct {
		Token         string `form:"token" json:"token" binding:"required"`
		TokenTypeHint string `form:"token_type_hint" json:"token_type_hint"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "token is required."})
		return
	}

	revoked, err := h.Tokens.RevokeToken(c.Request.Context(), req.Token, req.TokenTypeHint)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": err.Error()})
		return
	}

	message := "Token revoked."
	if !revoked {
		message = "Token not found."
	}
	c.JSON(http.StatusOK, gin.H{"success": revoked, "message": message})
}

func (h *OAuthHandler) respondOAuthError(c *gin.Context, err error) {
	code, status := "invalid_grant", http.StatusBadRequest
	switch {
	case errors.Is(err, oauth.ErrClientNotFound):
		code, status = "invalid_client", http.StatusUnauthorized
	case errors.Is(err, oauth.ErrInvalidSecret):
		code, status = "invalid_client", http.StatusUnauthorized
	case errors.Is(err, oauth.ErrRedirectMismatch):
		code = "invalid_request"
	case errors.Is(err, oauth.ErrInvalidCode),
		errors.Is(err, oauth.ErrCodeExpired),
		errors.Is(err, oauth.ErrCodeAlreadyUsed),
		errors.Is(err, oauth.ErrClientMismatch),
		errors.Is(err, oauth.ErrInvalidToken),
		errors.Is(err, oauth.ErrTokenExpired),
		errors.Is(err, oauth.ErrTokenRevoked):
		// invalid_grant
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": err.Error()})
		return
	}
	c.JSON(status, gin.H{"error": code, "error_description": err.Error()})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
