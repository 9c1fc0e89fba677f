package delivery

import (
	"net/http"
	"time"

	authdomain "advisor-backend/internal/auth/domain"
	authdto "advisor-backend/internal/auth/dto"
	"advisor-backend/internal/auth/usecase"
	"advisor-backend/pkg/errs"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authUsecase usecase.AuthUsecase
	// frontendURL receives the browser after an OAuth callback; empty answers with JSON.
	frontendURL string
}

func NewAuthHandler(authUsecase usecase.AuthUsecase, frontendURL string) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		frontendURL: frontendURL,
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(errs.HTTPStatus(err), gin.H{"error": err.Error()})
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req authdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authUsecase.Register(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req authdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authUsecase.Login(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/auth/google
func (h *AuthHandler) GoogleSignIn(c *gin.Context) {
	var req authdto.GoogleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authUsecase.GoogleSignIn(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req authdto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authUsecase.RefreshToken(req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req authdto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authUsecase.Logout(req.RefreshToken); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authUsecase.GetUser(c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DELETE /api/auth/me
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	if err := h.authUsecase.DeleteAccount(c.Request.Context(), c.GetString("userID")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/auth/fcm-token
func (h *AuthHandler) RegisterFCMToken(c *gin.Context) {
	var req authdto.FCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authUsecase.RegisterFCMToken(c.GetString("userID"), req.Token, req.DeviceInfo); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "token registered"})
}

// DELETE /api/auth/fcm-token
func (h *AuthHandler) UnregisterFCMToken(c *gin.Context) {
	var req authdto.FCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authUsecase.UnregisterFCMToken(req.Token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "token removed"})
}

func providerParam(c *gin.Context) (authdomain.Provider, bool) {
	p, ok := authdomain.ParseProvider(c.Param("provider"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
	}
	return p, ok
}

// GET /api/connections
func (h *AuthHandler) ListConnections(c *gin.Context) {
	statuses, err := h.authUsecase.Connections(c.GetString("userID"), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": statuses})
}

// GET /api/connections/:provider/connect
func (h *AuthHandler) Connect(c *gin.Context) {
	p, ok := providerParam(c)
	if !ok {
		return
	}

	url, err := h.authUsecase.ConnectURL(p, c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// GET /api/connections/:provider/callback?code=...&state=...
// Public: the provider redirects the browser here and the state carries the user.
func (h *AuthHandler) Callback(c *gin.Context) {
	p, ok := providerParam(c)
	if !ok {
		return
	}

	if reason := c.Query("error"); reason != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": reason})
		return
	}

	user, err := h.authUsecase.CompleteConnect(c.Request.Context(), p, c.Query("code"), c.Query("state"))
	if err != nil {
		respondError(c, err)
		return
	}

	if h.frontendURL != "" {
		c.Redirect(http.StatusFound, h.frontendURL+"/settings?connected="+string(p))
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": p, "user": user})
}

// DELETE /api/connections/:provider
func (h *AuthHandler) Disconnect(c *gin.Context) {
	p, ok := providerParam(c)
	if !ok {
		return
	}

	if err := h.authUsecase.Disconnect(c.GetString("userID"), p); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterRoutes mounts the public and protected auth routes.
func (h *AuthHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	auth := public.Group("/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/google", h.GoogleSignIn)
	auth.POST("/refresh", h.RefreshToken)
	auth.POST("/logout", h.Logout)
	public.GET("/connections/:provider/callback", h.Callback)

	protected.GET("/auth/me", h.Me)
	protected.DELETE("/auth/me", h.DeleteAccount)
	protected.POST("/auth/fcm-token", h.RegisterFCMToken)
	protected.DELETE("/auth/fcm-token", h.UnregisterFCMToken)
	protected.GET("/connections", h.ListConnections)
	protected.GET("/connections/:provider/connect", h.Connect)
	protected.DELETE("/connections/:provider", h.Disconnect)
}
