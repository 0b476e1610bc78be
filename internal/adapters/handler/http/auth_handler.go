package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goalsmith/goalsmith/internal/core/domain"
	"github.com/goalsmith/goalsmith/internal/core/services"
)

type AuthHandler struct {
	tokens *services.TokenService
}

func NewAuthHandler(tokens *services.TokenService) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

type tokenRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	ChatID int64 `json:"chat_id" binding:"required"`
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/auth/token", h.Token)
}

// Token issues an identity token for an allow-listed (user_id,
// chat_id). Anything off the list is rejected; there are no accounts.
func (h *AuthHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.tokens.GenerateToken(domain.Owner{UserID: req.UserID, ChatID: req.ChatID})
	if err != nil {
		if errors.Is(err, domain.ErrNotOnAllowList) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
