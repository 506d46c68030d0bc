package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PR1MKO/iktato-backend/internal/actor"
	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/roles"
	"github.com/PR1MKO/iktato-backend/internal/services"
)

type AuthHandler struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthHandler(log *logger.Logger, authService services.AuthService) *AuthHandler {
	return &AuthHandler{log: log.With("handler", "AuthHandler"), authService: authService}
}

// Login accepts both a JSON body and a classic form post.
func (ah *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	token, user, err := ah.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if wantsJSON(c) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		} else {
			RedirectWithFlash(c, "/login", "Hibás felhasználónév vagy jelszó")
		}
		return
	}
	ttl := int(ah.authService.AccessTTL().Seconds())
	c.SetCookie("access_token", token, ttl, "/", "", false, true)
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"access_token": token,
			"expires_in":   ttl,
			"role":         string(roles.Canonicalize(user.Role)),
		})
		return
	}
	c.Redirect(http.StatusFound, "/dashboard")
}

func (ah *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie("access_token", "", -1, "/", "", false, true)
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	c.Redirect(http.StatusFound, "/login")
}

// AcknowledgeCookies stamps the consent timestamp on the current user.
func (ah *AuthHandler) AcknowledgeCookies(c *gin.Context) {
	act, ok := actor.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
		return
	}
	if err := ah.authService.AcknowledgeCookies(c.Request.Context(), act.UserID); err != nil {
		Fail(c, ah.log, err, "/dashboard")
		return
	}
	c.Status(http.StatusNoContent)
}
