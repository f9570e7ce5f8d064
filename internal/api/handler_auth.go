package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maintenance-panel-backend/internal/identity"
	"maintenance-panel-backend/internal/mw"
)

type signUpRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// setSessionCookie hands the session token to the browser.
func (h *Handler) setSessionCookie(c *gin.Context, s *identity.Session) {
	maxAge := int(s.ExpiresAt.Sub(h.now()).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.gate.CookieName(), s.Token, maxAge, "/", "", h.server.SecureCookie, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.gate.CookieName(), "", -1, "/", "", h.server.SecureCookie, true)
}

// LoginPage handles GET /login.
func (h *Handler) LoginPage(c *gin.Context) {
	if _, ok := mw.SessionFrom(c); ok {
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}
	h.render(c, http.StatusOK, "login.html", gin.H{"Title": "Sign in"})
}

// Login handles POST /login.
func (h *Handler) Login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	session, err := h.identity.SignIn(c.Request.Context(), email, c.PostForm("password"))
	if err != nil {
		status := statusFor(err)
		h.render(c, status, "login.html", gin.H{
			"Title": "Sign in",
			"Email": email,
			"Error": errorMessage(status, err),
		})
		return
	}
	h.setSessionCookie(c, session)
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// SignUpPage handles GET /signup.
func (h *Handler) SignUpPage(c *gin.Context) {
	h.render(c, http.StatusOK, "signup.html", gin.H{"Title": "Create account"})
}

// SignUp handles POST /signup.
func (h *Handler) SignUp(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	name := strings.TrimSpace(c.PostForm("display_name"))
	session, err := h.identity.SignUp(c.Request.Context(), email, c.PostForm("password"), name)
	if err != nil {
		status := statusFor(err)
		h.render(c, status, "signup.html", gin.H{
			"Title":       "Create account",
			"Email":       email,
			"DisplayName": name,
			"Error":       errorMessage(status, err),
		})
		return
	}
	h.logger.Info("account created", zap.String("user", session.UserID))
	h.setSessionCookie(c, session)
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// Logout handles POST /logout.
func (h *Handler) Logout(c *gin.Context) {
	if token := h.gate.Token(c); token != "" {
		_ = h.identity.SignOut(c.Request.Context(), token)
	}
	h.clearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, "/login")
}

// APISignUp handles POST /api/auth/signup.
func (h *Handler) APISignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	session, err := h.identity.SignUp(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		h.abortJSON(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// APISignIn handles POST /api/auth/signin.
func (h *Handler) APISignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	session, err := h.identity.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.abortJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// APISignOut handles POST /api/auth/signout. Unknown tokens are not an error.
func (h *Handler) APISignOut(c *gin.Context) {
	if token := h.gate.Token(c); token != "" {
		_ = h.identity.SignOut(c.Request.Context(), token)
	}
	c.Status(http.StatusNoContent)
}

// APIMe handles GET /api/auth/me.
func (h *Handler) APIMe(c *gin.Context) {
	session, _ := mw.SessionFrom(c)
	c.JSON(http.StatusOK, session)
}
