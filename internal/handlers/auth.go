package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contactly/contactly/internal/services"
	appErrors "github.com/contactly/contactly/pkg/errors"
	"github.com/contactly/contactly/pkg/response"
)

// AuthHandler exposes registration, email verification, and login.
type AuthHandler struct {
	users *services.UserService
}

func NewAuthHandler(users *services.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// Register creates a new unverified account.
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, user)
}

// Verify consumes an email verification token.
// GET /api/auth/verify?token=...
func (h *AuthHandler) Verify(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.NewBadRequest("token query parameter is required"))
		return
	}

	user, err := h.users.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"email":    user.Email,
		"verified": user.Verified,
	})
}

// ResendVerification issues a fresh verification link.
// POST /api/auth/resend-verification
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := bindAndValidate(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	// Whether the account exists is not revealed to the caller.
	if err := h.users.ResendVerification(c.Request.Context(), req.Email); err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Code != appErrors.ErrNotFound.Code {
			response.Error(c, err)
			return
		}
	}

	response.Success(c, http.StatusAccepted, gin.H{
		"message": "if the account exists, a verification email has been sent",
	})
}

// Login exchanges credentials for an access token.
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	pair, _, err := h.users.Authenticate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, pair)
}
