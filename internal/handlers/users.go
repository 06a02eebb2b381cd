package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contactly/contactly/internal/avatar"
	"github.com/contactly/contactly/internal/middleware"
	"github.com/contactly/contactly/internal/services"
	appErrors "github.com/contactly/contactly/pkg/errors"
	"github.com/contactly/contactly/pkg/response"
)

const maxAvatarBytes = 5 << 20

// UserHandler exposes the current-user endpoints.
type UserHandler struct {
	users    *services.UserService
	uploader avatar.Uploader
}

// NewUserHandler builds a UserHandler. The uploader may be nil, in which case
// avatar uploads are rejected.
func NewUserHandler(users *services.UserService, uploader avatar.Uploader) *UserHandler {
	return &UserHandler{users: users, uploader: uploader}
}

// Me returns the authenticated user's profile.
// GET /api/users/me
func (h *UserHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	response.Success(c, http.StatusOK, user)
}

// UploadAvatar replaces the authenticated user's avatar image.
// POST /api/users/me/avatar
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	if h.uploader == nil {
		response.Error(c, appErrors.New("AVATAR_DISABLED", "avatar uploads are not configured", http.StatusServiceUnavailable))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("a file form field is required"))
		return
	}
	if fileHeader.Size > maxAvatarBytes {
		response.Error(c, appErrors.NewBadRequest("avatar file exceeds the 5 MiB limit"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to open uploaded file"))
		return
	}
	defer file.Close()

	result, err := h.uploader.Upload(c.Request.Context(), user.ID, file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to store avatar"))
		return
	}

	updated, err := h.users.UpdateAvatar(c.Request.Context(), user.ID, result.URL, result.PublicID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, updated)
}

// Delete removes the authenticated user's account and all their contacts.
// DELETE /api/users/me
func (h *UserHandler) Delete(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	if err := h.users.Delete(c.Request.Context(), user.ID); err != nil {
		response.Error(c, err)
		return
	}

	if h.uploader != nil && user.AvatarPublicID != "" {
		// Best effort; a dangling image must not fail account deletion.
		_ = h.uploader.Remove(c.Request.Context(), user.AvatarPublicID)
	}

	c.Status(http.StatusNoContent)
}
