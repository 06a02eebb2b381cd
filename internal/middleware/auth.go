package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/contactly/contactly/internal/auth"
	"github.com/contactly/contactly/internal/models"
	appErrors "github.com/contactly/contactly/pkg/errors"
	"github.com/contactly/contactly/pkg/response"
)

const (
	CtxUserIDKey = "userID"
	CtxUserKey   = "currentUser"
)

// Auth authenticates the bearer token and resolves the calling user. The four
// failure classes stay distinct and ordered:
//
//  1. missing or non-bearer header        -> UNAUTHENTICATED
//  2. token invalid or not access-kind    -> INVALID_TOKEN
//  3. subject resolves to no user         -> INVALID_TOKEN (same class, so a
//     caller cannot probe which half failed)
//  4. user exists but is unverified       -> EMAIL_UNVERIFIED
//
// The only side effect of a successful pass is the user read.
func Auth(tokens *iauth.TokenService, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, appErrors.ErrUnauthenticated)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := tokens.Verify(token, iauth.TokenKindAccess)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, appErrors.ErrInvalidToken)
			c.Abort()
			return
		}

		var user models.User
		err = db.WithContext(c.Request.Context()).Take(&user, "id = ?", claims.UserID).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
				c.Abort()
				return
			}
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, appErrors.ErrInvalidToken)
			c.Abort()
			return
		}

		if !user.Verified {
			response.Error(c, appErrors.ErrEmailUnverified)
			c.Abort()
			return
		}

		c.Set(CtxUserIDKey, user.ID)
		c.Set(CtxUserKey, &user)

		c.Next()
	}
}

// CurrentUser returns the user resolved by Auth, or nil outside a guarded route.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
