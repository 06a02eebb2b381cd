package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/contactly/contactly/internal/auth"
	"github.com/contactly/contactly/internal/database/testutil"
	"github.com/contactly/contactly/internal/models"
)

func newGuardedRouter(t *testing.T, db *gorm.DB) (*gin.Engine, *iauth.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := iauth.NewTokenService(iauth.TokenConfig{Secret: "test-secret"})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/protected", Auth(tokens, db), func(c *gin.Context) {
		user := CurrentUser(c)
		require.NotNil(t, user)
		c.JSON(http.StatusOK, gin.H{"id": user.ID})
	})
	return r, tokens
}

func createGuardUser(t *testing.T, db *gorm.DB, email string, verified bool) *models.User {
	t.Helper()
	user := &models.User{Email: email, Password: "digest", Verified: verified}
	require.NoError(t, db.Create(user).Error)
	return user
}

func doGet(r *gin.Engine, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestAuthMissingHeader(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	r, _ := newGuardedRouter(t, db)

	w := doGet(r, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "UNAUTHENTICATED", errorCode(t, w))

	w = doGet(r, "Basic dXNlcjpwYXNz")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "UNAUTHENTICATED", errorCode(t, w))
}

func TestAuthInvalidToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	r, _ := newGuardedRouter(t, db)

	w := doGet(r, "Bearer garbage")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "INVALID_TOKEN", errorCode(t, w))
}

func TestAuthRejectsVerifyKindToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	r, tokens := newGuardedRouter(t, db)

	user := createGuardUser(t, db, "guard-verify-kind@example.com", true)

	token, err := tokens.IssueVerifyToken(user.ID)
	require.NoError(t, err)

	w := doGet(r, "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "INVALID_TOKEN", errorCode(t, w))
}

func TestAuthUnknownSubjectSameClassAsBadToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	r, tokens := newGuardedRouter(t, db)

	token, err := tokens.IssueAccessToken("no-such-user")
	require.NoError(t, err)

	w := doGet(r, "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "INVALID_TOKEN", errorCode(t, w))
}

func TestAuthUnverifiedUserForbidden(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	r, tokens := newGuardedRouter(t, db)

	user := createGuardUser(t, db, "guard-unverified@example.com", false)

	token, err := tokens.IssueAccessToken(user.ID)
	require.NoError(t, err)

	w := doGet(r, "Bearer "+token)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "EMAIL_UNVERIFIED", errorCode(t, w))
}

func TestAuthHappyPath(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	r, tokens := newGuardedRouter(t, db)

	user := createGuardUser(t, db, "guard-happy@example.com", true)

	token, err := tokens.IssueAccessToken(user.ID)
	require.NoError(t, err)

	w := doGet(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
}
