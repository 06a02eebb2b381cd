package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/contactly/contactly/internal/auth"
	"github.com/contactly/contactly/internal/database/testutil"
	"github.com/contactly/contactly/internal/ratelimit"
	"github.com/contactly/contactly/internal/services"
	"github.com/contactly/contactly/pkg/mail"
)

var verifyLinkRe = regexp.MustCompile(`token=([A-Za-z0-9._-]+)`)

type capturingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (m *capturingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *capturingMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.messages)

	match := verifyLinkRe.FindStringSubmatch(m.messages[len(m.messages)-1].Body)
	require.Len(t, match, 2)
	return match[1]
}

type testServer struct {
	router *gin.Engine
	mailer *capturingMailer
	clock  *time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	mailer := &capturingMailer{}

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now

	tokens, err := iauth.NewTokenService(iauth.TokenConfig{
		Secret: "integration-secret",
		Clock:  func() time.Time { return *clock },
	})
	require.NoError(t, err)

	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{
		Requests: 5,
		Window:   time.Minute,
		Clock:    func() time.Time { return *clock },
	})

	users := services.NewUserService(db, tokens, mailer, "http://localhost:8000")
	contacts := services.NewContactServiceWithClock(db, func() time.Time { return *clock })

	router := NewRouter(Dependencies{
		DB:       db,
		Tokens:   tokens,
		Users:    users,
		Contacts: contacts,
		Limiter:  limiter,
	})

	return &testServer{router: router, mailer: mailer, clock: clock}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	if dst != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, dst))
	}
}

// signUp walks a fresh account through register, verify, and login, and
// returns a usable access token.
func (s *testServer) signUp(t *testing.T, email, password string) string {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/api/auth/verify?token="+s.mailer.lastToken(t), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code)

	var pair struct {
		AccessToken string `json:"access_token"`
	}
	decodeData(t, w, &pair)
	require.NotEmpty(t, pair.AccessToken)
	return pair.AccessToken
}

func TestFullAccountAndContactFlow(t *testing.T) {
	s := newTestServer(t)

	// Login before verification is refused.
	w := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"email": "flow@example.com", "password": "password123"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "flow@example.com", "password": "password123"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/auth/verify?token="+s.mailer.lastToken(t), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "flow@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	var pair struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	decodeData(t, w, &pair)
	require.Equal(t, "bearer", pair.TokenType)
	token := pair.AccessToken

	// Create, read, update, list, delete.
	w = s.do(t, http.MethodPost, "/api/contacts", token, gin.H{
		"first_name": "Marie",
		"last_name":  "Curie",
		"email":      "marie@example.com",
		"phone":      "+15550600",
		"birthday":   "1867-11-07",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	decodeData(t, w, &created)

	w = s.do(t, http.MethodGet, "/api/contacts/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// PUT requires a complete body and replaces every field.
	w = s.do(t, http.MethodPut, "/api/contacts/"+created.ID, token, gin.H{
		"first_name": "Marie",
		"last_name":  "Sklodowska-Curie",
		"email":      "marie@example.com",
		"phone":      "+15550601",
		"birthday":   "1867-11-07",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var replaced struct {
		LastName string `json:"last_name"`
	}
	decodeData(t, w, &replaced)
	require.Equal(t, "Sklodowska-Curie", replaced.LastName)

	// An incomplete PUT body is refused.
	w = s.do(t, http.MethodPut, "/api/contacts/"+created.ID, token, gin.H{"note": "incomplete"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPatch, "/api/contacts/"+created.ID, token, gin.H{"note": "physicist"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated struct {
		Note string `json:"note"`
	}
	decodeData(t, w, &updated)
	require.Equal(t, "physicist", updated.Note)

	w = s.do(t, http.MethodGet, "/api/contacts?q=Curie", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []struct {
		ID string `json:"id"`
	}
	decodeData(t, w, &listed)
	require.Len(t, listed, 1)

	w = s.do(t, http.MethodDelete, "/api/contacts/"+created.ID, token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/contacts/"+created.ID, token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestProfileEndpointIsRateLimited(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "limited@example.com", "password123")

	for i := 0; i < 5; i++ {
		w := s.do(t, http.MethodGet, "/api/users/me", token, nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}

	w := s.do(t, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// Contact routes stay unaffected.
	w = s.do(t, http.MethodGet, "/api/contacts", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The window slides open again.
	*s.clock = s.clock.Add(61 * time.Second)
	w = s.do(t, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestContactsAreIsolatedBetweenAccounts(t *testing.T) {
	s := newTestServer(t)
	tokenA := s.signUp(t, "iso-a@example.com", "password123")
	tokenB := s.signUp(t, "iso-b@example.com", "password123")

	w := s.do(t, http.MethodPost, "/api/contacts", tokenA, gin.H{
		"first_name": "Niels",
		"last_name":  "Bohr",
		"email":      "niels@example.com",
		"phone":      "+15550700",
		"birthday":   "1885-10-07",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	decodeData(t, w, &created)

	w = s.do(t, http.MethodGet, "/api/contacts/"+created.ID, tokenB, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, "/api/contacts/"+created.ID, tokenB, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpcomingBirthdaysEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "bdays@example.com", "password123")

	for i, birthday := range []string{"1990-06-05", "1990-06-20"} {
		w := s.do(t, http.MethodPost, "/api/contacts", token, gin.H{
			"first_name": "Contact",
			"last_name":  fmt.Sprintf("Number%d", i),
			"email":      fmt.Sprintf("bday%d@example.com", i),
			"phone":      "+15550800",
			"birthday":   birthday,
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	// Clock is June 1; a 10 day window reaches June 11.
	w := s.do(t, http.MethodGet, "/api/contacts/upcoming-birthdays?days=10", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var matched []struct {
		Email string `json:"email"`
	}
	decodeData(t, w, &matched)
	require.Len(t, matched, 1)
	require.Equal(t, "bday0@example.com", matched[0].Email)

	w = s.do(t, http.MethodGet, "/api/contacts/upcoming-birthdays?days=0", token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteAccountCascades(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "cascade@example.com", "password123")

	w := s.do(t, http.MethodPost, "/api/contacts", token, gin.H{
		"first_name": "Rosalind",
		"last_name":  "Franklin",
		"email":      "rosalind@example.com",
		"phone":      "+15550900",
		"birthday":   "1920-07-25",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodDelete, "/api/users/me", token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	// The token's subject is gone, so it stops working.
	w = s.do(t, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/nope", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ok")
}
