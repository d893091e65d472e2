package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-io/gatehouse/internal/auth"
	"github.com/gatehouse-io/gatehouse/internal/shared"
	_ "github.com/gatehouse-io/gatehouse/testing"
)

type stubRepo struct {
	users map[string]*auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	user, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, user auth.User) (*auth.User, error) {
	if _, ok := s.users[user.Email]; ok {
		return nil, shared.ErrEmailTaken
	}
	user.CreatedAt = time.Now()
	s.users[user.Email] = &user
	return &user, nil
}

type harness struct {
	router http.Handler
	repo   *stubRepo
	tokens *auth.TokenManager
}

func newHarness(t *testing.T) harness {
	t.Helper()
	mr := miniredis.RunT(t)
	revocations := auth.NewRevocationList(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: []byte("0123456789abcdef0123456789abcdef"), TTL: time.Hour}, revocations)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{users: map[string]*auth.User{
		"user@test.local": {ID: "u1", Email: "user@test.local", PasswordHash: string(hash), Role: "member"},
	}}
	service := auth.NewService(repo, tokens, revocations).WithHashCost(bcrypt.MinCost)

	r := chi.NewRouter()
	r.Route("/api/auth", auth.NewHandler(nil, service).MountRoutes)
	return harness{router: r, repo: repo, tokens: tokens}
}

func (h harness) post(path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	h.router.ServeHTTP(res, req)
	return res
}

func decodeToken(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.NotEmpty(t, body.Token)
	return body.Token
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	h := newHarness(t)
	res := h.post("/api/auth/login", `{"email":"user@test.local","password":"correctpass"}`, "")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	cred, err := h.tokens.Verify(context.Background(), decodeToken(t, res))
	require.NoError(t, err)
	assert.Equal(t, "u1", cred.Subject)
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newHarness(t)
	for _, body := range []string{
		`{"email":"user@test.local","password":"wrongpass"}`,
		`{"email":"nobody@test.local","password":"correctpass"}`,
	} {
		res := h.post("/api/auth/login", body, "")
		assert.Equal(t, http.StatusUnauthorized, res.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	h := newHarness(t)
	res := h.post("/api/auth/login", `{"email":"not-an-email"}`, "")
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), `"email":"must be a valid email"`)
	assert.Contains(t, res.Body.String(), `"password":"is required"`)

	res = h.post("/api/auth/login", `{"email":`, "")
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestRegisterCreatesMemberAndIgnoresRole(t *testing.T) {
	h := newHarness(t)
	res := h.post("/api/auth/register", `{"name":"Nia","email":"Nia@Test.local","password":"longenough"}`, "")
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	decodeToken(t, res)

	created := h.repo.users["nia@test.local"]
	require.NotNil(t, created)
	assert.Equal(t, "member", created.Role)
	assert.NotEqual(t, "longenough", created.PasswordHash)

	res = h.post("/api/auth/register", `{"name":"Nia","email":"nia@test.local","password":"longenough","role":"admin"}`, "")
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = h.post("/api/auth/register", `{"name":"Nia","email":"nia@test.local","password":"longenough"}`, "")
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newHarness(t)
	token := decodeToken(t, h.post("/api/auth/login", `{"email":"user@test.local","password":"correctpass"}`, ""))

	res := h.post("/api/auth/logout", "", token)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	_, err := h.tokens.Verify(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)

	res = h.post("/api/auth/logout", "", "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}
