package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicesotero/CoLab/internal/core/domain"
	"github.com/alicesotero/CoLab/internal/core/services"
	"github.com/alicesotero/CoLab/internal/infrastructure/middleware"
	"github.com/alicesotero/CoLab/internal/infrastructure/repositories/memory"
	"github.com/alicesotero/CoLab/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (*gin.Engine, *auth.TokenManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop().Sugar()

	users := memory.NewMemoryUserRepository()
	history := memory.NewMemoryMessageRepository()
	rooms := []domain.RoomName{"Geral"}
	directory := services.NewRoomDirectory(rooms, users, history, 50, time.Second, log)
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	registry := services.NewSessionRegistry(users, directory, tokens, rooms, time.Second, log)

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(log))
	NewAuthHandler(registry, tokens).SetupRoutes(router)
	return router, tokens
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterEndpoint(t *testing.T) {
	router, tokens := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/auth/register", map[string]string{
		"username":  "alice",
		"password":  "secret123",
		"firstName": "Alice",
		"lastName":  "Silva",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Token   string `json:"token"`
		Profile struct {
			Username string `json:"username"`
		} `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Profile.Username)

	claims, err := tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestRegisterEndpoint_Validation(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/auth/register", map[string]string{
		"username":  "a b",
		"password":  "secret123",
		"firstName": "Alice",
		"lastName":  "Silva",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterEndpoint_Duplicate(t *testing.T) {
	router, _ := newTestRouter(t)

	body := map[string]string{
		"username":  "alice",
		"password":  "secret123",
		"firstName": "Alice",
		"lastName":  "Silva",
	}
	require.Equal(t, http.StatusCreated, postJSON(t, router, "/api/v1/auth/register", body).Code)
	assert.Equal(t, http.StatusConflict, postJSON(t, router, "/api/v1/auth/register", body).Code)
}

func TestLoginEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	require.Equal(t, http.StatusCreated, postJSON(t, router, "/api/v1/auth/register", map[string]string{
		"username":  "alice",
		"password":  "secret123",
		"firstName": "Alice",
		"lastName":  "Silva",
	}).Code)

	w := postJSON(t, router, "/api/v1/auth/login", map[string]string{
		"username": "alice",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// Wrong password and unknown user return the same status and code.
	wrongPw := postJSON(t, router, "/api/v1/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	unknown := postJSON(t, router, "/api/v1/auth/login", map[string]string{
		"username": "ghost",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, wrongPw.Body.String(), unknown.Body.String())
}
