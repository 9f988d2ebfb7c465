package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/meetup-qa/backend/internal/auth"
	"github.com/meetup-qa/backend/internal/models"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r *gin.Engine, method, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAndRole(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	r := gin.New()
	r.GET("/host", JWT(svc), RequireRole(models.RoleAdmin), func(c *gin.Context) {
		id, ok := UserID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	admin, err := svc.Generate(&models.User{ID: 3, Role: models.RoleAdmin})
	require.NoError(t, err)
	student, err := svc.Generate(&models.User{ID: 4, Role: models.RoleStudent})
	require.NoError(t, err)

	w := serve(r, http.MethodGet, "/host", "Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":3}`, w.Body.String())

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/host", "Authorization", "Bearer "+student).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/host").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/host", "Authorization", "Token "+admin).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/host", "Authorization", "Bearer nope").Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://app.test"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/x", "Origin", "http://app.test")
	assert.Equal(t, "http://app.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = serve(r, http.MethodGet, "/x", "Origin", "http://evil.test")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodOptions, "/x", "Origin", "http://app.test")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequestIDAndLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := gin.New()
	r.Use(RequestID(), Logger(zap.New(core), "/poll"))
	r.GET("/poll", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := serve(r, http.MethodGet, "/poll", HeaderRequestID, "abc")
	assert.Equal(t, "abc", w.Header().Get(HeaderRequestID))
	w = serve(r, http.MethodGet, "/boom")
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, "abc", entries[0].ContextMap()["request_id"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}
