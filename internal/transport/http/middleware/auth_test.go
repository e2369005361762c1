package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testKey = "middleware-test-secret-32-chars!!"

func init() {
	gin.SetMode(gin.TestMode)
}

// newEngine protects GET /protected with Auth and echoes the operator.
func newEngine(key []byte) *gin.Engine {
	r := gin.New()
	r.GET("/protected", middleware.Auth(key), func(c *gin.Context) {
		c.String(http.StatusOK, "%s", c.GetString(middleware.OperatorKey))
	})
	return r
}

func makeJWT(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return s
}

func do(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_Rejections(t *testing.T) {
	expired := makeJWT(t, jwt.SigningMethodHS256, []byte(testKey), jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := makeJWT(t, jwt.SigningMethodHS256, []byte("different-key-that-is-32-chars!!"), jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	hs512 := makeJWT(t, jwt.SigningMethodHS512, []byte(testKey), jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	noSubject := makeJWT(t, jwt.SigningMethodHS256, []byte(testKey), jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"basic scheme", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.jwt"},
		{"expired", "Bearer " + expired},
		{"wrong key", "Bearer " + wrongKey},
		{"unexpected algorithm", "Bearer " + hs512},
		{"no subject", "Bearer " + noSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newEngine([]byte(testKey)), tt.header)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestAuth_ValidToken_SetsOperator(t *testing.T) {
	tok := makeJWT(t, jwt.SigningMethodHS256, []byte(testKey), jwt.MapClaims{
		"sub": "ops-team",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	w := do(newEngine([]byte(testKey)), "Bearer "+tok)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "ops-team" {
		t.Errorf("body = %q, want ops-team", got)
	}
}

func TestAuth_EmptyKeyDisablesCheck(t *testing.T) {
	w := do(newEngine(nil), "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
