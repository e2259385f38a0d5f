package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testKey = "test-signing-key"

func sign(t *testing.T, method jwt.SigningMethod, key any, c Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, c).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func claims(role, issuer string, exp time.Duration) Claims {
	return Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "t-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(exp)),
		},
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		token   func(t *testing.T) string
		issuer  string
		wantErr bool
	}{
		{name: "valid", token: func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, []byte(testKey), claims(RoleTeacher, "arise", time.Hour))
		}, issuer: "arise"},
		{name: "issuer not checked when empty", token: func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, []byte(testKey), claims(RoleTeacher, "other", time.Hour))
		}},
		{name: "issuer mismatch", token: func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, []byte(testKey), claims(RoleTeacher, "other", time.Hour))
		}, issuer: "arise", wantErr: true},
		{name: "expired", token: func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, []byte(testKey), claims(RoleTeacher, "arise", -time.Minute))
		}, issuer: "arise", wantErr: true},
		{name: "wrong key", token: func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, []byte("other-key"), claims(RoleTeacher, "arise", time.Hour))
		}, issuer: "arise", wantErr: true},
		{name: "wrong method", token: func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS512, []byte(testKey), claims(RoleTeacher, "arise", time.Hour))
		}, issuer: "arise", wantErr: true},
		{name: "garbage", token: func(t *testing.T) string { return "not.a.token" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.token(t), testKey, tt.issuer)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.Role != RoleTeacher {
				t.Errorf("role = %q", got.Role)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/teacher", Require(testKey, "arise", RoleTeacher), func(c *gin.Context) {
		cl, ok := ClaimsFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, cl.Subject)
	})

	teacher := sign(t, jwt.SigningMethodHS256, []byte(testKey), claims(RoleTeacher, "arise", time.Hour))
	device := sign(t, jwt.SigningMethodHS256, []byte(testKey), claims(RoleDevice, "arise", time.Hour))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "no header", header: "", want: http.StatusUnauthorized},
		{name: "basic auth", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "wrong role", header: "Bearer " + device, want: http.StatusForbidden},
		{name: "ok", header: "Bearer " + teacher, want: http.StatusOK},
		{name: "lower-case scheme", header: "bearer " + teacher, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/teacher", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			if tt.want == http.StatusOK && w.Body.String() != "t-1" {
				t.Errorf("subject = %q", w.Body.String())
			}
		})
	}
}
