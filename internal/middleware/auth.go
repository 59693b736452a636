// Package middleware содержит HTTP middleware пульта розыгрыша.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const operatorKey contextKey = "operator"

const (
	authCookieName = "operator_token"
	authCookieTTL  = 12 * time.Hour
)

// AuthMiddleware выполняет проверку оператора по подписанному cookie.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
// Пустой ключ заменяется случайным: cookie станут недействительны после перезапуска.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет cookie оператора и добавляет его имя в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		operator, ok := a.parseCookie(cookie.Value)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey, operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetAuthCookie устанавливает подписанный cookie для указанного оператора.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, operator string) {
	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    hex.EncodeToString([]byte(operator)) + "." + a.sign(operator),
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

func (a *AuthMiddleware) sign(operator string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(operator))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parseCookie(cookieValue string) (string, bool) {
	encoded, signature, found := strings.Cut(cookieValue, ".")
	if !found {
		return "", false
	}

	raw, err := hex.DecodeString(encoded)
	if err != nil || len(raw) == 0 {
		return "", false
	}
	operator := string(raw)

	if !hmac.Equal([]byte(signature), []byte(a.sign(operator))) {
		return "", false
	}

	return operator, true
}

// GetOperatorFromContext извлекает имя оператора из контекста запроса.
func GetOperatorFromContext(ctx context.Context) (string, bool) {
	op, ok := ctx.Value(operatorKey).(string)
	return op, ok
}
