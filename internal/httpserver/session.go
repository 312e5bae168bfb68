// apps/go-server/internal/httpserver/session.go
//
// Per-game session tokens.
//   - HS256 JWTs carrying the game id, signed with SESSION_SECRET.
//   - Accepted from the Authorization header, the memory_token cookie, or ?token=.
//   - requireGameToken resolves the token to a mounted game for the handlers.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/robalobadob/memory/apps/go-server/internal/game"
	"github.com/robalobadob/memory/apps/go-server/internal/store"
)

const tokenCookieName = "memory_token"

// ctxGameKey is the context key type for the authorised *game.Game.
type ctxGameKey struct{}

// gameFrom returns the game attached by requireGameToken.
func gameFrom(r *http.Request) *game.Game {
	g, _ := r.Context().Value(ctxGameKey{}).(*game.Game)
	return g
}

// signGameToken creates an HS256 JWT that grants access to one game.
func (s *Server) signGameToken(gameID string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.cfg.SessionTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"gid": gameID,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.cfg.SessionSecret))
	return ss, exp, err
}

// parseGameToken verifies a token and returns the game id it grants.
func (s *Server) parseGameToken(tokenStr string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.SessionSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	gid, _ := claims["gid"].(string)
	if gid == "" {
		return "", errors.New("missing gid claim")
	}
	return gid, nil
}

// setTokenCookie writes the session token cookie.
func (s *Server) setTokenCookie(w http.ResponseWriter, token string, exp time.Time) {
	secure := strings.HasPrefix(s.cfg.ClientOrigin, "https://")
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		Expires:  exp,
	})
}

// bearerOrCookie extracts the token from the Authorization header, the
// token cookie, or (for websocket clients that cannot set headers) ?token=.
func bearerOrCookie(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(tokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

// requireGameToken checks that the token grants the {id} in the path and
// injects the mounted game into the request context.
func (s *Server) requireGameToken() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerOrCookie(r)
			if tokenStr == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			gid, err := s.parseGameToken(tokenStr)
			if err != nil || gid != chi.URLParam(r, "id") {
				http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
				return
			}
			g, err := s.store.Get(r.Context(), gid)
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
				return
			}
			if err != nil {
				http.Error(w, `{"error":"store_failed"}`, http.StatusInternalServerError)
				return
			}
			ctx := context.WithValue(r.Context(), ctxGameKey{}, g)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
