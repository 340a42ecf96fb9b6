package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Identity is the authenticated caller. OwnerID scopes every record.
type Identity struct {
	OwnerID string
	Email   string
}

// Actor is the name recorded as creadoPor: the email when known.
func (i Identity) Actor() string {
	if i.Email != "" {
		return i.Email
	}
	return i.OwnerID
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity stored by Auth.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.OwnerID != ""
}

// Auth authenticates /api requests. With a secret, a HS256 bearer token is
// required and its "sub" claim is the owner. Without one (development), the
// X-User-ID header names the owner.
func Auth(secret string, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				id  Identity
				err error
			)
			if secret == "" {
				id = Identity{
					OwnerID: strings.TrimSpace(r.Header.Get("X-User-ID")),
					Email:   strings.TrimSpace(r.Header.Get("X-User-Email")),
				}
				if id.OwnerID == "" {
					err = errors.New("missing X-User-ID header")
				}
			} else {
				id, err = identityFromBearer(r, secret)
			}

			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("Unauthorized request")
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func identityFromBearer(r *http.Request, secret string) (Identity, error) {
	h := r.Header.Get("Authorization")
	tokenString, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || tokenString == "" {
		// EventSource cannot set headers; streams pass the token as a query param.
		tokenString = r.URL.Query().Get("access_token")
	}
	if tokenString == "" {
		return Identity{}, errors.New("missing bearer token")
	}
	return ValidateToken(tokenString, secret)
}

// ValidateToken parses a HS256 token and returns its identity.
func ValidateToken(tokenString, secret string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Identity{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, errors.New("invalid token")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, errors.New("invalid token: 'sub' claim missing or not a string")
	}
	email, _ := claims["email"].(string)
	return Identity{OwnerID: sub, Email: email}, nil
}

// GenerateToken signs a HS256 token for ownerID valid for ttl.
func GenerateToken(ownerID, email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": ownerID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if email != "" {
		claims["email"] = email
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
