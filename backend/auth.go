package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/International-Combat-Archery-Alliance/checkin/api"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const tokenIssuer = "checkin-devbackend"

type StaffUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Authenticator checks the single configured staff account and issues HS256
// tokens for it.
type Authenticator struct {
	staff        StaffUser
	passwordHash []byte
	secret       []byte
	expiry       time.Duration
	now          func() time.Time
}

func NewAuthenticator(staff StaffUser, passwordHash string, secret string, expiry time.Duration) *Authenticator {
	return &Authenticator{
		staff:        staff,
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		expiry:       expiry,
		now:          time.Now,
	}
}

// Login returns a signed token when email and password match the staff
// account.
func (a *Authenticator) Login(email string, password string) (string, StaffUser, error) {
	if !strings.EqualFold(strings.TrimSpace(email), a.staff.Email) {
		// still pay for a hash comparison so a wrong email isn't faster
		bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
		return "", StaffUser{}, ErrInvalidCredentials
	}

	err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if err != nil {
		return "", StaffUser{}, ErrInvalidCredentials
	}

	token, err := a.sign(a.staff)
	if err != nil {
		return "", StaffUser{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return token, a.staff, nil
}

func (a *Authenticator) sign(user StaffUser) (string, error) {
	now := a.now()
	claims := Claims{
		Name:  user.Name,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

type claimsCtxKey struct{}

func ClaimsFromCtx(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsCtxKey{}).(*Claims)
	return claims, ok
}

// AuthMiddleware rejects requests without a valid bearer token.
func (a *Authenticator) AuthMiddleware(fallback *slog.Logger) api.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := api.GetLoggerFromCtx(r.Context(), fallback)

			tokenStr, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || tokenStr == "" {
				api.WriteError(w, logger, http.StatusUnauthorized, api.AuthError, "Missing bearer token")
				return
			}

			claims, err := a.Verify(tokenStr)
			if err != nil {
				logger.Warn("Rejected bearer token", "error", err)
				api.WriteError(w, logger, http.StatusUnauthorized, api.AuthError, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsCtxKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
