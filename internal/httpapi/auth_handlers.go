package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tekstiks/asrstream/internal/store"
)

// Context key for user data
type contextKey string

const userContextKey contextKey = "user"

// JWTClaims represents the claims in the JWT token
type JWTClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// AuthUser represents the authenticated user in request context
type AuthUser struct {
	ID    string
	Email string
}

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// hashToken creates a SHA256 hash of the token for storage
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// withAuth is middleware that requires valid JWT authentication
func (r *Router) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		authHeader := req.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, `{"error": "missing authorization header"}`, http.StatusUnauthorized)
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			http.Error(w, `{"error": "invalid authorization format"}`, http.StatusUnauthorized)
			return
		}

		user, err := r.authenticateToken(req.Context(), parts[1])
		if err != nil {
			http.Error(w, `{"error": "`+err.Error()+`"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(req.Context(), userContextKey, user)
		next.ServeHTTP(w, req.WithContext(ctx))
	}
}

// authenticateToken validates a JWT and its backing session. Shared by
// the auth middleware and the live bridge, which receives the token via
// query parameter.
func (r *Router) authenticateToken(ctx context.Context, tokenString string) (*AuthUser, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(r.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	// Check if session is valid (not revoked)
	tokenHash := hashToken(tokenString)
	valid, err := r.store.IsAuthSessionValid(ctx, tokenHash)
	if err != nil || !valid {
		return nil, errors.New("session expired or revoked")
	}

	return &AuthUser{ID: claims.UserID, Email: claims.Email}, nil
}

// getAuthUser extracts the authenticated user from context
func getAuthUser(ctx context.Context) *AuthUser {
	user, _ := ctx.Value(userContextKey).(*AuthUser)
	return user
}

// generateJWT creates a new JWT token for a user
func (r *Router) generateJWT(user *store.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(r.cfg.JWTExpiry)

	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: user.ID,
		Email:  user.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(r.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// issueSession generates a JWT and records its hash for revocation.
func (r *Router) issueSession(ctx context.Context, user *store.User) (string, time.Time, error) {
	token, expiresAt, err := r.generateJWT(user)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := r.store.CreateAuthSession(ctx, user.ID, hashToken(token), expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// handleRegister creates a new account and issues a JWT
func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	body.Email = strings.ToLower(strings.TrimSpace(body.Email))
	if !isValidEmail(body.Email) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid email address"})
		return
	}
	if len(body.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}

	if _, err := r.store.GetUserByEmail(req.Context(), body.Email); err == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
		return
	} else if err != pgx.ErrNoRows {
		r.logger.Printf("auth: user lookup failed: %v", err)
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, `{"error": "failed to hash password"}`, http.StatusInternalServerError)
		return
	}

	user, err := r.store.CreateUser(req.Context(), body.Email, string(hash))
	if err != nil {
		r.logger.Printf("auth: failed to create user %s: %v", body.Email, err)
		http.Error(w, `{"error": "failed to create user"}`, http.StatusInternalServerError)
		return
	}

	token, expiresAt, err := r.issueSession(req.Context(), user)
	if err != nil {
		r.logger.Printf("auth: failed to create session: %v", err)
		http.Error(w, `{"error": "failed to create session"}`, http.StatusInternalServerError)
		return
	}

	r.logger.Printf("auth: user %s registered", body.Email)

	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
		"user":       user,
	})
}

// handleLogin verifies credentials and issues a JWT
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	user, err := r.store.GetUserByEmail(req.Context(), strings.ToLower(strings.TrimSpace(body.Email)))
	if err != nil {
		// Same response as a bad password so accounts can't be enumerated
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	token, expiresAt, err := r.issueSession(req.Context(), user)
	if err != nil {
		r.logger.Printf("auth: failed to create session: %v", err)
		http.Error(w, `{"error": "failed to create session"}`, http.StatusInternalServerError)
		return
	}

	_ = r.store.TouchUserLogin(req.Context(), user.ID)
	r.logger.Printf("auth: user %s logged in", user.Email)

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
		"user":       user,
	})
}

// handleRefreshToken issues a new JWT token
func (r *Router) handleRefreshToken(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Token string `json:"token"`
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	// Parse existing token (allow expired tokens for refresh)
	parser := jwt.NewParser(jwt.WithExpirationRequired())
	token, err := parser.ParseWithClaims(body.Token, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(r.cfg.JWTSecret), nil
	})

	// Allow expired tokens (we're refreshing) but reject other errors
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			http.Error(w, `{"error": "invalid token"}`, http.StatusUnauthorized)
			return
		}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		http.Error(w, `{"error": "invalid token claims"}`, http.StatusUnauthorized)
		return
	}

	// Check if old session is still valid (not revoked)
	oldTokenHash := hashToken(body.Token)
	valid, err := r.store.IsAuthSessionValid(req.Context(), oldTokenHash)
	if err != nil || !valid {
		http.Error(w, `{"error": "session revoked"}`, http.StatusUnauthorized)
		return
	}

	// Get fresh user data
	user, err := r.store.GetUserByID(req.Context(), claims.UserID)
	if err != nil {
		http.Error(w, `{"error": "user not found"}`, http.StatusUnauthorized)
		return
	}

	newToken, expiresAt, err := r.issueSession(req.Context(), user)
	if err != nil {
		http.Error(w, `{"error": "failed to create session"}`, http.StatusInternalServerError)
		return
	}
	_ = r.store.RevokeAuthSession(req.Context(), oldTokenHash)

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      newToken,
		"expires_at": expiresAt.Format(time.RFC3339),
		"user":       user,
	})
}

// handleLogout revokes the current session
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	authHeader := req.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 {
		_ = r.store.RevokeAuthSession(req.Context(), hashToken(parts[1]))
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleUpdateMe updates the current user's profile
func (r *Router) handleUpdateMe(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		http.Error(w, `{"error": "name is required"}`, http.StatusBadRequest)
		return
	}

	if err := r.store.UpdateUserName(req.Context(), authUser.ID, strings.TrimSpace(body.Name)); err != nil {
		r.logger.Printf("auth: failed to update name for user %s: %v", authUser.ID, err)
		http.Error(w, `{"error": "failed to update profile"}`, http.StatusInternalServerError)
		return
	}

	user, err := r.store.GetUserByID(req.Context(), authUser.ID)
	if err != nil {
		http.Error(w, `{"error": "user not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// handleGetMe returns the current user's data
func (r *Router) handleGetMe(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	if authUser == nil {
		http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
		return
	}

	user, err := r.store.GetUserByID(req.Context(), authUser.ID)
	if err != nil {
		http.Error(w, `{"error": "user not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
