package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"clinic/m/domain"
	"clinic/m/internal/inventory"
)

type ctxKey string

const ctxActor ctxKey = "actor"

// Authentication helpers

type authClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(userID int64, role string) (string, error) {
	now := time.Now()
	claims := authClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

var errMissingBearer = errors.New("missing bearer token")

func (h *Handler) parseBearer(r *http.Request) (*authClaims, error) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return nil, errMissingBearer
	}
	tokenString := strings.TrimSpace(header[len("Bearer "):])
	token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(h.secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(*authClaims)
	if !ok || claims.UserID <= 0 {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.parseBearer(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		actor := inventory.Actor{UserID: claims.UserID, Role: claims.Role}
		ctx := context.WithValue(r.Context(), ctxActor, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(r *http.Request) inventory.Actor {
	if a, ok := r.Context().Value(ctxActor).(inventory.Actor); ok {
		return a
	}
	return inventory.Actor{}
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	actor := actorFromContext(r)
	if actor.Role == "" {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	for _, allowedRole := range allowed {
		if actor.Role == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

// Auth Handlers

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// register creates a staff account. The very first account becomes an
// admin; after that only admins may register staff.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	var existing int
	if err := h.db.GetContext(r.Context(), &existing, `SELECT COUNT(*) FROM users`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to start registration")
		return
	}
	if existing == 0 {
		req.Role = domain.RoleAdmin
	} else {
		claims, err := h.parseBearer(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if claims.Role != domain.RoleAdmin {
			respondError(w, http.StatusForbidden, "only admins can register staff")
			return
		}
		if !domain.ValidRole(req.Role) {
			respondError(w, http.StatusBadRequest, "role must be admin, pharmacist or staff")
			return
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var userID int64
	err = h.db.QueryRowxContext(r.Context(), h.db.Rebind(`INSERT INTO users (username, email, password, role) VALUES (?, ?, ?, ?) RETURNING id`),
		req.Username, email, string(hashed), req.Role).Scan(&userID)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key") {
			respondError(w, http.StatusConflict, "email already exists")
		} else {
			h.log.Error().Err(err).Msg("register user")
			respondError(w, http.StatusInternalServerError, "unable to complete registration")
		}
		return
	}

	token, err := h.generateToken(userID, req.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: domain.User{ID: userID, Username: req.Username, Email: email, Role: req.Role}})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var user domain.User
	err := h.db.GetContext(r.Context(), &user, h.db.Rebind(`SELECT id, username, email, password, role, created_at FROM users WHERE email = ?`),
		strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	user.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.NewPassword == "" {
		respondError(w, http.StatusBadRequest, "new_password is required")
		return
	}
	uid := actorFromContext(r).UserID
	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}
	if _, err := h.db.ExecContext(r.Context(), h.db.Rebind(`UPDATE users SET password = ? WHERE id = ?`), string(hashed), uid); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update password")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}
