package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leafscan/leafscan-api/internal/auth"
	"github.com/leafscan/leafscan-api/internal/config"
	"github.com/leafscan/leafscan-api/internal/domain/user"
	"github.com/leafscan/leafscan-api/internal/observability"
	"github.com/leafscan/leafscan-api/internal/repo/postgres"
	"github.com/leafscan/leafscan-api/internal/security"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type UserWriter interface {
	Create(ctx context.Context, name, email, passwordHash string) (user.User, error)
}

type AuthHandler struct {
	users      UserReader
	userWriter UserWriter
	hasher     *security.Hasher
	jwt        *auth.Manager
	prom       *observability.Prom
	log        *slog.Logger
}

func NewAuthHandler(users UserReader, userWriter UserWriter, hasher *security.Hasher, jwtManager *auth.Manager, prom *observability.Prom, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:      users,
		userWriter: userWriter,
		hasher:     hasher,
		jwt:        jwtManager,
		prom:       prom,
		log:        log,
	}
}

// The SPA never validates formats client-side beyond presence, and
// neither do we: name and email are free text, only presence is
// required.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req, "Please provide all fields") {
		h.countRegister("invalid")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	hash, err := h.hasher.Hash(req.Password)

	if err != nil {
		h.log.Error("password hash failed", "err", err)
		h.countRegister("error")
		RespondInternal(ctx, "Could not create user")
		return
	}

	u, err := h.userWriter.Create(cctx, req.Name, req.Email, hash)

	if err != nil {
		if errors.Is(err, postgres.ErrEmailTaken) {
			h.countRegister("email_taken")
			RespondBadRequest(ctx, "Email already exists")
			return
		}

		h.log.Error("user insert failed", "err", err)
		h.countRegister("error")
		RespondInternal(ctx, "Could not create user")
		return
	}

	token, err := h.jwt.Generate(u.ID)

	if err != nil {
		h.log.Error("token signing failed", "err", err)
		h.countRegister("error")
		RespondInternal(ctx, "Could not create user")
		return
	}

	h.countRegister("ok")

	ctx.JSON(http.StatusOK, gin.H{
		"message": "User registered successfully",
		"user":    u.Public(),
		"token":   token,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req, "Please provide email and password") {
		h.countLogin("invalid")
		return
	}

	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			// the SPA relies on distinguishing an unknown account from
			// a bad password, so the 404/401 split stays
			h.countLogin("not_found")
			RespondNotFound(ctx, "User not found")
			return
		}

		h.log.Error("user lookup failed", "err", err)
		h.countLogin("error")
		RespondInternal(ctx, "Could not log in")
		return
	}

	err = h.hasher.Check(foundUser.PasswordHash, req.Password)

	if err != nil {
		h.countLogin("bad_password")
		RespondUnauthorized(ctx, "Invalid password")
		return
	}

	token, err := h.jwt.Generate(foundUser.ID)

	if err != nil {
		h.log.Error("token signing failed", "err", err)
		h.countLogin("error")
		RespondInternal(ctx, "Could not log in")
		return
	}

	h.countLogin("ok")

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    foundUser.Public(),
		"token":   token,
	})
}

// Helper functions

func (h *AuthHandler) countRegister(result string) {
	if h.prom != nil {
		h.prom.RegistrationsTotal.WithLabelValues(result).Inc()
	}
}

func (h *AuthHandler) countLogin(result string) {
	if h.prom != nil {
		h.prom.LoginsTotal.WithLabelValues(result).Inc()
	}
}
