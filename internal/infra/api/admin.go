package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"photobridge/internal/domain"
	"photobridge/internal/domain/ports/repository"
	"photobridge/internal/infra/logging"
	"photobridge/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

var validate = validator.New()

// AdminClaims is the bearer token accepted by the admin API.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// MintAdminToken signs an HS256 admin token valid for ttl.
func MintAdminToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   subject,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// BearerAuth rejects requests without a valid HS256 admin token.
func BearerAuth(secret []byte) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hdr := r.Header.Get("Authorization")
			if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing token"})
				return
			}
			claims := &AdminClaims{}
			tkn, err := jwt.ParseWithClaims(strings.TrimSpace(hdr[7:]), claims, func(t *jwt.Token) (any, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !tkn.Valid || claims.Role != "admin" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type adminHandler struct {
	accounts usecase.AccountUseCase
	jobs     repository.JobRepository
	log      *zerolog.Logger
}

func RegisterAdminV1(r chi.Router, h *adminHandler) {
	r.Get("/accounts/{id}", h.getAccount)
	r.Post("/accounts/{id}/credits", h.addCredits)
	r.Get("/jobs/pending", h.pendingJobs)
}

type accountResponse struct {
	ID           string    `json:"id"`
	Credits      int64     `json:"credits"`
	LifetimeUses int64     `json:"lifetime_uses"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type addCreditsRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

func (h *adminHandler) getAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	acc, err := h.accounts.Balance(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{
		ID: acc.ID, Credits: acc.Credits, LifetimeUses: acc.LifetimeUses,
		CreatedAt: acc.CreatedAt, UpdatedAt: acc.UpdatedAt,
	})
}

func (h *adminHandler) addCredits(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req addCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		h.writeError(w, r, err)
		return
	}
	bal, err := h.accounts.Grant(r.Context(), id, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	logging.With(r.Context(), h.log).Info().Str("account_id", id).Int64("amount", req.Amount).
		Int64("balance", bal).Msg("credits granted via admin api")
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "credits": bal})
}

func (h *adminHandler) pendingJobs(w http.ResponseWriter, r *http.Request) {
	n, err := h.jobs.CountPending(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pending": n})
}

func (h *adminHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &ve):
		out := make(map[string]string, len(ve))
		for _, fe := range ve {
			out[strings.ToLower(fe.Field())] = fe.Tag()
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "validation failed", "errors": out})
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
	default:
		logging.With(r.Context(), h.log).Error().Err(err).Msg("admin api failure")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
