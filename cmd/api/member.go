package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mirai-api/gateway/internal/database"
	"github.com/mirai-api/gateway/internal/metrics"
	"github.com/mirai-api/gateway/internal/middleware"
	"github.com/mirai-api/gateway/pkg/models"
)

// newAPIKey generates a 64-hex-char key from crypto/rand
func newAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

type registerRequest struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	TelegramID        string `json:"telegramId"`
	MaxRequestsPerDay int    `json:"maxRequestsPerDay"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == "" || req.Email == "" || req.TelegramID == "" {
		respondError(c, http.StatusBadRequest, "name, email and telegramId are required")
		return
	}
	if req.MaxRequestsPerDay < 0 {
		respondError(c, http.StatusBadRequest, "maxRequestsPerDay must be positive")
		return
	}
	if req.MaxRequestsPerDay == 0 {
		req.MaxRequestsPerDay = models.DefaultDailyLimit
	}

	apiKey, err := newAPIKey()
	if err != nil {
		s.respondServerError(c, err)
		return
	}

	account := &models.Account{
		Name:       req.Name,
		Email:      req.Email,
		TelegramID: req.TelegramID,
		APIKey:     apiKey,
		ExpiresAt:  s.now().AddDate(0, 0, models.RegistrationValidityDays),
		DailyLimit: req.MaxRequestsPerDay,
	}

	if err := s.store.CreateAccount(c.Request.Context(), account); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			respondError(c, http.StatusConflict, "User with this email or Telegram ID already exists")
			return
		}
		s.respondServerError(c, err)
		return
	}

	metrics.AccountsRegisteredTotal.Inc()
	s.log.WithAccountID(account.ID).Info("Account registered")

	respondOK(c, http.StatusCreated, gin.H{
		"apiKey":     account.APIKey,
		"expiryDate": account.ExpiresAt,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	account, ok := middleware.GetAccount(c)
	if !ok {
		s.respondServerError(c, errors.New("authenticated account missing from context"))
		return
	}

	respondOK(c, http.StatusOK, account)
}

type profileUpdateRequest struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	TelegramID *string `json:"telegramId"`
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	account, ok := middleware.GetAccount(c)
	if !ok {
		s.respondServerError(c, errors.New("authenticated account missing from context"))
		return
	}

	var req profileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == nil && req.Email == nil && req.TelegramID == nil {
		respondError(c, http.StatusBadRequest, "No fields to update")
		return
	}

	update := models.ProfileUpdate{
		Name:       req.Name,
		Email:      req.Email,
		TelegramID: req.TelegramID,
	}

	if err := s.store.UpdateAccountProfile(c.Request.Context(), account.ID, update); err != nil {
		switch {
		case errors.Is(err, database.ErrDuplicate):
			respondError(c, http.StatusConflict, "Email or Telegram ID already in use")
		case errors.Is(err, database.ErrNotFound):
			respondError(c, http.StatusNotFound, "User not found")
		default:
			s.respondServerError(c, err)
		}
		return
	}

	respondOK(c, http.StatusOK, gin.H{"message": "Profile updated successfully"})
}

type extendRequest struct {
	Days int `json:"days"`
}

func (s *Server) handleExtend(c *gin.Context) {
	account, ok := middleware.GetAccount(c)
	if !ok {
		s.respondServerError(c, errors.New("authenticated account missing from context"))
		return
	}

	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Days <= 0 {
		respondError(c, http.StatusBadRequest, "days must be positive")
		return
	}

	newExpiry, err := s.store.ExtendAccountExpiry(c.Request.Context(), account.ID, req.Days)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		s.respondServerError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"newExpiryDate": newExpiry})
}

type updateLimitRequest struct {
	MaxRequestsPerDay int `json:"maxRequestsPerDay"`
}

func (s *Server) handleUpdateLimit(c *gin.Context) {
	account, ok := middleware.GetAccount(c)
	if !ok {
		s.respondServerError(c, errors.New("authenticated account missing from context"))
		return
	}

	var req updateLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.MaxRequestsPerDay <= 0 {
		respondError(c, http.StatusBadRequest, "maxRequestsPerDay must be positive")
		return
	}

	if err := s.store.UpdateAccountDailyLimit(c.Request.Context(), account.ID, req.MaxRequestsPerDay); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		s.respondServerError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"message": "Daily limit updated successfully"})
}
