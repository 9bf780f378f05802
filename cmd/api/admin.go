package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mirai-api/gateway/internal/database"
	"github.com/mirai-api/gateway/pkg/models"
)

func (s *Server) handleListUsers(c *gin.Context) {
	accounts, err := s.store.ListAccounts(c.Request.Context())
	if err != nil {
		s.respondServerError(c, err)
		return
	}

	respondOK(c, http.StatusOK, accounts)
}

func (s *Server) handleGetUser(c *gin.Context) {
	account, err := s.store.GetAccountByTelegramID(c.Request.Context(), c.Param("telegramId"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		s.respondServerError(c, err)
		return
	}

	respondOK(c, http.StatusOK, account)
}

func (s *Server) handleUserCount(c *gin.Context) {
	count, err := s.store.CountAccounts(c.Request.Context())
	if err != nil {
		s.respondServerError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"count": count})
}

func (s *Server) handleAPIStats(c *gin.Context) {
	stats, err := s.store.AccountStats(c.Request.Context(), s.now(), s.cfg.Scheduler.ExpiryWarnDays)
	if err != nil {
		s.respondServerError(c, err)
		return
	}

	respondOK(c, http.StatusOK, stats)
}

type adminUpdateRequest struct {
	Name              *string `json:"name"`
	Email             *string `json:"email"`
	MaxRequestsPerDay *int    `json:"maxRequestsPerDay"`
	ExpiryDays        *int    `json:"expiryDays"`
}

func (s *Server) handleAdminUpdate(c *gin.Context) {
	var req adminUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == nil && req.Email == nil && req.MaxRequestsPerDay == nil && req.ExpiryDays == nil {
		respondError(c, http.StatusBadRequest, "No fields to update")
		return
	}
	if req.MaxRequestsPerDay != nil && *req.MaxRequestsPerDay <= 0 {
		respondError(c, http.StatusBadRequest, "maxRequestsPerDay must be positive")
		return
	}
	if req.ExpiryDays != nil && *req.ExpiryDays <= 0 {
		respondError(c, http.StatusBadRequest, "expiryDays must be positive")
		return
	}

	ctx := c.Request.Context()

	account, err := s.store.GetAccountByTelegramID(ctx, c.Param("telegramId"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		s.respondServerError(c, err)
		return
	}

	if req.Name != nil || req.Email != nil {
		update := models.ProfileUpdate{Name: req.Name, Email: req.Email}
		if err := s.store.UpdateAccountProfile(ctx, account.ID, update); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				respondError(c, http.StatusConflict, "Email already in use")
				return
			}
			s.respondServerError(c, err)
			return
		}
	}

	if req.MaxRequestsPerDay != nil {
		if err := s.store.UpdateAccountDailyLimit(ctx, account.ID, *req.MaxRequestsPerDay); err != nil {
			s.respondServerError(c, err)
			return
		}
	}

	if req.ExpiryDays != nil {
		if _, err := s.store.ExtendAccountExpiry(ctx, account.ID, *req.ExpiryDays); err != nil {
			s.respondServerError(c, err)
			return
		}
	}

	respondOK(c, http.StatusOK, gin.H{"message": "User updated successfully"})
}

func (s *Server) handleResetDaily(c *gin.Context) {
	ctx := c.Request.Context()

	account, err := s.store.GetAccountByTelegramID(ctx, c.Param("telegramId"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		s.respondServerError(c, err)
		return
	}

	if err := s.store.ResetDailyCount(ctx, account.ID); err != nil {
		s.respondServerError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"message": "Daily count reset successfully"})
}
