package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// Tool endpoints sit behind the quota guard; every call consumes one slot of
// the caller's daily quota.

func (s *Server) handleQR(c *gin.Context) {
	text := c.Query("text")
	if text == "" {
		respondError(c, http.StatusBadRequest, "text query parameter is required")
		return
	}

	png, err := qrcode.Encode(text, qrcode.Medium, 256)
	if err != nil {
		s.respondServerError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) handleID(c *gin.Context) {
	respondOK(c, http.StatusOK, gin.H{"id": uuid.New().String()})
}
