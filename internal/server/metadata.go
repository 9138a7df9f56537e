package server

import (
	"math/big"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) VerifyMetadata(c *gin.Context) {
	index, ok := new(big.Int).SetString(strings.TrimSpace(c.Param("index")), 10)
	if !ok || index.Sign() < 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	total, err := s.ledger.TotalRecords(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if index.Cmp(total) >= 0 {
		AbortWithError(c, ErrNotFound)
		return
	}

	record, err := s.ledger.RecordAt(c.Request.Context(), index)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondSafe(c, http.StatusOK, record)
}

func (s *Server) MetadataCount(c *gin.Context) {
	total, err := s.ledger.TotalRecords(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": total.String()})
}
