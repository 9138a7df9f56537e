package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	obddomain "github.com/crashchain/crashchain/internal/obdrecord/domain"
)

func (s *Server) ListOBDRecords(c *gin.Context) {
	vin := strings.TrimSpace(c.Query("vin"))

	records, err := s.obdSvc.List(c.Request.Context(), vin)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if records == nil {
		records = []obddomain.OBDRecord{}
	}
	respondSafe(c, http.StatusOK, records)
}
