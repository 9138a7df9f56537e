package server

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type groupFile struct {
	CID         string `json:"cid"`
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
	URL         string `json:"url"`
}

type groupDetailResponse struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Files []groupFile `json:"files"`
}

func (s *Server) DashboardData(c *gin.Context) {
	views, ok := s.dashboardSvc.Current()
	if !ok {
		var err error
		views, err = s.dashboardSvc.Refresh(c.Request.Context())
		if err != nil {
			AbortWithError(c, err)
			return
		}
	}
	respondSafe(c, http.StatusOK, views)
}

// GroupDetail returns every artifact of one group with its bytes inlined,
// so the dashboard can render previews without a second round trip.
func (s *Server) GroupDetail(c *gin.Context) {
	groupID := strings.TrimSpace(c.Param("groupId"))
	if groupID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	detail, err := s.pinner.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := groupDetailResponse{
		ID:    detail.ID,
		Name:  detail.Name,
		Files: []groupFile{},
	}
	for _, cid := range detail.CIDs {
		content, err := s.pinner.FetchContent(c.Request.Context(), cid)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		resp.Files = append(resp.Files, groupFile{
			CID:         cid,
			ContentType: content.ContentType,
			Data:        base64.StdEncoding.EncodeToString(content.Data),
			URL:         s.pinner.GatewayURL(cid),
		})
	}

	c.JSON(http.StatusOK, resp)
}
