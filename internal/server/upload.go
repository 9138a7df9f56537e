package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crashchain/crashchain/internal/notifier/jsonsafe"
	"github.com/crashchain/crashchain/internal/pipeline"
	subdomain "github.com/crashchain/crashchain/internal/submission/domain"
)

// respondSafe writes v as JSON with lossless integer encoding. Ledger
// indexes and snowflake ids do not survive a double, so plain c.JSON is
// not an option on payloads that carry them.
func respondSafe(c *gin.Context, status int, v any) {
	payload, err := jsonsafe.Marshal(v)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Data(status, "application/json; charset=utf-8", payload)
}

func (s *Server) UploadAndProcess(c *gin.Context) {
	raw := subdomain.RawSubmission{}
	var media *pipeline.Media

	form, err := c.MultipartForm()
	if err == nil {
		for field, values := range form.Value {
			if len(values) > 0 {
				raw[field] = values[0]
			}
		}
		if headers := form.File["file"]; len(headers) > 0 {
			header := headers[0]
			f, err := header.Open()
			if err != nil {
				AbortWithError(c, ErrInvalidRequest)
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				AbortWithError(c, ErrInvalidRequest)
				return
			}
			media = &pipeline.Media{
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        data,
			}
		}
	} else {
		if err := c.Request.ParseForm(); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		for field, values := range c.Request.PostForm {
			if len(values) > 0 {
				raw[field] = values[0]
			}
		}
	}

	result, verrs, err := s.pipelineSvc.Process(c.Request.Context(), raw, media)
	if verrs != nil {
		AbortWithError(c, verrs)
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// The rebuilt snapshot reaches websocket subscribers through the
	// dashboard's refresh listeners.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, _ = s.dashboardSvc.Refresh(ctx)
	}()

	respondSafe(c, http.StatusOK, struct {
		Message string `json:"message"`
		pipeline.Result
	}{Message: "upload and processing completed successfully", Result: result})
}
