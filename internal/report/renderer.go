package report

import (
	"context"
	"time"

	subdomain "github.com/crashchain/crashchain/internal/submission/domain"
)

// Input is everything the renderer needs. GeneratedAt is supplied by the
// caller so the document carries a single declared timestamp instead of
// reading the wall clock while rendering.
type Input struct {
	Submission  subdomain.Submission
	GeneratedAt time.Time
}

// Renderer produces the paginated crash report for a validated submission.
type Renderer interface {
	Render(ctx context.Context, input Input) ([]byte, error)
}
