package domain

import (
	"context"
	"errors"
	"io"
)

// ErrUnavailable reports that the pinning backend could not be reached or
// rejected the call.
var ErrUnavailable = errors.New("pinning backend unavailable")

// Group is a named collection of pinned artifacts.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GroupDetail includes the CIDs attached to a group.
type GroupDetail struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	CIDs []string `json:"cids"`
}

// Artifact is one pinned byte object. The CID is assigned by the backend and
// is a pure function of content.
type Artifact struct {
	CID      string `json:"cid"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// Content is artifact bytes fetched back through the public gateway.
type Content struct {
	CID         string `json:"cid"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// Client is the content-addressed pinning backend. Implementations must
// bound every call with a timeout.
type Client interface {
	CreateGroup(ctx context.Context, name string) (Group, error)
	PinFile(ctx context.Context, name string, content io.Reader) (string, error)
	AddCIDs(ctx context.Context, groupID string, cids []string) error
	ListGroups(ctx context.Context) ([]Group, error)
	GetGroup(ctx context.Context, groupID string) (GroupDetail, error)
	ListGroupFiles(ctx context.Context, groupID string) ([]Artifact, error)
	FetchContent(ctx context.Context, cid string) (Content, error)
	GatewayURL(cid string) string
}
