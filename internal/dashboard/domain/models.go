package domain

import (
	"context"

	leddomain "github.com/crashchain/crashchain/internal/ledger/domain"
	pindomain "github.com/crashchain/crashchain/internal/pinning/domain"
)

// GroupView joins one pinned group with the ledger records that reference
// its artifacts. BlockchainData is empty when the ledger had nothing for
// the group or could not be reached.
type GroupView struct {
	GroupID        string               `json:"groupId"`
	GroupName      string               `json:"groupName"`
	Files          []pindomain.Artifact `json:"files"`
	BlockchainData []leddomain.Record   `json:"blockchainData"`
}

// Service maintains the dashboard aggregation. The snapshot is rebuilt
// from the backends on every Refresh; nothing is persisted locally.
type Service interface {
	// Current returns the last successfully built snapshot, if any.
	Current() ([]GroupView, bool)
	// Refresh rebuilds the snapshot. Concurrent calls share one rebuild.
	Refresh(ctx context.Context) ([]GroupView, error)
	// OnRefresh registers a listener invoked after every successful rebuild.
	OnRefresh(fn func([]GroupView))
}
