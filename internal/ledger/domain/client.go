package domain

import (
	"context"
	"errors"
	"math/big"
)

var (
	// ErrUnreachable reports that the ledger backend did not answer.
	ErrUnreachable = errors.New("ledger backend unreachable")
	// ErrContractNotDeployed reports empty code at the configured address.
	ErrContractNotDeployed = errors.New("no contract code at configured address")
	// ErrWriteRejected reports a transaction that was mined but reverted.
	ErrWriteRejected = errors.New("ledger write rejected")
)

// Record is one immutable ledger entry. Index and Timestamp are big.Ints
// because ledger values are unbounded integers on the wire.
type Record struct {
	Index     *big.Int `json:"index"`
	DataID    string   `json:"dataId"`
	VIN       string   `json:"vin"`
	Timestamp *big.Int `json:"timestamp"`
	Location  string   `json:"location"`
	CIDs      []string `json:"cids"`
}

// WriteConfirmation is the externally-verifiable handle for a write. The
// transaction hash is always set; BlockNumber is nil when the receipt was
// not observed within the polling budget.
type WriteConfirmation struct {
	TxHash      string   `json:"txHash"`
	BlockNumber *big.Int `json:"blockNumber,omitempty"`
}

// Client is the append-only ledger reached over RPC. The pipeline treats
// every error from it as non-fatal; callers that need the precondition
// alone use EnsureDeployed.
type Client interface {
	EnsureDeployed(ctx context.Context) error
	StoreMetadata(ctx context.Context, dataID, vin, location string, cids []string) (WriteConfirmation, error)
	RecordAt(ctx context.Context, index *big.Int) (Record, error)
	TotalRecords(ctx context.Context) (*big.Int, error)
}
