package pipeline

import "math/big"

// Media is the optional uploaded file accompanying a submission.
type Media struct {
	Name        string
	ContentType string
	Data        []byte
}

// ArtifactRef points at one pinned artifact, addressable by CID and
// reachable through the public gateway.
type ArtifactRef struct {
	CID string `json:"cid"`
	URL string `json:"url"`
}

// Ledger write outcomes. A run whose transaction was accepted but whose
// receipt never arrived is "submitted"; the write may still be mined.
const (
	LedgerConfirmed = "confirmed"
	LedgerSubmitted = "submitted"
	LedgerFailed    = "failed"
)

// LedgerStatus reports how the ledger write of one run ended. It is part
// of the response even when the write failed.
type LedgerStatus struct {
	Status      string   `json:"status"`
	TxHash      string   `json:"txHash,omitempty"`
	BlockNumber *big.Int `json:"blockNumber,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Result is the outcome of one accepted submission.
type Result struct {
	GroupID   string        `json:"groupId"`
	GroupName string        `json:"groupName"`
	Files     []ArtifactRef `json:"files"`
	Ledger    LedgerStatus  `json:"ledger"`
}
