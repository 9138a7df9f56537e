package ethrpc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/crashchain/crashchain/internal/config"
	"github.com/crashchain/crashchain/internal/ledger/domain"
	"github.com/crashchain/crashchain/pkg/retry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var errReceiptPending = errors.New("receipt not yet available")

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

// Client records crash metadata on an EVM-style ledger over JSON-RPC. The
// signing account is managed by the node; the client never holds keys.
type Client struct {
	rpc         *rpcClient
	contract    string
	account     string
	gas         uint64
	receiptPoll retry.Policy
	log         *zap.Logger
}

func New(p Params) domain.Client {
	timeout := p.Cfg.LedgerTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		rpc: &rpcClient{
			endpoint: p.Cfg.EthProvider,
			http:     &http.Client{Timeout: timeout},
		},
		contract: p.Cfg.ContractAddress,
		account:  p.Cfg.LedgerAccount,
		gas:      p.Cfg.LedgerGas,
		receiptPoll: retry.Policy{
			MaxAttempts:     5,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     4 * time.Second,
			Retryable:       func(err error) bool { return errors.Is(err, errReceiptPending) },
		},
		log: p.Log.Named("ledger.ethrpc"),
	}
}

// EnsureDeployed confirms the ledger answers and the contract has code.
func (c *Client) EnsureDeployed(ctx context.Context) error {
	var code string
	if err := c.rpc.call(ctx, "eth_getCode", []any{c.contract, "latest"}, &code); err != nil {
		return err
	}
	if code == "" || code == "0x" || code == "0x0" {
		return fmt.Errorf("%w: %s", domain.ErrContractNotDeployed, c.contract)
	}
	return nil
}

// StoreMetadata writes one record. It checks the deployment precondition
// first and never sends the transaction if that fails.
func (c *Client) StoreMetadata(ctx context.Context, dataID, vin, location string, cids []string) (domain.WriteConfirmation, error) {
	if err := c.EnsureDeployed(ctx); err != nil {
		return domain.WriteConfirmation{}, err
	}

	calldata := encodeStoreMetadata(dataID, vin, location, cids)
	tx := map[string]string{
		"from": c.account,
		"to":   c.contract,
		"gas":  hexUint(c.gas),
		"data": "0x" + hex.EncodeToString(calldata),
	}

	var txHash string
	if err := c.rpc.call(ctx, "eth_sendTransaction", []any{tx}, &txHash); err != nil {
		return domain.WriteConfirmation{}, err
	}

	confirmation := domain.WriteConfirmation{TxHash: txHash}

	receipt, err := c.awaitReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, errReceiptPending) {
			// Submitted but not yet mined within the polling budget; the
			// hash remains the verifiable handle.
			c.log.Warn("receipt not observed before deadline", zap.String("tx_hash", txHash))
			return confirmation, nil
		}
		return confirmation, err
	}
	if receipt.Status == "0x0" {
		return confirmation, fmt.Errorf("%w: transaction %s reverted", domain.ErrWriteRejected, txHash)
	}

	confirmation.BlockNumber = receipt.blockNumber()
	return confirmation, nil
}

// RecordAt reads one record by index via eth_call.
func (c *Client) RecordAt(ctx context.Context, index *big.Int) (domain.Record, error) {
	output, err := c.ethCall(ctx, encodeGetMetadata(index))
	if err != nil {
		return domain.Record{}, err
	}

	dataID, vin, timestamp, location, cids, err := decodeMetadataTuple(output)
	if err != nil {
		return domain.Record{}, err
	}
	return domain.Record{
		Index:     new(big.Int).Set(index),
		DataID:    dataID,
		VIN:       vin,
		Timestamp: timestamp,
		Location:  location,
		CIDs:      cids,
	}, nil
}

// TotalRecords reads the monotonically increasing record count.
func (c *Client) TotalRecords(ctx context.Context) (*big.Int, error) {
	output, err := c.ethCall(ctx, encodeGetTotalMetadataCount())
	if err != nil {
		return nil, err
	}
	return decodeUint256(output)
}

type receipt struct {
	Status      string `json:"status"`
	BlockNumber string `json:"blockNumber"`
}

func (r receipt) blockNumber() *big.Int {
	value, ok := parseHexBig(r.BlockNumber)
	if !ok {
		return nil
	}
	return value
}

func (c *Client) awaitReceipt(ctx context.Context, txHash string) (receipt, error) {
	var out receipt
	err := c.receiptPoll.Do(ctx, func() error {
		var raw *receipt
		if err := c.rpc.call(ctx, "eth_getTransactionReceipt", []any{txHash}, &raw); err != nil {
			return err
		}
		if raw == nil {
			return errReceiptPending
		}
		out = *raw
		return nil
	})
	return out, err
}

func (c *Client) ethCall(ctx context.Context, calldata []byte) ([]byte, error) {
	call := map[string]string{
		"to":   c.contract,
		"data": "0x" + hex.EncodeToString(calldata),
	}
	var result string
	if err := c.rpc.call(ctx, "eth_call", []any{call, "latest"}, &result); err != nil {
		return nil, err
	}
	return hex.DecodeString(strings.TrimPrefix(result, "0x"))
}

func hexUint(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

func parseHexBig(raw string) (*big.Int, bool) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if raw == "" {
		return nil, false
	}
	return new(big.Int).SetString(raw, 16)
}
