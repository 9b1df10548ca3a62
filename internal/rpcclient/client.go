// Package rpcclient provides a JSON-RPC 2.0 client for stratus chain
// nodes. The result shapes here are client-side views; the node is the
// authority on the wire format.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stratus-chain/stratus-cli/internal/log"
	"github.com/stratus-chain/stratus-cli/pkg/types"
)

// Client is a JSON-RPC 2.0 HTTP client.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a new RPC client targeting the given endpoint URL.
func New(endpoint string) *Client {
	return NewWithTimeout(endpoint, 10*time.Second)
}

// NewWithTimeout creates a new RPC client with a custom HTTP timeout.
// The timeout is an upper bound; callers cancel earlier via context.
func NewWithTimeout(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// request is a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

// response is a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

// rpcError is a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is returned when the server responds with an error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call invokes a JSON-RPC method and unmarshals the result into the
// provided pointer. If result is nil, the response result is discarded.
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) error {
	req := request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	log.RPC.Debug().Str("method", method).Str("endpoint", c.endpoint).Msg("rpc call")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}

	return nil
}

// parseQuantity decodes a JSON-RPC quantity: hex with 0x prefix, or
// plain decimal from older nodes.
func parseQuantity(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid quantity %q: %w", s, err)
		}
		return n, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	return n, nil
}

// GetVersion returns the node's software version string.
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	var result struct {
		Version string `json:"softwareVersion"`
	}
	if err := c.Call(ctx, "getVersion", nil, &result); err != nil {
		return "", err
	}
	return result.Version, nil
}

// GetBlockNumber returns the current chain height.
func (c *Client) GetBlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.Call(ctx, "blockNumber", nil, &result); err != nil {
		return 0, err
	}
	return parseQuantity(result)
}

// SystemConfig is the chain metadata served by the controller.
type SystemConfig struct {
	Version       uint32 `json:"version"`
	ChainID       string `json:"chainId"`
	ChainName     string `json:"chainName"`
	Operator      string `json:"operator"`
	Website       string `json:"website"`
	BlockInterval uint64 `json:"blockInterval"`
	TokenName     string `json:"tokenName"`
	TokenSymbol   string `json:"tokenSymbol"`
}

// GetSystemConfig returns the chain's metadata.
func (c *Client) GetSystemConfig(ctx context.Context) (*SystemConfig, error) {
	var result SystemConfig
	if err := c.Call(ctx, "getMetaData", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BlockHeader is the client-side view of a block header.
type BlockHeader struct {
	Number    string `json:"number"`
	PrevHash  string `json:"prevHash"`
	Timestamp uint64 `json:"timestamp"`
	Proposer  string `json:"proposer"`
}

// Block is the client-side view of a block.
type Block struct {
	Hash   string      `json:"hash"`
	Header BlockHeader `json:"header"`
	Body   struct {
		Transactions []string `json:"transactions"`
	} `json:"body"`
}

// GetBlockByNumber returns the block at the given height.
func (c *Client) GetBlockByNumber(ctx context.Context, height uint64) (*Block, error) {
	var result Block
	params := []interface{}{fmt.Sprintf("0x%x", height), false}
	if err := c.Call(ctx, "getBlockByNumber", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetBlockByHash returns the block with the given hash.
func (c *Client) GetBlockByHash(ctx context.Context, hash types.Hash) (*Block, error) {
	var result Block
	params := []interface{}{hash.Hex(), false}
	if err := c.Call(ctx, "getBlockByHash", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Transaction is the client-side view of a stored transaction.
type Transaction struct {
	Hash        string `json:"hash"`
	Content     string `json:"content"`
	Index       string `json:"index"`
	BlockNumber string `json:"blockNumber"`
	BlockHash   string `json:"blockHash"`
}

// GetTransaction returns the transaction with the given hash.
func (c *Client) GetTransaction(ctx context.Context, hash types.Hash) (*Transaction, error) {
	var result Transaction
	if err := c.Call(ctx, "getTransaction", []interface{}{hash.Hex()}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Receipt is the client-side view of a transaction receipt.
type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
	BlockHash       string `json:"blockHash"`
	QuotaUsed       string `json:"quotaUsed"`
	ContractAddress string `json:"contractAddress"`
	ErrorMessage    string `json:"errorMessage"`
}

// GetReceipt returns the receipt for the given transaction hash.
func (c *Client) GetReceipt(ctx context.Context, hash types.Hash) (*Receipt, error) {
	var result Receipt
	if err := c.Call(ctx, "getTransactionReceipt", []interface{}{hash.Hex()}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPeerCount returns the number of peers the node is connected to.
func (c *Client) GetPeerCount(ctx context.Context) (uint64, error) {
	var result string
	if err := c.Call(ctx, "peerCount", nil, &result); err != nil {
		return 0, err
	}
	return parseQuantity(result)
}

// PeersInfo describes the node's connected peers.
type PeersInfo struct {
	Amount uint64            `json:"amount"`
	Peers  map[string]string `json:"peers"`
}

// GetPeersInfo returns address and origin for every connected peer.
func (c *Client) GetPeersInfo(ctx context.Context) (*PeersInfo, error) {
	var result PeersInfo
	if err := c.Call(ctx, "peersInfo", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CallContract executes a read-only contract call against the executor
// and returns the raw result hex.
func (c *Client) CallContract(ctx context.Context, from, to types.Address, data []byte) (string, error) {
	params := []interface{}{
		map[string]string{
			"from": from.Hex(),
			"to":   to.Hex(),
			"data": types.Hex(data),
		},
		"latest",
	}
	var result string
	if err := c.Call(ctx, "call", params, &result); err != nil {
		return "", err
	}
	return result, nil
}

// SendRawTransaction broadcasts signed transaction bytes and returns the
// transaction hash the node acknowledged.
func (c *Client) SendRawTransaction(ctx context.Context, signed []byte) (types.Hash, error) {
	var result struct {
		Hash   string `json:"hash"`
		Status string `json:"status"`
	}
	if err := c.Call(ctx, "sendRawTransaction", []interface{}{types.Hex(signed)}, &result); err != nil {
		return types.Hash{}, err
	}
	hash, err := types.ParseHash(result.Hash)
	if err != nil {
		return types.Hash{}, fmt.Errorf("node returned malformed tx hash: %w", err)
	}
	return hash, nil
}
