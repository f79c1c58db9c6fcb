package relay

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bellwether-labs/sando/internal/bundlebuild"
	"github.com/bellwether-labs/sando/internal/chainapi"
	"github.com/bellwether-labs/sando/internal/obs"
)

// FlashbotsRelay submits bundles to one mev-relay JSON-RPC endpoint,
// authenticating with the X-Flashbots-Signature header convention:
// keccak256(body) signed by the relay's own dedicated identity key, never
// the searcher's transaction-signing key.
type FlashbotsRelay struct {
	name       string
	url        string
	authKey    *ecdsa.PrivateKey
	httpClient *http.Client
	driver     chainapi.Driver
	log        *obs.Logger
}

func NewFlashbotsRelay(name, url string, authKey *ecdsa.PrivateKey, driver chainapi.Driver, log *obs.Logger) *FlashbotsRelay {
	return &FlashbotsRelay{
		name:       name,
		url:        url,
		authKey:    authKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		driver:     driver,
		log:        log.For("relay." + name),
	}
}

func (r *FlashbotsRelay) Name() string { return r.name }

type sendBundleParams struct {
	Txs         []string `json:"txs"`
	BlockNumber string   `json:"blockNumber"`
}

type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SubmitBundle implements spec.md §6's submit_bundle: it RLP-encodes every
// transaction in order, POSTs an eth_sendBundle JSON-RPC request, and
// returns a handle that polls for inclusion at target_block.
func (r *FlashbotsRelay) SubmitBundle(ctx context.Context, bundle *bundlebuild.Bundle) (PendingBundle, error) {
	txs := make([]*types.Transaction, 0, len(bundle.Victims)+2)
	txs = append(txs, bundle.Frontrun)
	txs = append(txs, bundle.Victims...)
	txs = append(txs, bundle.Backrun)

	rawTxs := make([]string, 0, len(txs))
	hashes := make([]string, 0, len(txs))
	for _, tx := range txs {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("relay: marshal tx: %w", err)
		}
		rawTxs = append(rawTxs, hexutil.Encode(raw))
		hashes = append(hashes, tx.Hash().Hex())
	}

	params := sendBundleParams{
		Txs:         rawTxs,
		BlockNumber: hexutil.EncodeUint64(bundle.TargetBlock),
	}
	reqBody := jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: "eth_sendBundle", Params: []interface{}{params}}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("relay: marshal request: %w", err)
	}

	sig, err := r.signBody(body)
	if err != nil {
		return nil, fmt.Errorf("relay: sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("relay: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Flashbots-Signature", sig)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay: submit: %w", err)
	}
	defer resp.Body.Close()

	var rpcResp jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("relay: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("relay: %s: %s", r.name, rpcResp.Error.Message)
	}

	r.log.Info("bundle submitted", "relay", r.name, "target_block", bundle.TargetBlock, "tx_count", len(txs))

	return &pollingPendingBundle{
		driver:      r.driver,
		targetBlock: bundle.TargetBlock,
		txHashes:    hashes,
		log:         r.log,
	}, nil
}

// signBody implements the X-Flashbots-Signature scheme:
// "<signer_address>:<personal_sign signature over the hex string of
// keccak256(body)>", matching the relay's own EIP-191 convention.
func (r *FlashbotsRelay) signBody(body []byte) (string, error) {
	message := []byte(hexutil.Encode(crypto.Keccak256(body)))
	digest := accounts.TextHash(message)
	sig, err := crypto.Sign(digest, r.authKey)
	if err != nil {
		return "", err
	}
	addr := crypto.PubkeyToAddress(r.authKey.PublicKey)
	return addr.Hex() + ":" + hex.EncodeToString(sig), nil
}

// pollingPendingBundle implements PendingBundle.Await by polling the chain
// driver for the target block and checking whether every bundle tx hash
// appears in it, per spec.md §6.
type pollingPendingBundle struct {
	driver      chainapi.Driver
	targetBlock uint64
	txHashes    []string
	log         *obs.Logger
}

const pollInterval = 1 * time.Second

func (p *pollingPendingBundle) Await(ctx context.Context) (Outcome, error) {
	target := new(big.Int).SetUint64(p.targetBlock)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Error, ctx.Err()
		case <-ticker.C:
			block, err := p.driver.GetBlock(ctx, target)
			if err != nil {
				continue
			}
			if block == nil {
				continue
			}
			included := make(map[string]bool, len(p.txHashes))
			for _, tx := range block.Transactions() {
				included[tx.Hash().Hex()] = true
			}
			for _, h := range p.txHashes {
				if !included[h] {
					return NotIncluded, nil
				}
			}
			return Included, nil
		}
	}
}
