package relay

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/time/rate"

	"github.com/chainkit/btcanchoring/internal/config"
)

// EsploraClient talks to an Esplora/mempool.space-compatible REST API
// (blockstream.info, mempool.space, or a self-hosted instance), rate
// limited the same way the teacher's scanner providers are (spec SPEC_FULL.md
// §B, golang.org/x/time/rate wiring).
type EsploraClient struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewEsploraClient builds a client against baseURL (e.g.
// "https://blockstream.info/testnet/api").
func NewEsploraClient(baseURL string) *EsploraClient {
	return &EsploraClient{
		client:  &http.Client{Timeout: config.RelayRequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(config.RelayRequestsPerBlock), 1),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// SendTransaction broadcasts tx's raw hex encoding via POST /tx.
func (c *EsploraClient) SendTransaction(ctx context.Context, tx *wire.MsgTx) (chainhash.Hash, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return chainhash.Hash{}, fmt.Errorf("%w: serialize transaction: %s", config.ErrRelay, err)
	}
	rawHex := hex.EncodeToString(buf.Bytes())

	body, err := c.do(ctx, http.MethodPost, "/tx", strings.NewReader(rawHex))
	if err != nil {
		return chainhash.Hash{}, err
	}

	txidHex := strings.TrimSpace(string(body))
	txid, err := chainhash.NewHashFromStr(txidHex)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("%w: parse broadcast response %q: %s", config.ErrRelay, txidHex, err)
	}
	return *txid, nil
}

// esploraTxStatus mirrors the "status" object of GET /tx/{txid}.
type esploraTxStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight uint32 `json:"block_height"`
}

type esploraTx struct {
	Status esploraTxStatus `json:"status"`
}

// TransactionConfirmations fetches the transaction's status and, if
// confirmed, the chain tip height, returning the confirmation depth.
func (c *EsploraClient) TransactionConfirmations(ctx context.Context, txid chainhash.Hash) (*uint32, error) {
	body, err := c.do(ctx, http.MethodGet, "/tx/"+txid.String(), nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var tx esploraTx
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, fmt.Errorf("%w: decode tx status: %s", config.ErrRelay, err)
	}
	if !tx.Status.Confirmed {
		return nil, nil
	}

	tipBody, err := c.do(ctx, http.MethodGet, "/blocks/tip/height", nil)
	if err != nil {
		return nil, err
	}
	tip, err := strconv.ParseUint(strings.TrimSpace(string(tipBody)), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: parse tip height: %s", config.ErrRelay, err)
	}

	confirmations := uint32(tip) - tx.Status.BlockHeight + 1
	return &confirmations, nil
}

type notFoundError struct{ path string }

func (e *notFoundError) Error() string { return fmt.Sprintf("not found: %s", e.path) }

func isNotFound(err error) bool {
	var nf *notFoundError
	return errors.As(err, &nf)
}

// do performs an HTTP request against the relay's base URL, retrying
// transient failures (connection errors, 5xx, 429) up to RelayMaxRetries
// times with linear backoff, mirroring the teacher's scanner rate-limit
// handling.
func (c *EsploraClient) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter wait: %s", config.ErrRelay, err)
	}

	var lastErr error
	for attempt := 0; attempt <= config.RelayMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %s", config.ErrRelay, ctx.Err())
			case <-time.After(config.RelayRetryBaseDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, fmt.Errorf("%w: build request: %s", config.ErrRelay, err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %s", config.ErrRelay, err)
			slog.Warn("relay request failed, will retry", "path", path, "attempt", attempt, "error", err)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, &notFoundError{path: path}
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%w: %s returned HTTP %d: %s", config.ErrRelay, path, resp.StatusCode, strings.TrimSpace(string(respBody)))
			slog.Warn("relay returned retriable status, will retry", "path", path, "status", resp.StatusCode, "attempt", attempt)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: %s returned HTTP %d: %s", config.ErrRelay, path, resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		if readErr != nil {
			return nil, fmt.Errorf("%w: read response body: %s", config.ErrRelay, readErr)
		}
		return respBody, nil
	}

	return nil, lastErr
}
