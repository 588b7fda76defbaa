package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/chainkit/btcanchoring/internal/codec"
	"github.com/chainkit/btcanchoring/internal/models"
)

// Client submits signed message envelopes to this package's private
// endpoints over HTTP, implementing tasks.PrivateAPIClient for
// cmd/anchorupdater (spec §6 "sign_input(SignInput) -> tx_hash",
// "add_funds(...) -> tx_hash").
type Client struct {
	httpClient *http.Client
	baseURL    string
	// Height supplies the host-chain block height the current proposal was
	// built against, standing in for the live TransactionContext a real
	// host-chain submission would carry.
	Height func() uint64
}

// NewClient builds a private-API client against baseURL (e.g.
// "http://127.0.0.1:8080").
func NewClient(baseURL string, height func() uint64) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		Height:     height,
	}
}

// SignInput submits env to POST /api/v1/private/sign-input.
func (c *Client) SignInput(ctx context.Context, env *codec.Envelope) (chainhash.Hash, error) {
	path := fmt.Sprintf("/api/v1/private/sign-input?height=%d", c.Height())
	return c.submit(ctx, path, env)
}

// AddFunds submits env to POST /api/v1/private/add-funds.
func (c *Client) AddFunds(ctx context.Context, env *codec.Envelope) (chainhash.Hash, error) {
	return c.submit(ctx, "/api/v1/private/add-funds", env)
}

func (c *Client) submit(ctx context.Context, path string, env *codec.Envelope) (chainhash.Hash, error) {
	reqBody, err := json.Marshal(models.EnvelopeRequest{EnvelopeHex: hex.EncodeToString(env.Encode())})
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("encode envelope request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("build private API request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("submit to private API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("read private API response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr models.APIError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Code != "" {
			return chainhash.Hash{}, fmt.Errorf("%s: %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return chainhash.Hash{}, fmt.Errorf("private API returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var submitted models.SubmitResponse
	if err := json.Unmarshal(body, &submitted); err != nil {
		return chainhash.Hash{}, fmt.Errorf("decode private API response: %w", err)
	}
	hashBytes, err := hex.DecodeString(submitted.TxHash)
	if err != nil || len(hashBytes) != chainhash.HashSize {
		return chainhash.Hash{}, fmt.Errorf("private API returned malformed tx hash %q", submitted.TxHash)
	}
	var h chainhash.Hash
	copy(h[:], hashBytes)
	return h, nil
}
