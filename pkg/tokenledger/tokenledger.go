// Package tokenledger is C8: the external ledger adapter. It speaks an
// ICRC-1-shaped transfer/balance_of protocol over HTTP to one or more
// ledger replica endpoints and requires a quorum of them to agree before
// trusting a balance read, the same multi-node quorum-confirmation shape
// as the teacher's pkg/ipfs pin quorum, re-grounded from content pinning
// onto ledger replica reads.
package tokenledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/afritokeni/platform/internal/logger"
	"github.com/afritokeni/platform/pkg/config"
	"github.com/afritokeni/platform/pkg/errs"
)

// Asset identifies which ledger a call targets.
type Asset string

const (
	AssetCkBTC  Asset = "CkBTC"
	AssetCkUSDC Asset = "CkUSDC"
)

// Account is an ICRC-1 account: an owner principal plus an optional
// subaccount. Platform-held reserve funds use PlatformSubaccount (first
// byte 0x01, rest zero).
type Account struct {
	Owner     string
	Subaccount string // hex-encoded, may be empty
}

// Client is C8's public surface over a quorum of ledger replica endpoints.
type Client struct {
	endpoints       []string
	httpClient      *http.Client
	quorumNum       int
	quorumDen       int
	ledgerIDs       map[Asset]string
	platformAccount Account
	log             *logger.Logger
}

// NewClient parses cfg.TokenLedger's quorum string ("2/3") and builds a
// client against every configured endpoint.
func NewClient(cfg config.TokenLedgerConfig, log *logger.Logger) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("token ledger: no endpoints configured")
	}

	parts := strings.Split(cfg.Quorum, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("token ledger: invalid quorum format %q (expected N/M)", cfg.Quorum)
	}
	num, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("token ledger: invalid quorum numerator %q", parts[0])
	}
	den, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("token ledger: invalid quorum denominator %q", parts[1])
	}
	if num > den || num < 1 {
		return nil, fmt.Errorf("token ledger: invalid quorum %d/%d", num, den)
	}

	return &Client{
		endpoints:  cfg.Endpoints,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		quorumNum:  num,
		quorumDen:  den,
		ledgerIDs: map[Asset]string{
			AssetCkBTC:  cfg.CkBTCLedgerID,
			AssetCkUSDC: cfg.CkUSDCLedgerID,
		},
		platformAccount: Account{Owner: "platform", Subaccount: platformSubaccountHex(cfg.PlatformSubaccount)},
		log:             log,
	}, nil
}

// platformSubaccountHex normalizes the configured platform subaccount to
// the ICRC-1 convention: first byte 0x01, the remaining 31 bytes zero.
func platformSubaccountHex(configured string) string {
	if configured != "" {
		return configured
	}
	b := make([]byte, 32)
	b[0] = 0x01
	return hex.EncodeToString(b)
}

// PlatformAccount returns the reserve account platform-held funds settle
// against for asset transfers in C4's buy/sell flows.
func (c *Client) PlatformAccount() Account {
	return c.platformAccount
}

type transferRequest struct {
	LedgerID string  `json:"ledger_id"`
	From     Account `json:"from"`
	To       Account `json:"to"`
	Amount   uint64  `json:"amount"`
}

type transferResponse struct {
	BlockIndex uint64 `json:"block_index"`
	Error      string `json:"error,omitempty"`
}

// Transfer moves amount of asset from one ICRC-1 account to another.
// It is sent to every configured replica; the caller (C4) must not have
// mutated C1 state before this returns, per the "failures propagate as
// typed variants, no partial C1 mutation" invariant.
func (c *Client) Transfer(ctx context.Context, asset Asset, from, to Account, amount uint64) error {
	ledgerID, ok := c.ledgerIDs[asset]
	if !ok {
		return errs.New(errs.Internal, "unknown asset for token ledger transfer")
	}

	body, err := json.Marshal(transferRequest{LedgerID: ledgerID, From: from, To: to, Amount: amount})
	if err != nil {
		return errs.New(errs.UpstreamLedgerFailure, "failed to encode transfer request")
	}

	successes := 0
	var lastErr error
	for _, endpoint := range c.endpoints {
		if err := c.postTransfer(ctx, endpoint, body); err != nil {
			lastErr = err
			c.log.WithError(err).WithField("endpoint", endpoint).Warn("token ledger transfer failed on replica")
			continue
		}
		successes++
	}

	if successes < c.quorumNum {
		if lastErr == nil {
			lastErr = errs.New(errs.UpstreamLedgerFailure, "token ledger quorum not met")
		}
		return errs.New(errs.UpstreamLedgerFailure, "token ledger transfer did not reach quorum")
	}
	return nil
}

func (c *Client) postTransfer(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/transfer", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return fmt.Errorf("transfer rejected: %s", out.Error)
	}
	return nil
}

type balanceResponse struct {
	Balance uint64 `json:"balance"`
}

// BalanceOf reads account's balance of asset, requiring a quorum of
// replicas to return the same figure before trusting it.
func (c *Client) BalanceOf(ctx context.Context, asset Asset, account Account) (uint64, error) {
	ledgerID, ok := c.ledgerIDs[asset]
	if !ok {
		return 0, errs.New(errs.Internal, "unknown asset for token ledger balance query")
	}

	counts := make(map[uint64]int)
	for _, endpoint := range c.endpoints {
		bal, err := c.getBalance(ctx, endpoint, ledgerID, account)
		if err != nil {
			c.log.WithError(err).WithField("endpoint", endpoint).Warn("token ledger balance query failed on replica")
			continue
		}
		counts[bal]++
	}

	var best uint64
	bestCount := 0
	for bal, count := range counts {
		if count > bestCount {
			best, bestCount = bal, count
		}
	}
	if bestCount < c.quorumNum {
		return 0, errs.New(errs.UpstreamLedgerFailure, "token ledger balance query did not reach quorum")
	}
	return best, nil
}

func (c *Client) getBalance(ctx context.Context, endpoint, ledgerID string, account Account) (uint64, error) {
	url := fmt.Sprintf("%s/balance?ledger_id=%s&owner=%s&subaccount=%s", endpoint, ledgerID, account.Owner, account.Subaccount)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("balance query returned status %d", resp.StatusCode)
	}
	var out balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}
