package tokenledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afritokeni/platform/internal/logger"
	"github.com/afritokeni/platform/pkg/config"
	"github.com/afritokeni/platform/pkg/errs"
)

func testLogger() *logger.Logger {
	return logger.NewLogger("error")
}

func balanceServer(t *testing.T, balance uint64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/balance":
			json.NewEncoder(w).Encode(balanceResponse{Balance: balance})
		case "/transfer":
			json.NewEncoder(w).Encode(transferResponse{BlockIndex: 1})
		}
	}))
}

func newTestClient(t *testing.T, endpoints []string, quorum string) *Client {
	cfg := config.TokenLedgerConfig{
		Endpoints:      endpoints,
		Quorum:         quorum,
		RequestTimeout: time.Second,
		CkBTCLedgerID:  "ckbtc-ledger",
		CkUSDCLedgerID: "ckusdc-ledger",
	}
	c, err := NewClient(cfg, testLogger())
	require.NoError(t, err)
	return c
}

func TestBalanceOfReachesQuorum(t *testing.T) {
	s1 := balanceServer(t, 500)
	s2 := balanceServer(t, 500)
	defer s1.Close()
	defer s2.Close()

	c := newTestClient(t, []string{s1.URL, s2.URL}, "2/2")

	bal, err := c.BalanceOf(context.Background(), AssetCkBTC, Account{Owner: "user1"})
	assert.NoError(t, err)
	assert.EqualValues(t, 500, bal)
}

func TestBalanceOfFailsQuorumOnDisagreement(t *testing.T) {
	s1 := balanceServer(t, 500)
	s2 := balanceServer(t, 700)
	defer s1.Close()
	defer s2.Close()

	c := newTestClient(t, []string{s1.URL, s2.URL}, "2/2")

	_, err := c.BalanceOf(context.Background(), AssetCkBTC, Account{Owner: "user1"})
	assert.Error(t, err)
	assert.Equal(t, errs.UpstreamLedgerFailure, errs.KindOf(err))
}

func TestBalanceOfToleratesMinorityFailure(t *testing.T) {
	s1 := balanceServer(t, 500)
	defer s1.Close()
	dead := "http://127.0.0.1:1" // nothing listens here

	c := newTestClient(t, []string{s1.URL, dead}, "1/2")

	bal, err := c.BalanceOf(context.Background(), AssetCkBTC, Account{Owner: "user1"})
	assert.NoError(t, err)
	assert.EqualValues(t, 500, bal)
}

func TestTransferReachesQuorum(t *testing.T) {
	s1 := balanceServer(t, 0)
	s2 := balanceServer(t, 0)
	defer s1.Close()
	defer s2.Close()

	c := newTestClient(t, []string{s1.URL, s2.URL}, "2/2")

	err := c.Transfer(context.Background(), AssetCkBTC, Account{Owner: "a"}, Account{Owner: "b"}, 100)
	assert.NoError(t, err)
}

func TestNewClientRejectsBadQuorum(t *testing.T) {
	_, err := NewClient(config.TokenLedgerConfig{
		Endpoints: []string{"http://localhost"},
		Quorum:    "3/2",
	}, testLogger())
	assert.Error(t, err)
}

func TestPlatformAccountDefaultsSubaccount(t *testing.T) {
	c := newTestClient(t, []string{"http://localhost"}, "1/1")
	acct := c.PlatformAccount()
	assert.Equal(t, "platform", acct.Owner)
	assert.Equal(t, "0100000000000000000000000000000000000000000000000000000000000000"[:64], acct.Subaccount)
}
