package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afritokeni/platform/internal/logger"
	"github.com/afritokeni/platform/pkg/agents"
	"github.com/afritokeni/platform/pkg/config"
	"github.com/afritokeni/platform/pkg/cryptoasset"
	"github.com/afritokeni/platform/pkg/escrow"
	"github.com/afritokeni/platform/pkg/governance"
	"github.com/afritokeni/platform/pkg/ledger"
	"github.com/afritokeni/platform/pkg/limiter"
	"github.com/afritokeni/platform/pkg/rates"
	"github.com/afritokeni/platform/pkg/tokenledger"
	"github.com/afritokeni/platform/pkg/users"
	"github.com/afritokeni/platform/pkg/wallet"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := logger.NewLogger("error")
	store, err := ledger.Open(":memory:", "test-secret", log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	controllerToken, err := ledger.IssueServiceToken("test-secret", "controller", "controller")
	require.NoError(t, err)
	require.NoError(t, store.AddAuthorizedCaller(controllerToken, "afritokenid-daemon"))
	serviceToken, err := ledger.IssueServiceToken("test-secret", "afritokenid-daemon", "service")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	usersSvc := users.NewService(store, cfg)
	walletSvc := wallet.NewService(store, cfg)
	ratesSvc := rates.NewService(cfg.Rates, log)
	tledger, err := tokenledger.NewClient(cfg.TokenLedger, log)
	require.NoError(t, err)
	cryptoSvc := cryptoasset.NewService(store, cfg, usersSvc, ratesSvc, tledger)
	agentsSvc := agents.NewService(store, cfg, usersSvc)
	escrowSvc := escrow.NewService(store, cfg, usersSvc)
	governanceSvc := governance.NewService(store, cfg)

	rlCfg := cfg.RateLimiter
	rlCfg.Enabled = false
	rl := limiter.NewRateLimiter(rlCfg, log)

	return NewServer(cfg.API, rl, Services{
		Store:      store,
		Users:      usersSvc,
		Wallet:     walletSvc,
		Crypto:     cryptoSvc,
		Agents:     agentsSvc,
		Escrow:     escrowSvc,
		Governance: governanceSvc,
	}, serviceToken, log)
}

func postJSON(s *Server, path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleRegisterAndVerifyPin(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(s, "/v1/users/register", map[string]string{
		"phone":      "+256700000001",
		"first_name": "Amina",
		"last_name":  "Okello",
		"pin":        "1234",
	})
	require.Equal(t, 201, rec.Code)

	var user ledger.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.NotEmpty(t, user.ID)

	rec = postJSON(s, "/v1/users/verify-pin", map[string]string{
		"user_id": user.ID,
		"pin":     "1234",
	})
	assert.Equal(t, 200, rec.Code)

	rec = postJSON(s, "/v1/users/verify-pin", map[string]string{
		"user_id": user.ID,
		"pin":     "0000",
	})
	assert.Equal(t, 401, rec.Code)
}

func TestHandleTransferRequiresCorrectPin(t *testing.T) {
	s := newTestServer(t)

	senderRec := postJSON(s, "/v1/users/register", map[string]string{
		"phone": "+256700000002", "first_name": "Ab", "last_name": "Bc", "pin": "1111",
	})
	var sender ledger.User
	json.Unmarshal(senderRec.Body.Bytes(), &sender)

	recipientRec := postJSON(s, "/v1/users/register", map[string]string{
		"phone": "+256700000003", "first_name": "Cd", "last_name": "De", "pin": "2222",
	})
	var recipient ledger.User
	json.Unmarshal(recipientRec.Body.Bytes(), &recipient)

	require.NoError(t, s.services.Store.Apply(s.serviceToken, ledger.Batch{
		FiatDeltas: []ledger.FiatDelta{{UserID: sender.ID, Currency: sender.PreferredCurrency, Delta: 10000}},
	}))

	rec := postJSON(s, "/v1/transfers", map[string]interface{}{
		"from_user_id": sender.ID,
		"to_user_id":   recipient.ID,
		"amount":       1000,
		"currency":     sender.PreferredCurrency,
		"pin":          "wrong-pin",
	})
	assert.Equal(t, 401, rec.Code)

	rec = postJSON(s, "/v1/transfers", map[string]interface{}{
		"from_user_id": sender.ID,
		"to_user_id":   recipient.ID,
		"amount":       1000,
		"currency":     sender.PreferredCurrency,
		"pin":          "1111",
	})
	require.Equal(t, 200, rec.Code)
}

func TestHandleGetBalanceRequiresCurrency(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/users/some-id/balance", nil)
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, 400, rec.Code)
}
