package cryptoasset

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afritokeni/platform/internal/logger"
	"github.com/afritokeni/platform/pkg/config"
	"github.com/afritokeni/platform/pkg/errs"
	"github.com/afritokeni/platform/pkg/ledger"
	"github.com/afritokeni/platform/pkg/rates"
	"github.com/afritokeni/platform/pkg/tokenledger"
	"github.com/afritokeni/platform/pkg/users"
)

type fakeRateSource struct {
	price decimal.Decimal
}

func (f fakeRateSource) Fetch(ctx context.Context, pair string) (decimal.Decimal, error) {
	return f.price, nil
}

// newTestService wires a real tokenledger.Client against an unreachable
// endpoint, so any test path that reaches C8 fails its transfer/balance
// request instead of touching the network.
func newTestService(t *testing.T, price decimal.Decimal) (*Service, *ledger.Store, string, string) {
	t.Helper()

	log := logger.NewLogger("error")
	store, err := ledger.Open(":memory:", "test-secret", log)
	require.NoError(t, err)

	controllerToken, err := ledger.IssueServiceToken("test-secret", "controller", "controller")
	require.NoError(t, err)
	require.NoError(t, store.AddAuthorizedCaller(controllerToken, "crypto-service"))
	serviceToken, err := ledger.IssueServiceToken("test-secret", "crypto-service", "service")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Features.EnableSwap = true

	usersSvc := users.NewService(store, cfg)
	u, err := usersSvc.Register(serviceToken, users.RegisterInput{
		Phone: "+256712345678", FirstName: "Amina", LastName: "Okello",
		Pin: "1234", Now: 1000,
	})
	require.NoError(t, err)

	ratesSvc := rates.NewServiceWithSource(fakeRateSource{price: price}, 0, log)

	tlc, err := tokenledger.NewClient(config.TokenLedgerConfig{
		Endpoints:      []string{"http://127.0.0.1:1"}, // unreachable; no test here overrides it
		Quorum:         "1/1",
		CkBTCLedgerID:  "ckbtc",
		CkUSDCLedgerID: "ckusdc",
	}, log)
	require.NoError(t, err)

	svc := NewService(store, cfg, usersSvc, ratesSvc, tlc)
	return svc, store, serviceToken, u.ID
}

func TestBuyRejectsWrongPin(t *testing.T) {
	svc, _, token, userID := newTestService(t, decimal.NewFromInt(100))
	_, err := svc.Buy(token, BuyInput{UserID: userID, FiatAmount: 1000, Currency: "UGX", CryptoType: CryptoCkBTC, Pin: "0000", Now: 2000})
	assert.Error(t, err)
	assert.Equal(t, errs.InvalidPin, errs.KindOf(err))
}

func TestBuyRejectsInsufficientFiatBalance(t *testing.T) {
	svc, _, token, userID := newTestService(t, decimal.NewFromInt(100))
	_, err := svc.Buy(token, BuyInput{UserID: userID, FiatAmount: 1000, Currency: "UGX", CryptoType: CryptoCkBTC, Pin: "1234", Now: 2000})
	assert.Error(t, err)
	assert.Equal(t, errs.InsufficientFunds, errs.KindOf(err))
}

func TestSellRejectsInsufficientCryptoBalance(t *testing.T) {
	svc, _, token, userID := newTestService(t, decimal.NewFromInt(100))
	_, err := svc.Sell(token, SellInput{UserID: userID, CryptoAmount: 50, Currency: "UGX", CryptoType: CryptoCkBTC, Pin: "1234", Now: 2000})
	assert.Error(t, err)
	assert.Equal(t, errs.InsufficientFunds, errs.KindOf(err))
}

func TestSendRejectsInvalidAddress(t *testing.T) {
	svc, _, token, userID := newTestService(t, decimal.NewFromInt(100))
	_, err := svc.Send(token, SendInput{UserID: userID, ToAddress: "bad", Amount: 10, CryptoType: CryptoCkBTC, Pin: "1234", Now: 2000})
	assert.Error(t, err)
	assert.Equal(t, errs.InvalidAddress, errs.KindOf(err))
}

func TestSwapRejectsExcessiveSlippage(t *testing.T) {
	svc, _, token, userID := newTestService(t, decimal.NewFromInt(100))
	_, err := svc.Swap(token, SwapInput{
		UserID: userID, FromCrypto: CryptoCkBTC, ToCrypto: CryptoCkUSDC,
		Amount: 10, SlippageBps: 10_000, Pin: "1234", Now: 2000,
	})
	assert.Error(t, err)
	assert.Equal(t, errs.InvalidInput, errs.KindOf(err))
}

func TestSwapRejectsWhenDisabled(t *testing.T) {
	svc, _, token, userID := newTestService(t, decimal.NewFromInt(100))
	svc.cfg.Features.EnableSwap = false
	_, err := svc.Swap(token, SwapInput{
		UserID: userID, FromCrypto: CryptoCkBTC, ToCrypto: CryptoCkUSDC,
		Amount: 10, SlippageBps: 50, Pin: "1234", Now: 2000,
	})
	assert.Error(t, err)
}
