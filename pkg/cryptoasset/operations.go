package cryptoasset

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/afritokeni/platform/pkg/config"
	"github.com/afritokeni/platform/pkg/errs"
	"github.com/afritokeni/platform/pkg/fraud"
	"github.com/afritokeni/platform/pkg/ledger"
	"github.com/afritokeni/platform/pkg/rates"
	"github.com/afritokeni/platform/pkg/tokenledger"
	"github.com/afritokeni/platform/pkg/users"
)

// Service wires C4's buy/sell/send/swap operations to C1's Store, C8's
// token ledger, and C9's rate oracle. All PIN checks and fraud-signal
// fields (device fingerprint, geolocation) are accepted by the input
// structs below but never echoed back in any error, matching spec's
// sanitized-error-taxonomy requirement.
type Service struct {
	store   *ledger.Store
	cfg     *config.Config
	users   *users.Service
	rates   *rates.Service
	tledger *tokenledger.Client
}

// NewService constructs a crypto service bound to its collaborators.
func NewService(store *ledger.Store, cfg *config.Config, usersSvc *users.Service, ratesSvc *rates.Service, tledger *tokenledger.Client) *Service {
	return &Service{store: store, cfg: cfg, users: usersSvc, rates: ratesSvc, tledger: tledger}
}

func cryptoAssetFor(t CryptoType) tokenledger.Asset {
	switch t {
	case CryptoUSDC, CryptoCkUSDC:
		return tokenledger.AssetCkUSDC
	default:
		return tokenledger.AssetCkBTC
	}
}

// sanitize maps any internal error to a generic reason from the spec's
// closed user-visible set, never leaking ledger IDs, user IDs, PIN attempt
// counts, device fingerprints, or geolocation.
func sanitize(err error) error {
	if err == nil {
		return nil
	}
	switch errs.KindOf(err) {
	case errs.InsufficientFunds, errs.InvalidPin, errs.NotFound, errs.InvalidCurrency,
		errs.InvalidAddress, errs.SlippageExceeded, errs.RateUnavailable, errs.RateLimited,
		errs.FraudBlocked, errs.PinLocked, errs.KycRequired, errs.InvalidInput:
		return err
	default:
		return errs.New(errs.Internal, "operation failed")
	}
}

func (s *Service) evaluateAmount(amount uint64, currency string) fraud.CheckResult {
	limits, ok := s.cfg.CurrencyLimits()[currency]
	if !ok {
		return fraud.CheckResult{}
	}
	return fraud.CheckTransactionAmount(amount, limits.Max, limits.Max*8/10)
}

// BuyInput is a fiat->crypto purchase request.
type BuyInput struct {
	UserID            string
	FiatAmount        uint64
	Currency          string
	CryptoType        CryptoType
	Pin               string
	DeviceFingerprint string
	Geolocation       string
	Now               int64
}

// BuyResult carries the settled crypto amount and the effective rate
// (crypto_out / fiat_in) per spec's response contract.
type BuyResult struct {
	TransactionID string
	CryptoAmount  uint64
	ExchangeRate  decimal.Decimal
}

// Buy verifies the PIN, checks fiat balance, quotes the rate via C9,
// deducts the spread, and atomically debits fiat / credits crypto while
// moving crypto out of the platform reserve via C8.
func (s *Service) Buy(callerToken string, in BuyInput) (*BuyResult, error) {
	if in.FiatAmount == 0 {
		return nil, errs.Invalid("amount must be greater than 0")
	}
	if err := s.users.VerifyPin(callerToken, in.UserID, in.Pin, in.Now); err != nil {
		return nil, sanitize(err)
	}

	check := s.evaluateAmount(in.FiatAmount, in.Currency)
	if check.ShouldBlock {
		return nil, errs.New(errs.FraudBlocked, "transaction blocked by risk evaluation")
	}

	balance, err := s.store.GetFiatBalance(callerToken, in.UserID, in.Currency)
	if err != nil {
		return nil, sanitize(err)
	}
	if balance < in.FiatAmount {
		return nil, errs.InsufficientFundsf("insufficient fiat balance for buy")
	}

	pair := fmt.Sprintf("%s/%s", cryptoPairSymbol(in.CryptoType), in.Currency)
	quote, err := s.rates.GetQuote(context.Background(), pair, in.Now)
	if err != nil {
		return nil, sanitize(err)
	}

	grossCrypto := decimal.NewFromInt(int64(in.FiatAmount)).Div(quote.Price)
	spreadBps := decimal.NewFromInt(s.cfg.Fees.BuySellSpreadBps)
	netCrypto := grossCrypto.Mul(decimal.NewFromInt(10_000).Sub(spreadBps)).Div(decimal.NewFromInt(10_000))
	cryptoAmount := netCrypto.Truncate(0).BigInt().Uint64()
	if cryptoAmount == 0 {
		return nil, errs.New(errs.RateUnavailable, "quoted rate yields zero crypto for this amount")
	}

	asset := cryptoAssetFor(in.CryptoType)
	platform := s.tledger.PlatformAccount()
	userAccount := tokenledger.Account{Owner: in.UserID}
	if err := s.tledger.Transfer(context.Background(), asset, platform, userAccount, cryptoAmount); err != nil {
		return nil, sanitize(err)
	}

	txID := uuid.New().String()
	btcDelta, usdcDelta := cryptoDeltas(in.CryptoType, int64(cryptoAmount))
	batch := ledger.Batch{
		FiatDeltas: []ledger.FiatDelta{
			{UserID: in.UserID, Currency: in.Currency, Delta: -int64(in.FiatAmount)},
			{UserID: "platform", Currency: in.Currency, Delta: int64(in.FiatAmount)},
		},
		CryptoDeltas: []ledger.CryptoDelta{{UserID: in.UserID, BTCDelta: btcDelta, USDCDelta: usdcDelta}},
		LogEntries: []ledger.Transaction{{
			ID: txID, From: "platform", To: in.UserID, Amount: cryptoAmount,
			Asset: string(in.CryptoType), Kind: ledger.TxBuy, Timestamp: in.Now, Status: ledger.TxConfirmed,
		}},
	}
	if err := s.store.Apply(callerToken, batch); err != nil {
		return nil, sanitize(err)
	}

	rate := decimal.NewFromInt(int64(cryptoAmount)).Div(decimal.NewFromInt(int64(in.FiatAmount)))
	return &BuyResult{TransactionID: txID, CryptoAmount: cryptoAmount, ExchangeRate: rate}, nil
}

// SellInput is a crypto->fiat sale request, the mirror of BuyInput.
type SellInput struct {
	UserID            string
	CryptoAmount      uint64
	Currency          string
	CryptoType        CryptoType
	Pin               string
	DeviceFingerprint string
	Geolocation       string
	Now               int64
}

// SellResult mirrors BuyResult for the opposite direction.
type SellResult struct {
	TransactionID string
	FiatAmount    uint64
	ExchangeRate  decimal.Decimal
}

// Sell is Buy's mirror: requires sufficient crypto balance, transfers
// crypto from the user's ledger account to the platform reserve via C8,
// and credits fiat.
func (s *Service) Sell(callerToken string, in SellInput) (*SellResult, error) {
	if in.CryptoAmount == 0 {
		return nil, errs.Invalid("amount must be greater than 0")
	}
	if err := s.users.VerifyPin(callerToken, in.UserID, in.Pin, in.Now); err != nil {
		return nil, sanitize(err)
	}

	cb, err := s.store.GetCryptoBalance(callerToken, in.UserID)
	if err != nil {
		return nil, sanitize(err)
	}
	held := heldBalance(in.CryptoType, cb)
	if held < in.CryptoAmount {
		return nil, errs.InsufficientFundsf("insufficient crypto balance for sell")
	}

	pair := fmt.Sprintf("%s/%s", cryptoPairSymbol(in.CryptoType), in.Currency)
	quote, err := s.rates.GetQuote(context.Background(), pair, in.Now)
	if err != nil {
		return nil, sanitize(err)
	}

	grossFiat := decimal.NewFromInt(int64(in.CryptoAmount)).Mul(quote.Price)
	spreadBps := decimal.NewFromInt(s.cfg.Fees.BuySellSpreadBps)
	netFiat := grossFiat.Mul(decimal.NewFromInt(10_000).Sub(spreadBps)).Div(decimal.NewFromInt(10_000))
	fiatAmount := netFiat.Truncate(0).BigInt().Uint64()
	if fiatAmount == 0 {
		return nil, errs.New(errs.RateUnavailable, "quoted rate yields zero fiat for this amount")
	}

	asset := cryptoAssetFor(in.CryptoType)
	platform := s.tledger.PlatformAccount()
	userAccount := tokenledger.Account{Owner: in.UserID}
	if err := s.tledger.Transfer(context.Background(), asset, userAccount, platform, in.CryptoAmount); err != nil {
		return nil, sanitize(err)
	}

	txID := uuid.New().String()
	btcDelta, usdcDelta := cryptoDeltas(in.CryptoType, -int64(in.CryptoAmount))
	batch := ledger.Batch{
		FiatDeltas: []ledger.FiatDelta{
			{UserID: in.UserID, Currency: in.Currency, Delta: int64(fiatAmount)},
			{UserID: "platform", Currency: in.Currency, Delta: -int64(fiatAmount)},
		},
		CryptoDeltas: []ledger.CryptoDelta{{UserID: in.UserID, BTCDelta: btcDelta, USDCDelta: usdcDelta}},
		LogEntries: []ledger.Transaction{{
			ID: txID, From: in.UserID, To: "platform", Amount: in.CryptoAmount,
			Asset: string(in.CryptoType), Kind: ledger.TxSell, Timestamp: in.Now, Status: ledger.TxConfirmed,
		}},
	}
	if err := s.store.Apply(callerToken, batch); err != nil {
		return nil, sanitize(err)
	}

	rate := decimal.NewFromInt(int64(fiatAmount)).Div(decimal.NewFromInt(int64(in.CryptoAmount)))
	return &SellResult{TransactionID: txID, FiatAmount: fiatAmount, ExchangeRate: rate}, nil
}

// SendInput is an external crypto withdrawal request.
type SendInput struct {
	UserID            string
	ToAddress         string
	Amount            uint64
	CryptoType        CryptoType
	Pin               string
	DeviceFingerprint string
	Geolocation       string
	Now               int64
}

// Send validates the destination address by asset family (strict mode
// verifies the Base58Check checksum on legacy BTC addresses), debits the
// user's custodial balance, and transfers externally via C8. On C8
// failure no C1 state is mutated, since the Batch is only applied after
// the external transfer has already succeeded.
func (s *Service) Send(callerToken string, in SendInput) (string, error) {
	if in.Amount == 0 {
		return "", errs.Invalid("amount must be greater than 0")
	}
	validate := ValidateCryptoAddress
	if s.cfg.Features.StrictAddressChecks {
		validate = ValidateCryptoAddressStrict
	}
	if err := validate(in.ToAddress, in.CryptoType); err != nil {
		return "", err
	}
	if err := s.users.VerifyPin(callerToken, in.UserID, in.Pin, in.Now); err != nil {
		return "", sanitize(err)
	}

	cb, err := s.store.GetCryptoBalance(callerToken, in.UserID)
	if err != nil {
		return "", sanitize(err)
	}
	if heldBalance(in.CryptoType, cb) < in.Amount {
		return "", errs.InsufficientFundsf("insufficient crypto balance for send")
	}

	asset := cryptoAssetFor(in.CryptoType)
	userAccount := tokenledger.Account{Owner: in.UserID}
	externalAccount := tokenledger.Account{Owner: in.ToAddress}
	if err := s.tledger.Transfer(context.Background(), asset, userAccount, externalAccount, in.Amount); err != nil {
		return "", sanitize(err)
	}

	txID := uuid.New().String()
	btcDelta, usdcDelta := cryptoDeltas(in.CryptoType, -int64(in.Amount))
	batch := ledger.Batch{
		CryptoDeltas: []ledger.CryptoDelta{{UserID: in.UserID, BTCDelta: btcDelta, USDCDelta: usdcDelta}},
		LogEntries: []ledger.Transaction{{
			ID: txID, From: in.UserID, To: in.ToAddress, Amount: in.Amount,
			Asset: string(in.CryptoType), Kind: ledger.TxSend, Timestamp: in.Now, Status: ledger.TxConfirmed,
		}},
	}
	if err := s.store.Apply(callerToken, batch); err != nil {
		return "", sanitize(err)
	}
	return txID, nil
}

// SwapInput is a slippage-protected crypto<->crypto swap request.
type SwapInput struct {
	UserID     string
	FromCrypto CryptoType
	ToCrypto   CryptoType
	Amount     uint64
	SlippageBps int64
	Pin        string
	Now        int64
}

// SwapResult carries the actual output amount settled.
type SwapResult struct {
	TransactionID string
	ActualOut     uint64
}

// Swap executes the six-step slippage-protected exchange from spec §4.4:
// quote, deduct spread, compute min_out from the caller's slippage
// tolerance (rejected above the configured maximum), execute, abort-and-refund on excess slippage, else settle
// atomically. Because the internal swap below never leaves the process
// (both legs stay in C1), "abort and refund" is simply "don't call
// Apply" — there is nothing to unwind.
func (s *Service) Swap(callerToken string, in SwapInput) (*SwapResult, error) {
	if in.Amount == 0 {
		return nil, errs.Invalid("amount must be greater than 0")
	}
	if !s.cfg.Features.EnableSwap {
		return nil, errs.New(errs.InvalidInput, "swaps are disabled")
	}
	if in.SlippageBps < 0 || in.SlippageBps > s.cfg.Fees.SwapMaxSlippageBps {
		return nil, errs.Invalid("slippage tolerance exceeds the platform maximum")
	}
	if err := s.users.VerifyPin(callerToken, in.UserID, in.Pin, in.Now); err != nil {
		return nil, sanitize(err)
	}

	cb, err := s.store.GetCryptoBalance(callerToken, in.UserID)
	if err != nil {
		return nil, sanitize(err)
	}
	if heldBalance(in.FromCrypto, cb) < in.Amount {
		return nil, errs.InsufficientFundsf("insufficient crypto balance for swap")
	}

	pair := fmt.Sprintf("%s/%s", cryptoPairSymbol(in.FromCrypto), cryptoPairSymbol(in.ToCrypto))
	quote, err := s.rates.GetQuote(context.Background(), pair, in.Now)
	if err != nil {
		return nil, sanitize(err)
	}

	spreadBps := decimal.NewFromInt(s.cfg.Fees.SwapSpreadBps)
	grossOut := decimal.NewFromInt(int64(in.Amount)).Mul(quote.Price)
	expectedOut := grossOut.Mul(decimal.NewFromInt(10_000).Sub(spreadBps)).Div(decimal.NewFromInt(10_000))
	minOut := expectedOut.Mul(decimal.NewFromInt(10_000 - in.SlippageBps)).Div(decimal.NewFromInt(10_000))

	actualOut := expectedOut.Truncate(0).BigInt().Uint64()
	if decimal.NewFromInt(int64(actualOut)).LessThan(minOut) {
		return nil, errs.New(errs.SlippageExceeded, "swap output fell below the minimum accepted amount")
	}
	if actualOut == 0 {
		return nil, errs.New(errs.RateUnavailable, "quoted rate yields zero output for this swap")
	}

	txID := uuid.New().String()
	fromBTC, fromUSDC := cryptoDeltas(in.FromCrypto, -int64(in.Amount))
	toBTC, toUSDC := cryptoDeltas(in.ToCrypto, int64(actualOut))
	batch := ledger.Batch{
		CryptoDeltas: []ledger.CryptoDelta{
			{UserID: in.UserID, BTCDelta: fromBTC, USDCDelta: fromUSDC},
			{UserID: in.UserID, BTCDelta: toBTC, USDCDelta: toUSDC},
		},
		LogEntries: []ledger.Transaction{{
			ID: txID, From: in.UserID, To: in.UserID, Amount: actualOut,
			Asset: string(in.ToCrypto), Kind: ledger.TxSwap, Timestamp: in.Now, Status: ledger.TxConfirmed,
		}},
	}
	if err := s.store.Apply(callerToken, batch); err != nil {
		return nil, sanitize(err)
	}
	return &SwapResult{TransactionID: txID, ActualOut: actualOut}, nil
}

// BalanceCheck mirrors a user's custodial balance against C8's external
// ledger read, surfacing both so callers can detect drift.
type BalanceCheck struct {
	Custodial uint64
	External  uint64
}

// CheckCryptoBalance reads the custodial balance from C1 and the
// corresponding external balance from C8 for comparison.
func (s *Service) CheckCryptoBalance(callerToken, userID string, cryptoType CryptoType) (*BalanceCheck, error) {
	cb, err := s.store.GetCryptoBalance(callerToken, userID)
	if err != nil {
		return nil, sanitize(err)
	}
	custodial := heldBalance(cryptoType, cb)

	external, err := s.tledger.BalanceOf(context.Background(), cryptoAssetFor(cryptoType), tokenledger.Account{Owner: userID})
	if err != nil {
		return nil, sanitize(err)
	}
	return &BalanceCheck{Custodial: custodial, External: external}, nil
}

func heldBalance(t CryptoType, cb *ledger.CryptoBalance) uint64 {
	if t == CryptoUSDC || t == CryptoCkUSDC {
		return cb.CkUSDC
	}
	return cb.CkBTC
}

func cryptoDeltas(t CryptoType, delta int64) (btcDelta, usdcDelta int64) {
	if t == CryptoUSDC || t == CryptoCkUSDC {
		return 0, delta
	}
	return delta, 0
}

func cryptoPairSymbol(t CryptoType) string {
	switch t {
	case CryptoUSDC, CryptoCkUSDC:
		return "CKUSDC"
	default:
		return "CKBTC"
	}
}
