// Package wallet is C3: peer-to-peer fiat transfers. Ported from
// original_source/canisters/wallet_canister/src/logic/transfer_logic.rs.
package wallet

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/afritokeni/platform/pkg/config"
	"github.com/afritokeni/platform/pkg/errs"
	"github.com/afritokeni/platform/pkg/ledger"
)

// Service wires C3's transfer logic to C1's Store.
type Service struct {
	store *ledger.Store
	cfg   *config.Config
}

// NewService constructs a wallet service bound to store and cfg.
func NewService(store *ledger.Store, cfg *config.Config) *Service {
	return &Service{store: store, cfg: cfg}
}

// ValidateAmountPositive rejects a zero transfer amount.
func ValidateAmountPositive(amount uint64) error {
	if amount == 0 {
		return errs.Invalid("amount must be greater than 0")
	}
	return nil
}

// ValidateSufficientBalance checks balance >= amount+fee with overflow
// protection on the sum itself.
func ValidateSufficientBalance(balance, amount, fee uint64) error {
	total := amount + fee
	if total < amount { // overflow
		return errs.Arithmetic("amount + fee would overflow")
	}
	if balance < total {
		return errs.InsufficientFundsf(fmt.Sprintf(
			"insufficient balance: have %d, need %d (amount %d + fee %d)", balance, total, amount, fee))
	}
	return nil
}

// ValidateNotSelfTransfer rejects a transfer where sender == recipient.
func ValidateNotSelfTransfer(fromID, toID string) error {
	if fromID == toID {
		return errs.Invalid("cannot transfer to yourself")
	}
	return nil
}

// ValidateCurrencyMatch requires sender and recipient to share a currency.
func ValidateCurrencyMatch(senderCurrency, recipientCurrency string) error {
	if senderCurrency != recipientCurrency {
		return errs.New(errs.InvalidCurrency, fmt.Sprintf(
			"currency mismatch: sender has %s, recipient has %s", senderCurrency, recipientCurrency))
	}
	return nil
}

// CalculateFee returns floor(amount * feeBps / 10000).
func CalculateFee(amount uint64, feeBps int64) (uint64, error) {
	if feeBps < 0 || feeBps > 10_000 {
		return 0, errs.Invalid("fee basis points must be between 0 and 10000")
	}
	return amount * uint64(feeBps) / 10_000, nil
}

// CalculateAgentCommission returns floor(fee * commissionPct / 100).
func CalculateAgentCommission(fee uint64, commissionPct int64) (uint64, error) {
	if commissionPct < 0 || commissionPct > 100 {
		return 0, errs.Invalid("commission percentage must be between 0 and 100")
	}
	return fee * uint64(commissionPct) / 100, nil
}

// TransferInput carries a peer transfer request (spec §4.3 steps 1-8).
type TransferInput struct {
	FromUserID string
	ToUserID   string
	Amount     uint64
	Currency   string
	Now        int64
}

// TransferResult is the settled outcome of a successful Transfer call.
type TransferResult struct {
	TransactionID string
	Fee           uint64
}

// Transfer executes an atomic peer-to-peer fiat transfer: validates
// amount, balance, and currency, computes the platform fee, and applies
// the debit/credit/fee-sink deltas plus one log entry in a single
// ledger.Batch (spec §9's single combined-mutation primitive, so the
// sender's debit and recipient's credit can never be observed torn).
func (s *Service) Transfer(callerToken string, in TransferInput) (*TransferResult, error) {
	if err := ValidateAmountPositive(in.Amount); err != nil {
		return nil, err
	}
	if err := ValidateNotSelfTransfer(in.FromUserID, in.ToUserID); err != nil {
		return nil, err
	}

	sender, err := s.store.GetUserByID(callerToken, in.FromUserID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.store.GetUserByID(callerToken, in.ToUserID)
	if err != nil {
		return nil, err
	}
	if err := ValidateCurrencyMatch(sender.PreferredCurrency, recipient.PreferredCurrency); err != nil {
		return nil, err
	}

	fee, err := CalculateFee(in.Amount, s.cfg.Fees.TransferFeeBps)
	if err != nil {
		return nil, err
	}

	balance, err := s.store.GetFiatBalance(callerToken, in.FromUserID, in.Currency)
	if err != nil {
		return nil, err
	}
	if err := ValidateSufficientBalance(balance, in.Amount, fee); err != nil {
		return nil, err
	}

	txID := uuid.New().String()
	batch := ledger.Batch{
		FiatDeltas: []ledger.FiatDelta{
			{UserID: in.FromUserID, Currency: in.Currency, Delta: -int64(in.Amount + fee)},
			{UserID: in.ToUserID, Currency: in.Currency, Delta: int64(in.Amount)},
			{UserID: "platform", Currency: in.Currency, Delta: int64(fee)},
		},
		LogEntries: []ledger.Transaction{{
			ID:        txID,
			From:      in.FromUserID,
			To:        in.ToUserID,
			Amount:    in.Amount,
			Asset:     in.Currency,
			Kind:      ledger.TxSend,
			Fee:       fee,
			Timestamp: in.Now,
			Status:    ledger.TxConfirmed,
		}},
	}

	if err := s.store.Apply(callerToken, batch); err != nil {
		return nil, err
	}

	return &TransferResult{TransactionID: txID, Fee: fee}, nil
}
