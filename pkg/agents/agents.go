// Package agents is C5: deposit and withdrawal orchestration between a
// user and a cash agent. Ported from
// original_source/canisters/agent_canister and
// original_source/canisters/data_canister/src/operations/agent_activity_ops.rs.
package agents

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/afritokeni/platform/pkg/config"
	"github.com/afritokeni/platform/pkg/errs"
	"github.com/afritokeni/platform/pkg/ledger"
	"github.com/afritokeni/platform/pkg/users"
)

// Service wires C5's deposit/withdrawal lifecycle to C1's Store.
type Service struct {
	store *ledger.Store
	cfg   *config.Config
	users *users.Service
}

// NewService constructs an agent service bound to store, cfg, and the
// user service it delegates PIN verification to.
func NewService(store *ledger.Store, cfg *config.Config, usersSvc *users.Service) *Service {
	return &Service{store: store, cfg: cfg, users: usersSvc}
}

// GenerateRequestCode builds a short, collision-resistant code combining
// the current timestamp (unix seconds) with a random 8-hex-character uuid
// prefix, so two requests issued within the same second are told apart by
// that suffix (spec.md §9's open question, resolved per SPEC_FULL.md §6).
func GenerateRequestCode(prefix string, now int64) string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%s-%d-%s", prefix, now, suffix)
}

// validateAmountRange checks amount against currency's configured
// [min, max] band.
func validateAmountRange(cfg *config.Config, currency string, amount uint64) error {
	limits, ok := cfg.CurrencyLimits()[currency]
	if !ok {
		return errs.New(errs.InvalidCurrency, "unsupported currency")
	}
	if amount < limits.Min || amount > limits.Max {
		return errs.New(errs.AmountOutOfRange, fmt.Sprintf("amount must be between %d and %d %s", limits.Min, limits.Max, currency))
	}
	return nil
}

// platformCommission computes the deposit/withdrawal commission split
// (spec §4.5): platform_fee = amount * platform_fee_bps / 10_000,
// agent_commission = amount * agent_commission_bps / 10_000.
func platformCommission(amount uint64, platformFeeBps, agentCommissionBps int64) (platformFee, agentCommission uint64) {
	platformFee = amount * uint64(platformFeeBps) / 10_000
	agentCommission = amount * uint64(agentCommissionBps) / 10_000
	return
}

// CreateDepositInput carries a user's request to receive digital value
// for cash handed to an agent.
type CreateDepositInput struct {
	UserID   string
	AgentID  string
	Amount   uint64
	Currency string
	Pin      string
	Now      int64
}

// CreateDeposit verifies the PIN, validates the amount band and the
// agent's type, and creates a Pending deposit request expiring in
// cfg.Escrow-independent 24h (spec §4.5 step 2).
func (s *Service) CreateDeposit(callerToken string, in CreateDepositInput) (string, error) {
	if err := s.users.VerifyPin(callerToken, in.UserID, in.Pin, in.Now); err != nil {
		return "", err
	}
	if err := validateAmountRange(s.cfg, in.Currency, in.Amount); err != nil {
		return "", err
	}
	agent, err := s.store.GetUserByID(callerToken, in.AgentID)
	if err != nil {
		return "", err
	}
	if agent.UserType != ledger.UserTypeAgent {
		return "", errs.Invalid("target user is not an agent")
	}

	platformFee, agentCommission := platformCommission(in.Amount, s.cfg.Fees.DepositPlatformFeeBps, s.cfg.Fees.DepositAgentCommissionBps)
	code := GenerateRequestCode("DEP", in.Now)
	req := ledger.DepositRequest{
		Code: code, UserID: in.UserID, AgentID: in.AgentID, Amount: in.Amount, Currency: in.Currency,
		PlatformFee: platformFee, AgentCommission: agentCommission,
		Status: ledger.StatusPending, CreatedAt: in.Now, ExpiresAt: in.Now + int64(24*60*60),
	}
	if err := s.store.CreateDepositRequest(callerToken, req); err != nil {
		return "", err
	}
	return code, nil
}

// ConfirmDepositInput carries an agent's confirmation of a pending
// deposit.
type ConfirmDepositInput struct {
	Code    string
	AgentID string
	Pin     string
	Now     int64
}

// ConfirmDeposit verifies the agent's PIN and the request's Pending
// status/ownership, then atomically credits the user's fiat balance and
// the agent's commission, marks the request Confirmed, and appends a
// transaction in one Apply call; AgentActivity is updated afterwards by a
// separate store call (spec §4.5 step 4).
func (s *Service) ConfirmDeposit(callerToken string, in ConfirmDepositInput) error {
	if err := s.users.VerifyPin(callerToken, in.AgentID, in.Pin, in.Now); err != nil {
		return err
	}

	req, err := s.store.GetDepositRequest(callerToken, in.Code, in.Now)
	if err != nil {
		return err
	}
	if req.Status != ledger.StatusPending {
		return errs.Conflict(string(req.Status))
	}
	if req.AgentID != in.AgentID {
		return errs.Forbidden("agent does not own this deposit request")
	}

	txID := uuid.New().String()
	batch := ledger.Batch{
		FiatDeltas: []ledger.FiatDelta{
			{UserID: req.UserID, Currency: req.Currency, Delta: int64(req.Amount)},
			{UserID: req.AgentID, Currency: req.Currency, Delta: int64(req.AgentCommission)},
			{UserID: "platform", Currency: req.Currency, Delta: int64(req.PlatformFee - req.AgentCommission)},
		},
		LogEntries: []ledger.Transaction{{
			ID: txID, From: req.AgentID, To: req.UserID, Amount: req.Amount, Asset: req.Currency,
			Kind: ledger.TxDeposit, Fee: req.PlatformFee, Timestamp: in.Now, Status: ledger.TxConfirmed,
		}},
		DepositTransitions: []ledger.RequestTransition{{Code: req.Code, From: ledger.StatusPending, To: ledger.StatusConfirmed}},
	}
	if err := s.store.Apply(callerToken, batch); err != nil {
		return err
	}

	return s.recordActivity(callerToken, req.AgentID, req.Currency, true, req.Amount, in.Now, req.UserID)
}

// CreateWithdrawalInput carries a user's request to give up digital value
// in exchange for cash from an agent.
type CreateWithdrawalInput struct {
	UserID   string
	AgentID  string
	Amount   uint64
	Currency string
	Pin      string
	Now      int64
}

// CreateWithdrawal is the symmetric opposite of CreateDeposit: the user's
// fiat is debited immediately and held in the request's pending state, to
// be released to the agent on confirmation or refunded on expiry.
func (s *Service) CreateWithdrawal(callerToken string, in CreateWithdrawalInput) (string, error) {
	if err := s.users.VerifyPin(callerToken, in.UserID, in.Pin, in.Now); err != nil {
		return "", err
	}
	if err := validateAmountRange(s.cfg, in.Currency, in.Amount); err != nil {
		return "", err
	}
	agent, err := s.store.GetUserByID(callerToken, in.AgentID)
	if err != nil {
		return "", err
	}
	if agent.UserType != ledger.UserTypeAgent {
		return "", errs.Invalid("target user is not an agent")
	}

	balance, err := s.store.GetFiatBalance(callerToken, in.UserID, in.Currency)
	if err != nil {
		return "", err
	}
	if balance < in.Amount {
		return "", errs.InsufficientFundsf("insufficient balance for withdrawal")
	}

	platformFee, agentCommission := platformCommission(in.Amount, s.cfg.Fees.WithdrawPlatformFeeBps, s.cfg.Fees.WithdrawAgentCommissionBps)
	code := GenerateRequestCode("WDR", in.Now)
	req := ledger.WithdrawalRequest{
		Code: code, UserID: in.UserID, AgentID: in.AgentID, Amount: in.Amount, Currency: in.Currency,
		PlatformFee: platformFee, AgentCommission: agentCommission,
		Status: ledger.StatusPending, CreatedAt: in.Now, ExpiresAt: in.Now + int64(24*60*60),
	}

	batch := ledger.Batch{
		FiatDeltas: []ledger.FiatDelta{{UserID: in.UserID, Currency: in.Currency, Delta: -int64(in.Amount)}},
	}
	if err := s.store.Apply(callerToken, batch); err != nil {
		return "", err
	}
	if err := s.store.CreateWithdrawalRequest(callerToken, req); err != nil {
		return "", err
	}
	return code, nil
}

// ConfirmWithdrawalInput carries an agent's confirmation of a pending
// withdrawal.
type ConfirmWithdrawalInput struct {
	Code    string
	AgentID string
	Pin     string
	Now     int64
}

// ConfirmWithdrawal releases the held debit's commission split to the
// agent/platform, marks the request Confirmed, and logs the transaction.
// The user's fiat was already debited at creation time, so only the
// commission needs to move here.
func (s *Service) ConfirmWithdrawal(callerToken string, in ConfirmWithdrawalInput) error {
	if err := s.users.VerifyPin(callerToken, in.AgentID, in.Pin, in.Now); err != nil {
		return err
	}

	req, err := s.store.GetWithdrawalRequest(callerToken, in.Code, in.Now)
	if err != nil {
		return err
	}
	if req.Status != ledger.StatusPending {
		return errs.Conflict(string(req.Status))
	}
	if req.AgentID != in.AgentID {
		return errs.Forbidden("agent does not own this withdrawal request")
	}

	txID := uuid.New().String()
	batch := ledger.Batch{
		FiatDeltas: []ledger.FiatDelta{
			{UserID: req.AgentID, Currency: req.Currency, Delta: int64(req.AgentCommission)},
			{UserID: "platform", Currency: req.Currency, Delta: int64(req.PlatformFee - req.AgentCommission)},
		},
		LogEntries: []ledger.Transaction{{
			ID: txID, From: req.UserID, To: req.AgentID, Amount: req.Amount, Asset: req.Currency,
			Kind: ledger.TxWithdraw, Fee: req.PlatformFee, Timestamp: in.Now, Status: ledger.TxConfirmed,
		}},
		WithdrawTransitions: []ledger.RequestTransition{{Code: req.Code, From: ledger.StatusPending, To: ledger.StatusConfirmed}},
	}
	if err := s.store.Apply(callerToken, batch); err != nil {
		return err
	}

	return s.recordActivity(callerToken, req.AgentID, req.Currency, false, req.Amount, in.Now, req.UserID)
}

// recordActivity updates AgentActivity's counters, pushes a timestamp into
// the rolling hour/24h windows with trailing prunes, and increments the
// agent's per-user pairing frequency — the inputs C7's velocity checks
// consult (spec §4.5 "AgentActivity update").
func (s *Service) recordActivity(callerToken, agentID, currency string, isDeposit bool, amount uint64, now int64, userID string) error {
	activity, err := s.store.GetAgentActivity(callerToken, agentID, currency)
	if err != nil {
		if errs.KindOf(err) != errs.NotFound {
			return err
		}
		activity = &ledger.AgentActivity{
			AgentID: agentID, Currency: currency, UserAgentPairs: map[string]uint64{}, LastReset: now,
		}
	}
	if activity.UserAgentPairs == nil {
		activity.UserAgentPairs = map[string]uint64{}
	}

	if isDeposit {
		activity.DepositsToday++
		activity.DepositVolumeToday += amount
	} else {
		activity.WithdrawalsToday++
		activity.WithdrawalVolumeToday += amount
	}
	activity.OperationsLastHour = pruneAndAppend(activity.OperationsLastHour, now, 60*60)
	activity.OperationsLast24h = pruneAndAppend(activity.OperationsLast24h, now, 24*60*60)
	activity.UserAgentPairs[userID]++
	activity.LastUpdated = now

	return s.store.StoreAgentActivity(callerToken, *activity)
}

// pruneAndAppend drops timestamps older than windowSeconds before the
// current one, then appends it.
func pruneAndAppend(timestamps []int64, now int64, windowSeconds int64) []int64 {
	cutoff := now - windowSeconds
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	return append(kept, now)
}
