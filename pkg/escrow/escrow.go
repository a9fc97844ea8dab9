// Package escrow is C6: time-bound crypto escrows between a user and an
// agent. Ported from original_source/canisters/escrow_canister's escrow
// logic.
package escrow

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/afritokeni/platform/pkg/config"
	"github.com/afritokeni/platform/pkg/errs"
	"github.com/afritokeni/platform/pkg/ledger"
	"github.com/afritokeni/platform/pkg/users"
)

// Service wires C6's escrow state machine to C1's Store.
type Service struct {
	store *ledger.Store
	cfg   *config.Config
	users *users.Service
}

// NewService constructs an escrow service bound to its collaborators.
func NewService(store *ledger.Store, cfg *config.Config, usersSvc *users.Service) *Service {
	return &Service{store: store, cfg: cfg, users: usersSvc}
}

// GenerateEscrowCode builds "ESC-{first_8_of_user_id}-{now_ns}" exactly as
// spec §4.6 names it.
func GenerateEscrowCode(userID string, nowNanos int64) string {
	prefix := userID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("ESC-%s-%d", prefix, nowNanos)
}

func isUSDCType(cryptoType string) bool {
	switch cryptoType {
	case "USDC", "CkUSDC", "ckUSDC", "ckusdc":
		return true
	default:
		return false
	}
}

func deltasFor(cryptoType string, amount int64) (btcDelta, usdcDelta int64) {
	if isUSDCType(cryptoType) {
		return 0, amount
	}
	return amount, 0
}

func heldBalance(cryptoType string, cb *ledger.CryptoBalance) uint64 {
	if isUSDCType(cryptoType) {
		return cb.CkUSDC
	}
	return cb.CkBTC
}

// CreateInput carries a user's request to lock crypto for agent pickup.
type CreateInput struct {
	UserID     string
	AgentID    string
	Amount     uint64
	CryptoType string
	Pin        string
	Now        int64 // unix seconds
	NowNanos   int64 // unix nanoseconds, for code generation only
}

// Create verifies the PIN, checks the user's crypto balance, computes
// expires_at via a checked add, atomically debits the user's crypto
// balance and logs the transaction in one Apply call, then records the
// escrow Active with a separate CreateEscrow call (spec §4.6 Create).
func (s *Service) Create(callerToken string, in CreateInput) (string, error) {
	if in.Amount == 0 {
		return "", errs.Invalid("amount must be greater than 0")
	}
	if err := s.users.VerifyPin(callerToken, in.UserID, in.Pin, in.Now); err != nil {
		return "", err
	}

	agent, err := s.store.GetUserByID(callerToken, in.AgentID)
	if err != nil {
		return "", err
	}
	if agent.UserType != ledger.UserTypeAgent {
		return "", errs.Invalid("target user is not an agent")
	}

	cb, err := s.store.GetCryptoBalance(callerToken, in.UserID)
	if err != nil {
		return "", err
	}
	if heldBalance(in.CryptoType, cb) < in.Amount {
		return "", errs.InsufficientFundsf("insufficient crypto balance for escrow")
	}

	ttlSeconds := int64(s.cfg.Escrow.DefaultTTL.Seconds())
	expiresAt := in.Now + ttlSeconds
	if expiresAt < in.Now { // checked add
		return "", errs.Arithmetic("escrow expiry overflowed")
	}

	code := GenerateEscrowCode(in.UserID, in.NowNanos)
	btcDelta, usdcDelta := deltasFor(in.CryptoType, -int64(in.Amount))
	batch := ledger.Batch{
		CryptoDeltas: []ledger.CryptoDelta{{UserID: in.UserID, BTCDelta: btcDelta, USDCDelta: usdcDelta}},
		LogEntries: []ledger.Transaction{{
			ID: uuid.New().String(), From: in.UserID, To: in.AgentID, Amount: in.Amount,
			Asset: in.CryptoType, Kind: ledger.TxEscrowLock, Timestamp: in.Now, Status: ledger.TxConfirmed,
		}},
	}
	if err := s.store.Apply(callerToken, batch); err != nil {
		return "", err
	}

	e := ledger.Escrow{
		Code: code, UserID: in.UserID, AgentID: in.AgentID, Amount: in.Amount,
		CryptoType: in.CryptoType, Status: ledger.StatusActive, CreatedAt: in.Now, ExpiresAt: expiresAt,
	}
	if err := s.store.CreateEscrow(callerToken, e); err != nil {
		return "", err
	}
	return code, nil
}

// ClaimInput carries an agent's pickup of an Active escrow.
type ClaimInput struct {
	Code    string
	AgentID string
	Pin     string
	Now     int64
}

// Claim requires the escrow to be Active, unexpired, and owned by the
// calling agent; it credits the agent's crypto balance and marks the
// escrow Claimed (spec §4.6 Claim). GetEscrow's lazy sweep means an
// escrow that expired between creation and this call is already Expired
// by the time we read it, so the status check below is sufficient on its
// own — no separate expiry check is needed.
func (s *Service) Claim(callerToken string, in ClaimInput) error {
	if err := s.users.VerifyPin(callerToken, in.AgentID, in.Pin, in.Now); err != nil {
		return err
	}

	e, err := s.store.GetEscrow(callerToken, in.Code, in.Now)
	if err != nil {
		return err
	}
	if e.Status != ledger.StatusActive {
		return errs.Conflict(string(e.Status))
	}
	if e.AgentID != in.AgentID {
		return errs.Forbidden("agent does not own this escrow")
	}

	btcDelta, usdcDelta := deltasFor(e.CryptoType, int64(e.Amount))
	batch := ledger.Batch{
		CryptoDeltas: []ledger.CryptoDelta{{UserID: e.AgentID, BTCDelta: btcDelta, USDCDelta: usdcDelta}},
		LogEntries: []ledger.Transaction{{
			ID: uuid.New().String(), From: e.UserID, To: e.AgentID, Amount: e.Amount,
			Asset: e.CryptoType, Kind: ledger.TxEscrowClaim, Timestamp: in.Now, Status: ledger.TxConfirmed,
		}},
		EscrowTransitions: []ledger.EscrowTransition{{Code: e.Code, From: ledger.StatusActive, To: ledger.StatusClaimed}},
	}
	return s.store.Apply(callerToken, batch)
}

// CancelInput carries a user's cancellation of their own Active escrow.
type CancelInput struct {
	Code   string
	UserID string
	Pin    string
	Now    int64
}

// Cancel requires the escrow be Active and owned by the calling user,
// refunds the crypto, and marks the escrow Cancelled (spec §4.6 Cancel).
func (s *Service) Cancel(callerToken string, in CancelInput) error {
	if err := s.users.VerifyPin(callerToken, in.UserID, in.Pin, in.Now); err != nil {
		return err
	}

	e, err := s.store.GetEscrow(callerToken, in.Code, in.Now)
	if err != nil {
		return err
	}
	if e.Status != ledger.StatusActive {
		return errs.Conflict(string(e.Status))
	}
	if e.UserID != in.UserID {
		return errs.Forbidden("caller does not own this escrow")
	}

	btcDelta, usdcDelta := deltasFor(e.CryptoType, int64(e.Amount))
	batch := ledger.Batch{
		CryptoDeltas: []ledger.CryptoDelta{{UserID: e.UserID, BTCDelta: btcDelta, USDCDelta: usdcDelta}},
		LogEntries: []ledger.Transaction{{
			ID: uuid.New().String(), From: e.AgentID, To: e.UserID, Amount: e.Amount,
			Asset: e.CryptoType, Kind: ledger.TxEscrowRefund, Timestamp: in.Now, Status: ledger.TxConfirmed,
		}},
		EscrowTransitions: []ledger.EscrowTransition{{Code: e.Code, From: ledger.StatusActive, To: ledger.StatusCancelled}},
	}
	return s.store.Apply(callerToken, batch)
}
