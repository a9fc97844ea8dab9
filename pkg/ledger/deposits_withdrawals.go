package ledger

import (
	"database/sql"

	"github.com/afritokeni/platform/pkg/errs"
)

// DepositRequest / WithdrawalRequest share the same shape (spec §3.2).
type DepositRequest struct {
	Code            string
	UserID          string
	AgentID         string
	Amount          uint64
	Currency        string
	PlatformFee     uint64
	AgentCommission uint64
	Status          RequestStatus
	CreatedAt       int64
	ExpiresAt       int64
}

// WithdrawalRequest mirrors DepositRequest.
type WithdrawalRequest = DepositRequest

// CreateDepositRequest inserts a new Pending deposit request. Deposit
// creation never touches a balance (the user is credited only on confirm).
func (s *Store) CreateDepositRequest(callerToken string, r DepositRequest) error {
	return s.createRequest(callerToken, "deposit_requests", r)
}

// CreateWithdrawalRequest inserts a new withdrawal request. Unlike a
// deposit, a withdrawal holds the user's funds at creation time. The debit
// and this row cannot share one Batch, so the caller (C5) first debits the
// user through Apply and then makes this insert as a second call; the
// insert has no precondition to race against, and if it fails the debit
// stays in place.
func (s *Store) CreateWithdrawalRequest(callerToken string, r WithdrawalRequest) error {
	return s.createRequest(callerToken, "withdrawal_requests", r)
}

func (s *Store) createRequest(callerToken, table string, r DepositRequest) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO `+table+` (code, user_id, agent_id, amount, currency, platform_fee,
			agent_commission, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Code, r.UserID, r.AgentID, r.Amount, r.Currency, r.PlatformFee,
		r.AgentCommission, string(StatusPending), r.CreatedAt, r.ExpiresAt)
	if err != nil {
		return errs.New(errs.Internal, "failed to create request")
	}
	return nil
}

// GetDepositRequest reads a deposit request by code, lazily sweeping it to
// Expired first if it is Pending and past expiry (spec §4.6/§9: expiry
// sweep runs on touch, never a background timer, as the correctness
// boundary).
func (s *Store) GetDepositRequest(callerToken, code string, now int64) (*DepositRequest, error) {
	return s.getRequest(callerToken, "deposit_requests", code, now, false)
}

// GetWithdrawalRequest reads a withdrawal request by code, lazily sweeping
// and refunding the held debit if it is Pending and past expiry (spec
// §4.5: "Expiry refunds the user").
func (s *Store) GetWithdrawalRequest(callerToken, code string, now int64) (*WithdrawalRequest, error) {
	return s.getRequest(callerToken, "withdrawal_requests", code, now, true)
}

func (s *Store) getRequest(callerToken, table, code string, now int64, refundOnExpiry bool) (*DepositRequest, error) {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return nil, err
	}

	r, err := s.scanRequest(table, code)
	if err != nil {
		return nil, err
	}

	if r.Status == StatusPending && now > r.ExpiresAt {
		s.mu.Lock()
		var execErr error
		if refundOnExpiry {
			_, execErr = s.db.Exec(`
				INSERT INTO fiat_balances (user_id, currency, balance)
				VALUES (?, ?, ?)
				ON CONFLICT(user_id, currency) DO UPDATE SET balance = balance + ?
			`, r.UserID, r.Currency, r.Amount, r.Amount)
		}
		if execErr == nil {
			_, execErr = s.db.Exec(`UPDATE `+table+` SET status = ? WHERE code = ? AND status = ?`,
				string(StatusExpired), code, string(StatusPending))
		}
		s.mu.Unlock()
		if execErr != nil {
			return nil, errs.New(errs.Internal, "failed to sweep expired request")
		}
		r.Status = StatusExpired
	}

	return r, nil
}

func (s *Store) scanRequest(table, code string) (*DepositRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r DepositRequest
	err := s.db.QueryRow(`
		SELECT code, user_id, agent_id, amount, currency, platform_fee, agent_commission,
			status, created_at, expires_at
		FROM `+table+` WHERE code = ?
	`, code).Scan(&r.Code, &r.UserID, &r.AgentID, &r.Amount, &r.Currency, &r.PlatformFee,
		&r.AgentCommission, &r.Status, &r.CreatedAt, &r.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("request not found")
	}
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to query request")
	}
	return &r, nil
}
