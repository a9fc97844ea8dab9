package ledger

import (
	"database/sql"

	"github.com/afritokeni/platform/pkg/errs"
)

// Escrow is a time-bounded hold of crypto pending agent pickup (spec §3.2).
type Escrow struct {
	Code       string
	UserID     string
	AgentID    string
	Amount     uint64
	CryptoType string
	Status     RequestStatus
	CreatedAt  int64
	ExpiresAt  int64
}

// CreateEscrow inserts a new Active escrow row. The caller (C6) is
// responsible for having already debited the user's crypto balance via
// Apply in the same logical operation.
func (s *Store) CreateEscrow(callerToken string, e Escrow) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO escrows (code, user_id, agent_id, amount, crypto_type, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Code, e.UserID, e.AgentID, e.Amount, e.CryptoType, string(StatusActive), e.CreatedAt, e.ExpiresAt)
	if err != nil {
		return errs.New(errs.Internal, "failed to create escrow")
	}
	return nil
}

// GetEscrow reads an escrow by code, lazily sweeping it to Expired and
// refunding the user's crypto balance if it is Active and past expiry
// (spec §4.6 Expiry).
func (s *Store) GetEscrow(callerToken, code string, now int64) (*Escrow, error) {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return nil, err
	}

	e, err := s.scanEscrow(code)
	if err != nil {
		return nil, err
	}

	if e.Status == StatusActive && now > e.ExpiresAt {
		isBTC := e.CryptoType == "ckbtc" || e.CryptoType == "BTC" || e.CryptoType == "ckBTC"
		btcDelta, usdcDelta := int64(0), int64(0)
		if isBTC {
			btcDelta = int64(e.Amount)
		} else {
			usdcDelta = int64(e.Amount)
		}

		s.mu.Lock()
		_, execErr := s.db.Exec(`
			INSERT INTO crypto_balances (user_id, ckbtc, ckusdc) VALUES (?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET ckbtc = ckbtc + ?, ckusdc = ckusdc + ?
		`, e.UserID, btcDelta, usdcDelta, btcDelta, usdcDelta)
		if execErr == nil {
			_, execErr = s.db.Exec(`UPDATE escrows SET status = ? WHERE code = ? AND status = ?`,
				string(StatusExpired), code, string(StatusActive))
		}
		s.mu.Unlock()
		if execErr != nil {
			return nil, errs.New(errs.Internal, "failed to sweep expired escrow")
		}
		e.Status = StatusExpired
	}

	return e, nil
}

func (s *Store) scanEscrow(code string) (*Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e Escrow
	err := s.db.QueryRow(`
		SELECT code, user_id, agent_id, amount, crypto_type, status, created_at, expires_at
		FROM escrows WHERE code = ?
	`, code).Scan(&e.Code, &e.UserID, &e.AgentID, &e.Amount, &e.CryptoType, &e.Status, &e.CreatedAt, &e.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("escrow not found")
	}
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to query escrow")
	}
	return &e, nil
}
