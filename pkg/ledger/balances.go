package ledger

import (
	"database/sql"
	"math"

	"github.com/afritokeni/platform/pkg/errs"
)

// GetFiatBalance reads a (user, currency) fiat balance, defaulting to 0
// when unset.
func (s *Store) GetFiatBalance(callerToken, userID, currency string) (uint64, error) {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getFiatBalanceTx(s.db, userID, currency)
}

type queryer interface {
	QueryRow(query string, args ...interface{}) *sql.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func (s *Store) getFiatBalanceTx(q queryer, userID, currency string) (uint64, error) {
	var balance uint64
	err := q.QueryRow(`SELECT balance FROM fiat_balances WHERE user_id = ? AND currency = ?`, userID, currency).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errs.New(errs.Internal, "failed to query fiat balance")
	}
	return balance, nil
}

// SetFiatBalance sets an absolute (user, currency) fiat balance.
func (s *Store) SetFiatBalance(callerToken, userID, currency string, value uint64) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO fiat_balances (user_id, currency, balance) VALUES (?, ?, ?)
		ON CONFLICT(user_id, currency) DO UPDATE SET balance = excluded.balance
	`, userID, currency, value)
	if err != nil {
		return errs.New(errs.Internal, "failed to set fiat balance")
	}
	return nil
}

// AdjustFiatBalance applies a signed delta using checked arithmetic:
// underflow/overflow returns ArithmeticError and leaves state untouched
// (spec §4.1 "Arithmetic invariants").
func (s *Store) AdjustFiatBalance(callerToken, userID, currency string, delta int64) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getFiatBalanceTx(s.db, userID, currency)
	if err != nil {
		return err
	}
	next, err := applyDelta(current, delta)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO fiat_balances (user_id, currency, balance) VALUES (?, ?, ?)
		ON CONFLICT(user_id, currency) DO UPDATE SET balance = excluded.balance
	`, userID, currency, next)
	if err != nil {
		return errs.New(errs.Internal, "failed to adjust fiat balance")
	}
	return nil
}

// applyDelta applies a signed delta to an unsigned balance with checked
// arithmetic (Go has no checked_add/checked_sub; this is the idiomatic
// substitute, same shape as the teacher's ApplyTransaction balance check).
func applyDelta(current uint64, delta int64) (uint64, error) {
	if delta >= 0 {
		d := uint64(delta)
		if current > math.MaxUint64-d {
			return 0, errs.Arithmetic("balance adjustment overflowed")
		}
		return current + d, nil
	}
	d := uint64(-delta)
	if d > current {
		return 0, errs.Arithmetic("balance adjustment underflowed")
	}
	return current - d, nil
}

// CryptoBalance is a user's custodial ckBTC/ckUSDC holding.
type CryptoBalance struct {
	CkBTC  uint64
	CkUSDC uint64
}

// GetCryptoBalance reads a user's crypto balance, defaulting to zero.
func (s *Store) GetCryptoBalance(callerToken, userID string) (*CryptoBalance, error) {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCryptoBalanceTx(s.db, userID)
}

func (s *Store) getCryptoBalanceTx(q queryer, userID string) (*CryptoBalance, error) {
	var cb CryptoBalance
	err := q.QueryRow(`SELECT ckbtc, ckusdc FROM crypto_balances WHERE user_id = ?`, userID).Scan(&cb.CkBTC, &cb.CkUSDC)
	if err == sql.ErrNoRows {
		return &CryptoBalance{}, nil
	}
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to query crypto balance")
	}
	return &cb, nil
}

// SetCryptoBalance sets an absolute crypto balance.
func (s *Store) SetCryptoBalance(callerToken, userID string, cb CryptoBalance) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO crypto_balances (user_id, ckbtc, ckusdc) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET ckbtc = excluded.ckbtc, ckusdc = excluded.ckusdc
	`, userID, cb.CkBTC, cb.CkUSDC)
	if err != nil {
		return errs.New(errs.Internal, "failed to set crypto balance")
	}
	return nil
}

// AdjustCryptoBalance applies signed ckBTC/ckUSDC deltas atomically using
// checked arithmetic.
func (s *Store) AdjustCryptoBalance(callerToken, userID string, btcDelta, usdcDelta int64) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getCryptoBalanceTx(s.db, userID)
	if err != nil {
		return err
	}
	nextBTC, err := applyDelta(current.CkBTC, btcDelta)
	if err != nil {
		return err
	}
	nextUSDC, err := applyDelta(current.CkUSDC, usdcDelta)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO crypto_balances (user_id, ckbtc, ckusdc) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET ckbtc = excluded.ckbtc, ckusdc = excluded.ckusdc
	`, userID, nextBTC, nextUSDC)
	if err != nil {
		return errs.New(errs.Internal, "failed to adjust crypto balance")
	}
	return nil
}
