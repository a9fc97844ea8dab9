package ledger

import (
	"database/sql"

	"github.com/afritokeni/platform/pkg/errs"
)

// FiatDelta is one signed fiat adjustment within a Batch.
type FiatDelta struct {
	UserID   string
	Currency string
	Delta    int64
}

// CryptoDelta is one signed crypto adjustment within a Batch.
type CryptoDelta struct {
	UserID    string
	BTCDelta  int64
	USDCDelta int64
}

// RequestTransition moves a deposit/withdrawal request from an expected
// current status to a next status; the mutation is rejected (StateConflict)
// if the row is not currently in From.
type RequestTransition struct {
	Code string
	From RequestStatus
	To   RequestStatus
}

// EscrowTransition moves an escrow from an expected current status to a
// next status, same semantics as RequestTransition.
type EscrowTransition struct {
	Code string
	From RequestStatus
	To   RequestStatus
}

// Batch is the platform's single combined-mutation primitive (spec §9:
// "Composite mutations ... are expressed as a single apply(Batch{debits,
// credits, log_entries, status_transitions}) at C1; failure is all-or-
// nothing"). C3/C4/C5/C6 put each settlement's balance deltas, log entries
// and status transitions into one Batch and one Store.Apply call (spec §5).
// Escrow creation, withdrawal creation and deposit/withdrawal confirmation
// make one further store call after Apply (CreateEscrow,
// CreateWithdrawalRequest, StoreAgentActivity); C10 uses the store's own
// transactional CastVote/CloseProposal instead of a Batch.
type Batch struct {
	FiatDeltas          []FiatDelta
	CryptoDeltas        []CryptoDelta
	LogEntries          []Transaction
	DepositTransitions  []RequestTransition
	WithdrawTransitions []RequestTransition
	EscrowTransitions   []EscrowTransition
}

// Apply executes every delta, log entry, and status transition in batch
// inside one SQL transaction. Any single failure rolls back the entire
// batch and returns that failure; nothing is partially applied.
func (s *Store) Apply(callerToken string, batch Batch) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.New(errs.Internal, "failed to begin batch")
	}
	defer tx.Rollback()

	for _, d := range batch.FiatDeltas {
		current, err := s.getFiatBalanceTx(tx, d.UserID, d.Currency)
		if err != nil {
			return err
		}
		next, err := applyDelta(current, d.Delta)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`
			INSERT INTO fiat_balances (user_id, currency, balance) VALUES (?, ?, ?)
			ON CONFLICT(user_id, currency) DO UPDATE SET balance = excluded.balance
		`, d.UserID, d.Currency, next); err != nil {
			return errs.New(errs.Internal, "failed to apply fiat delta")
		}
	}

	for _, d := range batch.CryptoDeltas {
		current, err := s.getCryptoBalanceTx(tx, d.UserID)
		if err != nil {
			return err
		}
		nextBTC, err := applyDelta(current.CkBTC, d.BTCDelta)
		if err != nil {
			return err
		}
		nextUSDC, err := applyDelta(current.CkUSDC, d.USDCDelta)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`
			INSERT INTO crypto_balances (user_id, ckbtc, ckusdc) VALUES (?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET ckbtc = excluded.ckbtc, ckusdc = excluded.ckusdc
		`, d.UserID, nextBTC, nextUSDC); err != nil {
			return errs.New(errs.Internal, "failed to apply crypto delta")
		}
	}

	for _, e := range batch.LogEntries {
		if _, err := tx.Exec(`
			INSERT INTO transactions (id, from_id, to_id, amount, asset, kind, fee, timestamp, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.From, e.To, e.Amount, e.Asset, string(e.Kind), e.Fee, e.Timestamp, string(e.Status)); err != nil {
			return errs.New(errs.Internal, "failed to append transaction log entry")
		}
	}

	for _, t := range batch.DepositTransitions {
		if err := transitionRequest(tx, "deposit_requests", t); err != nil {
			return err
		}
	}
	for _, t := range batch.WithdrawTransitions {
		if err := transitionRequest(tx, "withdrawal_requests", t); err != nil {
			return err
		}
	}
	for _, t := range batch.EscrowTransitions {
		res, err := tx.Exec(`UPDATE escrows SET status = ? WHERE code = ? AND status = ?`,
			string(t.To), t.Code, string(t.From))
		if err != nil {
			return errs.New(errs.Internal, "failed to transition escrow")
		}
		rows, _ := res.RowsAffected()
		if rows == 0 {
			return errs.Conflict(string(t.From))
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.New(errs.Internal, "failed to commit batch")
	}
	return nil
}

func transitionRequest(tx *sql.Tx, table string, t RequestTransition) error {
	res, err := tx.Exec(`UPDATE `+table+` SET status = ? WHERE code = ? AND status = ?`,
		string(t.To), t.Code, string(t.From))
	if err != nil {
		return errs.New(errs.Internal, "failed to transition request")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errs.New(errs.Internal, "failed to check rows affected")
	}
	if rows == 0 {
		return errs.Conflict(string(t.From))
	}
	return nil
}

// AppendTransaction appends a single log entry outside of a larger batch.
func (s *Store) AppendTransaction(callerToken string, e Transaction) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO transactions (id, from_id, to_id, amount, asset, kind, fee, timestamp, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.From, e.To, e.Amount, e.Asset, string(e.Kind), e.Fee, e.Timestamp, string(e.Status))
	if err != nil {
		return errs.New(errs.Internal, "failed to append transaction")
	}
	return nil
}

// ListTransactions returns up to limit most-recent transactions touching userID.
func (s *Store) ListTransactions(callerToken, userID string, limit int) ([]Transaction, error) {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, from_id, to_id, amount, asset, kind, fee, timestamp, status
		FROM transactions
		WHERE from_id = ? OR to_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, userID, userID, limit)
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to query transactions")
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.From, &t.To, &t.Amount, &t.Asset, &t.Kind, &t.Fee, &t.Timestamp, &t.Status); err != nil {
			return nil, errs.New(errs.Internal, "failed to scan transaction")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
