package ledger

import (
	"database/sql"
	"encoding/json"

	"github.com/afritokeni/platform/pkg/errs"
)

// Snapshot is the full pre-upgrade image of every table C1 owns (spec §4.1:
// "the store exposes a pre-upgrade snapshot and post-upgrade restore hook so
// no balance, request, or escrow is lost across a canister upgrade").
// Grounded on pkg/state/state.go's GetAccountSnapshot/RestoreAccountSnapshot.
type Snapshot struct {
	Users             []User
	Pins              []PinRecord
	FiatBalances      []snapshotFiatBalance
	CryptoBalances    []snapshotCryptoBalance
	Transactions      []Transaction
	DepositRequests   []DepositRequest
	WithdrawRequests  []WithdrawalRequest
	Escrows           []Escrow
	AgentActivities   []AgentActivity
	AuthorizedCallers []string
	Proposals         []Proposal
	Votes             []Vote
}

type snapshotFiatBalance struct {
	UserID   string
	Currency string
	Balance  uint64
}

type snapshotCryptoBalance struct {
	UserID string
	CkBTC  uint64
	CkUSDC uint64
}

// Snapshot reads every table into one in-memory image. Intended for the
// pre-upgrade hook; callers should serialize the result (e.g. to stable
// memory or a backup file) before the process restarts.
func (s *Store) Snapshot(callerToken string) (*Snapshot, error) {
	if _, err := s.verifyCaller(callerToken, TierController); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{}

	userRows, err := s.db.Query(`SELECT id, phone, principal, first_name, last_name, email, preferred_currency, user_type, kyc_status, language, created_at FROM users`)
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to snapshot users")
	}
	for userRows.Next() {
		var u User
		if err := userRows.Scan(&u.ID, &u.Phone, &u.Principal, &u.FirstName, &u.LastName, &u.Email,
			&u.PreferredCurrency, &u.UserType, &u.KycStatus, &u.Language, &u.CreatedAt); err != nil {
			userRows.Close()
			return nil, errs.New(errs.Internal, "failed to scan user snapshot")
		}
		snap.Users = append(snap.Users, u)
	}
	userRows.Close()

	pinRows, err := s.db.Query(`SELECT user_id, pin_hash, failed_attempts, locked_until FROM pins`)
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to snapshot pins")
	}
	for pinRows.Next() {
		var p PinRecord
		if err := pinRows.Scan(&p.UserID, &p.PinHash, &p.FailedAttempts, &p.LockedUntil); err != nil {
			pinRows.Close()
			return nil, errs.New(errs.Internal, "failed to scan pin snapshot")
		}
		snap.Pins = append(snap.Pins, p)
	}
	pinRows.Close()

	fbRows, err := s.db.Query(`SELECT user_id, currency, balance FROM fiat_balances`)
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to snapshot fiat balances")
	}
	for fbRows.Next() {
		var fb snapshotFiatBalance
		if err := fbRows.Scan(&fb.UserID, &fb.Currency, &fb.Balance); err != nil {
			fbRows.Close()
			return nil, errs.New(errs.Internal, "failed to scan fiat balance snapshot")
		}
		snap.FiatBalances = append(snap.FiatBalances, fb)
	}
	fbRows.Close()

	cbRows, err := s.db.Query(`SELECT user_id, ckbtc, ckusdc FROM crypto_balances`)
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to snapshot crypto balances")
	}
	for cbRows.Next() {
		var cb snapshotCryptoBalance
		if err := cbRows.Scan(&cb.UserID, &cb.CkBTC, &cb.CkUSDC); err != nil {
			cbRows.Close()
			return nil, errs.New(errs.Internal, "failed to scan crypto balance snapshot")
		}
		snap.CryptoBalances = append(snap.CryptoBalances, cb)
	}
	cbRows.Close()

	txRows, err := s.db.Query(`SELECT id, from_id, to_id, amount, asset, kind, fee, timestamp, status FROM transactions`)
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to snapshot transactions")
	}
	for txRows.Next() {
		var t Transaction
		if err := txRows.Scan(&t.ID, &t.From, &t.To, &t.Amount, &t.Asset, &t.Kind, &t.Fee, &t.Timestamp, &t.Status); err != nil {
			txRows.Close()
			return nil, errs.New(errs.Internal, "failed to scan transaction snapshot")
		}
		snap.Transactions = append(snap.Transactions, t)
	}
	txRows.Close()

	if snap.DepositRequests, err = s.snapshotRequests("deposit_requests"); err != nil {
		return nil, err
	}
	if snap.WithdrawRequests, err = s.snapshotRequests("withdrawal_requests"); err != nil {
		return nil, err
	}

	escRows, err := s.db.Query(`SELECT code, user_id, agent_id, amount, crypto_type, status, created_at, expires_at FROM escrows`)
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to snapshot escrows")
	}
	for escRows.Next() {
		var e Escrow
		if err := escRows.Scan(&e.Code, &e.UserID, &e.AgentID, &e.Amount, &e.CryptoType, &e.Status, &e.CreatedAt, &e.ExpiresAt); err != nil {
			escRows.Close()
			return nil, errs.New(errs.Internal, "failed to scan escrow snapshot")
		}
		snap.Escrows = append(snap.Escrows, e)
	}
	escRows.Close()

	aaRows, err := s.db.Query(`
		SELECT agent_id, currency, deposits_today, withdrawals_today, deposit_volume_today,
			withdrawal_volume_today, operations_last_hour, operations_last_24h, user_agent_pairs,
			last_reset, last_updated
		FROM agent_activity
	`)
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to snapshot agent activity")
	}
	for aaRows.Next() {
		var a AgentActivity
		var hourJSON, dayJSON, pairsJSON string
		if err := aaRows.Scan(&a.AgentID, &a.Currency, &a.DepositsToday, &a.WithdrawalsToday,
			&a.DepositVolumeToday, &a.WithdrawalVolumeToday, &hourJSON, &dayJSON, &pairsJSON,
			&a.LastReset, &a.LastUpdated); err != nil {
			aaRows.Close()
			return nil, errs.New(errs.Internal, "failed to scan agent activity snapshot")
		}
		if err := json.Unmarshal([]byte(hourJSON), &a.OperationsLastHour); err != nil {
			aaRows.Close()
			return nil, errs.New(errs.Internal, "failed to decode agent activity snapshot")
		}
		if err := json.Unmarshal([]byte(dayJSON), &a.OperationsLast24h); err != nil {
			aaRows.Close()
			return nil, errs.New(errs.Internal, "failed to decode agent activity snapshot")
		}
		if err := json.Unmarshal([]byte(pairsJSON), &a.UserAgentPairs); err != nil {
			aaRows.Close()
			return nil, errs.New(errs.Internal, "failed to decode agent activity snapshot")
		}
		snap.AgentActivities = append(snap.AgentActivities, a)
	}
	aaRows.Close()

	acRows, err := s.db.Query(`SELECT principal FROM authorized_callers`)
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to snapshot authorized callers")
	}
	for acRows.Next() {
		var p string
		if err := acRows.Scan(&p); err != nil {
			acRows.Close()
			return nil, errs.New(errs.Internal, "failed to scan authorized caller snapshot")
		}
		snap.AuthorizedCallers = append(snap.AuthorizedCallers, p)
	}
	acRows.Close()

	propRows, err := s.db.Query(`SELECT id, title, votes_for, votes_against, status FROM proposals`)
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to snapshot proposals")
	}
	for propRows.Next() {
		var p Proposal
		if err := propRows.Scan(&p.ID, &p.Title, &p.VotesFor, &p.VotesAgainst, &p.Status); err != nil {
			propRows.Close()
			return nil, errs.New(errs.Internal, "failed to scan proposal snapshot")
		}
		snap.Proposals = append(snap.Proposals, p)
	}
	propRows.Close()

	voteRows, err := s.db.Query(`SELECT proposal_id, user_id, support, lock_amount FROM votes`)
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to snapshot votes")
	}
	for voteRows.Next() {
		var v Vote
		var support int
		if err := voteRows.Scan(&v.ProposalID, &v.UserID, &support, &v.LockAmount); err != nil {
			voteRows.Close()
			return nil, errs.New(errs.Internal, "failed to scan vote snapshot")
		}
		v.Support = support != 0
		snap.Votes = append(snap.Votes, v)
	}
	voteRows.Close()

	return snap, nil
}

func (s *Store) snapshotRequests(table string) ([]DepositRequest, error) {
	rows, err := s.db.Query(`
		SELECT code, user_id, agent_id, amount, currency, platform_fee, agent_commission,
			status, created_at, expires_at
		FROM ` + table)
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to snapshot "+table)
	}
	defer rows.Close()

	var out []DepositRequest
	for rows.Next() {
		var r DepositRequest
		if err := rows.Scan(&r.Code, &r.UserID, &r.AgentID, &r.Amount, &r.Currency, &r.PlatformFee,
			&r.AgentCommission, &r.Status, &r.CreatedAt, &r.ExpiresAt); err != nil {
			return nil, errs.New(errs.Internal, "failed to scan "+table+" snapshot")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Restore replaces every table's contents with snap's. Intended for the
// post-upgrade hook, run once against an empty freshly-migrated store.
func (s *Store) Restore(callerToken string, snap *Snapshot) error {
	if _, err := s.verifyCaller(callerToken, TierController); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.New(errs.Internal, "failed to begin restore")
	}
	defer tx.Rollback()

	tables := []string{"users", "pins", "fiat_balances", "crypto_balances", "transactions",
		"deposit_requests", "withdrawal_requests", "escrows", "agent_activity",
		"authorized_callers", "proposals", "votes"}
	for _, t := range tables {
		if _, err := tx.Exec(`DELETE FROM ` + t); err != nil {
			return errs.New(errs.Internal, "failed to clear "+t+" for restore")
		}
	}

	for _, u := range snap.Users {
		if _, err := tx.Exec(`
			INSERT INTO users (id, phone, principal, first_name, last_name, email,
				preferred_currency, user_type, kyc_status, language, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, u.ID, u.Phone, u.Principal, u.FirstName, u.LastName, u.Email, u.PreferredCurrency,
			string(u.UserType), string(u.KycStatus), u.Language, u.CreatedAt); err != nil {
			return errs.New(errs.Internal, "failed to restore user")
		}
	}
	for _, p := range snap.Pins {
		if _, err := tx.Exec(`
			INSERT INTO pins (user_id, pin_hash, failed_attempts, locked_until) VALUES (?, ?, ?, ?)
		`, p.UserID, p.PinHash, p.FailedAttempts, p.LockedUntil); err != nil {
			return errs.New(errs.Internal, "failed to restore pin")
		}
	}
	for _, fb := range snap.FiatBalances {
		if _, err := tx.Exec(`
			INSERT INTO fiat_balances (user_id, currency, balance) VALUES (?, ?, ?)
		`, fb.UserID, fb.Currency, fb.Balance); err != nil {
			return errs.New(errs.Internal, "failed to restore fiat balance")
		}
	}
	for _, cb := range snap.CryptoBalances {
		if _, err := tx.Exec(`
			INSERT INTO crypto_balances (user_id, ckbtc, ckusdc) VALUES (?, ?, ?)
		`, cb.UserID, cb.CkBTC, cb.CkUSDC); err != nil {
			return errs.New(errs.Internal, "failed to restore crypto balance")
		}
	}
	for _, t := range snap.Transactions {
		if _, err := tx.Exec(`
			INSERT INTO transactions (id, from_id, to_id, amount, asset, kind, fee, timestamp, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, t.From, t.To, t.Amount, t.Asset, string(t.Kind), t.Fee, t.Timestamp, string(t.Status)); err != nil {
			return errs.New(errs.Internal, "failed to restore transaction")
		}
	}
	if err := restoreRequests(tx, "deposit_requests", snap.DepositRequests); err != nil {
		return err
	}
	if err := restoreRequests(tx, "withdrawal_requests", snap.WithdrawRequests); err != nil {
		return err
	}
	for _, e := range snap.Escrows {
		if _, err := tx.Exec(`
			INSERT INTO escrows (code, user_id, agent_id, amount, crypto_type, status, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, e.Code, e.UserID, e.AgentID, e.Amount, e.CryptoType, string(e.Status), e.CreatedAt, e.ExpiresAt); err != nil {
			return errs.New(errs.Internal, "failed to restore escrow")
		}
	}
	for _, a := range snap.AgentActivities {
		hourJSON, err := json.Marshal(a.OperationsLastHour)
		if err != nil {
			return errs.New(errs.Internal, "failed to encode agent activity for restore")
		}
		dayJSON, err := json.Marshal(a.OperationsLast24h)
		if err != nil {
			return errs.New(errs.Internal, "failed to encode agent activity for restore")
		}
		pairsJSON, err := json.Marshal(a.UserAgentPairs)
		if err != nil {
			return errs.New(errs.Internal, "failed to encode agent activity for restore")
		}
		if _, err := tx.Exec(`
			INSERT INTO agent_activity (activity_key, agent_id, currency, deposits_today,
				withdrawals_today, deposit_volume_today, withdrawal_volume_today,
				operations_last_hour, operations_last_24h, user_agent_pairs, last_reset, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, activityKey(a.AgentID, a.Currency), a.AgentID, a.Currency, a.DepositsToday, a.WithdrawalsToday,
			a.DepositVolumeToday, a.WithdrawalVolumeToday, string(hourJSON), string(dayJSON),
			string(pairsJSON), a.LastReset, a.LastUpdated); err != nil {
			return errs.New(errs.Internal, "failed to restore agent activity")
		}
	}
	for _, p := range snap.AuthorizedCallers {
		if _, err := tx.Exec(`INSERT INTO authorized_callers (principal) VALUES (?)`, p); err != nil {
			return errs.New(errs.Internal, "failed to restore authorized caller")
		}
	}
	for _, p := range snap.Proposals {
		if _, err := tx.Exec(`
			INSERT INTO proposals (id, title, votes_for, votes_against, status) VALUES (?, ?, ?, ?, ?)
		`, p.ID, p.Title, p.VotesFor, p.VotesAgainst, string(p.Status)); err != nil {
			return errs.New(errs.Internal, "failed to restore proposal")
		}
	}
	for _, v := range snap.Votes {
		if _, err := tx.Exec(`
			INSERT INTO votes (proposal_id, user_id, support, lock_amount) VALUES (?, ?, ?, ?)
		`, v.ProposalID, v.UserID, boolToInt(v.Support), v.LockAmount); err != nil {
			return errs.New(errs.Internal, "failed to restore vote")
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.New(errs.Internal, "failed to commit restore")
	}

	s.authorizedCallers = make(map[string]bool)
	for _, p := range snap.AuthorizedCallers {
		s.authorizedCallers[p] = true
	}
	return nil
}

func restoreRequests(tx *sql.Tx, table string, reqs []DepositRequest) error {
	for _, r := range reqs {
		if _, err := tx.Exec(`
			INSERT INTO `+table+` (code, user_id, agent_id, amount, currency, platform_fee,
				agent_commission, status, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.Code, r.UserID, r.AgentID, r.Amount, r.Currency, r.PlatformFee,
			r.AgentCommission, string(r.Status), r.CreatedAt, r.ExpiresAt); err != nil {
			return errs.New(errs.Internal, "failed to restore "+table+" row")
		}
	}
	return nil
}
