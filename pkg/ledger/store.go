// Package ledger is C1, the sole owner of persistent platform state: users,
// PINs, fiat balances, crypto balances, the transaction log, deposit and
// withdrawal requests, escrows, agent-activity metrics, the authorized-
// caller list, and governance proposals/votes. It is a leaf: it never calls
// outward to another service. Adapted from pkg/state/state.go's
// StateManager (its modernc.org/sqlite driver, WAL setup, single-writer
// mutex, and atomic-batch transaction shape are all kept).
package ledger

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/afritokeni/platform/internal/logger"
	_ "modernc.org/sqlite"
)

// UserType distinguishes a regular user from a cash agent.
type UserType string

const (
	UserTypeUser  UserType = "User"
	UserTypeAgent UserType = "Agent"
)

// KycStatus is the KYC state machine's current state.
type KycStatus string

const (
	KycNotStarted KycStatus = "NotStarted"
	KycPending    KycStatus = "Pending"
	KycApproved   KycStatus = "Approved"
	KycRejected   KycStatus = "Rejected"
)

// User is the platform identity record (spec §3.2).
type User struct {
	ID                string
	Phone             string
	Principal         string
	FirstName         string
	LastName          string
	Email             string
	PreferredCurrency string
	UserType          UserType
	KycStatus         KycStatus
	Language          string
	CreatedAt         int64
}

// PinRecord is stored separately from User; PinHash is a bcrypt digest
// (salt is embedded in the bcrypt hash itself, not a separate field — see
// DESIGN.md).
type PinRecord struct {
	UserID         string
	PinHash        string
	FailedAttempts int
	LockedUntil    *int64
}

// TxKind enumerates the transaction log's kind field.
type TxKind string

const (
	TxSend         TxKind = "Send"
	TxDeposit      TxKind = "Deposit"
	TxWithdraw     TxKind = "Withdraw"
	TxBuy          TxKind = "Buy"
	TxSell         TxKind = "Sell"
	TxSwap         TxKind = "Swap"
	TxEscrowLock   TxKind = "EscrowLock"
	TxEscrowClaim  TxKind = "EscrowClaim"
	TxEscrowRefund TxKind = "EscrowRefund"
	TxVote         TxKind = "Vote"
)

// TxStatus enumerates the transaction log's status field.
type TxStatus string

const (
	TxPending   TxStatus = "Pending"
	TxConfirmed TxStatus = "Confirmed"
	TxFailed    TxStatus = "Failed"
	TxCancelled TxStatus = "Cancelled"
)

// Transaction is one append-only log entry (spec §3.2).
type Transaction struct {
	ID        string
	From      string
	To        string
	Amount    uint64
	Asset     string
	Kind      TxKind
	Fee       uint64
	Timestamp int64
	Status    TxStatus
}

// RequestStatus enumerates deposit/withdrawal/escrow lifecycle states.
type RequestStatus string

const (
	StatusPending   RequestStatus = "Pending"
	StatusConfirmed RequestStatus = "Confirmed"
	StatusCancelled RequestStatus = "Cancelled"
	StatusExpired   RequestStatus = "Expired"
	StatusActive    RequestStatus = "Active"
	StatusClaimed   RequestStatus = "Claimed"
)

// Store is C1: the single authoritative leaf store.
type Store struct {
	db        *sql.DB
	log       *logger.Logger
	mu        sync.RWMutex
	jwtSecret string

	authorizedCallers map[string]bool // principal -> true, mirrors the authorized_callers table
}

// Open creates (or opens) the SQLite-backed store at dbPath and ensures the
// schema exists.
func Open(dbPath, jwtSecret string, log *logger.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.WithError(err).Warn("failed to enable WAL mode (continuing with default journaling)")
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		log.WithError(err).Warn("failed to enable foreign keys (continuing without)")
	}

	s := &Store{
		db:                db,
		log:               log,
		jwtSecret:         jwtSecret,
		authorizedCallers: make(map[string]bool),
	}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	if err := s.loadAuthorizedCallers(); err != nil {
		return nil, fmt.Errorf("failed to load authorized callers: %w", err)
	}

	log.WithField("db_path", dbPath).Info("ledger store initialized")
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			phone TEXT UNIQUE,
			principal TEXT UNIQUE,
			first_name TEXT,
			last_name TEXT,
			email TEXT,
			preferred_currency TEXT,
			user_type TEXT,
			kyc_status TEXT,
			language TEXT,
			created_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS pins (
			user_id TEXT PRIMARY KEY,
			pin_hash TEXT,
			failed_attempts INTEGER,
			locked_until INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS fiat_balances (
			user_id TEXT,
			currency TEXT,
			balance INTEGER,
			PRIMARY KEY (user_id, currency)
		)`,
		`CREATE TABLE IF NOT EXISTS crypto_balances (
			user_id TEXT PRIMARY KEY,
			ckbtc INTEGER,
			ckusdc INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			from_id TEXT,
			to_id TEXT,
			amount INTEGER,
			asset TEXT,
			kind TEXT,
			fee INTEGER,
			timestamp INTEGER,
			status TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS deposit_requests (
			code TEXT PRIMARY KEY,
			user_id TEXT,
			agent_id TEXT,
			amount INTEGER,
			currency TEXT,
			platform_fee INTEGER,
			agent_commission INTEGER,
			status TEXT,
			created_at INTEGER,
			expires_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS withdrawal_requests (
			code TEXT PRIMARY KEY,
			user_id TEXT,
			agent_id TEXT,
			amount INTEGER,
			currency TEXT,
			platform_fee INTEGER,
			agent_commission INTEGER,
			status TEXT,
			created_at INTEGER,
			expires_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS escrows (
			code TEXT PRIMARY KEY,
			user_id TEXT,
			agent_id TEXT,
			amount INTEGER,
			crypto_type TEXT,
			status TEXT,
			created_at INTEGER,
			expires_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS agent_activity (
			activity_key TEXT PRIMARY KEY,
			agent_id TEXT,
			currency TEXT,
			deposits_today INTEGER,
			withdrawals_today INTEGER,
			deposit_volume_today INTEGER,
			withdrawal_volume_today INTEGER,
			operations_last_hour TEXT,
			operations_last_24h TEXT,
			user_agent_pairs TEXT,
			last_reset INTEGER,
			last_updated INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS authorized_callers (
			principal TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS proposals (
			id TEXT PRIMARY KEY,
			title TEXT,
			votes_for INTEGER,
			votes_against INTEGER,
			status TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS votes (
			proposal_id TEXT,
			user_id TEXT,
			support INTEGER,
			lock_amount INTEGER,
			PRIMARY KEY (proposal_id, user_id)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadAuthorizedCallers() error {
	rows, err := s.db.Query(`SELECT principal FROM authorized_callers`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return err
		}
		s.authorizedCallers[p] = true
	}
	return rows.Err()
}
