package ledger

import (
	"database/sql"

	"github.com/afritokeni/platform/pkg/errs"
)

// ProposalStatus is a governance proposal's lifecycle state.
type ProposalStatus string

const (
	ProposalOpen     ProposalStatus = "Open"
	ProposalPassed   ProposalStatus = "Passed"
	ProposalRejected ProposalStatus = "Rejected"
)

// Proposal is a DAO governance item (spec §3.2, supplemented per
// SPEC_FULL.md §6.10).
type Proposal struct {
	ID            string
	Title         string
	VotesFor      uint64
	VotesAgainst  uint64
	Status        ProposalStatus
}

// Vote records one user's stake-weighted vote on a proposal.
type Vote struct {
	ProposalID string
	UserID     string
	Support    bool
	LockAmount uint64
}

// CreateProposal inserts a new Open proposal.
func (s *Store) CreateProposal(callerToken string, p Proposal) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO proposals (id, title, votes_for, votes_against, status)
		VALUES (?, ?, 0, 0, ?)
	`, p.ID, p.Title, string(ProposalOpen))
	if err != nil {
		return errs.New(errs.Internal, "failed to create proposal")
	}
	return nil
}

// GetProposal reads a proposal by ID.
func (s *Store) GetProposal(callerToken, id string) (*Proposal, error) {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p Proposal
	err := s.db.QueryRow(`SELECT id, title, votes_for, votes_against, status FROM proposals WHERE id = ?`, id).
		Scan(&p.ID, &p.Title, &p.VotesFor, &p.VotesAgainst, &p.Status)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("proposal not found")
	}
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to query proposal")
	}
	return &p, nil
}

// CastVote records a vote, locks lockAmount of the voter's GOV balance, and
// accumulates the proposal's weighted tallies -- all in one transaction so
// a failed lock never leaves a counted-but-unlocked vote.
func (s *Store) CastVote(callerToken string, v Vote) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.New(errs.Internal, "failed to begin vote")
	}
	defer tx.Rollback()

	var status string
	if err := tx.QueryRow(`SELECT status FROM proposals WHERE id = ?`, v.ProposalID).Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return errs.NotFoundf("proposal not found")
		}
		return errs.New(errs.Internal, "failed to query proposal")
	}
	if status != string(ProposalOpen) {
		return errs.Conflict(status)
	}

	balance, err := s.getFiatBalanceTx(tx, v.UserID, "GOV")
	if err != nil {
		return err
	}
	if balance < v.LockAmount {
		return errs.InsufficientFundsf("insufficient governance token balance")
	}
	next, err := applyDelta(balance, -int64(v.LockAmount))
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO fiat_balances (user_id, currency, balance) VALUES (?, 'GOV', ?)
		ON CONFLICT(user_id, currency) DO UPDATE SET balance = excluded.balance
	`, v.UserID, next); err != nil {
		return errs.New(errs.Internal, "failed to lock governance tokens")
	}

	if _, err := tx.Exec(`
		INSERT INTO votes (proposal_id, user_id, support, lock_amount) VALUES (?, ?, ?, ?)
	`, v.ProposalID, v.UserID, boolToInt(v.Support), v.LockAmount); err != nil {
		return errs.New(errs.Internal, "failed to record vote (already voted?)")
	}

	column := "votes_against"
	if v.Support {
		column = "votes_for"
	}
	if _, err := tx.Exec(`UPDATE proposals SET `+column+` = `+column+` + ? WHERE id = ?`, v.LockAmount, v.ProposalID); err != nil {
		return errs.New(errs.Internal, "failed to tally vote")
	}

	return tx.Commit()
}

// CloseProposal transitions an Open proposal to Passed/Rejected by simple
// majority of locked weight and refunds every locked amount back to its
// voter atomically.
func (s *Store) CloseProposal(callerToken, proposalID string) (ProposalStatus, error) {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return "", errs.New(errs.Internal, "failed to begin close")
	}
	defer tx.Rollback()

	var status string
	var votesFor, votesAgainst uint64
	if err := tx.QueryRow(`SELECT status, votes_for, votes_against FROM proposals WHERE id = ?`, proposalID).
		Scan(&status, &votesFor, &votesAgainst); err != nil {
		if err == sql.ErrNoRows {
			return "", errs.NotFoundf("proposal not found")
		}
		return "", errs.New(errs.Internal, "failed to query proposal")
	}
	if status != string(ProposalOpen) {
		return "", errs.Conflict(status)
	}

	final := ProposalRejected
	if votesFor > votesAgainst {
		final = ProposalPassed
	}

	rows, err := tx.Query(`SELECT user_id, lock_amount FROM votes WHERE proposal_id = ?`, proposalID)
	if err != nil {
		return "", errs.New(errs.Internal, "failed to query votes")
	}
	type refund struct {
		userID string
		amount uint64
	}
	var refunds []refund
	for rows.Next() {
		var r refund
		if err := rows.Scan(&r.userID, &r.amount); err != nil {
			rows.Close()
			return "", errs.New(errs.Internal, "failed to scan vote")
		}
		refunds = append(refunds, r)
	}
	rows.Close()

	for _, r := range refunds {
		balance, err := s.getFiatBalanceTx(tx, r.userID, "GOV")
		if err != nil {
			return "", err
		}
		next, err := applyDelta(balance, int64(r.amount))
		if err != nil {
			return "", err
		}
		if _, err := tx.Exec(`
			INSERT INTO fiat_balances (user_id, currency, balance) VALUES (?, 'GOV', ?)
			ON CONFLICT(user_id, currency) DO UPDATE SET balance = excluded.balance
		`, r.userID, next); err != nil {
			return "", errs.New(errs.Internal, "failed to refund governance tokens")
		}
	}

	if _, err := tx.Exec(`UPDATE proposals SET status = ? WHERE id = ?`, string(final), proposalID); err != nil {
		return "", errs.New(errs.Internal, "failed to close proposal")
	}

	if err := tx.Commit(); err != nil {
		return "", errs.New(errs.Internal, "failed to commit close")
	}
	return final, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
