// Package governance is C10: DAO proposal creation and stake-weighted
// voting. Supplemented per SPEC_FULL.md §6.10 from spec.md §3.2's
// Proposal/Vote entities and §6's USSD DAO menu item, which spec.md's
// core section never fully specifies on its own.
package governance

import (
	"github.com/google/uuid"

	"github.com/afritokeni/platform/pkg/config"
	"github.com/afritokeni/platform/pkg/errs"
	"github.com/afritokeni/platform/pkg/ledger"
)

// Service wires C10's proposal lifecycle to C1's Store.
type Service struct {
	store *ledger.Store
	cfg   *config.Config
}

// NewService constructs a governance service bound to its collaborators.
func NewService(store *ledger.Store, cfg *config.Config) *Service {
	return &Service{store: store, cfg: cfg}
}

// CreateProposalInput carries an authorized caller's request to open a
// new proposal.
type CreateProposalInput struct {
	Title string
}

// CreateProposal opens a new proposal and returns its ID. Governance is
// feature-gated: disabled deployments reject every operation up front
// rather than letting the store's authorized-caller check be the only
// gate, matching the gating already applied to swap in pkg/cryptoasset.
func (s *Service) CreateProposal(callerToken string, in CreateProposalInput) (string, error) {
	if !s.cfg.Features.EnableGovernance {
		return "", errs.Invalid("governance is disabled")
	}
	if in.Title == "" {
		return "", errs.Invalid("title must not be empty")
	}

	id := uuid.New().String()
	if err := s.store.CreateProposal(callerToken, ledger.Proposal{ID: id, Title: in.Title}); err != nil {
		return "", err
	}
	return id, nil
}

// CastVoteInput carries a user's stake-weighted vote on an Open proposal.
type CastVoteInput struct {
	ProposalID string
	UserID     string
	Support    bool
	LockAmount uint64
}

// CastVote locks lock_amount of the voter's GOV balance and accumulates
// the proposal's votes_for/votes_against by that weight rather than by
// a flat one-vote count, per spec.md §3.2's stake-weighted model.
func (s *Service) CastVote(callerToken string, in CastVoteInput) error {
	if !s.cfg.Features.EnableGovernance {
		return errs.Invalid("governance is disabled")
	}
	if in.LockAmount == 0 {
		return errs.Invalid("lock amount must be greater than 0")
	}
	return s.store.CastVote(callerToken, ledger.Vote{
		ProposalID: in.ProposalID,
		UserID:     in.UserID,
		Support:    in.Support,
		LockAmount: in.LockAmount,
	})
}

// CloseProposal transitions an Open proposal to Passed or Rejected by
// simple majority of locked weight, refunding every locked amount back
// to its voter atomically, and returns the final status.
func (s *Service) CloseProposal(callerToken, proposalID string) (ledger.ProposalStatus, error) {
	if !s.cfg.Features.EnableGovernance {
		return "", errs.Invalid("governance is disabled")
	}
	return s.store.CloseProposal(callerToken, proposalID)
}

// GetProposal reads a proposal's current tallies and status.
func (s *Service) GetProposal(callerToken, proposalID string) (*ledger.Proposal, error) {
	return s.store.GetProposal(callerToken, proposalID)
}
