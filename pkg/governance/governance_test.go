package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afritokeni/platform/internal/logger"
	"github.com/afritokeni/platform/pkg/config"
	"github.com/afritokeni/platform/pkg/errs"
	"github.com/afritokeni/platform/pkg/ledger"
)

func newTestService(t *testing.T) (*Service, *ledger.Store, string) {
	t.Helper()
	log := logger.NewLogger("error")
	store, err := ledger.Open(":memory:", "test-secret", log)
	require.NoError(t, err)

	controllerToken, err := ledger.IssueServiceToken("test-secret", "controller", "controller")
	require.NoError(t, err)
	require.NoError(t, store.AddAuthorizedCaller(controllerToken, "governance-service"))
	serviceToken, err := ledger.IssueServiceToken("test-secret", "governance-service", "service")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	svc := NewService(store, cfg)
	return svc, store, serviceToken
}

func fundGov(t *testing.T, store *ledger.Store, token, userID string, amount int64) {
	t.Helper()
	require.NoError(t, store.Apply(token, ledger.Batch{
		FiatDeltas: []ledger.FiatDelta{{UserID: userID, Currency: "GOV", Delta: amount}},
	}))
}

func TestProposalPassesOnMajority(t *testing.T) {
	svc, store, token := newTestService(t)
	fundGov(t, store, token, "user-1", 100)
	fundGov(t, store, token, "user-2", 50)

	id, err := svc.CreateProposal(token, CreateProposalInput{Title: "raise withdrawal limit"})
	require.NoError(t, err)

	require.NoError(t, svc.CastVote(token, CastVoteInput{ProposalID: id, UserID: "user-1", Support: true, LockAmount: 100}))
	require.NoError(t, svc.CastVote(token, CastVoteInput{ProposalID: id, UserID: "user-2", Support: false, LockAmount: 50}))

	status, err := svc.CloseProposal(token, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.ProposalPassed, status)

	bal, err := store.GetFiatBalance(token, "user-1", "GOV")
	require.NoError(t, err)
	assert.EqualValues(t, 100, bal) // refunded after close
}

func TestProposalRejectsOnMajorityAgainst(t *testing.T) {
	svc, store, token := newTestService(t)
	fundGov(t, store, token, "user-1", 30)
	fundGov(t, store, token, "user-2", 70)

	id, err := svc.CreateProposal(token, CreateProposalInput{Title: "lower agent commission"})
	require.NoError(t, err)

	require.NoError(t, svc.CastVote(token, CastVoteInput{ProposalID: id, UserID: "user-1", Support: true, LockAmount: 30}))
	require.NoError(t, svc.CastVote(token, CastVoteInput{ProposalID: id, UserID: "user-2", Support: false, LockAmount: 70}))

	status, err := svc.CloseProposal(token, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.ProposalRejected, status)
}

func TestCastVoteRejectsInsufficientGovBalance(t *testing.T) {
	svc, _, token := newTestService(t)

	id, err := svc.CreateProposal(token, CreateProposalInput{Title: "test"})
	require.NoError(t, err)

	err = svc.CastVote(token, CastVoteInput{ProposalID: id, UserID: "user-1", Support: true, LockAmount: 10})
	assert.Error(t, err)
	assert.Equal(t, errs.InsufficientFunds, errs.KindOf(err))
}

func TestCastVoteRejectsOnClosedProposal(t *testing.T) {
	svc, store, token := newTestService(t)
	fundGov(t, store, token, "user-1", 10)
	fundGov(t, store, token, "user-2", 10)

	id, err := svc.CreateProposal(token, CreateProposalInput{Title: "test"})
	require.NoError(t, err)
	require.NoError(t, svc.CastVote(token, CastVoteInput{ProposalID: id, UserID: "user-1", Support: true, LockAmount: 10}))
	_, err = svc.CloseProposal(token, id)
	require.NoError(t, err)

	err = svc.CastVote(token, CastVoteInput{ProposalID: id, UserID: "user-2", Support: true, LockAmount: 10})
	assert.Error(t, err)
}

func TestGovernanceDisabledRejectsAllOperations(t *testing.T) {
	svc, _, token := newTestService(t)
	svc.cfg.Features.EnableGovernance = false

	_, err := svc.CreateProposal(token, CreateProposalInput{Title: "test"})
	assert.Error(t, err)
}
