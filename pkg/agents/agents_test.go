package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afritokeni/platform/internal/logger"
	"github.com/afritokeni/platform/pkg/config"
	"github.com/afritokeni/platform/pkg/errs"
	"github.com/afritokeni/platform/pkg/ledger"
	"github.com/afritokeni/platform/pkg/users"
)

func newTestService(t *testing.T) (*Service, *ledger.Store, string, *ledger.User, *ledger.User) {
	t.Helper()
	log := logger.NewLogger("error")
	store, err := ledger.Open(":memory:", "test-secret", log)
	require.NoError(t, err)

	controllerToken, err := ledger.IssueServiceToken("test-secret", "controller", "controller")
	require.NoError(t, err)
	require.NoError(t, store.AddAuthorizedCaller(controllerToken, "agent-service"))
	serviceToken, err := ledger.IssueServiceToken("test-secret", "agent-service", "service")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	usersSvc := users.NewService(store, cfg)

	user, err := usersSvc.Register(serviceToken, users.RegisterInput{
		Phone: "+256712345678", FirstName: "Amina", LastName: "Okello", Pin: "1234", Now: 1000,
	})
	require.NoError(t, err)

	agent, err := usersSvc.Register(serviceToken, users.RegisterInput{
		Phone: "+256799999999", FirstName: "Agent", LastName: "Kato", Pin: "5678",
		UserType: ledger.UserTypeAgent, Now: 1000,
	})
	require.NoError(t, err)

	svc := NewService(store, cfg, usersSvc)
	return svc, store, serviceToken, user, agent
}

func TestDepositLifecycleSettlesCommission(t *testing.T) {
	svc, store, token, user, agent := newTestService(t)

	code, err := svc.CreateDeposit(token, CreateDepositInput{
		UserID: user.ID, AgentID: agent.ID, Amount: 50_000, Currency: "UGX", Pin: "1234", Now: 2000,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, code)

	err = svc.ConfirmDeposit(token, ConfirmDepositInput{Code: code, AgentID: agent.ID, Pin: "5678", Now: 2100})
	require.NoError(t, err)

	bal, err := store.GetFiatBalance(token, user.ID, "UGX")
	require.NoError(t, err)
	assert.EqualValues(t, 50_000, bal)

	agentBal, err := store.GetFiatBalance(token, agent.ID, "UGX")
	require.NoError(t, err)
	assert.Greater(t, agentBal, uint64(0))

	activity, err := store.GetAgentActivity(token, agent.ID, "UGX")
	require.NoError(t, err)
	assert.EqualValues(t, 1, activity.DepositsToday)
	assert.EqualValues(t, 1, activity.UserAgentPairs[user.ID])
}

func TestConfirmDepositRejectsWrongAgent(t *testing.T) {
	svc, _, token, user, agent := newTestService(t)

	code, err := svc.CreateDeposit(token, CreateDepositInput{
		UserID: user.ID, AgentID: agent.ID, Amount: 50_000, Currency: "UGX", Pin: "1234", Now: 2000,
	})
	require.NoError(t, err)

	err = svc.ConfirmDeposit(token, ConfirmDepositInput{Code: code, AgentID: user.ID, Pin: "1234", Now: 2100})
	assert.Error(t, err)
}

func TestCreateDepositRejectsAmountOutOfRange(t *testing.T) {
	svc, _, token, user, agent := newTestService(t)

	_, err := svc.CreateDeposit(token, CreateDepositInput{
		UserID: user.ID, AgentID: agent.ID, Amount: 1, Currency: "UGX", Pin: "1234", Now: 2000,
	})
	assert.Error(t, err)
	assert.Equal(t, errs.AmountOutOfRange, errs.KindOf(err))
}

func TestCreateDepositRejectsNonAgentTarget(t *testing.T) {
	svc, _, token, user, _ := newTestService(t)

	_, err := svc.CreateDeposit(token, CreateDepositInput{
		UserID: user.ID, AgentID: user.ID, Amount: 50_000, Currency: "UGX", Pin: "1234", Now: 2000,
	})
	assert.Error(t, err)
}

func TestWithdrawalDebitsImmediatelyAndReleasesOnConfirm(t *testing.T) {
	svc, store, token, user, agent := newTestService(t)

	batch := ledger.Batch{FiatDeltas: []ledger.FiatDelta{{UserID: user.ID, Currency: "UGX", Delta: 100_000}}}
	require.NoError(t, store.Apply(token, batch))

	code, err := svc.CreateWithdrawal(token, CreateWithdrawalInput{
		UserID: user.ID, AgentID: agent.ID, Amount: 50_000, Currency: "UGX", Pin: "1234", Now: 2000,
	})
	require.NoError(t, err)

	bal, err := store.GetFiatBalance(token, user.ID, "UGX")
	require.NoError(t, err)
	assert.EqualValues(t, 50_000, bal) // debited immediately

	err = svc.ConfirmWithdrawal(token, ConfirmWithdrawalInput{Code: code, AgentID: agent.ID, Pin: "5678", Now: 2100})
	require.NoError(t, err)

	agentBal, err := store.GetFiatBalance(token, agent.ID, "UGX")
	require.NoError(t, err)
	assert.Greater(t, agentBal, uint64(0))
}

func TestCreateWithdrawalRejectsInsufficientBalance(t *testing.T) {
	svc, _, token, user, agent := newTestService(t)

	_, err := svc.CreateWithdrawal(token, CreateWithdrawalInput{
		UserID: user.ID, AgentID: agent.ID, Amount: 50_000, Currency: "UGX", Pin: "1234", Now: 2000,
	})
	assert.Error(t, err)
	assert.Equal(t, errs.InsufficientFunds, errs.KindOf(err))
}

func TestGenerateRequestCodeIsUnique(t *testing.T) {
	a := GenerateRequestCode("DEP", 1000)
	b := GenerateRequestCode("DEP", 1000)
	assert.NotEqual(t, a, b) // same timestamp, different uuid suffix
}
