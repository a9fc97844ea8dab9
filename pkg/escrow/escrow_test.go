package escrow

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
	require.NoError(t, store.AddAuthorizedCaller(controllerToken, "escrow-service"))
	serviceToken, err := ledger.IssueServiceToken("test-secret", "escrow-service", "service")
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

	require.NoError(t, store.Apply(serviceToken, ledger.Batch{
		CryptoDeltas: []ledger.CryptoDelta{{UserID: user.ID, BTCDelta: 1000}},
	}))

	svc := NewService(store, cfg, usersSvc)
	return svc, store, serviceToken, user, agent
}

func TestCreateClaimLifecycle(t *testing.T) {
	svc, store, token, user, agent := newTestService(t)

	code, err := svc.Create(token, CreateInput{
		UserID: user.ID, AgentID: agent.ID, Amount: 400, CryptoType: "ckBTC", Pin: "1234", Now: 2000, NowNanos: 2000000000,
	})
	require.NoError(t, err)
	assert.Contains(t, code, "ESC-")

	cb, err := store.GetCryptoBalance(token, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 600, cb.CkBTC)

	err = svc.Claim(token, ClaimInput{Code: code, AgentID: agent.ID, Pin: "5678", Now: 2100})
	require.NoError(t, err)

	agentCB, err := store.GetCryptoBalance(token, agent.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 400, agentCB.CkBTC)
}

func TestClaimRejectsWrongAgent(t *testing.T) {
	svc, _, token, user, agent := newTestService(t)

	code, err := svc.Create(token, CreateInput{
		UserID: user.ID, AgentID: agent.ID, Amount: 100, CryptoType: "ckBTC", Pin: "1234", Now: 2000, NowNanos: 2000000000,
	})
	require.NoError(t, err)

	err = svc.Claim(token, ClaimInput{Code: code, AgentID: user.ID, Pin: "1234", Now: 2100})
	assert.Error(t, err)
}

func TestCancelRefundsUser(t *testing.T) {
	svc, store, token, user, agent := newTestService(t)

	code, err := svc.Create(token, CreateInput{
		UserID: user.ID, AgentID: agent.ID, Amount: 400, CryptoType: "ckBTC", Pin: "1234", Now: 2000, NowNanos: 2000000000,
	})
	require.NoError(t, err)

	err = svc.Cancel(token, CancelInput{Code: code, UserID: user.ID, Pin: "1234", Now: 2100})
	require.NoError(t, err)

	cb, err := store.GetCryptoBalance(token, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, cb.CkBTC) // fully refunded
}

func TestCreateRejectsInsufficientBalance(t *testing.T) {
	svc, _, token, user, agent := newTestService(t)

	_, err := svc.Create(token, CreateInput{
		UserID: user.ID, AgentID: agent.ID, Amount: 5000, CryptoType: "ckBTC", Pin: "1234", Now: 2000, NowNanos: 2000000000,
	})
	assert.Error(t, err)
	assert.Equal(t, errs.InsufficientFunds, errs.KindOf(err))
}

func TestClaimRejectsAfterExpiry(t *testing.T) {
	svc, _, token, user, agent := newTestService(t)

	code, err := svc.Create(token, CreateInput{
		UserID: user.ID, AgentID: agent.ID, Amount: 100, CryptoType: "ckBTC", Pin: "1234", Now: 2000, NowNanos: 2000000000,
	})
	require.NoError(t, err)

	farFuture := int64(2000) + int64(config.DefaultConfig().Escrow.DefaultTTL.Seconds()) + 10
	err = svc.Claim(token, ClaimInput{Code: code, AgentID: agent.ID, Pin: "5678", Now: farFuture})
	assert.Error(t, err)
	assert.Equal(t, errs.StateConflict, errs.KindOf(err))
}

func TestGenerateEscrowCodeTruncatesUserID(t *testing.T) {
	code := GenerateEscrowCode("a-very-long-user-id-string", 12345)
	assert.Equal(t, "ESC-a-very-l-12345", code)
}
