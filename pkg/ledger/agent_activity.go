package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/afritokeni/platform/pkg/errs"
)

// AgentActivity is keyed by (agent_id, currency); it is used purely as
// fraud-evaluator input (spec §3.2, grounded on
// original_source/canisters/data_canister/src/operations/agent_activity_ops.rs).
type AgentActivity struct {
	AgentID               string
	Currency              string
	DepositsToday         uint64
	WithdrawalsToday      uint64
	DepositVolumeToday    uint64
	WithdrawalVolumeToday uint64
	OperationsLastHour    []int64
	OperationsLast24h     []int64
	UserAgentPairs        map[string]uint64
	LastReset             int64
	LastUpdated           int64
}

func activityKey(agentID, currency string) string {
	return agentID + "_" + currency
}

// isUpperAlpha3 mirrors the Rust validator: exactly 3 uppercase ASCII letters.
func isUpperAlpha3(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// StoreAgentActivity inserts or replaces an agent's activity row. Validation
// mirrors agent_activity_ops.rs::store_agent_activity exactly: agent_id and
// currency must be non-empty, and currency must be 3 uppercase letters.
func (s *Store) StoreAgentActivity(callerToken string, a AgentActivity) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}
	if a.AgentID == "" {
		return errs.Invalid("agent id cannot be empty")
	}
	if a.Currency == "" {
		return errs.Invalid("currency cannot be empty")
	}
	if !isUpperAlpha3(a.Currency) {
		return errs.Invalid(fmt.Sprintf("invalid currency format: %s, expected 3 uppercase letters", a.Currency))
	}

	hourJSON, err := json.Marshal(a.OperationsLastHour)
	if err != nil {
		return errs.New(errs.Internal, "failed to encode activity")
	}
	dayJSON, err := json.Marshal(a.OperationsLast24h)
	if err != nil {
		return errs.New(errs.Internal, "failed to encode activity")
	}
	pairsJSON, err := json.Marshal(a.UserAgentPairs)
	if err != nil {
		return errs.New(errs.Internal, "failed to encode activity")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO agent_activity (activity_key, agent_id, currency, deposits_today,
			withdrawals_today, deposit_volume_today, withdrawal_volume_today,
			operations_last_hour, operations_last_24h, user_agent_pairs, last_reset, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(activity_key) DO UPDATE SET
			deposits_today = excluded.deposits_today,
			withdrawals_today = excluded.withdrawals_today,
			deposit_volume_today = excluded.deposit_volume_today,
			withdrawal_volume_today = excluded.withdrawal_volume_today,
			operations_last_hour = excluded.operations_last_hour,
			operations_last_24h = excluded.operations_last_24h,
			user_agent_pairs = excluded.user_agent_pairs,
			last_reset = excluded.last_reset,
			last_updated = excluded.last_updated
	`, activityKey(a.AgentID, a.Currency), a.AgentID, a.Currency, a.DepositsToday,
		a.WithdrawalsToday, a.DepositVolumeToday, a.WithdrawalVolumeToday,
		string(hourJSON), string(dayJSON), string(pairsJSON), a.LastReset, a.LastUpdated)
	if err != nil {
		return errs.New(errs.Internal, "failed to store agent activity")
	}
	return nil
}

// GetAgentActivity reads an agent's activity row for currency, returning
// (nil, NotFound) when absent.
func (s *Store) GetAgentActivity(callerToken, agentID, currency string) (*AgentActivity, error) {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a AgentActivity
	var hourJSON, dayJSON, pairsJSON string
	err := s.db.QueryRow(`
		SELECT agent_id, currency, deposits_today, withdrawals_today, deposit_volume_today,
			withdrawal_volume_today, operations_last_hour, operations_last_24h,
			user_agent_pairs, last_reset, last_updated
		FROM agent_activity WHERE activity_key = ?
	`, activityKey(agentID, currency)).Scan(&a.AgentID, &a.Currency, &a.DepositsToday,
		&a.WithdrawalsToday, &a.DepositVolumeToday, &a.WithdrawalVolumeToday,
		&hourJSON, &dayJSON, &pairsJSON, &a.LastReset, &a.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("agent activity not found")
	}
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to query agent activity")
	}

	if err := json.Unmarshal([]byte(hourJSON), &a.OperationsLastHour); err != nil {
		return nil, errs.New(errs.Internal, "failed to decode activity")
	}
	if err := json.Unmarshal([]byte(dayJSON), &a.OperationsLast24h); err != nil {
		return nil, errs.New(errs.Internal, "failed to decode activity")
	}
	if err := json.Unmarshal([]byte(pairsJSON), &a.UserAgentPairs); err != nil {
		return nil, errs.New(errs.Internal, "failed to decode activity")
	}
	return &a, nil
}
