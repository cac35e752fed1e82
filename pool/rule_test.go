package pool

import (
	"testing"

	"github.com/calehh/assetpool/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewardRuleLifecycle(t *testing.T) {
	e := newTestEnv(t)
	owner := Direct(addrOf(e.owner))

	_, err := e.pool.AddRewardRule(owner, new(uint256.Int))
	require.ErrorIs(t, err, types.ErrNotValid)
	_, err = e.pool.AddRewardRule(Direct(addrOf(e.manager)), uint256.NewInt(10))
	require.ErrorIs(t, err, types.ErrNotOwner)

	ev, err := e.pool.AddRewardRule(owner, uint256.NewInt(10))
	require.NoError(t, err)
	r, err := e.pool.RewardRule(ev.Rule)
	require.NoError(t, err)
	assert.Equal(t, RewardDisabled, r.State)
	assert.Equal(t, ev.Poll, r.Poll)

	_, err = e.pool.Finalize(owner, ev.Poll)
	require.NoError(t, err)
	r, err = e.pool.RewardRule(ev.Rule)
	require.NoError(t, err)
	assert.Equal(t, RewardEnabled, r.State)
	assert.Equal(t, uint64(10), r.Amount.Uint64())

	_, err = e.pool.UpdateRewardRule(Direct(addrOf(e.manager)), ev.Rule, uint256.NewInt(3))
	require.ErrorIs(t, err, types.ErrNotGasStation)
	e.callFails(e.member, 0, &UpdateRewardRuleAction{Rule: ev.Rule, Amount: uint256.NewInt(3)}, types.CodeNotManager)
	e.callFails(e.manager, 0, &UpdateRewardRuleAction{Rule: 5, Amount: uint256.NewInt(3)}, types.CodeNotFound)
	e.callFails(e.manager, 0, &UpdateRewardRuleAction{Rule: ev.Rule, Amount: uint256.NewInt(10)}, types.CodeIsEqual)

	// a zero amount disables the rule
	events := e.mustCall(e.manager, 0, &UpdateRewardRuleAction{Rule: ev.Rule})
	upd := types.DecodeEventRulePoll(*findEvent(events, types.EventRulePollType))
	e.callFails(e.manager, 0, &UpdateRewardRuleAction{Rule: ev.Rule, Amount: uint256.NewInt(4)}, types.CodeNotFinalized)
	_, err = e.pool.Finalize(owner, upd.Poll)
	require.NoError(t, err)
	r, err = e.pool.RewardRule(ev.Rule)
	require.NoError(t, err)
	assert.Equal(t, RewardDisabled, r.State)
	e.callFails(e.manager, 0, &UpdateRewardRuleAction{Rule: ev.Rule}, types.CodeAlreadyDisable)
}

func TestRewardRuleVotedByMembers(t *testing.T) {
	e := newTestEnv(t)
	owner := Direct(addrOf(e.owner))
	ev, err := e.pool.AddRewardRule(owner, uint256.NewInt(10))
	require.NoError(t, err)
	_, err = e.pool.Finalize(owner, ev.Poll)
	require.NoError(t, err)

	require.NoError(t, e.pool.SetRewardRulePollDuration(owner, 50))
	events := e.mustCall(e.manager, 0, &UpdateRewardRuleAction{Rule: ev.Rule, Amount: uint256.NewInt(20)})
	upd := types.DecodeEventRulePoll(*findEvent(events, types.EventRulePollType))

	e.mustCall(e.member, upd.Poll, &VoteAction{Agree: true})
	e.callFails(e.manager, upd.Poll, &VoteAction{Agree: false}, types.CodeNoMember)
	e.clock.now += 50
	fev, err := e.pool.Finalize(owner, upd.Poll)
	require.NoError(t, err)
	assert.True(t, fev.Approved)
	assert.Equal(t, types.PollKindNameRewardRule, fev.Kind)

	r, err := e.pool.RewardRule(ev.Rule)
	require.NoError(t, err)
	assert.Equal(t, RewardEnabled, r.State)
	assert.Equal(t, uint64(20), r.Amount.Uint64())
	assert.Len(t, e.pool.RewardRules(), 1)
}
