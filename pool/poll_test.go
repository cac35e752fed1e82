package pool

import (
	"math"
	"testing"

	"github.com/calehh/assetpool/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBypassPollIsApprovedWithoutVotes(t *testing.T) {
	e := newTestEnv(t)
	ev, err := e.pool.AddReward(Direct(addrOf(e.owner)), uint256.NewInt(5), 60)
	require.NoError(t, err)

	pl, err := e.pool.Poll(ev.Poll)
	require.NoError(t, err)
	assert.Equal(t, pl.StartTime, pl.EndTime)
	assert.True(t, pl.BypassVotes)
	assert.Zero(t, pl.TotalVoted)
	assert.True(t, pl.ApprovalState())

	// a bypassed poll is decidable at once and no longer takes votes
	e.callFails(e.manager, ev.Poll, &VoteAction{Agree: false}, types.CodeWrongState)
	fev, err := e.pool.Finalize(Direct(addrOf(e.outsider)), ev.Poll)
	require.NoError(t, err)
	assert.True(t, fev.Approved)
}

func TestVoteRevokeRevote(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.pool.SetRewardPollDuration(Direct(addrOf(e.owner)), 100))
	ev, err := e.pool.AddReward(Direct(addrOf(e.owner)), uint256.NewInt(5), 60)
	require.NoError(t, err)

	e.callFails(e.manager, ev.Poll, &RevokeVoteAction{}, types.CodeHasNotVoted)
	e.mustCall(e.manager, ev.Poll, &VoteAction{Agree: true})
	e.callFails(e.manager, ev.Poll, &VoteAction{Agree: true}, types.CodeHasVoted)
	e.mustCall(e.manager, ev.Poll, &RevokeVoteAction{})
	e.callFails(e.manager, ev.Poll, &RevokeVoteAction{}, types.CodeHasNotVoted)
	e.mustCall(e.manager, ev.Poll, &VoteAction{Agree: false})

	pl, err := e.pool.Poll(ev.Poll)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pl.TotalVoted)
	assert.Zero(t, pl.YesCounter)
	assert.Equal(t, uint64(1), pl.NoCounter)
	require.Contains(t, pl.Votes, addrOf(e.manager))
	assert.False(t, pl.Votes[addrOf(e.manager)].Agree)
	assert.Equal(t, e.clock.now, pl.Votes[addrOf(e.manager)].Time)
	assert.False(t, pl.ApprovalState())
}

func TestTiedPollIsNotApproved(t *testing.T) {
	e := newTestEnv(t)
	owner := Direct(addrOf(e.owner))
	require.NoError(t, e.pool.SetRewardPollDuration(owner, 100))
	ev, err := e.pool.AddReward(owner, uint256.NewInt(5), 60)
	require.NoError(t, err)

	approved, err := e.pool.ApprovalState(ev.Poll)
	require.NoError(t, err)
	assert.False(t, approved)

	e.mustCall(e.manager, ev.Poll, &VoteAction{Agree: true})
	e.mustCall(e.owner, ev.Poll, &VoteAction{Agree: false})
	approved, err = e.pool.ApprovalState(ev.Poll)
	require.NoError(t, err)
	assert.False(t, approved)

	e.clock.now += 100
	e.callFails(e.manager, ev.Poll, &RevokeVoteAction{}, types.CodeWrongState)
	fev, err := e.pool.Finalize(owner, ev.Poll)
	require.NoError(t, err)
	assert.False(t, fev.Approved)
	r, err := e.pool.Reward(ev.Reward)
	require.NoError(t, err)
	assert.Equal(t, RewardDisabled, r.State)
}

func TestFinalizeOnce(t *testing.T) {
	e := newTestEnv(t)
	ev, err := e.pool.AddReward(Direct(addrOf(e.owner)), uint256.NewInt(5), 60)
	require.NoError(t, err)

	e.mustCall(e.outsider, ev.Poll, &FinalizeAction{})
	e.callFails(e.outsider, ev.Poll, &FinalizeAction{}, types.CodeNotFound)
	_, err = e.pool.Finalize(Direct(addrOf(e.owner)), ev.Poll)
	require.ErrorIs(t, err, types.ErrNotFound)
	e.callFails(e.manager, ev.Poll, &VoteAction{Agree: true}, types.CodeNotFound)
	_, err = e.pool.ApprovalState(ev.Poll)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestVoteEligibility(t *testing.T) {
	e := newTestEnv(t)
	owner := Direct(addrOf(e.owner))
	require.NoError(t, e.pool.SetRewardPollDuration(owner, 100))
	require.NoError(t, e.pool.SetRewardRulePollDuration(owner, 100))

	reward, err := e.pool.AddReward(owner, uint256.NewInt(5), 60)
	require.NoError(t, err)
	e.callFails(e.member, reward.Poll, &VoteAction{Agree: true}, types.CodeNoManager)
	e.callFails(e.outsider, reward.Poll, &RevokeVoteAction{}, types.CodeHasNotVoted)
	require.ErrorIs(t, e.pool.Vote(Direct(addrOf(e.manager)), reward.Poll, true), types.ErrNotGasStation)

	rule, err := e.pool.AddRewardRule(owner, uint256.NewInt(10))
	require.NoError(t, err)
	e.callFails(e.manager, rule.Poll, &VoteAction{Agree: true}, types.CodeNoMember)
	e.mustCall(e.member, rule.Poll, &VoteAction{Agree: true})
}

func TestPollTargets(t *testing.T) {
	e := newTestEnv(t)
	e.callFails(e.manager, 0, &VoteAction{Agree: true}, types.CodeNotPoll)
	e.callFails(e.outsider, 0, &FinalizeAction{}, types.CodeNotPoll)
	e.callFails(e.manager, 77, &VoteAction{Agree: true}, types.CodeNotFound)
	e.callFails(e.owner, 3, &AddRewardAction{Amount: uint256.NewInt(1)}, types.CodeNotAllowed)
}

func TestVoteEvents(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.pool.SetRewardPollDuration(Direct(addrOf(e.owner)), 100))
	ev, err := e.pool.AddReward(Direct(addrOf(e.owner)), uint256.NewInt(5), 60)
	require.NoError(t, err)

	events := e.mustCall(e.manager, ev.Poll, &VoteAction{Agree: true})
	require.Len(t, events, 2)
	assert.Equal(t, types.EventVoteType, events[0].Type)
	assert.Equal(t, types.EventRelayType, events[1].Type)
	vote := types.DecodeEventVote(events[0])
	assert.Equal(t, ev.Poll, vote.Poll)
	assert.Equal(t, addrOf(e.manager).Hex(), vote.Voter)
	assert.True(t, vote.Agree)

	events = e.mustCall(e.manager, ev.Poll, &RevokeVoteAction{})
	assert.Equal(t, types.EventRevokeVoteType, events[0].Type)
}

func TestRevokeAfterRoleRemoved(t *testing.T) {
	e := newTestEnv(t)
	owner := Direct(addrOf(e.owner))
	require.NoError(t, e.pool.SetRewardPollDuration(owner, 100))
	ev, err := e.pool.AddReward(owner, uint256.NewInt(5), 60)
	require.NoError(t, err)

	e.mustCall(e.manager, ev.Poll, &VoteAction{Agree: true})
	require.NoError(t, e.pool.RemoveManager(owner, addrOf(e.manager)))
	e.callFails(e.manager, ev.Poll, &VoteAction{Agree: true}, types.CodeNoManager)

	e.mustCall(e.manager, ev.Poll, &RevokeVoteAction{})
	pl, err := e.pool.Poll(ev.Poll)
	require.NoError(t, err)
	assert.Zero(t, pl.TotalVoted)
	assert.Zero(t, pl.YesCounter)
	assert.NotContains(t, pl.Votes, addrOf(e.manager))
	assert.False(t, pl.ApprovalState())

	e.callFails(e.manager, ev.Poll, &RevokeVoteAction{}, types.CodeHasNotVoted)
	e.callFails(e.outsider, ev.Poll, &RevokeVoteAction{}, types.CodeHasNotVoted)
}

func TestLongDurationKeepsPollOpen(t *testing.T) {
	e := newTestEnv(t)
	r := e.enabledReward(5, math.MaxUint64)

	events := e.mustCall(e.member, 0, &ClaimRewardAction{Reward: r.ID})
	wev := types.DecodeEventWithdrawPoll(*findEvent(events, types.EventWithdrawPollType))
	pl, err := e.pool.Poll(wev.Poll)
	require.NoError(t, err)
	assert.Equal(t, e.clock.now, pl.StartTime)
	assert.Equal(t, uint64(math.MaxUint64), pl.EndTime)
	assert.False(t, pl.BypassVotes)
	assert.True(t, pl.Open(e.clock.now))

	e.mustCall(e.manager, wev.Poll, &VoteAction{Agree: true})
	_, err = e.pool.Finalize(Direct(addrOf(e.outsider)), wev.Poll)
	require.ErrorIs(t, err, types.ErrWrongState)

	owner := Direct(addrOf(e.owner))
	require.NoError(t, e.pool.SetRewardPollDuration(owner, math.MaxUint64-10))
	ev, err := e.pool.AddReward(owner, uint256.NewInt(9), 60)
	require.NoError(t, err)
	pl, err = e.pool.Poll(ev.Poll)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), pl.EndTime)
	e.mustCall(e.manager, ev.Poll, &VoteAction{Agree: true})
}
