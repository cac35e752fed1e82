package pool

import (
	"encoding/json"
	"testing"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// populate leaves polls 2 (reward), 3 (rule) and 4 (withdraw, one vote) live.
func populate(t *testing.T, e *testEnv) {
	owner := Direct(addrOf(e.owner))
	e.enabledReward(5, 180)
	require.NoError(t, e.pool.SetRewardPollDuration(owner, 100))
	require.NoError(t, e.pool.SetProposeWithdrawPollDuration(owner, 100))
	_, err := e.pool.AddReward(owner, uint256.NewInt(7), 60)
	require.NoError(t, err)
	_, err = e.pool.AddRewardRule(owner, uint256.NewInt(3))
	require.NoError(t, err)
	events := e.mustCall(e.member, 0, &ClaimRewardAction{Reward: 0})
	require.NotEmpty(t, events)
	e.mustCall(e.manager, 4, &VoteAction{Agree: true})
}

func TestSnapshotRestore(t *testing.T) {
	e := newTestEnv(t)
	populate(t, e)

	snap := e.pool.Snapshot()
	dat, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(dat, &decoded))

	p := New(Config{Address: testPoolAddress, RelayAddress: testRelayAddress}, e.ledger, e.clock, cmtlog.NewNopLogger())
	p.Restore(&decoded)
	again, err := json.Marshal(p.Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, string(dat), string(again))

	pl, err := p.Poll(4)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pl.YesCounter)
	assert.Contains(t, pl.Votes, addrOf(e.manager))
	assert.Equal(t, e.pool.LatestNonce(addrOf(e.member)), p.LatestNonce(addrOf(e.member)))

	// the restored pool keeps allocating poll ids after the last one
	ev, err := p.AddReward(Direct(addrOf(e.owner)), uint256.NewInt(1), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), ev.Poll)
}

func TestCloneIsIndependent(t *testing.T) {
	e := newTestEnv(t)
	populate(t, e)
	before, err := json.Marshal(e.pool.Snapshot())
	require.NoError(t, err)

	ledger := e.ledger.Clone()
	c := e.pool.Clone(ledger, e.clock)
	e.clock.now += 180
	_, err = c.Finalize(Direct(addrOf(e.outsider)), 4)
	require.NoError(t, err)
	require.NoError(t, c.AddMember(Direct(addrOf(e.owner)), addrOf(e.outsider)))

	after, err := json.Marshal(e.pool.Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
	assert.Equal(t, uint64(testPoolFunds), e.pool.Balance().Uint64())
	assert.Equal(t, uint64(testPoolFunds-5), c.Balance().Uint64())
}
