package pool

import (
	"crypto/ecdsa"
	"testing"

	"github.com/calehh/assetpool/token"
	"github.com/calehh/assetpool/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testPoolAddress  = common.HexToAddress("0x000000000000000000000000000000000000f001")
	testRelayAddress = common.HexToAddress("0x000000000000000000000000000000000000f002")
	testTokenAddress = common.HexToAddress("0x000000000000000000000000000000000000f003")
)

const testPoolFunds = 1000

type testClock struct {
	now uint64
}

func (c *testClock) Now() uint64 {
	return c.now
}

type testEnv struct {
	t      *testing.T
	pool   *Pool
	ledger *token.Ledger
	clock  *testClock

	owner    *ecdsa.PrivateKey
	manager  *ecdsa.PrivateKey
	member   *ecdsa.PrivateKey
	outsider *ecdsa.PrivateKey
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func addrOf(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// newTestEnv returns an initialized pool holding testPoolFunds with one
// manager and one member besides the owner. All poll durations are zero.
func newTestEnv(t *testing.T) *testEnv {
	e := &testEnv{
		t:        t,
		ledger:   token.NewLedger(),
		clock:    &testClock{now: 1000},
		owner:    newKey(t),
		manager:  newKey(t),
		member:   newKey(t),
		outsider: newKey(t),
	}
	e.pool = New(Config{Address: testPoolAddress, RelayAddress: testRelayAddress}, e.ledger, e.clock, cmtlog.NewNopLogger())
	require.NoError(t, e.pool.Initialize(addrOf(e.owner), testTokenAddress))
	require.NoError(t, e.pool.AddManager(Direct(addrOf(e.owner)), addrOf(e.manager)))
	require.NoError(t, e.pool.AddMember(Direct(addrOf(e.owner)), addrOf(e.member)))
	require.NoError(t, e.ledger.Mint(testPoolAddress, uint256.NewInt(testPoolFunds)))
	return e
}

func (e *testEnv) envelope(key *ecdsa.PrivateKey, target uint64, a Action, nonce uint64) *Envelope {
	e.t.Helper()
	dat, err := EncodeAction(a)
	require.NoError(e.t, err)
	env := &Envelope{Action: dat, Target: target, Nonce: nonce}
	require.NoError(e.t, Sign(key, env, testRelayAddress))
	return env
}

// call relays a with the signer's next nonce.
func (e *testEnv) call(key *ecdsa.PrivateKey, target uint64, a Action) *RelayResult {
	e.t.Helper()
	env := e.envelope(key, target, a, e.pool.LatestNonce(addrOf(key))+1)
	res, err := e.pool.Call(env)
	require.NoError(e.t, err)
	return res
}

func (e *testEnv) mustCall(key *ecdsa.PrivateKey, target uint64, a Action) []abcitypes.Event {
	e.t.Helper()
	res := e.call(key, target, a)
	require.True(e.t, res.Success, "relayed %s failed: %s", a.Method(), res.Data)
	return res.Events
}

func (e *testEnv) callFails(key *ecdsa.PrivateKey, target uint64, a Action, code types.Code) {
	e.t.Helper()
	res := e.call(key, target, a)
	require.False(e.t, res.Success, "relayed %s succeeded", a.Method())
	require.Equal(e.t, string(code), res.Data)
}

func findEvent(events []abcitypes.Event, tp string) *abcitypes.Event {
	for i := range events {
		if events[i].Type == tp {
			return &events[i]
		}
	}
	return nil
}

// enabledReward adds a reward and finalizes its bypassed poll.
func (e *testEnv) enabledReward(amount, duration uint64) *Reward {
	e.t.Helper()
	ev, err := e.pool.AddReward(Direct(addrOf(e.owner)), uint256.NewInt(amount), duration)
	require.NoError(e.t, err)
	_, err = e.pool.Finalize(Direct(addrOf(e.outsider)), ev.Poll)
	require.NoError(e.t, err)
	r, err := e.pool.Reward(ev.Reward)
	require.NoError(e.t, err)
	require.Equal(e.t, RewardEnabled, r.State)
	return r
}

func TestInitialize(t *testing.T) {
	e := newTestEnv(t)
	owner := addrOf(e.owner)

	assert.True(t, e.pool.Initialized())
	assert.Equal(t, owner, e.pool.Owner())
	assert.Equal(t, testTokenAddress, e.pool.Token())
	assert.True(t, e.pool.IsManager(owner))
	assert.True(t, e.pool.IsMember(owner))

	err := e.pool.Initialize(addrOf(e.outsider), testTokenAddress)
	require.ErrorIs(t, err, types.ErrInitialized)
	assert.Equal(t, owner, e.pool.Owner())
}

func TestUninitializedPoolRejectsOperations(t *testing.T) {
	key := newKey(t)
	p := New(Config{Address: testPoolAddress, RelayAddress: testRelayAddress}, token.NewLedger(), &testClock{}, cmtlog.NewNopLogger())

	_, err := p.AddReward(Direct(addrOf(key)), uint256.NewInt(1), 0)
	require.ErrorIs(t, err, types.ErrNotInitialized)

	dat, err := EncodeAction(&AddRewardAction{Amount: uint256.NewInt(1)})
	require.NoError(t, err)
	env := &Envelope{Action: dat, Nonce: 1}
	require.NoError(t, Sign(key, env, testRelayAddress))
	_, err = p.Call(env)
	require.ErrorIs(t, err, types.ErrNotInitialized)
	assert.Zero(t, p.LatestNonce(addrOf(key)))
}

func TestRoleRegistry(t *testing.T) {
	e := newTestEnv(t)
	owner, manager, member, outsider := addrOf(e.owner), addrOf(e.manager), addrOf(e.member), addrOf(e.outsider)

	require.ErrorIs(t, e.pool.AddManager(Direct(manager), outsider), types.ErrNotOwner)
	require.ErrorIs(t, e.pool.AddMember(Direct(member), outsider), types.ErrNotManager)
	assert.False(t, e.pool.IsMember(outsider))

	require.NoError(t, e.pool.AddMember(Direct(manager), outsider))
	assert.True(t, e.pool.IsMember(outsider))
	require.NoError(t, e.pool.RemoveMember(Direct(manager), outsider))
	assert.False(t, e.pool.IsMember(outsider))
	// removal is idempotent
	require.NoError(t, e.pool.RemoveMember(Direct(manager), outsider))

	require.NoError(t, e.pool.RemoveManager(Direct(owner), manager))
	assert.False(t, e.pool.IsManager(manager))
	require.NoError(t, e.pool.RemoveManager(Direct(owner), manager))
	assert.Equal(t, []common.Address{owner}, e.pool.Managers())
	assert.ElementsMatch(t, []common.Address{owner, member}, e.pool.Members())
}

func TestRoleEventsThroughRelay(t *testing.T) {
	e := newTestEnv(t)
	outsider := addrOf(e.outsider)

	events := e.mustCall(e.owner, 0, &RoleAction{Op: MethodAddManager, Address: outsider})
	ev := findEvent(events, types.EventRoleType)
	require.NotNil(t, ev)
	role := types.DecodeEventRole(*ev)
	assert.Equal(t, types.RoleManager, role.Role)
	assert.Equal(t, outsider.Hex(), role.Address)
	assert.True(t, role.Added)

	// adding again changes nothing and emits no role event
	events = e.mustCall(e.owner, 0, &RoleAction{Op: MethodAddManager, Address: outsider})
	assert.Nil(t, findEvent(events, types.EventRoleType))

	e.callFails(e.member, 0, &RoleAction{Op: MethodAddManager, Address: addrOf(e.member)}, types.CodeNotOwner)
}

func TestTransferOwnership(t *testing.T) {
	e := newTestEnv(t)
	owner, manager := addrOf(e.owner), addrOf(e.manager)

	require.ErrorIs(t, e.pool.TransferOwnership(Direct(manager), manager), types.ErrNotOwner)
	require.ErrorIs(t, e.pool.TransferOwnership(Direct(owner), common.Address{}), types.ErrNotValid)
	require.NoError(t, e.pool.TransferOwnership(Direct(owner), manager))
	assert.Equal(t, manager, e.pool.Owner())

	_, err := e.pool.AddReward(Direct(owner), uint256.NewInt(1), 0)
	require.ErrorIs(t, err, types.ErrNotOwner)
	_, err = e.pool.AddReward(Direct(manager), uint256.NewInt(1), 0)
	require.NoError(t, err)
}

func TestPollDurationSetters(t *testing.T) {
	e := newTestEnv(t)
	manager := addrOf(e.manager)

	require.ErrorIs(t, e.pool.SetRewardPollDuration(Direct(addrOf(e.member)), 10), types.ErrNotManager)
	require.NoError(t, e.pool.SetRewardPollDuration(Direct(manager), 10))
	require.NoError(t, e.pool.SetProposeWithdrawPollDuration(Direct(manager), 20))
	require.NoError(t, e.pool.SetRewardRulePollDuration(Direct(manager), 30))
	assert.Equal(t, uint64(10), e.pool.RewardPollDuration())
	assert.Equal(t, uint64(20), e.pool.ProposeWithdrawPollDuration())
	assert.Equal(t, uint64(30), e.pool.RewardRulePollDuration())

	e.mustCall(e.manager, 0, &SetPollDurationAction{Poll: types.PollDurationWithdraw, Duration: 40})
	assert.Equal(t, uint64(40), e.pool.ProposeWithdrawPollDuration())
	e.callFails(e.manager, 0, &SetPollDurationAction{Poll: "unknown", Duration: 1}, types.CodeNotValid)
}

func TestDeposit(t *testing.T) {
	e := newTestEnv(t)
	owner := addrOf(e.owner)
	require.NoError(t, e.ledger.Mint(owner, uint256.NewInt(50)))

	require.ErrorIs(t, e.pool.Deposit(Direct(owner), new(uint256.Int)), types.ErrNotValid)
	require.ErrorIs(t, e.pool.Deposit(Direct(owner), uint256.NewInt(51)), types.ErrNoBalance)

	events := e.mustCall(e.owner, 0, &DepositAction{Amount: uint256.NewInt(50)})
	ev := findEvent(events, types.EventDepositType)
	require.NotNil(t, ev)
	assert.Equal(t, "50", types.DecodeEventTransfer(*ev).Amount)
	assert.Equal(t, uint64(testPoolFunds+50), e.pool.Balance().Uint64())
	assert.True(t, e.ledger.BalanceOf(owner).IsZero())
}
