package app

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"testing"
	"time"

	"github.com/calehh/assetpool/config"
	"github.com/calehh/assetpool/pool"
	"github.com/calehh/assetpool/state"
	"github.com/calehh/assetpool/tx"
	"github.com/calehh/assetpool/tx/handler"
	"github.com/calehh/assetpool/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChainID = "assetpool-test"

var genesisTime = time.Unix(1_700_000_000, 0)

type testApp struct {
	t        *testing.T
	app      *PoolApp
	appState *types.AppState
	owner    *ecdsa.PrivateKey
	member   *ecdsa.PrivateKey
	nonces   map[common.Address]uint64
	height   int64
	now      time.Time
}

func addr(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

func newTestApp(t *testing.T) *testApp {
	owner, err := crypto.GenerateKey()
	require.NoError(t, err)
	member, err := crypto.GenerateKey()
	require.NoError(t, err)

	genesis := map[string]any{
		"owner": addr(owner),
		"token_balances": []map[string]any{
			{"address": addr(member), "amount": "100"},
		},
		"reward_poll_duration":           60,
		"propose_withdraw_poll_duration": 0,
		"reward_rule_poll_duration":      60,
	}
	dat, err := json.Marshal(genesis)
	require.NoError(t, err)
	appState, err := types.ParseAppState(testChainID, dat)
	require.NoError(t, err)

	db, err := state.NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(t, err)
	a := newPoolApp(config.DefaultPoolAppConfig(t.TempDir()), db, cmtlog.NewNopLogger(), prometheus.NewRegistry())
	res, err := a.InitChain(context.Background(), &abcitypes.RequestInitChain{
		Time:          genesisTime,
		ChainId:       testChainID,
		AppStateBytes: dat,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.AppHash)

	return &testApp{
		t:        t,
		app:      a,
		appState: appState,
		owner:    owner,
		member:   member,
		nonces:   make(map[common.Address]uint64),
		now:      genesisTime,
	}
}

func (ta *testApp) signedTx(key *ecdsa.PrivateKey, target uint64, action pool.Action) []byte {
	a := addr(key)
	ta.nonces[a]++
	return ta.signedTxWithNonce(key, target, action, ta.nonces[a])
}

func (ta *testApp) signedTxWithNonce(key *ecdsa.PrivateKey, target uint64, action pool.Action, nonce uint64) []byte {
	btx, err := tx.NewPoolTx(action, target, nonce)
	require.NoError(ta.t, err)
	require.NoError(ta.t, btx.Sign(key, ta.appState.RelayAddress))
	dat, err := tx.MarshalPoolTx(btx)
	require.NoError(ta.t, err)
	return dat
}

func (ta *testApp) finalizeTx(poll uint64) []byte {
	dat, err := tx.MarshalPoolTx(tx.NewTryFinalizeTx(poll))
	require.NoError(ta.t, err)
	return dat
}

func (ta *testApp) block(advance time.Duration, txs ...[]byte) *abcitypes.ResponseFinalizeBlock {
	ta.height++
	ta.now = ta.now.Add(advance)
	ctx := context.Background()
	res, err := ta.app.FinalizeBlock(ctx, &abcitypes.RequestFinalizeBlock{
		Txs:    txs,
		Height: ta.height,
		Time:   ta.now,
	})
	require.NoError(ta.t, err)
	_, err = ta.app.Commit(ctx, &abcitypes.RequestCommit{})
	require.NoError(ta.t, err)
	return res
}

func (ta *testApp) query(path string, data []byte, v any) *abcitypes.ResponseQuery {
	res, err := ta.app.Query(context.Background(), &abcitypes.RequestQuery{Path: path, Data: data})
	require.NoError(ta.t, err)
	if v != nil && res.Code == 0 {
		require.NoError(ta.t, json.Unmarshal(res.Value, v))
	}
	return res
}

func (ta *testApp) balance(a common.Address) uint64 {
	var info BalanceInfo
	res := ta.query("/balance/", a.Bytes(), &info)
	require.Zero(ta.t, res.Code)
	return info.Amount.Uint64()
}

func TestInitChain(t *testing.T) {
	ta := newTestApp(t)
	var info PoolInfo
	res := ta.query("/pool", nil, &info)
	require.Zero(t, res.Code)
	assert.True(t, info.Initialized)
	assert.Equal(t, addr(ta.owner), info.Owner)
	assert.Equal(t, types.DerivedAddress(testChainID, "pool"), info.Address)
	assert.Equal(t, []common.Address{addr(ta.owner)}, info.Managers)
	assert.Equal(t, uint64(60), info.RewardPollDuration)
	assert.Zero(t, info.ProposeWithdrawPollDuration)
	assert.True(t, info.Balance.IsZero())
	assert.Equal(t, uint64(100), ta.balance(addr(ta.member)))

	// replaying InitChain keeps the applied genesis
	before := ta.app.db.Header().Hash
	_, err := ta.app.InitChain(context.Background(), &abcitypes.RequestInitChain{ChainId: testChainID})
	require.NoError(t, err)
	assert.Equal(t, before, ta.app.db.Header().Hash)

	res = ta.query("/unknown/", nil, nil)
	assert.Equal(t, uint32(404), res.Code)
}

func TestWithdrawFlow(t *testing.T) {
	ta := newTestApp(t)
	owner, member := addr(ta.owner), addr(ta.member)

	res := ta.block(5*time.Second,
		ta.signedTx(ta.owner, 0, &pool.RoleAction{Op: pool.MethodAddMember, Address: member}),
		ta.signedTx(ta.member, 0, &pool.DepositAction{Amount: uint256.NewInt(50)}),
	)
	require.Len(t, res.TxResults, 2)
	for _, r := range res.TxResults {
		assert.Equal(t, handler.CodeOK, r.Code, r.Log)
	}
	assert.Equal(t, uint64(50), ta.balance(member))
	assert.Equal(t, uint64(50), ta.balance(ta.appState.PoolAddress))

	// withdraw polls are bypassed, so the poll can be finalized in the same block
	res = ta.block(5*time.Second,
		ta.signedTx(ta.member, 0, &pool.ProposeWithdrawAction{Amount: uint256.NewInt(20), Beneficiary: member}),
		ta.finalizeTx(1),
	)
	require.Len(t, res.TxResults, 2)
	assert.Equal(t, handler.CodeOK, res.TxResults[1].Code, res.TxResults[1].Log)
	assert.Equal(t, uint64(70), ta.balance(member))
	assert.Equal(t, uint64(30), ta.balance(ta.appState.PoolAddress))

	var polls []uint64
	ta.query("/withdraws/", member.Bytes(), &polls)
	assert.Empty(t, polls)

	var nonce NonceInfo
	ta.query("/nonce/", owner.Bytes(), &nonce)
	assert.Equal(t, uint64(1), nonce.Nonce)
	ta.query("/nonce/", member.Bytes(), &nonce)
	assert.Equal(t, uint64(2), nonce.Nonce)
}

func TestFailedActionIsRecorded(t *testing.T) {
	ta := newTestApp(t)
	member := addr(ta.member)

	res := ta.block(time.Second, ta.signedTx(ta.member, 0, &pool.AddRewardAction{Amount: uint256.NewInt(1)}))
	require.Len(t, res.TxResults, 1)
	r := res.TxResults[0]
	assert.Equal(t, handler.CodeActionFailed, r.Code)
	assert.Equal(t, string(types.CodeNotOwner), r.Log)
	assert.Equal(t, types.ModuleName, r.Codespace)

	var nonce NonceInfo
	ta.query("/nonce/", member.Bytes(), &nonce)
	assert.Equal(t, uint64(1), nonce.Nonce)
	var rewards []*pool.Reward
	ta.query("/rewards/", nil, &rewards)
	assert.Empty(t, rewards)

	assert.Equal(t, 1.0, testutil.ToFloat64(ta.app.metrics.relayFailures.WithLabelValues(string(types.CodeNotOwner))))
	assert.Equal(t, 1.0, testutil.ToFloat64(ta.app.metrics.txsTotal.WithLabelValues(pool.MethodAddReward, "failure")))
}

func TestRewardPollThroughBlocks(t *testing.T) {
	ta := newTestApp(t)
	ta.block(time.Second, ta.signedTx(ta.owner, 0, &pool.AddRewardAction{Amount: uint256.NewInt(5), Duration: 30}))

	var pl PollInfo
	res := ta.query("/polls/", []byte{1}, &pl)
	require.Zero(t, res.Code, res.Log)
	assert.Equal(t, pool.PollKindReward, pl.Kind)
	assert.False(t, pl.Approved)
	assert.False(t, pl.Decidable)

	ta.block(time.Second, ta.signedTx(ta.owner, 1, &pool.VoteAction{Agree: true}))
	ta.query("/polls/", []byte{1}, &pl)
	assert.True(t, pl.Approved)

	// too early to finalize: the tx is kept out of the proposal
	prep, err := ta.app.PrepareProposal(context.Background(), &abcitypes.RequestPrepareProposal{
		Txs:    [][]byte{ta.finalizeTx(1)},
		Height: ta.height + 1,
		Time:   ta.now.Add(time.Second),
	})
	require.NoError(t, err)
	assert.Empty(t, prep.Txs)

	ta.block(time.Minute, ta.finalizeTx(1))
	res = ta.query("/polls/", []byte{1}, nil)
	assert.Equal(t, uint32(1), res.Code)
	assert.Equal(t, string(types.CodeNotFound), res.Log)

	var reward pool.Reward
	ta.query("/rewards/", []byte{0}, &reward)
	assert.Equal(t, pool.RewardEnabled, reward.State)
	assert.Equal(t, uint64(5), reward.WithdrawAmount.Uint64())
	assert.Equal(t, uint64(30), reward.WithdrawDuration)
}

func TestCheckTx(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()
	action := &pool.RoleAction{Op: pool.MethodAddMember, Address: addr(ta.member)}

	res, err := ta.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: ta.signedTxWithNonce(ta.owner, 0, action, 1)})
	require.NoError(t, err)
	assert.Zero(t, res.Code, res.Log)

	// a nonce gap is fine for the mempool
	res, err = ta.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: ta.signedTxWithNonce(ta.owner, 0, action, 4)})
	require.NoError(t, err)
	assert.Zero(t, res.Code, res.Log)

	ta.block(time.Second, ta.signedTx(ta.owner, 0, action))
	res, err = ta.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: ta.signedTxWithNonce(ta.owner, 0, action, 1)})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), res.Code)
	assert.Equal(t, string(types.CodeWrongSig), res.Log)

	res, err = ta.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: []byte("junk")})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), res.Code)

	res, err = ta.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: ta.finalizeTx(9)})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), res.Code)
}

func TestPrepareAndProcessProposal(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()
	action := &pool.RoleAction{Op: pool.MethodAddMember, Address: addr(ta.member)}
	good := ta.signedTxWithNonce(ta.owner, 0, action, 1)
	replay := ta.signedTxWithNonce(ta.owner, 0, action, 1)
	next := ta.signedTxWithNonce(ta.owner, 0, &pool.AddRewardAction{Amount: uint256.NewInt(1)}, 2)

	prep, err := ta.app.PrepareProposal(ctx, &abcitypes.RequestPrepareProposal{
		Txs:    [][]byte{good, replay, []byte("junk"), next},
		Height: 1,
		Time:   ta.now.Add(time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{good, next}, prep.Txs)

	proc, err := ta.app.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{
		Txs:    prep.Txs,
		Height: 1,
		Time:   ta.now.Add(time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, abcitypes.ResponseProcessProposal_ACCEPT, proc.Status)

	proc, err = ta.app.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{
		Txs:    [][]byte{good, replay},
		Height: 1,
		Time:   ta.now.Add(time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, abcitypes.ResponseProcessProposal_REJECT, proc.Status)

	// proposals never touch committed state
	var nonce NonceInfo
	ta.query("/nonce/", addr(ta.owner).Bytes(), &nonce)
	assert.Zero(t, nonce.Nonce)
}
