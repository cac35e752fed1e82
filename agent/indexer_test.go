package agent

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calehh/assetpool/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner  = common.HexToAddress("0x00000000000000000000000000000000000000a1").Hex()
	member = common.HexToAddress("0x00000000000000000000000000000000000000b2").Hex()
	pool   = common.HexToAddress("0x00000000000000000000000000000000000000c3").Hex()
)

func newTestIndexer(t *testing.T) *ChainIndexer {
	db, err := OpenIndexerDB(filepath.Join(t.TempDir(), "indexer.db"))
	require.NoError(t, err)
	c, err := newChainIndexer(cmtlog.NewNopLogger(), db)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func txResult(events ...abci.Event) *abci.ExecTxResult {
	return &abci.ExecTxResult{Events: events}
}

// indexWithdrawFlow indexes a member joining, depositing and withdrawing
// through an approved poll.
func indexWithdrawFlow(t *testing.T, c *ChainIndexer) {
	require.NoError(t, c.indexBlock(1, []*abci.ExecTxResult{
		txResult(
			types.EncodeEventRole(&types.EventRole{Role: types.RoleMember, Address: member, Added: true, By: owner}),
			types.EncodeEventRelay(&types.EventRelay{Signer: owner, Nonce: 1, Success: true}),
		),
		txResult(
			types.EncodeEventDeposit(&types.EventTransfer{From: member, To: pool, Amount: "50"}),
			types.EncodeEventRelay(&types.EventRelay{Signer: member, Nonce: 1, Success: true}),
		),
	}))
	require.NoError(t, c.indexBlock(2, []*abci.ExecTxResult{
		txResult(
			types.EncodeEventWithdrawPoll(&types.EventWithdrawPoll{Poll: 1, Member: member, Amount: "20", Duration: 60, Reward: -1}),
			types.EncodeEventRelay(&types.EventRelay{Signer: member, Nonce: 2, Success: true}),
		),
		txResult(
			types.EncodeEventVote(&types.EventVote{Poll: 1, Voter: owner, Agree: false, Time: 10}),
			types.EncodeEventRelay(&types.EventRelay{Signer: owner, Nonce: 2, Success: true}),
		),
		txResult(
			types.EncodeEventRevokeVote(&types.EventVote{Poll: 1, Voter: owner, Time: 11}),
			types.EncodeEventRelay(&types.EventRelay{Signer: owner, Nonce: 3, Success: true}),
		),
		txResult(
			types.EncodeEventVote(&types.EventVote{Poll: 1, Voter: owner, Agree: true, Time: 12}),
			types.EncodeEventRelay(&types.EventRelay{Signer: owner, Nonce: 4, Success: true}),
		),
		txResult(types.EncodeEventRelay(&types.EventRelay{Signer: member, Nonce: 3, Success: false, Data: string(types.CodeNotOwner)})),
	}))
	require.NoError(t, c.indexBlock(3, []*abci.ExecTxResult{
		txResult(
			types.EncodeEventWithdrawn(&types.EventTransfer{From: pool, To: member, Amount: "20", Poll: 1}),
			types.EncodeEventFinalizePoll(&types.EventFinalizePoll{Poll: 1, Kind: types.PollKindNameWithdraw, Approved: true, Yes: 1}),
		),
	}))
}

func TestIndexBlock(t *testing.T) {
	c := newTestIndexer(t)
	indexWithdrawFlow(t, c)

	height, err := c.getHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), height)

	poll, err := c.getPollById(1)
	require.NoError(t, err)
	assert.Equal(t, types.PollKindNameWithdraw, poll.Kind)
	assert.Equal(t, member, poll.Member)
	assert.Equal(t, "20", poll.Amount)
	assert.Equal(t, int64(-1), poll.Reward)
	assert.Equal(t, PollStatusApproved, poll.Status)
	assert.Equal(t, uint64(2), poll.CreateHeight)
	assert.Equal(t, uint64(3), poll.FinalizeHeight)
	assert.Equal(t, uint64(1), poll.Yes)

	votes, err := c.getVotesByPoll(1, 0, 10)
	require.NoError(t, err)
	require.Len(t, votes, 2)
	assert.True(t, votes[0].Agree)
	assert.False(t, votes[0].Revoked)
	assert.False(t, votes[1].Agree)
	assert.True(t, votes[1].Revoked)

	transfers, total, err := c.getTransfers(member, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	assert.Equal(t, types.EventWithdrawnType, transfers[0].Kind)
	assert.Equal(t, types.EventDepositType, transfers[1].Kind)

	calls, total, err := c.getRelayCalls(member, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	assert.False(t, calls[0].Success)
	assert.Equal(t, string(types.CodeNotOwner), calls[0].Data)

	roles, total, err := c.getRoleChanges("", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	assert.Equal(t, member, roles[0].Address)
}

func TestIndexerResumesFromStoredHeight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer.db")
	db, err := OpenIndexerDB(path)
	require.NoError(t, err)
	c, err := newChainIndexer(cmtlog.NewNopLogger(), db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Height)
	require.NoError(t, c.indexBlock(7, nil))
	require.NoError(t, c.Close())

	db, err = OpenIndexerDB(path)
	require.NoError(t, err)
	c, err = newChainIndexer(cmtlog.NewNopLogger(), db)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, int64(8), c.Height)
}

func TestUndecodableEventIsSkipped(t *testing.T) {
	c := newTestIndexer(t)
	bad := abci.Event{
		Type:       types.EventVoteType,
		Attributes: []abci.EventAttribute{{Key: "poll", Value: "x"}},
	}
	require.NoError(t, c.indexBlock(1, []*abci.ExecTxResult{txResult(bad)}))
	votes, err := c.getVotesByVoter(owner, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func post(t *testing.T, s *Service, path string, body string, v any) int {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	if v != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
	}
	return w.Code
}

func TestService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := newTestIndexer(t)
	indexWithdrawFlow(t, c)
	s := NewService(":0", c)

	var polls GetPollsResponse
	code := post(t, s, "/getPolls", `{"kind":"withdraw","address":"`+strings.ToLower(member)+`"}`, &polls)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, uint64(1), polls.Total)
	require.Len(t, polls.Polls, 1)
	assert.Len(t, polls.Polls[0].Votes, 2)

	code = post(t, s, "/getPolls", `{"status":0}`, &polls)
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, polls.Total)
	assert.Empty(t, polls.Polls)

	var votes GetVotesResponse
	code = post(t, s, "/getVotes", `{"voter":"`+owner+`"}`, &votes)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, votes.Votes, 2)
	assert.Equal(t, http.StatusBadRequest, post(t, s, "/getVotes", `{}`, nil))

	var transfers GetTransfersResponse
	code = post(t, s, "/getTransfers", `{"address":"`+pool+`","pageSize":1}`, &transfers)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, uint64(2), transfers.Total)
	assert.Len(t, transfers.Transfers, 1)

	var relays GetRelaysResponse
	code = post(t, s, "/getRelays", `{"address":"`+owner+`"}`, &relays)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, uint64(4), relays.Total)

	var roles GetRolesResponse
	code = post(t, s, "/getRoles", `{"address":"`+member+`"}`, &roles)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, roles.Roles, 1)

	req := httptest.NewRequest(http.MethodGet, "/height", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"height":3}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, post(t, s, "/getPolls", `not json`, nil))
}
