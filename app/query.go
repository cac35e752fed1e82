package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/calehh/assetpool/pool"
	"github.com/calehh/assetpool/state"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrQueryAddress = errors.New("query data must be a 20 byte address")
	ErrQueryIndex   = errors.New("query data must be an index of at most 8 bytes")
)

func (app *PoolApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = 404
		return
	}
	res, err = q.Query(ctx, req)
	return
}

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

type queryFunc func(st *state.State, data []byte) (any, error)

// StateQuerier answers a query from the last committed state.
type StateQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
	fn     queryFunc
}

func NewStateQuerier(db *state.StateDB, logger cmtlog.Logger, fn queryFunc) (q *StateQuerier) {
	q = &StateQuerier{
		db:     db,
		logger: logger,
		fn:     fn,
	}
	return
}

func (q *StateQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	st := q.db.State()
	res.Height = int64(st.Header().Height)
	v, err1 := q.fn(st, req.Data)
	if err1 != nil {
		q.logger.Debug("query fail", "path", req.Path, "err", err1)
		res.Code = 1
		res.Log = err1.Error()
		return
	}
	res.Value, err = json.Marshal(v)
	return
}

func queryIndex(data []byte) (idx uint64, err error) {
	if len(data) > 8 {
		return 0, ErrQueryIndex
	}
	for _, v := range data {
		idx <<= 8
		idx |= uint64(v)
	}
	return
}

func queryAddress(data []byte) (common.Address, error) {
	if len(data) != common.AddressLength {
		return common.Address{}, ErrQueryAddress
	}
	return common.BytesToAddress(data), nil
}

type PoolInfo struct {
	Height                      uint64           `json:"height"`
	Time                        uint64           `json:"time"`
	Address                     common.Address   `json:"address"`
	RelayAddress                common.Address   `json:"relayAddress"`
	Initialized                 bool             `json:"initialized"`
	Owner                       common.Address   `json:"owner"`
	Token                       common.Address   `json:"token"`
	Balance                     *uint256.Int     `json:"balance"`
	RewardPollDuration          uint64           `json:"rewardPollDuration"`
	ProposeWithdrawPollDuration uint64           `json:"proposeWithdrawPollDuration"`
	RewardRulePollDuration      uint64           `json:"rewardRulePollDuration"`
	Managers                    []common.Address `json:"managers"`
	Members                     []common.Address `json:"members"`
}

func queryPool(st *state.State, _ []byte) (any, error) {
	p := st.Pool()
	return &PoolInfo{
		Height:                      st.Header().Height,
		Time:                        st.Header().Time,
		Address:                     p.Address(),
		RelayAddress:                p.RelayAddress(),
		Initialized:                 p.Initialized(),
		Owner:                       p.Owner(),
		Token:                       p.Token(),
		Balance:                     p.Balance(),
		RewardPollDuration:          p.RewardPollDuration(),
		ProposeWithdrawPollDuration: p.ProposeWithdrawPollDuration(),
		RewardRulePollDuration:      p.RewardRulePollDuration(),
		Managers:                    p.Managers(),
		Members:                     p.Members(),
	}, nil
}

// queryRewards returns every reward, or the one whose id is in data.
func queryRewards(st *state.State, data []byte) (any, error) {
	if len(data) == 0 {
		return st.Pool().Rewards(), nil
	}
	id, err := queryIndex(data)
	if err != nil {
		return nil, err
	}
	return st.Pool().Reward(id)
}

func queryRules(st *state.State, data []byte) (any, error) {
	if len(data) == 0 {
		return st.Pool().RewardRules(), nil
	}
	id, err := queryIndex(data)
	if err != nil {
		return nil, err
	}
	return st.Pool().RewardRule(id)
}

type PollInfo struct {
	*pool.Poll
	Approved  bool `json:"approved"`
	Decidable bool `json:"decidable"`
}

func pollInfo(pl *pool.Poll, now uint64) *PollInfo {
	return &PollInfo{
		Poll:      pl,
		Approved:  pl.ApprovalState(),
		Decidable: !pl.Open(now),
	}
}

func queryPolls(st *state.State, data []byte) (any, error) {
	now := st.Header().Time
	if len(data) == 0 {
		polls := st.Pool().Polls()
		res := make([]*PollInfo, len(polls))
		for i, pl := range polls {
			res[i] = pollInfo(pl, now)
		}
		return res, nil
	}
	id, err := queryIndex(data)
	if err != nil {
		return nil, err
	}
	pl, err := st.Pool().Poll(id)
	if err != nil {
		return nil, err
	}
	return pollInfo(pl, now), nil
}

type NonceInfo struct {
	Address common.Address `json:"address"`
	Nonce   uint64         `json:"nonce"`
}

func queryNonce(st *state.State, data []byte) (any, error) {
	addr, err := queryAddress(data)
	if err != nil {
		return nil, err
	}
	return &NonceInfo{Address: addr, Nonce: st.Pool().LatestNonce(addr)}, nil
}

type BalanceInfo struct {
	Address common.Address `json:"address"`
	Amount  *uint256.Int   `json:"amount"`
}

func queryBalance(st *state.State, data []byte) (any, error) {
	addr, err := queryAddress(data)
	if err != nil {
		return nil, err
	}
	return &BalanceInfo{Address: addr, Amount: st.Ledger().BalanceOf(addr)}, nil
}

func queryWithdraws(st *state.State, data []byte) (any, error) {
	addr, err := queryAddress(data)
	if err != nil {
		return nil, err
	}
	return st.Pool().WithdrawPollsOf(addr), nil
}
