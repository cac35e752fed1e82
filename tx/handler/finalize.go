package handler

import (
	"context"
	"errors"
	"sync"

	"github.com/calehh/assetpool/pool"
	"github.com/calehh/assetpool/state"
	"github.com/calehh/assetpool/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

var (
	ErrPollFinalizedInBlock = errors.New("poll finalized twice in one block")
	ErrFinalizeFailed       = errors.New("finalize failed")
)

// FinalizeTxHandler handles unsigned finalize txs. A block may finalize a
// poll only once and only with a successful finalize.
type FinalizeTxHandler struct {
	logger cmtlog.Logger

	mtx   sync.Mutex
	polls map[uint64]bool
}

func NewFinalizeTxHandler(logger cmtlog.Logger) (h *FinalizeTxHandler) {
	logger = logger.With("module", "finalizeTx")
	h = &FinalizeTxHandler{
		logger: logger,
		polls:  make(map[uint64]bool),
	}
	return
}

func (h *FinalizeTxHandler) Check(ctx context.Context, st *state.State, btx *tx.PoolTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	_, err1 := st.Verify(btx, true)
	if err1 == nil {
		var result *pool.RelayResult
		result, err1 = st.Clone().Apply(btx)
		if err1 == nil && !result.Success {
			err1 = errors.New(result.Data)
		}
	}
	if err1 != nil {
		h.logger.Info("CheckTx finalize fail", "poll", btx.Target, "err", err1)
		res.Code = 1
		res.Log = err1.Error()
	}
	return
}

func (h *FinalizeTxHandler) NewContext(ctx context.Context) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.polls = make(map[uint64]bool)
}

func (h *FinalizeTxHandler) handle(ctx context.Context, st *state.State, btx *tx.PoolTx) (res *abcitypes.ExecTxResult, err error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.polls[btx.Target] {
		return nil, ErrPollFinalizedInBlock
	}
	_, err = st.Verify(btx, false)
	if err != nil {
		return nil, err
	}
	result, err := st.Apply(btx)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		h.logger.Debug("finalize rejected", "poll", btx.Target, "code", result.Data)
		return nil, ErrFinalizeFailed
	}
	h.polls[btx.Target] = true
	return execResult(result), nil
}

func (h *FinalizeTxHandler) Prepare(ctx context.Context, st *state.State, btx *tx.PoolTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}

func (h *FinalizeTxHandler) Process(ctx context.Context, st *state.State, btx *tx.PoolTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}
