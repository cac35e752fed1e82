package handler

import (
	"context"

	"github.com/calehh/assetpool/state"
	"github.com/calehh/assetpool/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// ActionTxHandler runs signed txs through the pool relay.
type ActionTxHandler struct {
	logger cmtlog.Logger
}

func NewActionTxHandler(logger cmtlog.Logger) (h *ActionTxHandler) {
	logger = logger.With("module", "actionTx")
	h = &ActionTxHandler{
		logger: logger,
	}
	return
}

func (h *ActionTxHandler) Check(ctx context.Context, st *state.State, btx *tx.PoolTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	_, err1 := st.Verify(btx, true)
	if err1 != nil {
		h.logger.Info("CheckTx action fail", "type", btx.Type, "err", err1)
		res.Code = 1
		res.Log = err1.Error()
	}
	return
}

func (h *ActionTxHandler) NewContext(ctx context.Context) {}

func (h *ActionTxHandler) handle(ctx context.Context, st *state.State, btx *tx.PoolTx) (res *abcitypes.ExecTxResult, err error) {
	result, err := st.Apply(btx)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		h.logger.Debug("relayed action failed", "type", btx.Type, "signer", result.Signer, "code", result.Data)
	}
	return execResult(result), nil
}

func (h *ActionTxHandler) Prepare(ctx context.Context, st *state.State, btx *tx.PoolTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}

func (h *ActionTxHandler) Process(ctx context.Context, st *state.State, btx *tx.PoolTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}
