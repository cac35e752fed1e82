package app

import (
	"context"
	"errors"
	"time"

	"github.com/calehh/assetpool/state"
	"github.com/calehh/assetpool/tx"
	"github.com/calehh/assetpool/tx/handler"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

var (
	ErrUnexpectedTxProcess = errors.New("unexpected tx process")
	ErrUnsupportedTx       = errors.New("unsupported tx")
)

func (app *PoolApp) getState(blkTime time.Time) (st *state.State) {
	st = app.db.NewState()
	st.SetTime(uint64(blkTime.Unix()))
	app.st = st
	return
}

func (app *PoolApp) parseTx(txDat []byte) (btx *tx.PoolTx, h handler.TxHandler, err error) {
	btx, err = tx.UnmarshalPoolTx(txDat)
	if err != nil {
		return
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		return nil, nil, ErrUnsupportedTx
	}
	return
}

func (app *PoolApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	btx, h, err := app.parseTx(check.Tx)
	if err != nil {
		app.logger.Error("parse tx fail", "err", err)
		res.Code = 1
		res.Log = err.Error()
		err = nil
		return
	}
	app.logger.Debug("check tx", "type", btx.Type)
	res, err = h.Check(ctx, app.db.State(), btx)
	if err != nil {
		app.logger.Error("check tx fail", "err", err)
		res = &abcitypes.ResponseCheckTx{Code: 1, Log: err.Error()}
		err = nil
	}
	return
}

func (app *PoolApp) newContext(ctx context.Context) {
	for _, h := range app.txHdlrs {
		h.NewContext(ctx)
	}
}

func (app *PoolApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	app.logger.Info("PrepareProposal", "height", proposal.Height, "txs", len(proposal.Txs))
	st := app.getState(proposal.Time)
	app.newContext(ctx)
	txs := make([][]byte, 0, len(proposal.Txs))
	var size int64
	for _, stx := range proposal.Txs {
		if proposal.MaxTxBytes > 0 && size+int64(len(stx)) > proposal.MaxTxBytes {
			break
		}
		btx, h, err := app.parseTx(stx)
		if err != nil {
			app.logger.Error("unsupported tx, parse fail", "err", err)
			continue
		}
		stTmp := st.Clone()
		result, err := h.Prepare(ctx, stTmp, btx)
		if err != nil {
			app.logger.Info("prepare tx fail", "type", btx.Type, "err", err)
			continue
		}
		if result == nil {
			app.logger.Error("prepare tx nil result", "type", btx.Type)
			continue
		}
		st = stTmp
		size += int64(len(stx))
		txs = append(txs, stx)
	}
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

func (app *PoolApp) process(ctx context.Context, st *state.State, txs [][]byte) (res []*abcitypes.ExecTxResult, err error) {
	app.newContext(ctx)
	res = make([]*abcitypes.ExecTxResult, len(txs))
	for i, stx := range txs {
		btx, h, err := app.parseTx(stx)
		if err != nil {
			app.logger.Error("unexpected tx, parse fail", "err", err)
			return nil, err
		}
		result, err := h.Process(ctx, st, btx)
		if err != nil {
			app.logger.Error("unexpected process tx fail", "type", btx.Type, "err", err)
			return nil, ErrUnexpectedTxProcess
		}
		if result == nil {
			app.logger.Error("unexpected process tx nil result", "type", btx.Type)
			return nil, ErrUnexpectedTxProcess
		}
		res[i] = result
	}
	return
}

func (app *PoolApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	app.logger.Info("ProcessProposal", "height", proposal.Height, "txs", len(proposal.Txs))
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}
	if len(proposal.Txs) == 0 {
		res.Status = abcitypes.ResponseProcessProposal_ACCEPT
		return res, nil
	}
	st := app.getState(proposal.Time)
	_, err = app.process(ctx, st, proposal.Txs)
	if err != nil {
		app.logger.Error("process fail", "err", err)
		return res, nil
	}
	res.Status = abcitypes.ResponseProcessProposal_ACCEPT
	app.logger.Info("proposal accepted", "height", proposal.Height)
	return res, nil
}

func (app *PoolApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.logger.Info("FinalizeBlock", "height", req.Height, "txs", len(req.Txs))
	app.lastBlk.Set(req)
	st := app.getState(req.Time)
	res, err := app.process(ctx, st, req.Txs)
	if err != nil {
		return nil, err
	}
	h, err := st.Update()
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	for i, r := range res {
		btx, _, _ := app.parseTx(req.Txs[i])
		app.metrics.observeTx(btx.Type, r.Code == handler.CodeOK, r.Log)
	}
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: res,
		AppHash:   h.Bytes(),
	}, nil
}

func (app *PoolApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	_, err := app.db.SetState(app.st)
	if err != nil {
		return nil, err
	}
	app.metrics.observeState(app.st)
	app.st = nil
	app.logger.Info("Commit", "height", app.lastBlk.Height)
	return &abcitypes.ResponseCommit{}, nil
}
