package handler

import (
	"context"
	"encoding/json"

	"github.com/calehh/assetpool/pool"
	"github.com/calehh/assetpool/state"
	"github.com/calehh/assetpool/tx"
	"github.com/calehh/assetpool/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
)

const (
	CodeOK           uint32 = 0
	CodeActionFailed uint32 = 1
)

type TxHandler interface {
	Check(ctx context.Context, st *state.State, btx *tx.PoolTx) (res *abcitypes.ResponseCheckTx, err error)
	NewContext(ctx context.Context)
	Prepare(ctx context.Context, st *state.State, btx *tx.PoolTx) (res *abcitypes.ExecTxResult, err error)
	Process(ctx context.Context, st *state.State, btx *tx.PoolTx) (res *abcitypes.ExecTxResult, err error)
}

type txResult struct {
	Signer  string `json:"signer,omitempty"`
	Nonce   uint64 `json:"nonce,omitempty"`
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"`
}

// execResult reports a pool call. A failed relayed action still consumes its
// nonce, so the tx stays in the block with a non-zero code.
func execResult(r *pool.RelayResult) *abcitypes.ExecTxResult {
	res := &abcitypes.ExecTxResult{
		Code:   CodeOK,
		Events: r.Events,
	}
	out := txResult{Success: r.Success, Data: r.Data, Nonce: r.Nonce}
	if r.Signer != (common.Address{}) {
		out.Signer = r.Signer.Hex()
	}
	res.Data, _ = json.Marshal(out)
	if !r.Success {
		res.Code = CodeActionFailed
		res.Codespace = types.ModuleName
		res.Log = r.Data
	}
	return res
}
