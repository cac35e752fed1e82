package app

import (
	"context"

	"github.com/calehh/assetpool/config"
	"github.com/calehh/assetpool/state"
	"github.com/calehh/assetpool/tx"
	"github.com/calehh/assetpool/tx/handler"
	"github.com/calehh/assetpool/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

type finalizeBlock struct {
	Height uint64
	Hash   common.Hash
}

func (b *finalizeBlock) Set(blk *abcitypes.RequestFinalizeBlock) {
	b.Height = uint64(blk.Height)
	b.Hash = common.BytesToHash(blk.Hash)
}

var _ abcitypes.Application = &PoolApp{}

type PoolApp struct {
	cfg    *config.PoolAppConfig
	logger cmtlog.Logger

	db       *state.StateDB
	lastBlk  finalizeBlock
	txHdlrs  map[tx.PoolTxType]handler.TxHandler
	queriers map[string]Querier
	metrics  *Metrics

	st *state.State
}

func NewPoolApp(cfg *config.PoolAppConfig, logger cmtlog.Logger, registry prometheus.Registerer) (app *PoolApp, err error) {
	db, err := state.NewStateDB(cfg.DataDir(), logger)
	if err != nil {
		return nil, err
	}
	return newPoolApp(cfg, db, logger, registry), nil
}

func newPoolApp(cfg *config.PoolAppConfig, db *state.StateDB, logger cmtlog.Logger, registry prometheus.Registerer) (app *PoolApp) {
	logger = logger.With("module", "app")
	app = &PoolApp{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		txHdlrs:  make(map[tx.PoolTxType]handler.TxHandler),
		queriers: make(map[string]Querier),
		metrics:  NewMetrics(registry),
	}
	app.registerTxHandler()
	app.registerQuerier()
	return
}

func (app *PoolApp) Start(bs *store.BlockStore) {
	height := app.db.Header().Height
	if height > 0 {
		blk := bs.LoadBlock(int64(height))
		if blk == nil {
			panic("unexpected BlockStore")
		}
		app.lastBlk.Height = height
		app.lastBlk.Hash = common.BytesToHash(blk.Hash())
	}
	app.metrics.observeState(app.db.State())
}

func (app *PoolApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("pool app stopped")
}

func (app *PoolApp) registerTxHandler() {
	ah := handler.NewActionTxHandler(app.logger)
	for _, tp := range []tx.PoolTxType{
		tx.PoolTxTypeAddReward,
		tx.PoolTxTypeUpdateReward,
		tx.PoolTxTypeClaimReward,
		tx.PoolTxTypeClaimRewardFor,
		tx.PoolTxTypeProposeWithdraw,
		tx.PoolTxTypeAddRewardRule,
		tx.PoolTxTypeUpdateRewardRule,
		tx.PoolTxTypeVote,
		tx.PoolTxTypeRevokeVote,
		tx.PoolTxTypeFinalize,
		tx.PoolTxTypeAddManager,
		tx.PoolTxTypeRemoveManager,
		tx.PoolTxTypeAddMember,
		tx.PoolTxTypeRemoveMember,
		tx.PoolTxTypeTransferOwnership,
		tx.PoolTxTypeSetPollDuration,
		tx.PoolTxTypeDeposit,
	} {
		app.txHdlrs[tp] = ah
	}
	app.txHdlrs[tx.PoolTxTypeTryFinalize] = handler.NewFinalizeTxHandler(app.logger)
}

func (app *PoolApp) registerQuerier() {
	app.queriers["/pool/"] = NewStateQuerier(app.db, app.logger, queryPool)
	app.queriers["/rewards/"] = NewStateQuerier(app.db, app.logger, queryRewards)
	app.queriers["/rules/"] = NewStateQuerier(app.db, app.logger, queryRules)
	app.queriers["/polls/"] = NewStateQuerier(app.db, app.logger, queryPolls)
	app.queriers["/nonce/"] = NewStateQuerier(app.db, app.logger, queryNonce)
	app.queriers["/balance/"] = NewStateQuerier(app.db, app.logger, queryBalance)
	app.queriers["/withdraws/"] = NewStateQuerier(app.db, app.logger, queryWithdraws)
}

func (app *PoolApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	if cur := app.db.State(); cur.Pool().Initialized() {
		// replayed after a restart before the first block
		app.logger.Info("InitChain genesis already applied", "height", cur.Header().Height)
		return &abcitypes.ResponseInitChain{AppHash: cur.Hash().Bytes()}, nil
	}
	appState, err := types.ParseAppState(chain.ChainId, chain.AppStateBytes)
	if err != nil {
		app.logger.Error("InitChain parse app_state fail", "err", err)
		return nil, err
	}
	st := app.db.NewState()
	err = st.Genesis(chain.ChainId, uint64(chain.Time.Unix()), appState)
	if err != nil {
		app.logger.Error("InitChain genesis fail", "err", err)
		return nil, err
	}
	var h common.Hash
	_, err = st.Update()
	if err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	h, err = app.db.SetState(st)
	if err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	app.logger.Info("InitChain", "chainId", chain.ChainId, "owner", appState.Owner, "pool", appState.PoolAddress, "relay", appState.RelayAddress)
	app.metrics.observeState(st)
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func (app *PoolApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		Data:             types.ModuleName,
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *PoolApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *PoolApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *PoolApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{}, nil
}

func (app *PoolApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *PoolApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *PoolApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{}, nil
}
