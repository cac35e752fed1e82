package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calehh/assetpool/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

var ErrDecodeEvent = errors.New("decode event fail")

// RoleOwner marks an ownership transfer among role changes.
const RoleOwner = "owner"

// ChainIndexer follows committed blocks over RPC and records the pool events
// they carry into sqlite.
type ChainIndexer struct {
	logger        cmtlog.Logger
	Url           string
	Height        int64
	interval      time.Duration
	db            *gorm.DB
	cli           *comethttp.HTTP
	eventHandlers map[string]eventHandler
}

func OpenIndexerDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Height{}, &Poll{}, &Vote{}, &Transfer{}, &RoleChange{}, &RelayCall{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func NewChainIndexer(logger cmtlog.Logger, dbPath string, chainUrl string, interval time.Duration) (*ChainIndexer, error) {
	logger.Info("NewChainIndexer", "dbPath", dbPath, "url", chainUrl)
	cli, err := comethttp.New(chainUrl, "/websocket")
	if err != nil {
		return nil, err
	}
	db, err := OpenIndexerDB(dbPath)
	if err != nil {
		return nil, err
	}
	c, err := newChainIndexer(logger, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.Url = chainUrl
	c.cli = cli
	c.interval = interval
	return c, nil
}

func newChainIndexer(logger cmtlog.Logger, db *gorm.DB) (*ChainIndexer, error) {
	h := Height{Id: 1}
	if err := db.First(&h).Error; err != nil && !gorm.IsRecordNotFoundError(err) {
		return nil, err
	}
	c := &ChainIndexer{
		logger:   logger.With("module", "indexer"),
		Height:   int64(h.Height + 1),
		interval: time.Second,
		db:       db,
	}
	c.eventHandlers = map[string]eventHandler{
		types.EventRewardPollType:   c.handleEventRewardPoll,
		types.EventRulePollType:     c.handleEventRulePoll,
		types.EventWithdrawPollType: c.handleEventWithdrawPoll,
		types.EventVoteType:         c.handleEventVote,
		types.EventRevokeVoteType:   c.handleEventRevokeVote,
		types.EventFinalizePollType: c.handleEventFinalizePoll,
		types.EventDepositType:      c.handleEventTransfer,
		types.EventWithdrawnType:    c.handleEventTransfer,
		types.EventRoleType:         c.handleEventRole,
		types.EventOwnershipType:    c.handleEventOwnership,
		types.EventRelayType:        c.handleEventRelay,
	}
	return c, nil
}

func (c *ChainIndexer) Close() error {
	return c.db.Close()
}

type eventHandler func(db *gorm.DB, event abci.Event, height int64) error

func (c *ChainIndexer) handleEvent(db *gorm.DB, event abci.Event, height int64) error {
	h, ok := c.eventHandlers[event.Type]
	if !ok {
		return nil
	}
	err := h(db, event, height)
	if errors.Is(err, ErrDecodeEvent) {
		c.logger.Error("decode event fail", "height", height, "event", event)
		return nil
	}
	return err
}

func (c *ChainIndexer) handleEventRewardPoll(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventRewardPoll(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return db.Save(&Poll{
		Id:           ev.Poll,
		Kind:         types.PollKindNameReward,
		Subject:      ev.Reward,
		Proposer:     ev.Proposer,
		Amount:       ev.Amount,
		Duration:     ev.Duration,
		Reward:       -1,
		CreateHeight: uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventRulePoll(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventRulePoll(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return db.Save(&Poll{
		Id:           ev.Poll,
		Kind:         types.PollKindNameRewardRule,
		Subject:      ev.Rule,
		Proposer:     ev.Proposer,
		Amount:       ev.Amount,
		Reward:       -1,
		CreateHeight: uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventWithdrawPoll(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventWithdrawPoll(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return db.Save(&Poll{
		Id:           ev.Poll,
		Kind:         types.PollKindNameWithdraw,
		Member:       ev.Member,
		Amount:       ev.Amount,
		Duration:     ev.Duration,
		Reward:       ev.Reward,
		CreateHeight: uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventVote(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventVote(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return db.Create(&Vote{
		Poll:   ev.Poll,
		Voter:  ev.Voter,
		Agree:  ev.Agree,
		Time:   ev.Time,
		Height: uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventRevokeVote(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventVote(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return db.Model(&Vote{}).
		Where("poll = ? AND voter = ? AND revoked = ?", ev.Poll, ev.Voter, false).
		Update("revoked", true).Error
}

func (c *ChainIndexer) handleEventFinalizePoll(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventFinalizePoll(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	var poll Poll
	if err := db.First(&poll, ev.Poll).Error; err != nil {
		if !gorm.IsRecordNotFoundError(err) {
			return err
		}
		// created before the indexer database was started
		poll = Poll{Id: ev.Poll, Kind: ev.Kind, Subject: ev.Subject}
	}
	poll.Status = PollStatusRejected
	if ev.Approved {
		poll.Status = PollStatusApproved
	}
	poll.Yes = ev.Yes
	poll.No = ev.No
	poll.FinalizeHeight = uint64(height)
	return db.Save(&poll).Error
}

func (c *ChainIndexer) handleEventTransfer(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventTransfer(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return db.Create(&Transfer{
		Kind:      event.Type,
		Sender:    ev.From,
		Recipient: ev.To,
		Amount:    ev.Amount,
		Poll:      ev.Poll,
		Height:    uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventRole(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventRole(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return db.Create(&RoleChange{
		Role:    ev.Role,
		Address: ev.Address,
		Added:   ev.Added,
		By:      ev.By,
		Height:  uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventOwnership(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventOwnership(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return db.Create(&RoleChange{
		Role:    RoleOwner,
		Address: ev.Owner,
		Added:   true,
		By:      ev.Previous,
		Height:  uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventRelay(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventRelay(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return db.Create(&RelayCall{
		Signer:  ev.Signer,
		Nonce:   ev.Nonce,
		Success: ev.Success,
		Data:    ev.Data,
		Height:  uint64(height),
	}).Error
}

// indexBlock records the events of one block and advances the stored height
// in a single sqlite transaction.
func (c *ChainIndexer) indexBlock(height int64, txResults []*abci.ExecTxResult) (err error) {
	db := c.db.Begin()
	if err = db.Error; err != nil {
		return err
	}
	defer func() {
		if err != nil {
			db.Rollback()
		}
	}()
	for i, res := range txResults {
		if res == nil {
			continue
		}
		for _, event := range res.Events {
			if err = c.handleEvent(db, event, height); err != nil {
				return fmt.Errorf("tx %d event %s: %w", i, event.Type, err)
			}
		}
	}
	if err = db.Save(&Height{Id: 1, Height: uint64(height)}).Error; err != nil {
		return err
	}
	return db.Commit().Error
}

func (c *ChainIndexer) reconnect() {
	cli, err := comethttp.New(c.Url, "/websocket")
	if err != nil {
		c.logger.Error("reconnect fail", "err", err)
		return
	}
	c.cli = cli
}

func (c *ChainIndexer) sync(ctx context.Context) error {
	status, err := c.cli.Status(ctx)
	if err != nil {
		return err
	}
	for status.SyncInfo.LatestBlockHeight >= c.Height {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		height := c.Height
		res, err := c.cli.BlockResults(ctx, &height)
		if err != nil {
			return err
		}
		if err = c.indexBlock(height, res.TxsResults); err != nil {
			c.logger.Error("index block fail", "height", height, "err", err)
			return err
		}
		c.logger.Debug("indexed block", "height", height, "txs", len(res.TxsResults))
		c.Height++
	}
	return nil
}

func (c *ChainIndexer) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sync(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("indexer sync fail", "height", c.Height, "err", err)
				c.reconnect()
			}
		}
	}
}

// pageOf clamps a page request.
func pageOf(page int, pageSize int) (offset int, limit int) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 1000 {
		pageSize = 1000
	}
	if page < 0 {
		page = 0
	}
	return page * pageSize, pageSize
}

func (c *ChainIndexer) getHeight() (uint64, error) {
	h := Height{Id: 1}
	if err := c.db.First(&h).Error; err != nil && !gorm.IsRecordNotFoundError(err) {
		return 0, err
	}
	return h.Height, nil
}

type PollFilter struct {
	Kind    string
	Status  *uint64
	Address string
}

func (f *PollFilter) apply(db *gorm.DB) *gorm.DB {
	if f.Kind != "" {
		db = db.Where("kind = ?", f.Kind)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.Address != "" {
		db = db.Where("proposer = ? OR member = ?", f.Address, f.Address)
	}
	return db
}

func (c *ChainIndexer) getPolls(filter PollFilter, page int, pageSize int) ([]Poll, uint64, error) {
	offset, limit := pageOf(page, pageSize)
	var polls []Poll
	err := filter.apply(c.db).Order("id desc").Offset(offset).Limit(limit).Find(&polls).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = filter.apply(c.db.Model(&Poll{})).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return polls, total, nil
}

func (c *ChainIndexer) getPollById(pollId uint64) (Poll, error) {
	var poll Poll
	err := c.db.Where("id = ?", pollId).First(&poll).Error
	if err != nil {
		return Poll{}, err
	}
	return poll, nil
}

func (c *ChainIndexer) getVotesByPoll(poll uint64, page int, pageSize int) ([]Vote, error) {
	offset, limit := pageOf(page, pageSize)
	var votes []Vote
	err := c.db.Where("poll = ?", poll).Order("id desc").Offset(offset).Limit(limit).Find(&votes).Error
	if err != nil {
		return nil, err
	}
	return votes, nil
}

func (c *ChainIndexer) getVotesByVoter(voter string, page int, pageSize int) ([]Vote, error) {
	offset, limit := pageOf(page, pageSize)
	var votes []Vote
	err := c.db.Where("voter = ?", voter).Order("id desc").Offset(offset).Limit(limit).Find(&votes).Error
	if err != nil {
		return nil, err
	}
	return votes, nil
}

func (c *ChainIndexer) getTransfers(address string, page int, pageSize int) ([]Transfer, uint64, error) {
	offset, limit := pageOf(page, pageSize)
	db := c.db
	if address != "" {
		db = db.Where("sender = ? OR recipient = ?", address, address)
	}
	var transfers []Transfer
	err := db.Order("id desc").Offset(offset).Limit(limit).Find(&transfers).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = db.Model(&Transfer{}).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return transfers, total, nil
}

func (c *ChainIndexer) getRoleChanges(address string, page int, pageSize int) ([]RoleChange, uint64, error) {
	offset, limit := pageOf(page, pageSize)
	db := c.db
	if address != "" {
		db = db.Where("address = ?", address)
	}
	var changes []RoleChange
	err := db.Order("id desc").Offset(offset).Limit(limit).Find(&changes).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = db.Model(&RoleChange{}).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return changes, total, nil
}

func (c *ChainIndexer) getRelayCalls(signer string, page int, pageSize int) ([]RelayCall, uint64, error) {
	offset, limit := pageOf(page, pageSize)
	db := c.db
	if signer != "" {
		db = db.Where("signer = ?", signer)
	}
	var calls []RelayCall
	err := db.Order("id desc").Offset(offset).Limit(limit).Find(&calls).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = db.Model(&RelayCall{}).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return calls, total, nil
}
