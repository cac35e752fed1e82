package pool

import (
	"github.com/calehh/assetpool/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func (p *Pool) ProposeWithdraw(from Sender, amount *uint256.Int, beneficiary common.Address) (*types.EventWithdrawPoll, error) {
	var ev *types.EventWithdrawPoll
	_, err := p.run(func() (err error) {
		ev, err = p.proposeWithdraw(from, amount, beneficiary)
		return
	})
	return ev, err
}

// WithdrawPollsOf returns the ids of live withdraw polls paying beneficiary.
func (p *Pool) WithdrawPollsOf(beneficiary common.Address) []uint64 {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	polls := p.livePolls(func(pl *Poll) bool {
		return pl.Kind == PollKindWithdraw && pl.Withdraw.Beneficiary == beneficiary
	})
	ids := make([]uint64, len(polls))
	for i, pl := range polls {
		ids[i] = pl.ID
	}
	return ids
}

func (p *Pool) proposeWithdraw(from Sender, amount *uint256.Int, beneficiary common.Address) (*types.EventWithdrawPoll, error) {
	if !from.Relayed {
		return nil, types.ErrNotGasStation
	}
	if !p.members[from.Addr] || !p.members[beneficiary] {
		return nil, types.ErrNotMember
	}
	if amount == nil || isSentinel(amount) {
		return nil, types.ErrNotValid
	}
	return p.proposeWithdrawPoll(from, beneficiary, amount.Clone(), p.proposeWithdrawPollDuration, -1), nil
}

func (p *Pool) proposeWithdrawPoll(from Sender, beneficiary common.Address, amount *uint256.Int, duration uint64, reward int64) *types.EventWithdrawPoll {
	pl := p.newPoll(PollKindWithdraw, from.Addr, duration)
	pl.Withdraw = &WithdrawProposal{
		Beneficiary: beneficiary,
		Amount:      amount,
		Reward:      reward,
	}
	ev := &types.EventWithdrawPoll{
		Poll:     pl.ID,
		Member:   beneficiary.Hex(),
		Amount:   amount.Dec(),
		Duration: duration,
		Reward:   reward,
	}
	p.logger.Info("withdraw poll created", "poll", pl.ID, "member", beneficiary, "amount", ev.Amount, "reward", reward)
	p.emit(types.EncodeEventWithdrawPoll(ev))
	return ev
}

// applyWithdrawPoll pays out an approved withdrawal. A failed transfer leaves
// the poll live so finalize can be retried once custody is funded.
func (p *Pool) applyWithdrawPoll(pl *Poll, approved bool) error {
	if !approved {
		return nil
	}
	w := pl.Withdraw
	err := p.ledger.Transfer(p.address, w.Beneficiary, w.Amount)
	if err != nil {
		p.logger.Error("withdraw transfer fail", "poll", pl.ID, "member", w.Beneficiary, "err", err)
		return err
	}
	p.emit(types.EncodeEventWithdrawn(&types.EventTransfer{
		From:   p.address.Hex(),
		To:     w.Beneficiary.Hex(),
		Amount: w.Amount.Dec(),
		Poll:   pl.ID,
	}))
	return nil
}
