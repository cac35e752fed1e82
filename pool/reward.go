package pool

import (
	"github.com/calehh/assetpool/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EnableReward and DisableReward are reserved UpdateReward amounts that toggle
// a reward's state instead of setting its amount. They are never stored as a
// reward amount.
var (
	EnableReward  = new(uint256.Int).Lsh(uint256.NewInt(1), 250)
	DisableReward = new(uint256.Int).Lsh(uint256.NewInt(1), 251)
)

type RewardState uint8

const (
	RewardDisabled RewardState = 0
	RewardEnabled  RewardState = 1
)

func (s RewardState) String() string {
	if s == RewardEnabled {
		return "enabled"
	}
	return "disabled"
}

type Reward struct {
	ID               uint64       `json:"id"`
	WithdrawAmount   *uint256.Int `json:"withdrawAmount"`
	WithdrawDuration uint64       `json:"withdrawDuration"`
	State            RewardState  `json:"state"`
	// Poll is the live poll proposing a change, 0 when none.
	Poll uint64 `json:"poll"`
}

func (r *Reward) clone() *Reward {
	n := *r
	n.WithdrawAmount = cloneAmount(r.WithdrawAmount)
	return &n
}

func cloneAmount(a *uint256.Int) *uint256.Int {
	if a == nil {
		return new(uint256.Int)
	}
	return a.Clone()
}

func isSentinel(a *uint256.Int) bool {
	return a.Eq(EnableReward) || a.Eq(DisableReward)
}

// checkStoredAmount guards every write of a reward amount.
func checkStoredAmount(a *uint256.Int) error {
	if isSentinel(a) {
		return types.ErrNotValid
	}
	return nil
}

func (p *Pool) Reward(id uint64) (*Reward, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	r, err := p.getReward(id)
	if err != nil {
		return nil, err
	}
	return r.clone(), nil
}

func (p *Pool) Rewards() []*Reward {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	res := make([]*Reward, len(p.rewards))
	for i, r := range p.rewards {
		res[i] = r.clone()
	}
	return res
}

func (p *Pool) getReward(id uint64) (*Reward, error) {
	if id >= uint64(len(p.rewards)) {
		return nil, types.ErrNotFound
	}
	return p.rewards[id], nil
}

func (p *Pool) AddReward(from Sender, amount *uint256.Int, duration uint64) (*types.EventRewardPoll, error) {
	var ev *types.EventRewardPoll
	_, err := p.run(func() (err error) {
		ev, err = p.addReward(from, amount, duration)
		return
	})
	return ev, err
}

func (p *Pool) UpdateReward(from Sender, id uint64, amount *uint256.Int, duration uint64) (*types.EventRewardPoll, error) {
	var ev *types.EventRewardPoll
	_, err := p.run(func() (err error) {
		ev, err = p.updateReward(from, id, amount, duration)
		return
	})
	return ev, err
}

func (p *Pool) ClaimReward(from Sender, id uint64) (*types.EventWithdrawPoll, error) {
	var ev *types.EventWithdrawPoll
	_, err := p.run(func() (err error) {
		ev, err = p.claimReward(from, id, from.Addr)
		return
	})
	return ev, err
}

func (p *Pool) ClaimRewardFor(from Sender, id uint64, beneficiary common.Address) (*types.EventWithdrawPoll, error) {
	var ev *types.EventWithdrawPoll
	_, err := p.run(func() (err error) {
		ev, err = p.claimReward(from, id, beneficiary)
		return
	})
	return ev, err
}

func (p *Pool) addReward(from Sender, amount *uint256.Int, duration uint64) (*types.EventRewardPoll, error) {
	if from.Addr != p.owner {
		return nil, types.ErrNotOwner
	}
	if amount == nil || isSentinel(amount) {
		return nil, types.ErrNotValid
	}
	r := &Reward{
		ID:             uint64(len(p.rewards)),
		WithdrawAmount: new(uint256.Int),
		State:          RewardDisabled,
	}
	p.rewards = append(p.rewards, r)
	return p.proposeReward(from, r, amount.Clone(), duration), nil
}

func (p *Pool) updateReward(from Sender, id uint64, amount *uint256.Int, duration uint64) (*types.EventRewardPoll, error) {
	if !from.Relayed {
		return nil, types.ErrNotGasStation
	}
	if !p.members[from.Addr] {
		return nil, types.ErrNotMember
	}
	r, err := p.getReward(id)
	if err != nil {
		return nil, err
	}
	if r.Poll != 0 {
		return nil, types.ErrNotFinalized
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	var proposed *uint256.Int
	var proposedDuration uint64
	switch {
	case amount.IsZero() && duration == 0:
		return nil, types.ErrNotAllowed
	case amount.Eq(EnableReward):
		if r.State == RewardEnabled {
			return nil, types.ErrAlreadyEnabled
		}
		proposed, proposedDuration = r.WithdrawAmount.Clone(), r.WithdrawDuration
	case amount.Eq(DisableReward):
		if r.State == RewardDisabled {
			return nil, types.ErrAlreadyDisable
		}
		proposed, proposedDuration = DisableReward.Clone(), r.WithdrawDuration
	default:
		proposed, proposedDuration = amount.Clone(), duration
		if proposed.IsZero() {
			proposed = r.WithdrawAmount.Clone()
		}
		if proposedDuration == 0 {
			proposedDuration = r.WithdrawDuration
		}
		if r.State == RewardEnabled && proposed.Eq(r.WithdrawAmount) && proposedDuration == r.WithdrawDuration {
			return nil, types.ErrIsEqual
		}
	}
	return p.proposeReward(from, r, proposed, proposedDuration), nil
}

func (p *Pool) proposeReward(from Sender, r *Reward, amount *uint256.Int, duration uint64) *types.EventRewardPoll {
	pl := p.newPoll(PollKindReward, from.Addr, p.rewardPollDuration)
	pl.Reward = &RewardProposal{
		Reward:           r.ID,
		WithdrawAmount:   amount,
		WithdrawDuration: duration,
	}
	r.Poll = pl.ID
	ev := &types.EventRewardPoll{
		Reward:   r.ID,
		Poll:     pl.ID,
		Amount:   amount.Dec(),
		Duration: duration,
		Proposer: from.Addr.Hex(),
	}
	p.logger.Info("reward poll created", "reward", r.ID, "poll", pl.ID, "amount", ev.Amount, "duration", duration)
	p.emit(types.EncodeEventRewardPoll(ev))
	return ev
}

func (p *Pool) applyRewardPoll(pl *Poll, approved bool) error {
	r, err := p.getReward(pl.Reward.Reward)
	if err != nil {
		return err
	}
	disable := pl.Reward.WithdrawAmount.Eq(DisableReward)
	if approved && !disable {
		if err = checkStoredAmount(pl.Reward.WithdrawAmount); err != nil {
			p.logger.Error("reward poll carries a reserved amount", "poll", pl.ID, "reward", r.ID)
			return err
		}
	}
	r.Poll = 0
	if !approved {
		return nil
	}
	if disable {
		r.State = RewardDisabled
		return nil
	}
	r.State = RewardEnabled
	r.WithdrawAmount = pl.Reward.WithdrawAmount.Clone()
	r.WithdrawDuration = pl.Reward.WithdrawDuration
	return nil
}

func (p *Pool) claimReward(from Sender, id uint64, beneficiary common.Address) (*types.EventWithdrawPoll, error) {
	if !from.Relayed {
		return nil, types.ErrNotGasStation
	}
	if !p.members[from.Addr] || !p.members[beneficiary] {
		return nil, types.ErrNotMember
	}
	r, err := p.getReward(id)
	if err != nil {
		return nil, err
	}
	if r.State != RewardEnabled {
		return nil, types.ErrNotEnabled
	}
	return p.proposeWithdrawPoll(from, beneficiary, r.WithdrawAmount.Clone(), r.WithdrawDuration, int64(r.ID)), nil
}
