package pool

import (
	"github.com/calehh/assetpool/types"
	"github.com/holiman/uint256"
)

// RewardRule is an amount-only reward definition whose changes are voted by
// members rather than managers.
type RewardRule struct {
	ID     uint64       `json:"id"`
	Amount *uint256.Int `json:"amount"`
	State  RewardState  `json:"state"`
	Poll   uint64       `json:"poll"`
}

func (r *RewardRule) clone() *RewardRule {
	n := *r
	n.Amount = cloneAmount(r.Amount)
	return &n
}

func (p *Pool) RewardRule(id uint64) (*RewardRule, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	r, err := p.getRule(id)
	if err != nil {
		return nil, err
	}
	return r.clone(), nil
}

func (p *Pool) RewardRules() []*RewardRule {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	res := make([]*RewardRule, len(p.rules))
	for i, r := range p.rules {
		res[i] = r.clone()
	}
	return res
}

func (p *Pool) getRule(id uint64) (*RewardRule, error) {
	if id >= uint64(len(p.rules)) {
		return nil, types.ErrNotFound
	}
	return p.rules[id], nil
}

func (p *Pool) AddRewardRule(from Sender, amount *uint256.Int) (*types.EventRulePoll, error) {
	var ev *types.EventRulePoll
	_, err := p.run(func() (err error) {
		ev, err = p.addRewardRule(from, amount)
		return
	})
	return ev, err
}

func (p *Pool) UpdateRewardRule(from Sender, id uint64, amount *uint256.Int) (*types.EventRulePoll, error) {
	var ev *types.EventRulePoll
	_, err := p.run(func() (err error) {
		ev, err = p.updateRewardRule(from, id, amount)
		return
	})
	return ev, err
}

func (p *Pool) addRewardRule(from Sender, amount *uint256.Int) (*types.EventRulePoll, error) {
	if from.Addr != p.owner {
		return nil, types.ErrNotOwner
	}
	if amount == nil || amount.IsZero() || isSentinel(amount) {
		return nil, types.ErrNotValid
	}
	r := &RewardRule{
		ID:     uint64(len(p.rules)),
		Amount: new(uint256.Int),
		State:  RewardDisabled,
	}
	p.rules = append(p.rules, r)
	return p.proposeRule(from, r, amount.Clone()), nil
}

// updateRewardRule proposes a new amount for a rule. A zero amount proposes
// disabling it.
func (p *Pool) updateRewardRule(from Sender, id uint64, amount *uint256.Int) (*types.EventRulePoll, error) {
	if !from.Relayed {
		return nil, types.ErrNotGasStation
	}
	if !p.managers[from.Addr] {
		return nil, types.ErrNotManager
	}
	r, err := p.getRule(id)
	if err != nil {
		return nil, err
	}
	if r.Poll != 0 {
		return nil, types.ErrNotFinalized
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	if isSentinel(amount) {
		return nil, types.ErrNotValid
	}
	if amount.IsZero() && r.State == RewardDisabled {
		return nil, types.ErrAlreadyDisable
	}
	if r.State == RewardEnabled && amount.Eq(r.Amount) {
		return nil, types.ErrIsEqual
	}
	return p.proposeRule(from, r, amount.Clone()), nil
}

func (p *Pool) proposeRule(from Sender, r *RewardRule, amount *uint256.Int) *types.EventRulePoll {
	pl := p.newPoll(PollKindRewardRule, from.Addr, p.rewardRulePollDuration)
	pl.Rule = &RuleProposal{
		Rule:   r.ID,
		Amount: amount,
	}
	r.Poll = pl.ID
	ev := &types.EventRulePoll{
		Rule:     r.ID,
		Poll:     pl.ID,
		Amount:   amount.Dec(),
		Proposer: from.Addr.Hex(),
	}
	p.logger.Info("reward rule poll created", "rule", r.ID, "poll", pl.ID, "amount", ev.Amount)
	p.emit(types.EncodeEventRulePoll(ev))
	return ev
}

func (p *Pool) applyRulePoll(pl *Poll, approved bool) error {
	r, err := p.getRule(pl.Rule.Rule)
	if err != nil {
		return err
	}
	if approved {
		if err = checkStoredAmount(pl.Rule.Amount); err != nil {
			p.logger.Error("rule poll carries a reserved amount", "poll", pl.ID, "rule", r.ID)
			return err
		}
	}
	r.Poll = 0
	if !approved {
		return nil
	}
	if pl.Rule.Amount.IsZero() {
		r.State = RewardDisabled
		return nil
	}
	r.State = RewardEnabled
	r.Amount = pl.Rule.Amount.Clone()
	return nil
}
