package pool

import (
	"math"
	"sort"

	"github.com/calehh/assetpool/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type PollKind uint8

const (
	PollKindReward     PollKind = 1
	PollKindRewardRule PollKind = 2
	PollKindWithdraw   PollKind = 3
)

func (k PollKind) String() string {
	switch k {
	case PollKindReward:
		return types.PollKindNameReward
	case PollKindRewardRule:
		return types.PollKindNameRewardRule
	case PollKindWithdraw:
		return types.PollKindNameWithdraw
	}
	return "unknown"
}

type Vote struct {
	Time   uint64 `json:"time"`
	Weight uint64 `json:"weight"`
	Agree  bool   `json:"agree"`
}

// RewardProposal is the payload of a reward poll. A WithdrawAmount equal to
// DisableReward marks a disable directive.
type RewardProposal struct {
	Reward           uint64       `json:"reward"`
	WithdrawAmount   *uint256.Int `json:"withdrawAmount"`
	WithdrawDuration uint64       `json:"withdrawDuration"`
}

type RuleProposal struct {
	Rule   uint64       `json:"rule"`
	Amount *uint256.Int `json:"amount"`
}

type WithdrawProposal struct {
	Beneficiary common.Address `json:"beneficiary"`
	Amount      *uint256.Int   `json:"amount"`
	// Reward is the claimed reward, -1 for a direct proposal.
	Reward int64 `json:"reward"`
}

// Poll is a time-bound yes/no vote on one proposed change. Exactly one of the
// payload fields is set, selected by Kind.
type Poll struct {
	ID          uint64                  `json:"id"`
	Kind        PollKind                `json:"kind"`
	Proposer    common.Address          `json:"proposer"`
	StartTime   uint64                  `json:"startTime"`
	EndTime     uint64                  `json:"endTime"`
	YesCounter  uint64                  `json:"yesCounter"`
	NoCounter   uint64                  `json:"noCounter"`
	TotalVoted  uint64                  `json:"totalVoted"`
	BypassVotes bool                    `json:"bypassVotes"`
	Finalized   bool                    `json:"finalized"`
	Votes       map[common.Address]Vote `json:"votes"`
	Reward      *RewardProposal         `json:"reward,omitempty"`
	Rule        *RuleProposal           `json:"rule,omitempty"`
	Withdraw    *WithdrawProposal       `json:"withdraw,omitempty"`
}

// ApprovalState reports whether the poll would pass if finalized now. Ties and
// an empty tally do not pass unless votes are bypassed.
func (pl *Poll) ApprovalState() bool {
	return pl.BypassVotes || pl.YesCounter > pl.NoCounter
}

func (pl *Poll) decidable(now uint64) bool {
	return pl.BypassVotes || now >= pl.EndTime
}

// Open reports whether votes are still accepted at now.
func (pl *Poll) Open(now uint64) bool {
	return !pl.Finalized && !pl.decidable(now)
}

func (pl *Poll) clone() *Poll {
	n := *pl
	n.Votes = make(map[common.Address]Vote, len(pl.Votes))
	for k, v := range pl.Votes {
		n.Votes[k] = v
	}
	if pl.Reward != nil {
		r := *pl.Reward
		r.WithdrawAmount = cloneAmount(pl.Reward.WithdrawAmount)
		n.Reward = &r
	}
	if pl.Rule != nil {
		r := *pl.Rule
		r.Amount = cloneAmount(pl.Rule.Amount)
		n.Rule = &r
	}
	if pl.Withdraw != nil {
		w := *pl.Withdraw
		w.Amount = cloneAmount(pl.Withdraw.Amount)
		n.Withdraw = &w
	}
	return &n
}

func (p *Pool) newPoll(kind PollKind, proposer common.Address, duration uint64) *Poll {
	now := p.clock.Now()
	end := now + duration
	if end < now {
		end = math.MaxUint64
	}
	p.pollMaxIndex += 1
	pl := &Poll{
		ID:          p.pollMaxIndex,
		Kind:        kind,
		Proposer:    proposer,
		StartTime:   now,
		EndTime:     end,
		BypassVotes: duration == 0,
		Votes:       make(map[common.Address]Vote),
	}
	p.polls[pl.ID] = pl
	p.logger.Debug("poll created", "poll", pl.ID, "kind", kind, "end", pl.EndTime)
	return pl
}

func (p *Pool) getPoll(id uint64) (*Poll, error) {
	pl, ok := p.polls[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return pl, nil
}

// canVote checks voter eligibility for the kind of pl.
func (p *Pool) canVote(pl *Poll, voter common.Address) error {
	switch pl.Kind {
	case PollKindRewardRule:
		if !p.members[voter] {
			return types.ErrNoMember
		}
	default:
		if !p.managers[voter] {
			return types.ErrNoManager
		}
	}
	return nil
}

// Poll returns a copy of the live poll id.
func (p *Pool) Poll(id uint64) (*Poll, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	pl, err := p.getPoll(id)
	if err != nil {
		return nil, err
	}
	return pl.clone(), nil
}

// Polls returns copies of all live polls ordered by id.
func (p *Pool) Polls() []*Poll {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.livePolls(func(*Poll) bool { return true })
}

func (p *Pool) livePolls(filter func(*Poll) bool) []*Poll {
	res := make([]*Poll, 0, len(p.polls))
	for _, pl := range p.polls {
		if filter(pl) {
			res = append(res, pl.clone())
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ID < res[j].ID
	})
	return res
}

func (p *Pool) ApprovalState(id uint64) (bool, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	pl, err := p.getPoll(id)
	if err != nil {
		return false, err
	}
	return pl.ApprovalState(), nil
}

func (p *Pool) Vote(from Sender, poll uint64, agree bool) error {
	_, err := p.run(func() error {
		return p.vote(from, poll, agree)
	})
	return err
}

func (p *Pool) RevokeVote(from Sender, poll uint64) error {
	_, err := p.run(func() error {
		return p.revokeVote(from, poll)
	})
	return err
}

// Finalize applies the outcome of a decidable poll and removes it. Anyone may
// finalize.
func (p *Pool) Finalize(from Sender, poll uint64) (*types.EventFinalizePoll, error) {
	var ev *types.EventFinalizePoll
	_, err := p.run(func() (err error) {
		ev, err = p.finalize(from, poll)
		return
	})
	return ev, err
}

func (p *Pool) TryToFinalize(from Sender, poll uint64) (*types.EventFinalizePoll, error) {
	return p.Finalize(from, poll)
}

func (p *Pool) vote(from Sender, id uint64, agree bool) error {
	if !from.Relayed {
		return types.ErrNotGasStation
	}
	pl, err := p.getPoll(id)
	if err != nil {
		return err
	}
	err = p.canVote(pl, from.Addr)
	if err != nil {
		return err
	}
	now := p.clock.Now()
	if !pl.Open(now) {
		return types.ErrWrongState
	}
	if _, ok := pl.Votes[from.Addr]; ok {
		return types.ErrHasVoted
	}
	v := Vote{Time: now, Weight: 1, Agree: agree}
	pl.Votes[from.Addr] = v
	if agree {
		pl.YesCounter += v.Weight
	} else {
		pl.NoCounter += v.Weight
	}
	pl.TotalVoted += 1
	p.emit(types.EncodeEventVote(&types.EventVote{
		Poll:  id,
		Voter: from.Addr.Hex(),
		Agree: agree,
		Time:  now,
	}))
	return nil
}

func (p *Pool) revokeVote(from Sender, id uint64) error {
	if !from.Relayed {
		return types.ErrNotGasStation
	}
	pl, err := p.getPoll(id)
	if err != nil {
		return err
	}
	now := p.clock.Now()
	if !pl.Open(now) {
		return types.ErrWrongState
	}
	// a voter who lost the role may still take back an active vote
	v, ok := pl.Votes[from.Addr]
	if !ok {
		return types.ErrHasNotVoted
	}
	if v.Agree {
		pl.YesCounter -= v.Weight
	} else {
		pl.NoCounter -= v.Weight
	}
	pl.TotalVoted -= 1
	delete(pl.Votes, from.Addr)
	p.emit(types.EncodeEventRevokeVote(&types.EventVote{
		Poll:  id,
		Voter: from.Addr.Hex(),
		Agree: v.Agree,
		Time:  now,
	}))
	return nil
}

func (p *Pool) finalize(from Sender, id uint64) (*types.EventFinalizePoll, error) {
	pl, err := p.getPoll(id)
	if err != nil {
		return nil, err
	}
	if !pl.decidable(p.clock.Now()) {
		return nil, types.ErrWrongState
	}
	approved := pl.ApprovalState()
	ev := &types.EventFinalizePoll{
		Poll:     pl.ID,
		Kind:     pl.Kind.String(),
		Approved: approved,
		Yes:      pl.YesCounter,
		No:       pl.NoCounter,
	}
	switch pl.Kind {
	case PollKindReward:
		ev.Subject = pl.Reward.Reward
		err = p.applyRewardPoll(pl, approved)
	case PollKindRewardRule:
		ev.Subject = pl.Rule.Rule
		err = p.applyRulePoll(pl, approved)
	case PollKindWithdraw:
		err = p.applyWithdrawPoll(pl, approved)
	default:
		err = types.ErrNotPoll
	}
	if err != nil {
		return nil, err
	}
	pl.Finalized = true
	delete(p.polls, pl.ID)
	p.logger.Info("poll finalized", "poll", pl.ID, "kind", pl.Kind, "approved", approved, "by", from.Addr)
	p.emit(types.EncodeEventFinalizePoll(ev))
	return ev, nil
}
