package pool

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Snapshot is the persisted form of a pool. Slices are ordered by id or
// address so encoding it is deterministic.
type Snapshot struct {
	Initialized                 bool             `json:"initialized"`
	Owner                       common.Address   `json:"owner"`
	Token                       common.Address   `json:"token"`
	Managers                    []common.Address `json:"managers"`
	Members                     []common.Address `json:"members"`
	RewardPollDuration          uint64           `json:"rewardPollDuration"`
	ProposeWithdrawPollDuration uint64           `json:"proposeWithdrawPollDuration"`
	RewardRulePollDuration      uint64           `json:"rewardRulePollDuration"`
	Rewards                     []*Reward        `json:"rewards"`
	Rules                       []*RewardRule    `json:"rules"`
	Polls                       []*Poll          `json:"polls"`
	PollMaxIndex                uint64           `json:"pollMaxIndex"`
	Nonces                      []NonceEntry     `json:"nonces"`
}

type NonceEntry struct {
	Address common.Address `json:"address"`
	Nonce   uint64         `json:"nonce"`
}

func (p *Pool) Snapshot() *Snapshot {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.snapshot()
}

// Restore replaces the pool contents with snap.
func (p *Pool) Restore(snap *Snapshot) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.restore(snap)
}

func (p *Pool) snapshot() *Snapshot {
	snap := &Snapshot{
		Initialized:                 p.initialized,
		Owner:                       p.owner,
		Token:                       p.token,
		Managers:                    sortedAddresses(p.managers),
		Members:                     sortedAddresses(p.members),
		RewardPollDuration:          p.rewardPollDuration,
		ProposeWithdrawPollDuration: p.proposeWithdrawPollDuration,
		RewardRulePollDuration:      p.rewardRulePollDuration,
		Rewards:                     make([]*Reward, len(p.rewards)),
		Rules:                       make([]*RewardRule, len(p.rules)),
		Polls:                       p.livePolls(func(*Poll) bool { return true }),
		PollMaxIndex:                p.pollMaxIndex,
		Nonces:                      make([]NonceEntry, 0, len(p.nonces)),
	}
	for i, r := range p.rewards {
		snap.Rewards[i] = r.clone()
	}
	for i, r := range p.rules {
		snap.Rules[i] = r.clone()
	}
	for addr, nonce := range p.nonces {
		snap.Nonces = append(snap.Nonces, NonceEntry{Address: addr, Nonce: nonce})
	}
	sort.Slice(snap.Nonces, func(i, j int) bool {
		return snap.Nonces[i].Address.Cmp(snap.Nonces[j].Address) < 0
	})
	return snap
}

func (p *Pool) restore(snap *Snapshot) {
	p.initialized = snap.Initialized
	p.owner = snap.Owner
	p.token = snap.Token
	p.managers = make(map[common.Address]bool, len(snap.Managers))
	for _, addr := range snap.Managers {
		p.managers[addr] = true
	}
	p.members = make(map[common.Address]bool, len(snap.Members))
	for _, addr := range snap.Members {
		p.members[addr] = true
	}
	p.rewardPollDuration = snap.RewardPollDuration
	p.proposeWithdrawPollDuration = snap.ProposeWithdrawPollDuration
	p.rewardRulePollDuration = snap.RewardRulePollDuration
	p.rewards = make([]*Reward, len(snap.Rewards))
	for i, r := range snap.Rewards {
		p.rewards[i] = r.clone()
	}
	p.rules = make([]*RewardRule, len(snap.Rules))
	for i, r := range snap.Rules {
		p.rules[i] = r.clone()
	}
	p.polls = make(map[uint64]*Poll, len(snap.Polls))
	for _, pl := range snap.Polls {
		n := pl.clone()
		if n.Votes == nil {
			n.Votes = make(map[common.Address]Vote)
		}
		p.polls[n.ID] = n
	}
	p.pollMaxIndex = snap.PollMaxIndex
	p.nonces = make(map[common.Address]uint64, len(snap.Nonces))
	for _, e := range snap.Nonces {
		p.nonces[e.Address] = e.Nonce
	}
}
