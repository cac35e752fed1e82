package pool

import (
	"sort"
	"sync"

	"github.com/calehh/assetpool/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type Clock interface {
	Now() uint64
}

// Ledger is the token ledger holding pool custody. Transfer must either move
// the full amount or fail without effect.
type Ledger interface {
	BalanceOf(addr common.Address) *uint256.Int
	Transfer(from, to common.Address, amount *uint256.Int) error
}

// Sender identifies who invokes an operation and whether it arrived through
// the relay.
type Sender struct {
	Addr    common.Address
	Relayed bool
}

func Direct(addr common.Address) Sender {
	return Sender{Addr: addr}
}

func relayed(addr common.Address) Sender {
	return Sender{Addr: addr, Relayed: true}
}

type Config struct {
	// Address holds the pool's token custody.
	Address common.Address
	// RelayAddress is bound into every relay digest.
	RelayAddress common.Address

	RewardPollDuration          uint64
	ProposeWithdrawPollDuration uint64
	RewardRulePollDuration      uint64
}

type Pool struct {
	mtx sync.Mutex

	logger cmtlog.Logger
	clock  Clock
	ledger Ledger

	address      common.Address
	relayAddress common.Address

	initialized bool
	owner       common.Address
	token       common.Address
	managers    map[common.Address]bool
	members     map[common.Address]bool

	rewardPollDuration          uint64
	proposeWithdrawPollDuration uint64
	rewardRulePollDuration      uint64

	rewards      []*Reward
	rules        []*RewardRule
	polls        map[uint64]*Poll
	pollMaxIndex uint64
	nonces       map[common.Address]uint64

	pending []abcitypes.Event
}

func New(cfg Config, ledger Ledger, clock Clock, logger cmtlog.Logger) *Pool {
	return &Pool{
		logger:                      logger.With("module", "pool"),
		clock:                       clock,
		ledger:                      ledger,
		address:                     cfg.Address,
		relayAddress:                cfg.RelayAddress,
		managers:                    make(map[common.Address]bool),
		members:                     make(map[common.Address]bool),
		rewardPollDuration:          cfg.RewardPollDuration,
		proposeWithdrawPollDuration: cfg.ProposeWithdrawPollDuration,
		rewardRulePollDuration:      cfg.RewardRulePollDuration,
		polls:                       make(map[uint64]*Poll),
		nonces:                      make(map[common.Address]uint64),
	}
}

// Initialize performs the one-time setup. The owner starts out as a manager
// and a member.
func (p *Pool) Initialize(owner, token common.Address) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.initialized {
		return types.ErrInitialized
	}
	if owner == (common.Address{}) {
		return types.ErrNotValid
	}
	p.initialized = true
	p.owner = owner
	p.token = token
	p.managers[owner] = true
	p.members[owner] = true
	p.logger.Info("pool initialized", "owner", owner, "token", token)
	return nil
}

func (p *Pool) emit(ev abcitypes.Event) {
	p.pending = append(p.pending, ev)
}

// run executes fn with the lock held and returns the events fn emitted. A
// failed fn emits nothing.
func (p *Pool) run(fn func() error) ([]abcitypes.Event, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.exec(fn)
}

func (p *Pool) exec(fn func() error) (events []abcitypes.Event, err error) {
	p.pending = nil
	defer func() {
		p.pending = nil
	}()
	if !p.initialized {
		return nil, types.ErrNotInitialized
	}
	err = fn()
	if err != nil {
		return nil, err
	}
	return p.pending, nil
}

// Execute runs action on behalf of from. It is the direct-call counterpart of
// the relay.
func (p *Pool) Execute(from Sender, target uint64, action Action) ([]abcitypes.Event, error) {
	return p.run(func() error {
		return p.dispatch(from, target, action)
	})
}

func (p *Pool) Address() common.Address {
	return p.address
}

func (p *Pool) RelayAddress() common.Address {
	return p.relayAddress
}

func (p *Pool) Initialized() bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.initialized
}

func (p *Pool) Token() common.Address {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.token
}

func (p *Pool) Balance() *uint256.Int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.ledger.BalanceOf(p.address)
}

func (p *Pool) RewardPollDuration() uint64 {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.rewardPollDuration
}

func (p *Pool) ProposeWithdrawPollDuration() uint64 {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.proposeWithdrawPollDuration
}

func (p *Pool) RewardRulePollDuration() uint64 {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.rewardRulePollDuration
}

func (p *Pool) SetRewardPollDuration(from Sender, duration uint64) error {
	_, err := p.run(func() error {
		return p.setPollDuration(from, types.PollDurationReward, duration)
	})
	return err
}

func (p *Pool) SetProposeWithdrawPollDuration(from Sender, duration uint64) error {
	_, err := p.run(func() error {
		return p.setPollDuration(from, types.PollDurationWithdraw, duration)
	})
	return err
}

func (p *Pool) SetRewardRulePollDuration(from Sender, duration uint64) error {
	_, err := p.run(func() error {
		return p.setPollDuration(from, types.PollDurationRewardRule, duration)
	})
	return err
}

func (p *Pool) setPollDuration(from Sender, kind string, duration uint64) error {
	if !p.managers[from.Addr] {
		return types.ErrNotManager
	}
	switch kind {
	case types.PollDurationReward:
		p.rewardPollDuration = duration
	case types.PollDurationWithdraw:
		p.proposeWithdrawPollDuration = duration
	case types.PollDurationRewardRule:
		p.rewardRulePollDuration = duration
	default:
		return types.ErrNotValid
	}
	p.emit(types.EncodeEventPollDuration(&types.EventPollDuration{
		Poll:     kind,
		Duration: duration,
		By:       from.Addr.Hex(),
	}))
	return nil
}

// Deposit moves amount from the sender into pool custody.
func (p *Pool) Deposit(from Sender, amount *uint256.Int) error {
	_, err := p.run(func() error {
		return p.deposit(from, amount)
	})
	return err
}

func (p *Pool) deposit(from Sender, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return types.ErrNotValid
	}
	err := p.ledger.Transfer(from.Addr, p.address, amount)
	if err != nil {
		return err
	}
	p.emit(types.EncodeEventDeposit(&types.EventTransfer{
		From:   from.Addr.Hex(),
		To:     p.address.Hex(),
		Amount: amount.Dec(),
	}))
	return nil
}

// Clone returns an independent copy of the pool bound to ledger and clock.
// The caller is responsible for ledger being a copy of the current one.
func (p *Pool) Clone(ledger Ledger, clock Clock) *Pool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	n := New(Config{
		Address:                     p.address,
		RelayAddress:                p.relayAddress,
		RewardPollDuration:          p.rewardPollDuration,
		ProposeWithdrawPollDuration: p.proposeWithdrawPollDuration,
		RewardRulePollDuration:      p.rewardRulePollDuration,
	}, ledger, clock, cmtlog.NewNopLogger())
	n.logger = p.logger
	n.restore(p.snapshot())
	return n
}

func sortedAddresses(set map[common.Address]bool) []common.Address {
	res := make([]common.Address, 0, len(set))
	for addr, ok := range set {
		if ok {
			res = append(res, addr)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Cmp(res[j]) < 0
	})
	return res
}
