package token

import (
	"sort"
	"sync"

	"github.com/calehh/assetpool/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Ledger keeps fungible token balances in application state.
type Ledger struct {
	mtx      sync.RWMutex
	balances map[common.Address]*uint256.Int
}

type Balance struct {
	Address common.Address `json:"address"`
	Amount  *uint256.Int   `json:"amount"`
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]*uint256.Int),
	}
}

func (l *Ledger) BalanceOf(addr common.Address) *uint256.Int {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	b, ok := l.balances[addr]
	if !ok {
		return new(uint256.Int)
	}
	return b.Clone()
}

// Transfer moves amount from one holder to another. It fails without effect
// when from cannot cover amount.
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if amount == nil {
		return types.ErrNotValid
	}
	fb, ok := l.balances[from]
	if !ok {
		fb = new(uint256.Int)
	}
	if fb.Lt(amount) {
		return types.ErrNoBalance
	}
	tb, ok := l.balances[to]
	if !ok {
		tb = new(uint256.Int)
	}
	if from == to {
		return nil
	}
	if _, overflow := new(uint256.Int).AddOverflow(tb, amount); overflow {
		return types.ErrNotValid
	}
	l.set(from, new(uint256.Int).Sub(fb, amount))
	l.set(to, new(uint256.Int).Add(tb, amount))
	return nil
}

// Mint credits addr with amount. It is used to seed balances from genesis.
func (l *Ledger) Mint(addr common.Address, amount *uint256.Int) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	b, ok := l.balances[addr]
	if !ok {
		b = new(uint256.Int)
	}
	sum, overflow := new(uint256.Int).AddOverflow(b, amount)
	if overflow {
		return types.ErrNotValid
	}
	l.set(addr, sum)
	return nil
}

func (l *Ledger) set(addr common.Address, amount *uint256.Int) {
	if amount.IsZero() {
		delete(l.balances, addr)
		return
	}
	l.balances[addr] = amount
}

// Balances returns every non-zero balance ordered by address.
func (l *Ledger) Balances() []Balance {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	res := make([]Balance, 0, len(l.balances))
	for addr, amount := range l.balances {
		res = append(res, Balance{Address: addr, Amount: amount.Clone()})
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Address.Cmp(res[j].Address) < 0
	})
	return res
}

func (l *Ledger) Clone() *Ledger {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	n := NewLedger()
	for addr, amount := range l.balances {
		n.balances[addr] = amount.Clone()
	}
	return n
}
