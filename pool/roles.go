package pool

import (
	"github.com/calehh/assetpool/types"
	"github.com/ethereum/go-ethereum/common"
)

func (p *Pool) Owner() common.Address {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.owner
}

func (p *Pool) IsManager(addr common.Address) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.managers[addr]
}

func (p *Pool) IsMember(addr common.Address) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.members[addr]
}

func (p *Pool) Managers() []common.Address {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return sortedAddresses(p.managers)
}

func (p *Pool) Members() []common.Address {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return sortedAddresses(p.members)
}

func (p *Pool) AddManager(from Sender, addr common.Address) error {
	_, err := p.run(func() error {
		return p.setRole(from, types.RoleManager, addr, true)
	})
	return err
}

func (p *Pool) RemoveManager(from Sender, addr common.Address) error {
	_, err := p.run(func() error {
		return p.setRole(from, types.RoleManager, addr, false)
	})
	return err
}

func (p *Pool) AddMember(from Sender, addr common.Address) error {
	_, err := p.run(func() error {
		return p.setRole(from, types.RoleMember, addr, true)
	})
	return err
}

func (p *Pool) RemoveMember(from Sender, addr common.Address) error {
	_, err := p.run(func() error {
		return p.setRole(from, types.RoleMember, addr, false)
	})
	return err
}

func (p *Pool) TransferOwnership(from Sender, owner common.Address) error {
	_, err := p.run(func() error {
		return p.transferOwnership(from, owner)
	})
	return err
}

// setRole adds or removes addr from a role set. Managers are administered by
// the owner, members by managers. Repeating an add or removing an absent
// principal succeeds without emitting anything.
func (p *Pool) setRole(from Sender, role string, addr common.Address, add bool) error {
	var set map[common.Address]bool
	switch role {
	case types.RoleManager:
		if from.Addr != p.owner {
			return types.ErrNotOwner
		}
		set = p.managers
	case types.RoleMember:
		if !p.managers[from.Addr] {
			return types.ErrNotManager
		}
		set = p.members
	default:
		return types.ErrNotValid
	}
	if addr == (common.Address{}) {
		return types.ErrNotValid
	}
	if set[addr] == add {
		return nil
	}
	if add {
		set[addr] = true
	} else {
		delete(set, addr)
	}
	p.logger.Info("role changed", "role", role, "address", addr, "added", add, "by", from.Addr)
	p.emit(types.EncodeEventRole(&types.EventRole{
		Role:    role,
		Address: addr.Hex(),
		Added:   add,
		By:      from.Addr.Hex(),
	}))
	return nil
}

func (p *Pool) transferOwnership(from Sender, owner common.Address) error {
	if from.Addr != p.owner {
		return types.ErrNotOwner
	}
	if owner == (common.Address{}) {
		return types.ErrNotValid
	}
	previous := p.owner
	p.owner = owner
	p.logger.Info("ownership transferred", "previous", previous, "owner", owner)
	p.emit(types.EncodeEventOwnership(&types.EventOwnership{
		Previous: previous.Hex(),
		Owner:    owner.Hex(),
	}))
	return nil
}
