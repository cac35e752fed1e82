package pool

import (
	"encoding/json"
	"errors"

	"github.com/calehh/assetpool/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrInvalidAction = errors.New("invalid action")
)

const (
	MethodAddReward         = "addReward"
	MethodUpdateReward      = "updateReward"
	MethodClaimReward       = "claimReward"
	MethodClaimRewardFor    = "claimRewardFor"
	MethodProposeWithdraw   = "proposeWithdraw"
	MethodAddRewardRule     = "addRewardRule"
	MethodUpdateRewardRule  = "updateRewardRule"
	MethodVote              = "vote"
	MethodRevokeVote        = "revokeVote"
	MethodFinalize          = "finalize"
	MethodAddManager        = "addManager"
	MethodRemoveManager     = "removeManager"
	MethodAddMember         = "addMember"
	MethodRemoveMember      = "removeMember"
	MethodTransferOwnership = "transferOwnership"
	MethodSetPollDuration   = "setPollDuration"
	MethodDeposit           = "deposit"
)

// Action is a pool operation that can be run directly or through the relay.
// Poll operations address their poll through the call target.
type Action interface {
	Method() string
	apply(p *Pool, from Sender, target uint64) error
}

type AddRewardAction struct {
	Amount   *uint256.Int `json:"amount"`
	Duration uint64       `json:"duration"`
}

type UpdateRewardAction struct {
	Reward   uint64       `json:"reward"`
	Amount   *uint256.Int `json:"amount"`
	Duration uint64       `json:"duration"`
}

type ClaimRewardAction struct {
	Reward uint64 `json:"reward"`
}

type ClaimRewardForAction struct {
	Reward      uint64         `json:"reward"`
	Beneficiary common.Address `json:"beneficiary"`
}

type ProposeWithdrawAction struct {
	Amount      *uint256.Int   `json:"amount"`
	Beneficiary common.Address `json:"beneficiary"`
}

type AddRewardRuleAction struct {
	Amount *uint256.Int `json:"amount"`
}

type UpdateRewardRuleAction struct {
	Rule   uint64       `json:"rule"`
	Amount *uint256.Int `json:"amount"`
}

type VoteAction struct {
	Agree bool `json:"agree"`
}

type RevokeVoteAction struct{}

type FinalizeAction struct{}

// RoleAction adds or removes Address from the role named by Method.
type RoleAction struct {
	Op      string         `json:"-"`
	Address common.Address `json:"address"`
}

type TransferOwnershipAction struct {
	Owner common.Address `json:"owner"`
}

type SetPollDurationAction struct {
	Poll     string `json:"poll"`
	Duration uint64 `json:"duration"`
}

type DepositAction struct {
	Amount *uint256.Int `json:"amount"`
}

func (a *AddRewardAction) Method() string         { return MethodAddReward }
func (a *UpdateRewardAction) Method() string      { return MethodUpdateReward }
func (a *ClaimRewardAction) Method() string       { return MethodClaimReward }
func (a *ClaimRewardForAction) Method() string    { return MethodClaimRewardFor }
func (a *ProposeWithdrawAction) Method() string   { return MethodProposeWithdraw }
func (a *AddRewardRuleAction) Method() string     { return MethodAddRewardRule }
func (a *UpdateRewardRuleAction) Method() string  { return MethodUpdateRewardRule }
func (a *VoteAction) Method() string              { return MethodVote }
func (a *RevokeVoteAction) Method() string        { return MethodRevokeVote }
func (a *FinalizeAction) Method() string          { return MethodFinalize }
func (a *RoleAction) Method() string              { return a.Op }
func (a *TransferOwnershipAction) Method() string { return MethodTransferOwnership }
func (a *SetPollDurationAction) Method() string   { return MethodSetPollDuration }
func (a *DepositAction) Method() string           { return MethodDeposit }

func poolTarget(target uint64) error {
	if target != 0 {
		return types.ErrNotAllowed
	}
	return nil
}

func pollTarget(target uint64) error {
	if target == 0 {
		return types.ErrNotPoll
	}
	return nil
}

func (a *AddRewardAction) apply(p *Pool, from Sender, target uint64) (err error) {
	if err = poolTarget(target); err != nil {
		return
	}
	_, err = p.addReward(from, a.Amount, a.Duration)
	return
}

func (a *UpdateRewardAction) apply(p *Pool, from Sender, target uint64) (err error) {
	if err = poolTarget(target); err != nil {
		return
	}
	_, err = p.updateReward(from, a.Reward, a.Amount, a.Duration)
	return
}

func (a *ClaimRewardAction) apply(p *Pool, from Sender, target uint64) (err error) {
	if err = poolTarget(target); err != nil {
		return
	}
	_, err = p.claimReward(from, a.Reward, from.Addr)
	return
}

func (a *ClaimRewardForAction) apply(p *Pool, from Sender, target uint64) (err error) {
	if err = poolTarget(target); err != nil {
		return
	}
	_, err = p.claimReward(from, a.Reward, a.Beneficiary)
	return
}

func (a *ProposeWithdrawAction) apply(p *Pool, from Sender, target uint64) (err error) {
	if err = poolTarget(target); err != nil {
		return
	}
	_, err = p.proposeWithdraw(from, a.Amount, a.Beneficiary)
	return
}

func (a *AddRewardRuleAction) apply(p *Pool, from Sender, target uint64) (err error) {
	if err = poolTarget(target); err != nil {
		return
	}
	_, err = p.addRewardRule(from, a.Amount)
	return
}

func (a *UpdateRewardRuleAction) apply(p *Pool, from Sender, target uint64) (err error) {
	if err = poolTarget(target); err != nil {
		return
	}
	_, err = p.updateRewardRule(from, a.Rule, a.Amount)
	return
}

func (a *VoteAction) apply(p *Pool, from Sender, target uint64) error {
	if err := pollTarget(target); err != nil {
		return err
	}
	return p.vote(from, target, a.Agree)
}

func (a *RevokeVoteAction) apply(p *Pool, from Sender, target uint64) error {
	if err := pollTarget(target); err != nil {
		return err
	}
	return p.revokeVote(from, target)
}

func (a *FinalizeAction) apply(p *Pool, from Sender, target uint64) (err error) {
	if err = pollTarget(target); err != nil {
		return
	}
	_, err = p.finalize(from, target)
	return
}

func (a *RoleAction) apply(p *Pool, from Sender, target uint64) error {
	if err := poolTarget(target); err != nil {
		return err
	}
	switch a.Op {
	case MethodAddManager:
		return p.setRole(from, types.RoleManager, a.Address, true)
	case MethodRemoveManager:
		return p.setRole(from, types.RoleManager, a.Address, false)
	case MethodAddMember:
		return p.setRole(from, types.RoleMember, a.Address, true)
	case MethodRemoveMember:
		return p.setRole(from, types.RoleMember, a.Address, false)
	}
	return ErrUnknownAction
}

func (a *TransferOwnershipAction) apply(p *Pool, from Sender, target uint64) error {
	if err := poolTarget(target); err != nil {
		return err
	}
	return p.transferOwnership(from, a.Owner)
}

func (a *SetPollDurationAction) apply(p *Pool, from Sender, target uint64) error {
	if err := poolTarget(target); err != nil {
		return err
	}
	return p.setPollDuration(from, a.Poll, a.Duration)
}

func (a *DepositAction) apply(p *Pool, from Sender, target uint64) error {
	if err := poolTarget(target); err != nil {
		return err
	}
	return p.deposit(from, a.Amount)
}

func (p *Pool) dispatch(from Sender, target uint64, action Action) error {
	if action == nil {
		return ErrInvalidAction
	}
	return action.apply(p, from, target)
}

var actionFactories = map[string]func() Action{
	MethodAddReward:         func() Action { return new(AddRewardAction) },
	MethodUpdateReward:      func() Action { return new(UpdateRewardAction) },
	MethodClaimReward:       func() Action { return new(ClaimRewardAction) },
	MethodClaimRewardFor:    func() Action { return new(ClaimRewardForAction) },
	MethodProposeWithdraw:   func() Action { return new(ProposeWithdrawAction) },
	MethodAddRewardRule:     func() Action { return new(AddRewardRuleAction) },
	MethodUpdateRewardRule:  func() Action { return new(UpdateRewardRuleAction) },
	MethodVote:              func() Action { return new(VoteAction) },
	MethodRevokeVote:        func() Action { return new(RevokeVoteAction) },
	MethodFinalize:          func() Action { return new(FinalizeAction) },
	MethodAddManager:        func() Action { return &RoleAction{Op: MethodAddManager} },
	MethodRemoveManager:     func() Action { return &RoleAction{Op: MethodRemoveManager} },
	MethodAddMember:         func() Action { return &RoleAction{Op: MethodAddMember} },
	MethodRemoveMember:      func() Action { return &RoleAction{Op: MethodRemoveMember} },
	MethodTransferOwnership: func() Action { return new(TransferOwnershipAction) },
	MethodSetPollDuration:   func() Action { return new(SetPollDurationAction) },
	MethodDeposit:           func() Action { return new(DepositAction) },
}

// NewAction returns an empty action for method, ready to be unmarshaled into.
func NewAction(method string) (Action, error) {
	f, ok := actionFactories[method]
	if !ok {
		return nil, ErrUnknownAction
	}
	return f(), nil
}

type encodedAction struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args"`
}

// EncodeAction produces the bytes covered by a relay signature.
func EncodeAction(a Action) ([]byte, error) {
	args, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return json.Marshal(encodedAction{Method: a.Method(), Args: args})
}

func DecodeAction(dat []byte) (Action, error) {
	var ea encodedAction
	err := json.Unmarshal(dat, &ea)
	if err != nil {
		return nil, ErrInvalidAction
	}
	a, err := NewAction(ea.Method)
	if err != nil {
		return nil, err
	}
	if len(ea.Args) != 0 {
		err = json.Unmarshal(ea.Args, a)
		if err != nil {
			return nil, ErrInvalidAction
		}
	}
	return a, nil
}
