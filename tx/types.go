package tx

import (
	"errors"

	"github.com/calehh/assetpool/pool"
)

type PoolTxType uint8

const (
	PoolTxTypeUnknown           PoolTxType = 0
	PoolTxTypeAddReward         PoolTxType = 1
	PoolTxTypeUpdateReward      PoolTxType = 2
	PoolTxTypeClaimReward       PoolTxType = 3
	PoolTxTypeClaimRewardFor    PoolTxType = 4
	PoolTxTypeProposeWithdraw   PoolTxType = 5
	PoolTxTypeAddRewardRule     PoolTxType = 6
	PoolTxTypeUpdateRewardRule  PoolTxType = 7
	PoolTxTypeVote              PoolTxType = 8
	PoolTxTypeRevokeVote        PoolTxType = 9
	PoolTxTypeFinalize          PoolTxType = 10
	PoolTxTypeAddManager        PoolTxType = 11
	PoolTxTypeRemoveManager     PoolTxType = 12
	PoolTxTypeAddMember         PoolTxType = 13
	PoolTxTypeRemoveMember      PoolTxType = 14
	PoolTxTypeTransferOwnership PoolTxType = 15
	PoolTxTypeSetPollDuration   PoolTxType = 16
	PoolTxTypeDeposit           PoolTxType = 17

	// PoolTxTypeTryFinalize finalizes a poll without a signer.
	PoolTxTypeTryFinalize PoolTxType = 128
)

const (
	PoolTxVersion0 uint8 = 0
)

var (
	ErrInvalidTx            = errors.New("invalid tx")
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnmatchedTxType      = errors.New("unmatched tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
)

var txMethods = map[PoolTxType]string{
	PoolTxTypeAddReward:         pool.MethodAddReward,
	PoolTxTypeUpdateReward:      pool.MethodUpdateReward,
	PoolTxTypeClaimReward:       pool.MethodClaimReward,
	PoolTxTypeClaimRewardFor:    pool.MethodClaimRewardFor,
	PoolTxTypeProposeWithdraw:   pool.MethodProposeWithdraw,
	PoolTxTypeAddRewardRule:     pool.MethodAddRewardRule,
	PoolTxTypeUpdateRewardRule:  pool.MethodUpdateRewardRule,
	PoolTxTypeVote:              pool.MethodVote,
	PoolTxTypeRevokeVote:        pool.MethodRevokeVote,
	PoolTxTypeFinalize:          pool.MethodFinalize,
	PoolTxTypeAddManager:        pool.MethodAddManager,
	PoolTxTypeRemoveManager:     pool.MethodRemoveManager,
	PoolTxTypeAddMember:         pool.MethodAddMember,
	PoolTxTypeRemoveMember:      pool.MethodRemoveMember,
	PoolTxTypeTransferOwnership: pool.MethodTransferOwnership,
	PoolTxTypeSetPollDuration:   pool.MethodSetPollDuration,
	PoolTxTypeDeposit:           pool.MethodDeposit,
	PoolTxTypeTryFinalize:       pool.MethodFinalize,
}

// Method is the pool action a tx type carries.
func (t PoolTxType) Method() string {
	return txMethods[t]
}

// Signed reports whether the tx type goes through the relay.
func (t PoolTxType) Signed() bool {
	return t != PoolTxTypeTryFinalize
}

// TxTypeOf returns the signed tx type carrying method.
func TxTypeOf(method string) PoolTxType {
	for t, m := range txMethods {
		if m == method && t.Signed() {
			return t
		}
	}
	return PoolTxTypeUnknown
}
