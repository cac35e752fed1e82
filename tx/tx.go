package tx

import (
	"crypto/ecdsa"
	"encoding/json"

	"github.com/calehh/assetpool/pool"
	"github.com/ethereum/go-ethereum/common"
)

// PoolTx is the transaction format of the chain. Tx holds the pool action for
// Type; signed types carry the signer's relay nonce and signature.
type PoolTx struct {
	Version uint8      `json:"version"`
	Type    PoolTxType `json:"type"`
	Target  uint64     `json:"target"`
	Nonce   uint64     `json:"nonce"`
	Tx      any        `json:"tx"`
	Sig     []byte     `json:"sig"`
}

type poolTxTmpl struct {
	Version uint8           `json:"version"`
	Type    PoolTxType      `json:"type"`
	Target  uint64          `json:"target"`
	Nonce   uint64          `json:"nonce"`
	Tx      json.RawMessage `json:"tx"`
	Sig     []byte          `json:"sig"`
}

// NewPoolTx wraps action into an unsigned tx addressed at target.
func NewPoolTx(action pool.Action, target, nonce uint64) (btx *PoolTx, err error) {
	tp := TxTypeOf(action.Method())
	if tp == PoolTxTypeUnknown {
		return nil, ErrUnsupportedTxType
	}
	btx = &PoolTx{
		Version: PoolTxVersion0,
		Type:    tp,
		Target:  target,
		Nonce:   nonce,
		Tx:      action,
	}
	return
}

// NewTryFinalizeTx builds the unsigned tx finalizing poll.
func NewTryFinalizeTx(poll uint64) *PoolTx {
	return &PoolTx{
		Version: PoolTxVersion0,
		Type:    PoolTxTypeTryFinalize,
		Target:  poll,
		Tx:      &pool.FinalizeAction{},
	}
}

func (btx *PoolTx) Action() (pool.Action, error) {
	a, ok := btx.Tx.(pool.Action)
	if !ok {
		return nil, ErrInvalidTx
	}
	if a.Method() != btx.Type.Method() {
		return nil, ErrUnmatchedTxType
	}
	return a, nil
}

// Envelope is the relay call a signed tx stands for.
func (btx *PoolTx) Envelope() (env *pool.Envelope, err error) {
	a, err := btx.Action()
	if err != nil {
		return
	}
	dat, err := pool.EncodeAction(a)
	if err != nil {
		return
	}
	env = &pool.Envelope{
		Action: dat,
		Target: btx.Target,
		Nonce:  btx.Nonce,
		Sig:    btx.Sig,
	}
	return
}

// Sign signs btx for the relay at address relay.
func (btx *PoolTx) Sign(key *ecdsa.PrivateKey, relay common.Address) error {
	env, err := btx.Envelope()
	if err != nil {
		return err
	}
	err = pool.Sign(key, env, relay)
	if err != nil {
		return err
	}
	btx.Sig = env.Sig
	return nil
}

func parsePoolTxType(dat []byte) PoolTxType {
	var tx struct {
		Type PoolTxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return PoolTxTypeUnknown
	}
	return tx.Type
}

func UnmarshalPoolTx(dat []byte) (btx *PoolTx, err error) {
	tp := parsePoolTxType(dat)
	method := tp.Method()
	if method == "" {
		return nil, ErrUnsupportedTxType
	}
	var txt poolTxTmpl
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return nil, ErrInvalidTx
	}
	if txt.Version != PoolTxVersion0 {
		return nil, ErrUnsupportedTxVersion
	}
	a, err := pool.NewAction(method)
	if err != nil {
		return nil, err
	}
	if len(txt.Tx) != 0 && string(txt.Tx) != "null" {
		err = json.Unmarshal(txt.Tx, a)
		if err != nil {
			return nil, ErrInvalidTx
		}
	}
	btx = &PoolTx{
		Version: txt.Version,
		Type:    txt.Type,
		Target:  txt.Target,
		Nonce:   txt.Nonce,
		Tx:      a,
		Sig:     txt.Sig,
	}
	return
}

func MarshalPoolTx(btx *PoolTx) (dat []byte, err error) {
	return json.Marshal(btx)
}
