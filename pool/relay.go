package pool

import (
	"crypto/ecdsa"

	"github.com/calehh/assetpool/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Envelope is a signed instruction submitted by a third party on behalf of
// its signer. Target is the poll an action addresses, 0 for the pool itself.
type Envelope struct {
	Action []byte `json:"action"`
	Target uint64 `json:"target"`
	Nonce  uint64 `json:"nonce"`
	Sig    []byte `json:"sig"`
}

type RelayResult struct {
	Signer  common.Address    `json:"signer"`
	Nonce   uint64            `json:"nonce"`
	Success bool              `json:"success"`
	Data    string            `json:"data"`
	Events  []abcitypes.Event `json:"events"`
}

// SigHash is the EIP-191 hash signed for a relayed call:
// keccak256(action || uint256(target) || relay || uint256(nonce)).
func SigHash(action []byte, target uint64, relay common.Address, nonce uint64) []byte {
	t := uint256.NewInt(target).Bytes32()
	n := uint256.NewInt(nonce).Bytes32()
	digest := crypto.Keccak256(action, t[:], relay.Bytes(), n[:])
	return accounts.TextHash(digest)
}

// Sign fills env.Sig for the relay at address relay.
func Sign(key *ecdsa.PrivateKey, env *Envelope, relay common.Address) error {
	sig, err := crypto.Sign(SigHash(env.Action, env.Target, relay, env.Nonce), key)
	if err != nil {
		return err
	}
	env.Sig = sig
	return nil
}

func recoverSigner(env *Envelope, relay common.Address) (common.Address, error) {
	if len(env.Sig) != crypto.SignatureLength {
		return common.Address{}, types.ErrWrongSig
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, env.Sig)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(SigHash(env.Action, env.Target, relay, env.Nonce), sig)
	if err != nil {
		return common.Address{}, types.ErrWrongSig
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func (p *Pool) LatestNonce(addr common.Address) uint64 {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.nonces[addr]
}

// Verify recovers the signer of env and checks its nonce without consuming
// it. With allowNonceGap any future nonce is accepted, which suits mempool
// admission where earlier calls may still be pending.
func (p *Pool) Verify(env *Envelope, allowNonceGap bool) (common.Address, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	signer, err := recoverSigner(env, p.relayAddress)
	if err != nil {
		return signer, err
	}
	latest := p.nonces[signer]
	if env.Nonce == latest+1 || (allowNonceGap && env.Nonce > latest) {
		return signer, nil
	}
	return signer, types.ErrWrongSig
}

// Call verifies env, consumes the signer's next nonce and runs the wrapped
// action as the signer. Only a bad signature or nonce is returned as an error;
// a failing action is reported in the result and its effects are discarded
// while the nonce stays consumed.
func (p *Pool) Call(env *Envelope) (*RelayResult, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if !p.initialized {
		return nil, types.ErrNotInitialized
	}
	signer, err := recoverSigner(env, p.relayAddress)
	if err != nil {
		return nil, err
	}
	if p.nonces[signer]+1 != env.Nonce {
		p.logger.Debug("relay nonce mismatch", "signer", signer, "latest", p.nonces[signer], "nonce", env.Nonce)
		return nil, types.ErrWrongSig
	}
	p.nonces[signer] = env.Nonce

	res := &RelayResult{
		Signer:  signer,
		Nonce:   env.Nonce,
		Success: true,
	}
	events, err := p.exec(func() error {
		action, err := DecodeAction(env.Action)
		if err != nil {
			return err
		}
		return p.dispatch(relayed(signer), env.Target, action)
	})
	if err != nil {
		res.Success = false
		res.Data = string(types.CodeOf(err))
		p.logger.Info("relayed call failed", "signer", signer, "nonce", env.Nonce, "err", res.Data)
	}
	res.Events = append(events, types.EncodeEventRelay(&types.EventRelay{
		Signer:  signer.Hex(),
		Nonce:   env.Nonce,
		Success: res.Success,
		Data:    res.Data,
	}))
	return res, nil
}
