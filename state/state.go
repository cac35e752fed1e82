package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/calehh/assetpool/pool"
	"github.com/calehh/assetpool/token"
	"github.com/calehh/assetpool/tx"
	"github.com/calehh/assetpool/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

var (
	KeyState   = "s"
	KeyPool    = "c"
	KeyManager = "m%x"
	KeyMember  = "b%x"
	KeyReward  = "r%020d"
	KeyRule    = "q%020d"
	KeyPoll    = "p%020d"
	KeyNonce   = "n%x"
	KeyBalance = "t%x"
)

var (
	ErrGenesisApplied     = errors.New("genesis already applied")
	ErrUnexpectedKey      = errors.New("unexpected state key")
	ErrTxUnsignedRequired = errors.New("tx must not carry a signature")
)

type StateHeader struct {
	Height   uint64 `json:"height"`
	ChainId  string `json:"chainId"`
	Time     uint64 `json:"time"`
	RootHash []byte `json:"rootHash"`
	Hash     []byte `json:"hash"`
}

func (h *StateHeader) clone() *StateHeader {
	n := *h
	n.RootHash = common.CopyBytes(h.RootHash)
	n.Hash = common.CopyBytes(h.Hash)
	return &n
}

// PoolMeta holds the scalar fields of the pool.
type PoolMeta struct {
	Address      common.Address `json:"address"`
	RelayAddress common.Address `json:"relayAddress"`
	PollMaxIndex uint64         `json:"pollMaxIndex"`
	Initialized  bool           `json:"initialized"`
	Owner        common.Address `json:"owner"`
	Token        common.Address `json:"token"`

	RewardPollDuration          uint64 `json:"rewardPollDuration"`
	ProposeWithdrawPollDuration uint64 `json:"proposeWithdrawPollDuration"`
	RewardRulePollDuration      uint64 `json:"rewardRulePollDuration"`
}

// BlockClock reports the time of the block being executed.
type BlockClock struct {
	now atomic.Uint64
}

func (c *BlockClock) Now() uint64 {
	return c.now.Load()
}

func (c *BlockClock) Set(now uint64) {
	c.now.Store(now)
}

type State struct {
	logger cmtlog.Logger
	db     *iavl.MutableTree
	dbVer  int64

	header *StateHeader
	clock  *BlockClock
	ledger *token.Ledger
	pool   *pool.Pool

	// written holds every entity as last written to db. It is replaced, never
	// modified, so states may share it.
	written map[string][]byte
}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	s := &State{
		logger:  logger,
		db:      db,
		header:  new(StateHeader),
		clock:   new(BlockClock),
		ledger:  token.NewLedger(),
		written: make(map[string][]byte),
	}
	s.pool = pool.New(pool.Config{}, s.ledger, s.clock, logger)
	return s
}

func (s *State) copyState() *State {
	n := &State{
		logger:  s.logger,
		db:      s.db,
		dbVer:   s.dbVer,
		header:  s.header.clone(),
		clock:   new(BlockClock),
		ledger:  s.ledger.Clone(),
		written: s.written,
	}
	n.clock.Set(s.clock.Now())
	n.pool = s.pool.Clone(n.ledger, n.clock)
	return n
}

func (s *State) nextState() *State {
	n := s.copyState()
	if s.header.Hash != nil {
		n.header.Height = s.header.Height + 1
	}
	return n
}

// Clone returns an independent copy of the state at the same height.
func (s *State) Clone() *State {
	return s.copyState()
}

// Genesis sets up the pool and token balances from the genesis app_state.
func (s *State) Genesis(chainId string, genesisTime uint64, app *types.AppState) (err error) {
	if s.pool.Initialized() {
		return ErrGenesisApplied
	}
	s.header.ChainId = chainId
	s.clock.Set(genesisTime)
	s.header.Time = genesisTime
	ledger := token.NewLedger()
	for _, b := range app.TokenBalances {
		err = ledger.Mint(b.Address, b.Amount)
		if err != nil {
			return fmt.Errorf("mint %v: %w", b.Address, err)
		}
	}
	p := pool.New(pool.Config{
		Address:                     app.PoolAddress,
		RelayAddress:                app.RelayAddress,
		RewardPollDuration:          app.RewardPollDuration,
		ProposeWithdrawPollDuration: app.ProposeWithdrawPollDuration,
		RewardRulePollDuration:      app.RewardRulePollDuration,
	}, ledger, s.clock, s.logger)
	err = p.Initialize(app.Owner, app.Token)
	if err != nil {
		return err
	}
	s.ledger = ledger
	s.pool = p
	return nil
}

func (s *State) entries() (map[string][]byte, error) {
	snap := s.pool.Snapshot()
	res := make(map[string][]byte)
	meta := PoolMeta{
		Address:                     s.pool.Address(),
		RelayAddress:                s.pool.RelayAddress(),
		PollMaxIndex:                snap.PollMaxIndex,
		Initialized:                 snap.Initialized,
		Owner:                       snap.Owner,
		Token:                       snap.Token,
		RewardPollDuration:          snap.RewardPollDuration,
		ProposeWithdrawPollDuration: snap.ProposeWithdrawPollDuration,
		RewardRulePollDuration:      snap.RewardRulePollDuration,
	}
	val, err := json.Marshal(&meta)
	if err != nil {
		return nil, err
	}
	res[KeyPool] = val
	for _, addr := range snap.Managers {
		res[fmt.Sprintf(KeyManager, addr.Bytes())] = []byte{1}
	}
	for _, addr := range snap.Members {
		res[fmt.Sprintf(KeyMember, addr.Bytes())] = []byte{1}
	}
	for _, r := range snap.Rewards {
		val, err = json.Marshal(r)
		if err != nil {
			return nil, err
		}
		res[fmt.Sprintf(KeyReward, r.ID)] = val
	}
	for _, r := range snap.Rules {
		val, err = json.Marshal(r)
		if err != nil {
			return nil, err
		}
		res[fmt.Sprintf(KeyRule, r.ID)] = val
	}
	for _, pl := range snap.Polls {
		val, err = json.Marshal(pl)
		if err != nil {
			return nil, err
		}
		res[fmt.Sprintf(KeyPoll, pl.ID)] = val
	}
	for _, e := range snap.Nonces {
		val, err = rlp.EncodeToBytes(e.Nonce)
		if err != nil {
			return nil, err
		}
		res[fmt.Sprintf(KeyNonce, e.Address.Bytes())] = val
	}
	for _, b := range s.ledger.Balances() {
		res[fmt.Sprintf(KeyBalance, b.Address.Bytes())] = b.Amount.Bytes()
	}
	return res, nil
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *State) load() (err error) {
	val, err := s.db.Get([]byte(KeyState))
	if err != nil {
		return err
	}
	if val == nil {
		return nil
	}
	err = json.Unmarshal(val, s.header)
	if err != nil {
		return
	}

	it, err := s.db.Iterator(nil, nil, true)
	if err != nil {
		return err
	}
	defer it.Close()

	var meta PoolMeta
	snap := new(pool.Snapshot)
	ledger := token.NewLedger()
	written := make(map[string][]byte)
	for ; it.Valid(); it.Next() {
		key, val := string(it.Key()), common.CopyBytes(it.Value())
		if key == KeyState {
			continue
		}
		written[key] = val
		err = s.decodeEntry(key, val, &meta, snap, ledger)
		if err != nil {
			return fmt.Errorf("load %q: %w", key, err)
		}
	}
	if err = it.Error(); err != nil {
		return err
	}
	snap.Initialized = meta.Initialized
	snap.Owner = meta.Owner
	snap.Token = meta.Token
	snap.PollMaxIndex = meta.PollMaxIndex
	snap.RewardPollDuration = meta.RewardPollDuration
	snap.ProposeWithdrawPollDuration = meta.ProposeWithdrawPollDuration
	snap.RewardRulePollDuration = meta.RewardRulePollDuration
	sort.Slice(snap.Rewards, func(i, j int) bool { return snap.Rewards[i].ID < snap.Rewards[j].ID })
	sort.Slice(snap.Rules, func(i, j int) bool { return snap.Rules[i].ID < snap.Rules[j].ID })

	s.ledger = ledger
	s.pool = pool.New(pool.Config{
		Address:      meta.Address,
		RelayAddress: meta.RelayAddress,
	}, ledger, s.clock, s.logger)
	s.pool.Restore(snap)
	s.written = written
	s.clock.Set(s.header.Time)

	h := s.db.Hash()
	if h != nil {
		s.calcHash(h, true)
	}
	return
}

func (s *State) decodeEntry(key string, val []byte, meta *PoolMeta, snap *pool.Snapshot, ledger *token.Ledger) (err error) {
	if key == KeyPool {
		return json.Unmarshal(val, meta)
	}
	if len(key) < 2 {
		return ErrUnexpectedKey
	}
	switch key[0] {
	case KeyManager[0], KeyMember[0], KeyNonce[0], KeyBalance[0]:
		addr, err := parseAddressKey(key)
		if err != nil {
			return err
		}
		switch key[0] {
		case KeyManager[0]:
			snap.Managers = append(snap.Managers, addr)
		case KeyMember[0]:
			snap.Members = append(snap.Members, addr)
		case KeyNonce[0]:
			var nonce uint64
			err = rlp.DecodeBytes(val, &nonce)
			if err != nil {
				return err
			}
			snap.Nonces = append(snap.Nonces, pool.NonceEntry{Address: addr, Nonce: nonce})
		default:
			return ledger.Mint(addr, new(uint256.Int).SetBytes(val))
		}
	case KeyReward[0]:
		r := new(pool.Reward)
		err = json.Unmarshal(val, r)
		snap.Rewards = append(snap.Rewards, r)
	case KeyRule[0]:
		r := new(pool.RewardRule)
		err = json.Unmarshal(val, r)
		snap.Rules = append(snap.Rules, r)
	case KeyPoll[0]:
		pl := new(pool.Poll)
		err = json.Unmarshal(val, pl)
		snap.Polls = append(snap.Polls, pl)
	default:
		err = ErrUnexpectedKey
	}
	return
}

func parseAddressKey(key string) (common.Address, error) {
	if len(key) != 1+2*common.AddressLength {
		return common.Address{}, ErrUnexpectedKey
	}
	return common.HexToAddress(key[1:]), nil
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		s.header.RootHash = common.CopyBytes(rootHash)
		s.header.Hash = common.CopyBytes(h[:])
	}
	return
}

// Update writes the entities changed since the last update and returns the
// resulting app hash. The working tree is rolled back on failure.
func (s *State) Update() (h common.Hash, err error) {
	var hash []byte
	defer func() {
		if hash == nil {
			s.db.Rollback()
		}
	}()
	entries, err := s.entries()
	if err != nil {
		return
	}
	val, err := json.Marshal(s.header)
	if err != nil {
		return
	}
	_, err = s.db.Set([]byte(KeyState), val)
	if err != nil {
		return
	}
	for _, key := range sortedKeys(entries) {
		val = entries[key]
		if old, ok := s.written[key]; ok && bytes.Equal(old, val) {
			continue
		}
		_, err = s.db.Set([]byte(key), val)
		if err != nil {
			return
		}
	}
	for _, key := range sortedKeys(s.written) {
		if _, ok := entries[key]; ok {
			continue
		}
		_, _, err = s.db.Remove([]byte(key))
		if err != nil {
			return
		}
	}
	hash = s.db.WorkingHash()
	h = s.calcHash(hash, false)
	s.written = entries
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}

	s.dbVer = ver
	h = s.calcHash(hash, true)

	return
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) Pool() *pool.Pool {
	return s.pool
}

func (s *State) Ledger() *token.Ledger {
	return s.ledger
}

// SetTime moves the state clock to the time of the block being executed.
func (s *State) SetTime(now uint64) {
	if now < s.header.Time {
		s.logger.Error("block time went backwards", "height", s.header.Height, "prev", s.header.Time, "now", now)
		return
	}
	s.header.Time = now
	s.clock.Set(now)
}

// Verify checks the signature and nonce of a signed tx. Unsigned tx types
// must not carry a signature.
func (s *State) Verify(btx *tx.PoolTx, allowNonceGap bool) (signer common.Address, err error) {
	if !btx.Type.Signed() {
		if len(btx.Sig) != 0 || btx.Nonce != 0 {
			err = ErrTxUnsignedRequired
		}
		return
	}
	env, err := btx.Envelope()
	if err != nil {
		return
	}
	return s.pool.Verify(env, allowNonceGap)
}

// Apply runs btx against the state. A rejected envelope is returned as an
// error; a failed action is reported in the result.
func (s *State) Apply(btx *tx.PoolTx) (res *pool.RelayResult, err error) {
	if !btx.Type.Signed() {
		return s.finalize(btx)
	}
	env, err := btx.Envelope()
	if err != nil {
		return nil, err
	}
	return s.pool.Call(env)
}

func (s *State) finalize(btx *tx.PoolTx) (res *pool.RelayResult, err error) {
	action, err := btx.Action()
	if err != nil {
		return nil, err
	}
	res = &pool.RelayResult{Success: true}
	var events []abcitypes.Event
	events, err = s.pool.Execute(pool.Direct(common.Address{}), btx.Target, action)
	if err != nil {
		res.Success = false
		res.Data = string(types.CodeOf(err))
		err = nil
	}
	res.Events = events
	return
}
