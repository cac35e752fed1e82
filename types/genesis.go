package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

const (
	ModuleName   = "assetpool"
	DefaultPower = 1000
)

var (
	ErrGenesisNoOwner    = errors.New("genesis app_state must include owner")
	ErrGenesisNoBalance  = errors.New("genesis token balance without amount")
	ErrGenesisDupBalance = errors.New("genesis token balance listed twice")
)

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// GenesisDoc defines the initial conditions for a CometBFT blockchain, in particular its validator set.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

type GenesisBalance struct {
	Address common.Address `json:"address"`
	Amount  *uint256.Int   `json:"amount"`
}

// AppState is the app_state section of the genesis file. A zero pool or
// relay address is derived from the chain id.
type AppState struct {
	Owner                       common.Address   `json:"owner"`
	Token                       common.Address   `json:"token"`
	PoolAddress                 common.Address   `json:"pool_address"`
	RelayAddress                common.Address   `json:"relay_address"`
	RewardPollDuration          uint64           `json:"reward_poll_duration"`
	ProposeWithdrawPollDuration uint64           `json:"propose_withdraw_poll_duration"`
	RewardRulePollDuration      uint64           `json:"reward_rule_poll_duration"`
	TokenBalances               []GenesisBalance `json:"token_balances"`
}

func ParseAppState(chainID string, dat []byte) (st *AppState, err error) {
	st = new(AppState)
	if len(dat) != 0 {
		err = json.Unmarshal(dat, st)
		if err != nil {
			return nil, fmt.Errorf("parse app_state: %w", err)
		}
	}
	if st.Owner == (common.Address{}) {
		return nil, ErrGenesisNoOwner
	}
	seen := make(map[common.Address]bool)
	for _, b := range st.TokenBalances {
		if b.Amount == nil {
			return nil, ErrGenesisNoBalance
		}
		if seen[b.Address] {
			return nil, ErrGenesisDupBalance
		}
		seen[b.Address] = true
	}
	if st.PoolAddress == (common.Address{}) {
		st.PoolAddress = DerivedAddress(chainID, "pool")
	}
	if st.RelayAddress == (common.Address{}) {
		st.RelayAddress = DerivedAddress(chainID, "relay")
	}
	return
}

// DerivedAddress is the address a chain assigns to one of its built-in
// accounts.
func DerivedAddress(chainID, name string) common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte(ModuleName), []byte(chainID), []byte(name)))
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	if _, err := ParseAppState(ag.ChainID, ag.AppState); err != nil {
		return err
	}

	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}
