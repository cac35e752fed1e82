package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/calehh/assetpool/config"
	"github.com/calehh/assetpool/types"
	cmtos "github.com/cometbft/cometbft/libs/os"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

type printInfo struct {
	ChainID    string          `json:"chain_id" yaml:"chain_id"`
	NodeID     string          `json:"node_id" yaml:"node_id"`
	Owner      string          `json:"owner" yaml:"owner"`
	AppMessage json.RawMessage `json:"app_message" yaml:"app_message"`
}

func displayInfo(info printInfo) error {
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)

	return err
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize private validator, p2p, genesis, and application configuration files",
	Long: `Initialize the node's configuration files and a genesis file for a new pool.
Without --owner a new owner key is written to the config directory.`,
	Args: cobra.NoArgs,
	RunE: initRun,
}

func init() {
	initCmd.Flags().BoolP(types.FlagOverwrite, "o", false, "overwrite the genesis.json file")
	initCmd.Flags().String(types.FlagChainID, "", "genesis file chain-id, if left blank will be randomly created")
	initCmd.Flags().StringP(types.FlagHome, "d", "", "home directory")
	initCmd.Flags().String(types.FlagOwner, "", "pool owner address")
	initCmd.Flags().String(types.FlagToken, "", "address of the pooled token")
	initCmd.Flags().StringSlice(types.FlagFunds, nil, "initial token balances as address=amount")
}

func initRun(cmd *cobra.Command, args []string) error {
	home, _ := cmd.Flags().GetString(types.FlagHome)
	chainID, _ := cmd.Flags().GetString(types.FlagChainID)
	overwrite, _ := cmd.Flags().GetBool(types.FlagOverwrite)
	ownerHex, _ := cmd.Flags().GetString(types.FlagOwner)
	tokenHex, _ := cmd.Flags().GetString(types.FlagToken)
	funds, _ := cmd.Flags().GetStringSlice(types.FlagFunds)

	if chainID == "" {
		chainID = fmt.Sprintf("assetpool-%v", rand.Uint64())
	}
	cfg := config.DefaultConfig(homePath(home))

	genFile := cfg.GenesisFile()
	if !overwrite && cmtos.FileExists(genFile) {
		return fmt.Errorf("genesis file %s already exists", genFile)
	}

	var (
		owner common.Address
		err   error
	)
	if ownerHex != "" {
		if !common.IsHexAddress(ownerHex) {
			return fmt.Errorf("invalid owner address %q", ownerHex)
		}
		owner = common.HexToAddress(ownerHex)
	} else {
		owner, err = config.InitializeOwner(cfg)
		if err != nil {
			return fmt.Errorf("initialize owner key: %w", err)
		}
	}

	appState := &types.AppState{
		Owner:                       owner,
		PoolAddress:                 types.DerivedAddress(chainID, "pool"),
		RelayAddress:                types.DerivedAddress(chainID, "relay"),
		RewardPollDuration:          cfg.App.RewardPollDuration,
		ProposeWithdrawPollDuration: cfg.App.ProposeWithdrawPollDuration,
		RewardRulePollDuration:      cfg.App.RewardRulePollDuration,
	}
	if tokenHex != "" {
		if !common.IsHexAddress(tokenHex) {
			return fmt.Errorf("invalid token address %q", tokenHex)
		}
		appState.Token = common.HexToAddress(tokenHex)
	}
	appState.TokenBalances, err = parseFunds(funds)
	if err != nil {
		return err
	}
	appStateBytes, err := json.Marshal(appState)
	if err != nil {
		return err
	}

	nodeID, pk, err := config.InitializeNodeValidatorFiles(cfg, nil)
	if err != nil {
		return err
	}
	appGenesis := &types.GenesisDoc{
		GenesisTime:     time.Now(),
		ChainID:         chainID,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		InitialHeight:   1,
		Validators: []types.GenesisValidator{
			{Address: pk.Address(), PubKey: pk, Power: types.DefaultPower},
		},
		AppState: appStateBytes,
	}
	if err = types.ExportGenesisFile(appGenesis, genFile); err != nil {
		return fmt.Errorf("failed to export genesis file: %w", err)
	}
	config.WriteConfigFile(filepath.Join(cfg.RootDir, "config", "config.toml"), cfg)
	return displayInfo(printInfo{
		ChainID:    chainID,
		NodeID:     nodeID,
		Owner:      owner.Hex(),
		AppMessage: appGenesis.AppState,
	})
}

// parseFunds reads address=amount pairs, amounts in decimal.
func parseFunds(funds []string) ([]types.GenesisBalance, error) {
	balances := make([]types.GenesisBalance, 0, len(funds))
	for _, f := range funds {
		addr, amount, ok := strings.Cut(f, "=")
		if !ok || !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid funds entry %q", f)
		}
		v, err := uint256.FromDecimal(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid funds amount %q: %w", amount, err)
		}
		balances = append(balances, types.GenesisBalance{Address: common.HexToAddress(addr), Amount: v})
	}
	return balances, nil
}
