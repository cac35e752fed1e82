package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/calehh/assetpool/crypto"
	"github.com/cometbft/cometbft/config"
	cmtcrypto "github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultHomeDir   = "$HOME/.assetpool"
	OwnerKeyFileName = "owner_key"
)

type PoolAppConfig struct {
	Home          string `mapstructure:"-"`
	TimeoutCommit uint64 `mapstructure:"-"`

	// Poll durations written into a new genesis file, in seconds.
	RewardPollDuration          uint64 `mapstructure:"reward_poll_duration"`
	ProposeWithdrawPollDuration uint64 `mapstructure:"propose_withdraw_poll_duration"`
	RewardRulePollDuration      uint64 `mapstructure:"reward_rule_poll_duration"`

	MetricsListenAddr string `mapstructure:"metrics_listen_addr"`

	IndexerEnabled    bool   `mapstructure:"indexer_enabled"`
	IndexerDB         string `mapstructure:"indexer_db"`
	IndexerInterval   uint64 `mapstructure:"indexer_interval"`
	ServiceListenAddr string `mapstructure:"service_listen_addr"`
}

func DefaultPoolAppConfig(home string) *PoolAppConfig {
	return &PoolAppConfig{
		Home:                        home,
		RewardPollDuration:          3600,
		ProposeWithdrawPollDuration: 3600,
		RewardRulePollDuration:      3600,
		MetricsListenAddr:           ":26680",
		IndexerEnabled:              true,
		IndexerDB:                   "indexer.db",
		IndexerInterval:             5,
		ServiceListenAddr:           ":26690",
	}
}

// DataDir is where the application keeps its state tree.
func (c *PoolAppConfig) DataDir() string {
	return filepath.Join(c.Home, "data")
}

func (c *PoolAppConfig) IndexerPath() string {
	if filepath.IsAbs(c.IndexerDB) {
		return c.IndexerDB
	}
	return filepath.Join(c.Home, c.IndexerDB)
}

type Config struct {
	*config.Config `mapstructure:",squash"`

	App *PoolAppConfig `mapstructure:"app"`
}

func DefaultConfig(home string) *Config {
	if len(home) == 0 {
		home = os.ExpandEnv(DefaultHomeDir)
	}
	config := &Config{
		DefaultPoolCometConfig(),
		DefaultPoolAppConfig(home),
	}
	config.SetRoot(home)
	_ = os.MkdirAll(filepath.Join(home, "config"), 0o755)
	return config
}

func (c *Config) OwnerKeyFile() string {
	return filepath.Join(c.RootDir, "config", OwnerKeyFileName)
}

// InitializeOwner creates the owner key of a new chain unless one exists and
// returns its address.
func InitializeOwner(c *Config) (owner common.Address, err error) {
	path := c.OwnerKeyFile()
	key, err := crypto.LoadKey(path)
	if err == nil {
		return key.Address(), nil
	}
	if !os.IsNotExist(err) {
		return owner, err
	}
	key, err = crypto.GenerateKey()
	if err != nil {
		return
	}
	err = key.Save(path)
	if err != nil {
		return
	}
	return key.Address(), nil
}

func InitializeNodeValidatorFiles(config *Config, privKey cmtcrypto.PrivKey) (nodeID string, pk cmtcrypto.PubKey, err error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return "", nil, err
	}
	nodeID = string(nodeKey.ID())

	pvKeyFile := config.PrivValidatorKeyFile()
	if err := os.MkdirAll(filepath.Dir(pvKeyFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvKeyFile), err)
	}

	pvStateFile := config.PrivValidatorStateFile()
	if err := os.MkdirAll(filepath.Dir(pvStateFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvStateFile), err)
	}

	var filePV *privval.FilePV
	if privKey == nil {
		filePV = privval.LoadOrGenFilePV(pvKeyFile, pvStateFile)
	} else {
		filePV = privval.NewFilePV(privKey, pvKeyFile, pvStateFile)
		filePV.Save()
	}
	pukey, err := filePV.GetPubKey()
	if err != nil {
		return "", nil, err
	}

	return nodeID, pukey, nil
}

func DefaultPoolCometConfig() *config.Config {
	cometConfig := config.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 3
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Millisecond * 1200
	return cometConfig
}
