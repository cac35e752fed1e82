package main

import (
	"os"
	"path/filepath"

	"github.com/calehh/assetpool/config"
	"github.com/calehh/assetpool/types"
	"github.com/spf13/cobra"
)

func urlFlag(cmd *cobra.Command, url *string) {
	cmd.Flags().StringVarP(url, types.FlagURL, "u", "http://127.0.0.1:26657", "assetpool node rpc url")
}

func homeFlag(cmd *cobra.Command, home *string) {
	cmd.Flags().StringVarP(home, types.FlagHome, "d", "", "home directory")
}

// keyFlag is the key file signing relayed calls, the owner key of the home
// directory by default.
func keyFlag(cmd *cobra.Command, key *string) {
	cmd.Flags().StringVarP(key, types.FlagKey, "k", "", "signer key file")
}

func homePath(home string) string {
	if home == "" {
		return os.ExpandEnv(config.DefaultHomeDir)
	}
	return home
}

func keyPath(key string) string {
	if key == "" {
		return filepath.Join(homePath(""), "config", config.OwnerKeyFileName)
	}
	return key
}
