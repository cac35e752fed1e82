package main

import (
	"fmt"

	"github.com/calehh/assetpool/crypto"
	"github.com/calehh/assetpool/types"
	cmtos "github.com/cometbft/cometbft/libs/os"
	"github.com/spf13/cobra"
)

type keyArguments struct {
	Key       string
	Overwrite bool
}

var keyArgs keyArguments

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage account keys signing relayed calls",
}

var keyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a new key file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := keyPath(keyArgs.Key)
		if !keyArgs.Overwrite && cmtos.FileExists(path) {
			return fmt.Errorf("key file %s already exists", path)
		}
		key, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		if err = key.Save(path); err != nil {
			return err
		}
		fmt.Printf("address:%s file:%s\n", key.Address().Hex(), path)
		return nil
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the address of a key file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.LoadKey(keyPath(keyArgs.Key))
		if err != nil {
			return err
		}
		fmt.Println(key.Address().Hex())
		return nil
	},
}

func init() {
	keyCmd.PersistentFlags().StringVarP(&keyArgs.Key, types.FlagKey, "k", "", "key file")
	keyGenerateCmd.Flags().BoolVarP(&keyArgs.Overwrite, types.FlagOverwrite, "o", false, "overwrite an existing key file")
	keyCmd.AddCommand(keyGenerateCmd, keyShowCmd)
}
