package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/calehh/assetpool/app"
	"github.com/calehh/assetpool/crypto"
	"github.com/calehh/assetpool/types"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func abciQuery(url, path string, data []byte) ([]byte, error) {
	cli, err := http.New(url, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}
	res, err := cli.ABCIQuery(context.Background(), path, data)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", path, err)
	}
	if res.Response.Code != 0 {
		return nil, fmt.Errorf("query %s: code %d %s", path, res.Response.Code, res.Response.Log)
	}
	return res.Response.Value, nil
}

func queryInto(url, path string, data []byte, v any) error {
	dat, err := abciQuery(url, path, data)
	if err != nil {
		return err
	}
	return json.Unmarshal(dat, v)
}

func printQuery(url, path string, data []byte) error {
	dat, err := abciQuery(url, path, data)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err = json.Indent(&out, dat, "", "  "); err != nil {
		return err
	}
	fmt.Println(out.String())
	return nil
}

func indexArg(s string) ([]byte, error) {
	id, err := idArg(s)
	if err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint64(nil, id), nil
}

func addressArg(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// signerOrArg is the address in args, or the address of the key file.
func signerOrArg(args []string, keyFile string) (common.Address, error) {
	if len(args) > 0 {
		return addressArg(args[0])
	}
	key, err := crypto.LoadKey(keyPath(keyFile))
	if err != nil {
		return common.Address{}, err
	}
	return key.Address(), nil
}

func queryNonce(url string, addr common.Address) (uint64, error) {
	var info app.NonceInfo
	err := queryInto(url, "/nonce/", addr.Bytes(), &info)
	return info.Nonce, err
}

func queryPool(url string) (*app.PoolInfo, error) {
	var info app.PoolInfo
	err := queryInto(url, "/pool/", nil, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

type queryArguments struct {
	Url string
	Key string
}

var queryArgs queryArguments

var nonceCmd = &cobra.Command{
	Use:   "nonce [address]",
	Short: "Print the latest relay nonce of an address",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := signerOrArg(args, queryArgs.Key)
		if err != nil {
			return err
		}
		nonce, err := queryNonce(queryArgs.Url, addr)
		if err != nil {
			return err
		}
		fmt.Printf("address:%s nonce:%d\n", addr.Hex(), nonce)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Query the committed pool state",
}

// indexedQuery shows every entry under path, or the one given by id.
func indexedQuery(use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			if len(args) == 1 {
				var err error
				if data, err = indexArg(args[0]); err != nil {
					return err
				}
			}
			return printQuery(queryArgs.Url, path, data)
		},
	}
}

// addressQuery shows the entry of path for an address, the key file's by
// default.
func addressQuery(use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [address]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := signerOrArg(args, queryArgs.Key)
			if err != nil {
				return err
			}
			return printQuery(queryArgs.Url, path, addr.Bytes())
		},
	}
}

func init() {
	urlFlag(nonceCmd, &queryArgs.Url)
	keyFlag(nonceCmd, &queryArgs.Key)

	showCmd.PersistentFlags().StringVarP(&queryArgs.Url, types.FlagURL, "u", "http://127.0.0.1:26657", "assetpool node rpc url")
	showCmd.PersistentFlags().StringVarP(&queryArgs.Key, types.FlagKey, "k", "", "signer key file")
	showCmd.AddCommand(
		&cobra.Command{
			Use:   "pool",
			Short: "Show the pool settings, roles and balance",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return printQuery(queryArgs.Url, "/pool/", nil)
			},
		},
		indexedQuery("rewards", "Show rewards", "/rewards/"),
		indexedQuery("rules", "Show reward rules", "/rules/"),
		indexedQuery("polls", "Show live polls", "/polls/"),
		addressQuery("balance", "Show the token balance of an address", "/balance/"),
		addressQuery("withdraws", "Show live withdraw polls of a beneficiary", "/withdraws/"),
	)
}
