package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/calehh/assetpool/crypto"
	"github.com/calehh/assetpool/pool"
	"github.com/calehh/assetpool/tx"
	"github.com/calehh/assetpool/types"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

var ErrTxFailed = errors.New("transaction failed")

type txArguments struct {
	Url    string
	Key    string
	Nonce  uint64
	NoSend bool
}

var txArgs txArguments

// txFlags adds the flags of commands that send a pool call.
func txFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&txArgs.Url, types.FlagURL, "u", "http://127.0.0.1:26657", "assetpool node rpc url")
	cmd.PersistentFlags().StringVarP(&txArgs.Key, types.FlagKey, "k", "", "signer key file")
	cmd.PersistentFlags().Uint64VarP(&txArgs.Nonce, types.FlagNonce, "n", 0, "relay nonce, the latest nonce plus one if zero")
	cmd.PersistentFlags().BoolVarP(&txArgs.NoSend, "nosend", "", false, "print the signed transaction without sending it")
}

// sendAction signs action as a relayed call on target and broadcasts it.
func sendAction(action pool.Action, target uint64) error {
	key, err := crypto.LoadKey(keyPath(txArgs.Key))
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}
	info, err := queryPool(txArgs.Url)
	if err != nil {
		return err
	}
	nonce := txArgs.Nonce
	if nonce == 0 {
		latest, err := queryNonce(txArgs.Url, key.Address())
		if err != nil {
			return err
		}
		nonce = latest + 1
	}
	btx, err := tx.NewPoolTx(action, target, nonce)
	if err != nil {
		return err
	}
	if err = btx.Sign(key.PrivateKey(), info.RelayAddress); err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	return broadcast(btx)
}

func broadcast(btx *tx.PoolTx) error {
	dat, err := tx.MarshalPoolTx(btx)
	if err != nil {
		return err
	}
	if txArgs.NoSend {
		fmt.Println(string(dat))
		return nil
	}
	cli, err := http.New(txArgs.Url, "/websocket")
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	res, err := cli.BroadcastTxCommit(context.Background(), dat)
	if err != nil {
		return fmt.Errorf("broadcast tx: %w", err)
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))
	switch {
	case res.CheckTx.Code != 0:
		return fmt.Errorf("%w: check code %d %s", ErrTxFailed, res.CheckTx.Code, res.CheckTx.Log)
	case res.TxResult.Code != 0:
		return fmt.Errorf("%w: code %d %s", ErrTxFailed, res.TxResult.Code, res.TxResult.Log)
	}
	return nil
}

func amountArg(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

func idArg(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// pollArg parses a poll id. Poll ids start at one.
func pollArg(s string) (uint64, error) {
	id, err := idArg(s)
	if err == nil && id == 0 {
		err = fmt.Errorf("invalid poll id %q", s)
	}
	return id, err
}
