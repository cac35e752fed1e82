package main

import (
	"fmt"

	"github.com/calehh/assetpool/pool"
	"github.com/calehh/assetpool/tx"
	"github.com/calehh/assetpool/types"
	"github.com/spf13/cobra"
)

var depositCmd = &cobra.Command{
	Use:   "deposit <amount>",
	Short: "Move tokens from the signer into the pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := amountArg(args[0])
		if err != nil {
			return err
		}
		return sendAction(&pool.DepositAction{Amount: amount}, 0)
	},
}

var rewardCmd = &cobra.Command{
	Use:   "reward",
	Short: "Propose, update and claim rewards",
}

var rewardAddCmd = &cobra.Command{
	Use:   "add <amount> <duration>",
	Short: "Propose a new reward paying amount every duration seconds",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := amountArg(args[0])
		if err != nil {
			return err
		}
		duration, err := idArg(args[1])
		if err != nil {
			return err
		}
		return sendAction(&pool.AddRewardAction{Amount: amount, Duration: duration}, 0)
	},
}

var rewardUpdateCmd = &cobra.Command{
	Use:   "update <reward> <amount|enable|disable> [duration]",
	Short: "Propose a new amount and duration for a reward, or toggle it",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := idArg(args[0])
		if err != nil {
			return err
		}
		a := &pool.UpdateRewardAction{Reward: id}
		switch args[1] {
		case "enable":
			a.Amount = pool.EnableReward.Clone()
		case "disable":
			a.Amount = pool.DisableReward.Clone()
		default:
			if a.Amount, err = amountArg(args[1]); err != nil {
				return err
			}
		}
		if len(args) == 3 {
			if a.Duration, err = idArg(args[2]); err != nil {
				return err
			}
		}
		return sendAction(a, 0)
	},
}

var rewardClaimCmd = &cobra.Command{
	Use:   "claim <reward> [beneficiary]",
	Short: "Claim a reward for the signer or, as a manager, for a member",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := idArg(args[0])
		if err != nil {
			return err
		}
		if len(args) == 1 {
			return sendAction(&pool.ClaimRewardAction{Reward: id}, 0)
		}
		beneficiary, err := addressArg(args[1])
		if err != nil {
			return err
		}
		return sendAction(&pool.ClaimRewardForAction{Reward: id, Beneficiary: beneficiary}, 0)
	},
}

var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Propose and update reward rules",
}

var ruleAddCmd = &cobra.Command{
	Use:   "add <amount>",
	Short: "Propose a new reward rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := amountArg(args[0])
		if err != nil {
			return err
		}
		return sendAction(&pool.AddRewardRuleAction{Amount: amount}, 0)
	},
}

var ruleUpdateCmd = &cobra.Command{
	Use:   "update <rule> <amount>",
	Short: "Propose a new amount for a reward rule, zero disables it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := idArg(args[0])
		if err != nil {
			return err
		}
		amount, err := amountArg(args[1])
		if err != nil {
			return err
		}
		return sendAction(&pool.UpdateRewardRuleAction{Rule: id, Amount: amount}, 0)
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <amount> <beneficiary>",
	Short: "Propose a withdrawal from the pool",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := amountArg(args[0])
		if err != nil {
			return err
		}
		beneficiary, err := addressArg(args[1])
		if err != nil {
			return err
		}
		return sendAction(&pool.ProposeWithdrawAction{Amount: amount, Beneficiary: beneficiary}, 0)
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Vote on and finalize polls",
}

func pollAction(use, short string, action func(args []string) (pool.Action, error), nargs int) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := pollArg(args[0])
			if err != nil {
				return err
			}
			a, err := action(args[1:])
			if err != nil {
				return err
			}
			return sendAction(a, id)
		},
	}
}

var pollTryFinalizeCmd = &cobra.Command{
	Use:   "try-finalize <poll>",
	Short: "Send an unsigned tx finalizing a decidable poll",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := pollArg(args[0])
		if err != nil {
			return err
		}
		return broadcast(tx.NewTryFinalizeTx(id))
	},
}

var roleCmd = &cobra.Command{
	Use:   "role <add-manager|remove-manager|add-member|remove-member> <address>",
	Short: "Change the managers and members of the pool",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ops := map[string]string{
			"add-manager":    pool.MethodAddManager,
			"remove-manager": pool.MethodRemoveManager,
			"add-member":     pool.MethodAddMember,
			"remove-member":  pool.MethodRemoveMember,
		}
		op, ok := ops[args[0]]
		if !ok {
			return fmt.Errorf("unknown role operation %q", args[0])
		}
		addr, err := addressArg(args[1])
		if err != nil {
			return err
		}
		return sendAction(&pool.RoleAction{Op: op, Address: addr}, 0)
	},
}

var ownerCmd = &cobra.Command{
	Use:   "transfer-owner <address>",
	Short: "Hand pool ownership to another address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := addressArg(args[0])
		if err != nil {
			return err
		}
		return sendAction(&pool.TransferOwnershipAction{Owner: addr}, 0)
	},
}

var durationCmd = &cobra.Command{
	Use: fmt.Sprintf("duration <%s|%s|%s> <seconds>",
		types.PollDurationReward, types.PollDurationRewardRule, types.PollDurationWithdraw),
	Short: "Set the voting period of new polls of a kind",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		duration, err := idArg(args[1])
		if err != nil {
			return err
		}
		return sendAction(&pool.SetPollDurationAction{Poll: args[0], Duration: duration}, 0)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{depositCmd, rewardCmd, ruleCmd, withdrawCmd, pollCmd, roleCmd, ownerCmd, durationCmd} {
		txFlags(cmd)
	}
	rewardCmd.AddCommand(rewardAddCmd, rewardUpdateCmd, rewardClaimCmd)
	ruleCmd.AddCommand(ruleAddCmd, ruleUpdateCmd)
	pollCmd.AddCommand(
		pollAction("vote <poll> <yes|no>", "Vote on a poll", func(args []string) (pool.Action, error) {
			switch args[0] {
			case "yes":
				return &pool.VoteAction{Agree: true}, nil
			case "no":
				return &pool.VoteAction{Agree: false}, nil
			}
			return nil, fmt.Errorf("vote must be yes or no, got %q", args[0])
		}, 2),
		pollAction("revoke <poll>", "Revoke the signer's vote", func([]string) (pool.Action, error) {
			return &pool.RevokeVoteAction{}, nil
		}, 1),
		pollAction("finalize <poll>", "Finalize a poll through the relay", func([]string) (pool.Action, error) {
			return &pool.FinalizeAction{}, nil
		}, 1),
		pollTryFinalizeCmd,
	)
}
