package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(nonceCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(depositCmd)
	rootCmd.AddCommand(rewardCmd)
	rootCmd.AddCommand(ruleCmd)
	rootCmd.AddCommand(withdrawCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(roleCmd)
	rootCmd.AddCommand(ownerCmd)
	rootCmd.AddCommand(durationCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
