// Copyright © 2018 One Concern

package cmd

import (
	"github.com/spf13/cobra"
)

// branchCmd represents the branch related commands
var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Branch related operations",
	Long: `Branch related operations.

A branch is a name pointing to a commit. Branches don't need to be created: writing to a branch sets its head.
`,
}

func init() {
	rootCmd.AddCommand(branchCmd)
}
