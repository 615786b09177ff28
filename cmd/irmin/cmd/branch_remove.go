package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var branchRemoveCmd = &cobra.Command{
	Use:     "rm <name>",
	Aliases: []string{"delete"},
	Short:   "Remove a branch",
	Long:    `Remove a branch. The commits of the branch remain stored.`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "branch rm", err)
		}(time.Now())

		ctx := context.Background()
		repo, err := openRepo(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer func() { _ = repo.Close() }()

		if err = repo.RemoveBranch(ctx, args[0]); err != nil {
			wrapFatalln("remove branch "+args[0], err)
		}
	},
}

func init() {
	branchCmd.AddCommand(branchRemoveCmd)
}
