package cmd

import (
	"context"
	"time"

	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/spf13/cobra"
)

var branchSetHeadCmd = &cobra.Command{
	Use:   "set-head <commit>",
	Short: "Point a branch to a commit",
	Long: `Point the branch set by --branch to a stored commit, given by its hash.

The head is replaced unconditionally: commits which are no longer reachable from the branch remain stored.`,
	Example: `% irmin branch set-head 3fa4c1... --branch release`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "branch set-head", err)
		}(time.Now())

		h, err := hash.Parse(args[0])
		if err != nil {
			wrapFatalln("invalid commit hash", err)
			return
		}

		ctx := context.Background()
		repo, s, err := openStore(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer func() { _ = repo.Close() }()

		c, err := repo.Commit(ctx, h)
		if err != nil {
			wrapFatalln("read commit", err)
			return
		}
		if err = s.SetHead(ctx, c); err != nil {
			wrapFatalln("set head of "+s.Branch(), err)
			return
		}
		printHead(cmd, s)
	},
}

func init() {
	branchCmd.AddCommand(branchSetHeadCmd)
}
