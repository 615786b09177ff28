package cmd

import (
	"context"
	"time"

	"github.com/oneconcern/irmin/pkg/model"
	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:     "rm <path>",
	Aliases: []string{"remove"},
	Short:   "Remove the contents or subtree at a path",
	Long: `Remove the contents or subtree at a path of a branch, and commit the change.
Removing a path which does not exist does not create any commit.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "rm", err)
		}(time.Now())

		ctx := context.Background()
		repo, s, err := openStore(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer func() { _ = repo.Close() }()

		path := model.ParsePath(args[0])
		ok, err := s.Remove(ctx, path, commitInfo(repo, "remove "+path.String()))
		if err != nil {
			wrapFatalln("remove "+path.String(), err)
			return
		}
		if !ok {
			wrapFatalWithCodef(1, "could not update branch %q: too many concurrent updates", s.Branch())
			return
		}
		printHead(cmd, s)
	},
}

func init() {
	addAuthorFlag(removeCmd)
	addMessageFlag(removeCmd)
	rootCmd.AddCommand(removeCmd)
}
