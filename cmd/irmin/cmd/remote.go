package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/oneconcern/irmin/pkg/core"
	"github.com/oneconcern/irmin/pkg/remote"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch the history of a remote branch",
	Long: `Fetch the objects reachable from the head of a remote branch which are missing locally.

No local branch is updated. The remote is given as http(s)://[user:password@]host[:port]/<branch>.`,
	Example: `% irmin fetch http://localhost:8765/main`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "fetch", err)
		}(time.Now())

		ctx := context.Background()
		repo, s, r, err := openRemote(ctx, args[0])
		if err != nil {
			wrapFatalln("open remote", err)
			return
		}
		defer func() { _ = repo.Close() }()

		head, err := s.Fetch(ctx, r, irminFlags.remote.depth)
		if err != nil {
			wrapFatalln("fetch "+r.String(), err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", r, head.Hash())
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull <url>",
	Short: "Fetch a remote branch and merge it",
	Long: `Fetch the history of a remote branch, then merge its head into the branch set by --branch.

With --set, the head of the branch is replaced by the remote head instead.`,
	Example: `% irmin pull http://localhost:8765/main --branch main`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "pull", err)
		}(time.Now())

		ctx := context.Background()
		repo, s, r, err := openRemote(ctx, args[0])
		if err != nil {
			wrapFatalln("open remote", err)
			return
		}
		defer func() { _ = repo.Close() }()

		mode := core.PullMerge
		if irminFlags.remote.set {
			mode = core.PullSet
		}
		head, err := s.Pull(ctx, r, irminFlags.remote.depth, mode, commitInfo(repo, "merge "+r.String()))
		if err != nil {
			wrapFatalln("pull "+r.String(), err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", s.Branch(), head.Hash())
	},
}

var pushCmd = &cobra.Command{
	Use:   "push <url>",
	Short: "Push a branch to a remote",
	Long: `Push the head of the branch set by --branch to a remote branch, along with its missing history.

The remote head only moves forward: pushing to a remote branch which has diverged fails.`,
	Example: `% irmin push http://localhost:8765/main`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "push", err)
		}(time.Now())

		ctx := context.Background()
		repo, s, r, err := openRemote(ctx, args[0])
		if err != nil {
			wrapFatalln("open remote", err)
			return
		}
		defer func() { _ = repo.Close() }()

		res, err := s.Push(ctx, r, irminFlags.remote.depth)
		if err != nil {
			wrapFatalln("push to "+r.String(), err)
			return
		}
		err = printResult(cmd.OutOrStdout(), res, func(w io.Writer) error {
			_, erp := fmt.Fprintf(w, "%s %s (%d objects)\n", r, res.Head, res.Objects)
			return erp
		})
		if err != nil {
			wrapFatalln("print result", err)
		}
	},
}

func openRemote(ctx context.Context, url string) (*core.Repo, *core.Store, *remote.HTTP, error) {
	repo, s, err := openStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	r, err := remote.Parse(url, remote.WithHTTPLogger(repo.Logger()))
	if err != nil {
		_ = repo.Close()
		return nil, nil, nil, err
	}
	return repo, s, r, nil
}

func init() {
	addRemoteDepthFlag(fetchCmd)
	rootCmd.AddCommand(fetchCmd)

	addRemoteDepthFlag(pullCmd)
	addPullSetFlag(pullCmd)
	addAuthorFlag(pullCmd)
	addMessageFlag(pullCmd)
	rootCmd.AddCommand(pullCmd)

	addRemoteDepthFlag(pushCmd)
	addFormatFlag(pushCmd)
	rootCmd.AddCommand(pushCmd)
}
