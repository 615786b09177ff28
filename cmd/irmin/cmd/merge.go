package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/merge"
	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <branch>",
	Short: "Merge a branch",
	Long: `Merge the head of another branch into the branch set by --branch.

The branch is fast-forwarded when possible. Otherwise, a merge commit is created from the three-way
merge of both trees. Conflicts which cannot be resolved fail the merge, and leave the branch unchanged.`,
	Example: `% irmin merge feature -m "merge feature"
% irmin merge feature --resolver theirs`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "merge", err)
		}(time.Now())

		var opts []merge.MergeOption
		if irminFlags.merge.resolver != "" {
			r, erm := resolverByName(irminFlags.merge.resolver)
			if erm != nil {
				err = erm
				wrapFatalln("invalid resolver", err)
				return
			}
			opts = append(opts, merge.Resolve(r))
		}

		ctx := context.Background()
		repo, s, err := openStore(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer func() { _ = repo.Close() }()

		ok, err := s.MergeWithBranch(ctx, args[0], commitInfo(repo, fmt.Sprintf("merge %s into %s", args[0], s.Branch())), opts...)
		var conflict *merge.ConflictError
		if errors.As(err, &conflict) {
			red := color.New(color.FgRed)
			for _, p := range conflict.Paths {
				fmt.Fprintln(os.Stderr, red.Sprint("conflict:"), p)
			}
			wrapFatalWithCodef(1, "merge of %s failed with %d conflicts", args[0], len(conflict.Paths))
			return
		}
		if err != nil {
			wrapFatalln("merge "+args[0], err)
			return
		}
		if !ok {
			wrapFatalWithCodef(1, "could not update branch %q: too many concurrent updates", s.Branch())
			return
		}
		printHead(cmd, s)
	},
}

func resolverByName(name string) (merge.Resolver, error) {
	switch name {
	case "ours":
		return merge.Ours(), nil
	case "theirs":
		return merge.Theirs(), nil
	case "json":
		return merge.JSON(), nil
	case "json-value":
		return merge.JSONValue(), nil
	default:
		return nil, fmt.Errorf("unknown resolver %q, expected ours, theirs, json or json-value", name)
	}
}

func init() {
	addAuthorFlag(mergeCmd)
	addMessageFlag(mergeCmd)
	addResolverFlag(mergeCmd)
	rootCmd.AddCommand(mergeCmd)
}
