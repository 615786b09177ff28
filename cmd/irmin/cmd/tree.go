package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/oneconcern/irmin/pkg/tree"
	"github.com/spf13/cobra"
)

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Display the tree under a path",
	Long:  `Display recursively the entries under a path of a branch, in sorted order.`,
	Example: `% irmin tree
docs/
  license
  readme`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "tree", err)
		}(time.Now())

		path := model.Root
		if len(args) > 0 {
			path = model.ParsePath(args[0])
		}

		ctx := context.Background()
		repo, s, err := openStore(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer func() { _ = repo.Close() }()

		sub, found, err := s.FindTree(ctx, path)
		if err != nil {
			wrapFatalln("read tree "+path.String(), err)
			return
		}
		if !found {
			wrapFatalWithCodef(1, "no tree at %v on %v", path, s)
			return
		}

		w := cmd.OutOrStdout()
		dir := color.New(color.FgBlue)
		err = repo.Trees().Walk(ctx, sub, func(p model.Path, e tree.Entry) error {
			indent := strings.Repeat("  ", len(p)-1)
			if e.IsTree() {
				fmt.Fprintln(w, indent+dir.Sprint(p.Base()+"/"))
				return nil
			}
			fmt.Fprintln(w, indent+p.Base())
			return nil
		})
		if err != nil {
			wrapFatalln("walk tree", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
}
