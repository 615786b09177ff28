package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/spf13/cobra"
)

type listEntry struct {
	Path     string `json:"path" yaml:"path"`
	Kind     string `json:"kind" yaml:"kind"`
	Hash     string `json:"hash" yaml:"hash"`
	Metadata string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

var listCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List the entries under a path",
	Long: `List the immediate children of a path of a branch, in sorted order.

With --long, the kind and the hash of every entry are displayed as well.`,
	Example: `% irmin ls /docs -l
contents 5f1c2a7 /docs/license
contents 9d02b11 /docs/readme`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "ls", err)
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

		paths, err := s.List(ctx, path)
		if err != nil {
			wrapFatalln("list "+path.String(), err)
			return
		}
		t, err := s.Tree(ctx)
		if err != nil {
			wrapFatalln("read tree", err)
			return
		}

		entries := make([]listEntry, 0, len(paths))
		for _, p := range paths {
			e, erp := repo.Trees().Resolve(ctx, t, p)
			if erp != nil {
				err = erp
				wrapFatalln("resolve "+p.String(), err)
				return
			}
			entry := listEntry{
				Path: p.String(),
				Kind: e.Kind().String(),
				Hash: repo.Trees().EntryKey(e).Hash.String(),
			}
			if e.IsContents() {
				entry.Metadata = e.Metadata().String()
			}
			entries = append(entries, entry)
		}

		err = printResult(cmd.OutOrStdout(), entries, func(w io.Writer) error {
			tree := color.New(color.FgBlue)
			for _, e := range entries {
				name := e.Path
				if e.Kind == model.KindNode.String() {
					name = tree.Sprint(name + "/")
				}
				if irminFlags.list.long {
					fmt.Fprintf(w, "%-8s %s %s\n", e.Kind, e.Hash[:7], name)
					continue
				}
				fmt.Fprintln(w, name)
			}
			return nil
		})
		if err != nil {
			wrapFatalln("print entries", err)
		}
	},
}

func init() {
	addLongFlag(listCmd)
	addFormatFlag(listCmd)
	rootCmd.AddCommand(listCmd)
}
