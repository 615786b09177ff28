// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type branchListResult struct {
	Branches []branchHead `json:"branches" yaml:"branches"`
	Active   string       `json:"active" yaml:"active"`
}

type branchHead struct {
	Name string `json:"name" yaml:"name"`
	Head string `json:"head" yaml:"head"`
}

// branchListCmd represents the list command
var branchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the branches of the repository",
	Long:  `List the branches of the repository, with their head. The branch set by --branch is starred.`,
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "branch list", err)
		}(time.Now())

		ctx := context.Background()
		repo, err := openRepo(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer func() { _ = repo.Close() }()

		names, err := repo.Branches(ctx)
		if err != nil {
			wrapFatalln("list branches", err)
			return
		}
		result := branchListResult{Active: irminFlags.store.branch}
		for _, name := range names {
			head, found, erb := repo.BranchTable().Get(ctx, name)
			if erb != nil {
				err = erb
				wrapFatalln("read branch "+name, err)
				return
			}
			if !found {
				continue
			}
			result.Branches = append(result.Branches, branchHead{Name: name, Head: head.String()})
		}

		err = printResult(cmd.OutOrStdout(), result, branchListFormatter(result))
		if err != nil {
			wrapFatalln("print branches", err)
		}
	},
}

func branchListFormatter(val branchListResult) func(io.Writer) error {
	return func(w io.Writer) error {
		for _, v := range val.Branches {
			if v.Name != val.Active {
				fmt.Fprintln(w, " ", v.Name, v.Head[:7])
			} else {
				fmt.Fprintln(w, color.YellowString("*"), v.Name, v.Head[:7])
			}
		}
		return nil
	}
}

func init() {
	addFormatFlag(branchListCmd)
	branchCmd.AddCommand(branchListCmd)
}
