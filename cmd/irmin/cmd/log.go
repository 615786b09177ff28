// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/oneconcern/irmin/pkg/commit"
	"github.com/spf13/cobra"
)

type logEntry struct {
	Hash    string    `json:"hash" yaml:"hash"`
	Parents []string  `json:"parents,omitempty" yaml:"parents,omitempty"`
	Tree    string    `json:"tree" yaml:"tree"`
	Author  string    `json:"author" yaml:"author"`
	Date    time.Time `json:"date" yaml:"date"`
	Message string    `json:"message" yaml:"message"`
}

// logCmd represents the log command
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Get commit history",
	Long:  `Displays the history of a branch, from its head, with the messages of commits`,
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "log", err)
		}(time.Now())

		ctx := context.Background()
		repo, s, err := openStore(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer func() { _ = repo.Close() }()

		var entries []logEntry
		err = s.History(ctx, irminFlags.history.depth, func(c commit.Commit) error {
			parents := make([]string, 0, len(c.Parents()))
			for _, p := range c.Parents() {
				parents = append(parents, p.String())
			}
			entries = append(entries, logEntry{
				Hash:    c.Hash().String(),
				Parents: parents,
				Tree:    c.TreeHash().String(),
				Author:  c.Info().Author,
				Date:    c.Info().Time(),
				Message: c.Info().Message,
			})
			return nil
		})
		if err != nil {
			wrapFatalln("read history", err)
			return
		}

		err = printResult(cmd.OutOrStdout(), entries, func(w io.Writer) error {
			magenta, yellow := color.New(color.FgMagenta), color.New(color.FgYellow)
			for _, c := range entries {
				fmt.Fprintln(w, " Commit: "+magenta.Sprint(c.Hash))
				if len(c.Parents) > 1 {
					fmt.Fprint(w, "  Merge:")
					for _, p := range c.Parents {
						fmt.Fprint(w, " "+p[:7])
					}
					fmt.Fprintln(w)
				}
				fmt.Fprintln(w, " Author: "+yellow.Sprint(c.Author))
				fmt.Fprintln(w, "   Date: "+yellow.Sprint(c.Date.Format(time.RFC3339)))
				fmt.Fprintln(w)
				fmt.Fprintln(w, "    "+c.Message)
				fmt.Fprintln(w)
			}
			return nil
		})
		if err != nil {
			wrapFatalln("print history", err)
		}
	},
}

func init() {
	addDepthFlag(logCmd, "Display the history up to this number of hops from the head. Zero displays the whole history")
	addFormatFlag(logCmd)
	rootCmd.AddCommand(logCmd)
}
