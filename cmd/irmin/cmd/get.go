package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/oneconcern/irmin/pkg/model"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Get the contents at a path",
	Long: `Prints the contents held at a path of a branch.
Exits with ENOENT status when the path holds no contents.`,
	Example: `% irmin get /docs/readme
hello`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "get", err)
		}(time.Now())

		ctx := context.Background()
		repo, s, err := openStore(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer func() { _ = repo.Close() }()

		path := model.ParsePath(args[0])
		data, found, err := s.Find(ctx, path)
		if err != nil {
			wrapFatalln("get "+path.String(), err)
			return
		}
		if !found {
			fmt.Fprintf(os.Stderr, "no contents at %v on %v\n", path, s)
			osExit(int(unix.ENOENT))
			return
		}
		_, _ = cmd.OutOrStdout().Write(data)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
