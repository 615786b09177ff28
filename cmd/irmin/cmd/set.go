package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oneconcern/irmin/pkg/core"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <path> [value]",
	Short: "Set the contents at a path",
	Long: `Set the contents at a path of a branch, and commit the change.

The contents are given as an argument, read from a file with --file, or read from stdin when the value is "-".
Setting the contents a path already holds does not create any commit.`,
	Example: `% irmin set /docs/readme "hello" -m "add readme"
% cat logo.png | irmin set /assets/logo.png - --branch feature`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "set", err)
		}(time.Now())

		data, err := readValue(cmd, args)
		if err != nil {
			wrapFatalln("read contents", err)
			return
		}
		m := model.Normal
		if irminFlags.commit.executable {
			m = model.Executable
		}

		ctx := context.Background()
		repo, s, err := openStore(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer func() { _ = repo.Close() }()

		path := model.ParsePath(args[0])
		ok, err := s.Set(ctx, path, data, commitInfo(repo, "set "+path.String()), core.WithMetadata(m))
		if err != nil {
			wrapFatalln("set "+path.String(), err)
			return
		}
		if !ok {
			wrapFatalWithCodef(1, "could not update branch %q: too many concurrent updates", s.Branch())
			return
		}
		printHead(cmd, s)
	},
}

func readValue(cmd *cobra.Command, args []string) ([]byte, error) {
	switch {
	case irminFlags.commit.file != "":
		return os.ReadFile(irminFlags.commit.file)
	case len(args) == 2 && args[1] != "-":
		return []byte(args[1]), nil
	case len(args) == 2:
		return io.ReadAll(cmd.InOrStdin())
	default:
		return nil, fmt.Errorf("missing value: expected an argument, - for stdin, or --%s", "file")
	}
}

func commitInfo(repo *core.Repo, defaultMessage string) model.Info {
	message := irminFlags.commit.message
	if message == "" {
		message = defaultMessage
	}
	return repo.Info(defaultAuthor(), message)
}

func printHead(cmd *cobra.Command, s *core.Store) {
	head, found, err := s.Head(context.Background())
	if err != nil || !found {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", s.Branch(), head.Hash())
}

func init() {
	addAuthorFlag(setCmd)
	addMessageFlag(setCmd)
	addFileFlag(setCmd)
	addExecutableFlag(setCmd)
	rootCmd.AddCommand(setCmd)
}
