package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/oneconcern/irmin/pkg/httpd"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the repository to remotes",
	Long: `Serve the branches and objects of the repository over HTTP, for other repositories to fetch, pull and push.

The server stops gracefully on SIGINT or SIGTERM.`,
	Example: `% irmin serve --addr :8765 --listen-limit 64`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		repo, err := openRepo(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer func() { _ = repo.Close() }()

		srv, err := httpd.New(repo, httpd.WithConfig(cliConfig.Server))
		if err != nil {
			wrapFatalln("configure server", err)
			return
		}
		if err := srv.ListenAndServe(ctx); err != nil {
			wrapFatalln("serve", err)
		}
	},
}

func init() {
	addAddrFlag(serveCmd)
	addListenLimitFlag(serveCmd)
	rootCmd.AddCommand(serveCmd)
}
