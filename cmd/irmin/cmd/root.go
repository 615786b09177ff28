// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/user"

	"github.com/oneconcern/irmin/internal"
	"github.com/oneconcern/irmin/pkg/core"
	"github.com/oneconcern/irmin/pkg/dlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "irmin",
	Short: "Irmin is a content-addressed store with git-like branches",
	Long: `Irmin stores trees of contents as immutable, hash-identified objects, and tracks their history with commits.

Branches are mutable pointers to commits, updated atomically. Branches may be merged, and synchronized with
remote repositories served over HTTP.

`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if irminFlags.root.cpuProf != "" {
			stop, err := internal.StartCPUProfile(irminFlags.root.cpuProf)
			if err != nil {
				wrapFatalln("start cpu profile", err)
				return
			}
			stopProfile = stop
		}
	},
	// upstream api note:  *PostRun functions aren't called in case of a panic() in Run
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stopProfile != nil {
			if err := stopProfile(); err != nil {
				log.Println("stop cpu profile:", err)
			}
			stopProfile = nil
		}
		if irminFlags.root.memProf != "" {
			if err := internal.WriteMemProfiles(irminFlags.root.memProf); err != nil {
				log.Println("write memory profiles:", err)
			}
		}
	},
}

var (
	cliConfig   *CLIConfig
	stopProfile func() error
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)
	addRootFlags(rootCmd)
	addBranchFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if os.Getenv("IRMIN_CONFIG") != "" {
		// Use config file from the environment.
		viper.SetConfigFile(os.Getenv("IRMIN_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.irmin")
		viper.AddConfigPath("/etc/irmin")
		viper.SetConfigName("irmin")
	}

	viper.SetEnvPrefix("irmin")
	viper.AutomaticEnv() // read in environment variables that match
	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil && irminFlags.root.logLevel == dlogger.LogLevelDebug {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}

	var err error
	cliConfig, err = newConfig()
	if err != nil {
		wrapFatalln("read configuration", err)
		return
	}
	cliConfig.setFlags(&irminFlags)
	initMetrics()
}

func defaultAuthor() string {
	if irminFlags.commit.author != "" {
		return irminFlags.commit.author
	}
	if cliConfig.Author != "" {
		return cliConfig.Author
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "irmin"
}

// openRepo opens the configured repository
func openRepo(ctx context.Context) (*core.Repo, error) {
	l, err := dlogger.GetLogger(cliConfig.Repo.LogLevel, dlogger.Console())
	if err != nil {
		return nil, err
	}
	return core.Open(ctx, cliConfig.Repo, core.WithLogger(l))
}

// openStore opens the configured repository, and a store bound to the branch set by flags
func openStore(ctx context.Context) (*core.Repo, *core.Store, error) {
	repo, err := openRepo(ctx)
	if err != nil {
		return nil, nil, err
	}
	s, err := repo.OfBranch(ctx, irminFlags.store.branch)
	if err != nil {
		_ = repo.Close()
		return nil, nil, err
	}
	return repo, s, nil
}
