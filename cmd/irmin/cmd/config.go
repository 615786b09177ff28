package cmd

import (
	"github.com/oneconcern/irmin/pkg/config"
	"github.com/oneconcern/irmin/pkg/dlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// DefaultRoot is the directory of the repository used by the CLI, unless configured otherwise
const DefaultRoot = ".irmin"

// CLIConfig describes the CLI configuration.
type CLIConfig struct {
	// bug in viper? Need to keep names of fields the same as the serialized names..
	Author string        `json:"author,omitempty" yaml:"author,omitempty" mapstructure:"author"` // Author of commits
	Repo   config.Repo   `json:"repo" yaml:"repo" mapstructure:"repo"`                           // Repository settings
	Server config.Server `json:"server" yaml:"server" mapstructure:"server"`                     // Server settings, for irmin serve
}

func defaultCLIConfig() CLIConfig {
	c := CLIConfig{
		Repo:   config.Default(),
		Server: config.DefaultServer(),
	}
	c.Repo.Backend = config.BackendFS
	c.Repo.Root = DefaultRoot
	c.Repo.LogLevel = dlogger.LogLevelWarn
	return c
}

func newConfig() (*CLIConfig, error) {
	c := defaultCLIConfig()
	if err := viper.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// setFlags applies the settings given as flags over the configuration
func (c *CLIConfig) setFlags(flags *flagsT) {
	if flags.root.backend != "" {
		c.Repo.Backend = config.Backend(flags.root.backend)
	}
	if flags.root.repoRoot != "" {
		c.Repo.Root = flags.root.repoRoot
	}
	if flags.root.hash != "" {
		c.Repo.Hash = flags.root.hash
	}
	if flags.root.contents != "" {
		c.Repo.Contents = flags.root.contents
	}
	if flags.root.logLevel != "" {
		c.Repo.LogLevel = flags.root.logLevel
	}
	if flags.root.metrics {
		c.Repo.Metrics = true
	}
	if flags.serve.addr != "" {
		c.Server.Addr = flags.serve.addr
	}
	if flags.serve.listenLimit > 0 {
		c.Server.ListenLimit = flags.serve.listenLimit
	}
}

// configCmd represents the config related commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Commands to manage the CLI config",
	Long: `Commands to manage the irmin CLI config.

Configuration is read from the file named by $IRMIN_CONFIG, or from irmin.yaml in the current directory,
$HOME/.irmin or /etc/irmin. Flags take precedence over the configuration file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the configuration in use",
	Long:  "Show the configuration in use, after applying flags",
	Run: func(cmd *cobra.Command, args []string) {
		if err := cliConfig.Repo.Validate(); err != nil {
			wrapFatalln("invalid repository configuration", err)
			return
		}
		data, err := yaml.Marshal(cliConfig)
		if err != nil {
			wrapFatalln("marshal configuration", err)
			return
		}
		_, _ = cmd.OutOrStdout().Write(data)
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
