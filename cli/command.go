package cli

import (
	"github.com/grovetools/envwatch/config"
	"github.com/grovetools/envwatch/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CommandOptions holds the persistent flags shared by every envwatch command.
type CommandOptions struct {
	ConfigFile string
	Root       string
	Verbose    bool
	JSONOutput bool
	Profile    bool
}

// NewStandardCommand creates a command carrying the standard envwatch flags.
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to envwatch.yml config file")
	cmd.PersistentFlags().String("root", "", "Directory whose subdirectories are environments")
	cmd.PersistentFlags().Bool("profile", false, "Print a timing breakdown on exit")

	SetStyledHelp(cmd)

	return cmd
}

// GetOptions extracts the standard flags from a command.
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	root, _ := cmd.Flags().GetString("root")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	profile, _ := cmd.Flags().GetBool("profile")

	return CommandOptions{
		ConfigFile: configFile,
		Root:       root,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
		Profile:    profile,
	}
}

// LoadConfig loads the file named by --config, or the hierarchical
// configuration for the working directory, and applies its logging section.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	opts := GetOptions(cmd)

	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigFile != "" {
		cfg, err = config.Load(opts.ConfigFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	logging.Configure(logging.ConfigFrom(cfg))
	if opts.Verbose {
		logging.SetLevel(logrus.DebugLevel)
	}
	return cfg, nil
}

// ResolveRoot returns the environment root for cmd given cfg.
func ResolveRoot(cmd *cobra.Command, cfg *config.Config) (string, error) {
	return config.ResolveRoot(GetOptions(cmd).Root, cfg)
}

// GetLogger returns the component logger, at debug level under --verbose.
func GetLogger(cmd *cobra.Command, component string) *logrus.Entry {
	if GetOptions(cmd).Verbose {
		logging.SetLevel(logrus.DebugLevel)
	}
	return logging.NewLogger(component)
}
