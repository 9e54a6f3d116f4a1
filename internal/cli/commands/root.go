package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/relmap/internal/cli/ui"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:   "relmap",
		Short: "Relational mapping core: model metadata, include planning and execution",
		Long: color.CyanString(`relmap - relational mapping core

relmap loads an entity model, discovers foreign keys by convention, and turns
include paths into SQL: to-one steps become joins on the parent statement,
to-many steps become ordered child statements merged back by key.`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default ./relmap.yml)")
	flags.StringVarP(&opts.modelPath, "model", "m", "", "model file (overrides config)")
	flags.StringVar(&opts.dialect, "dialect", "", "SQL dialect: postgres or sqlite (overrides config)")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	// Add subcommands
	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newModelCommand(opts))
	rootCmd.AddCommand(newPlanCommand(opts))
	rootCmd.AddCommand(newExecCommand(opts))
	rootCmd.AddCommand(newDDLCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the relmap version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			// Set GoVersion to actual runtime if not set at build time
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			noColor, _ := cmd.Flags().GetBool("no-color")
			kv := ui.NewKeyValueTable(cmd.OutOrStdout(), noColor)
			kv.AddRow("relmap version", Version)
			kv.AddRow("Git commit", GitCommit)
			kv.AddRow("Build date", BuildDate)
			kv.AddRow("Go version", goVer)
			kv.Render()
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		noColor, _ := rootCmd.PersistentFlags().GetBool("no-color")
		printError(rootCmd, err, noColor)
		return err
	}
	return nil
}

func printError(cmd *cobra.Command, err error, noColor bool) {
	w := cmd.ErrOrStderr()
	var nf *notFoundError
	var ce *configError
	switch {
	case errors.As(err, &nf):
		fmt.Fprint(w, ui.NotFoundError(nf.kind, nf.name, nf.candidates, noColor))
	case errors.As(err, &ce):
		fmt.Fprint(w, ui.ConfigError(ce.Error(), noColor))
	default:
		errorColor := color.New(color.FgRed, color.Bold)
		if noColor {
			errorColor.DisableColor()
		}
		errorColor.Fprintf(w, "Error: %v\n", err)
	}
}
