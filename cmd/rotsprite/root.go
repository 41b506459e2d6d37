package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := newCommandContext()

	rootCmd := &cobra.Command{
		Use:           "rotsprite",
		Short:         "Rotate and convert sprite patches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (TOML)")
	flags.StringVar(&ctx.flags.BaseDir, "base-dir", "", "Directory relative paths are resolved against")
	flags.StringSliceVarP(&ctx.flags.Archives, "archive", "a", nil, "Archive directory to mount (repeatable, later shadows earlier)")
	flags.StringVarP(&ctx.flags.Backend, "backend", "b", "", "Rendering backend: raster or accelerated")
	flags.StringVar(&ctx.flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newInspectCommand(ctx))
	rootCmd.AddCommand(newSpriteInfoCommand(ctx))
	rootCmd.AddCommand(newConvertCommand(ctx))

	return rootCmd
}
