package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"rotsprite/internal/batch"
	"rotsprite/internal/convert"
)

var defaultAngles = []float64{45, 90, 135, 180, 225, 270, 315}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var angles []float64
	var flip bool

	cmd := &cobra.Command{
		Use:   "export NAME...",
		Short: "Render rotations of resources to image files",
		Long: "Render every named resource at every requested angle. Angles are\n" +
			"quantised to 5 degree steps; angles sharing a step are exported once.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			kind, err := ctx.backendKind()
			if err != nil {
				return err
			}
			e, err := ctx.ensureEngine()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			jobs := batch.Jobs(args, angles, flip)
			log := ctx.log()
			log.Info("export starting",
				slog.Int("jobs", len(jobs)),
				slog.String("backend", kind.String()),
				slog.Int("workers", cfg.Workers))

			results := batch.Run(cmd.Context(), batch.Config{
				Engine:    e,
				Backend:   kind,
				OutputDir: cfg.OutputDir,
				Format:    convert.ParseFormat(cfg.Format),
				Workers:   cfg.Workers,
				Logger:    log,
			}, jobs)

			failed := 0
			for _, r := range results {
				if !r.Success {
					failed++
					log.Warn("export failed",
						slog.String("name", r.Name),
						slog.Int("bucket", r.Bucket),
						slog.Bool("flip", r.Flip),
						slog.String("error", r.Error))
				}
			}

			manifest := filepath.Join(cfg.OutputDir, "manifest.json")
			if err := batch.WriteManifest(manifest, results); err != nil {
				return fmt.Errorf("write manifest: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Exported: %d\n", len(results)-failed)
			fmt.Fprintf(out, "Failed:   %d\n", failed)
			fmt.Fprintf(out, "Manifest: %s\n", manifest)
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d exports failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().Float64SliceVar(&angles, "angles", defaultAngles, "Angles in degrees, counter-clockwise")
	cmd.Flags().BoolVar(&flip, "flip", false, "Also export horizontally mirrored rotations")
	cmd.Flags().StringVarP(&ctx.flags.Format, "format", "f", "", "Output format: png, webp or tga")
	cmd.Flags().StringVarP(&ctx.flags.OutputDir, "output", "o", "", "Output directory")
	cmd.Flags().IntVarP(&ctx.flags.Workers, "workers", "w", 0, "Parallel workers (default: CPU count)")

	return cmd
}
