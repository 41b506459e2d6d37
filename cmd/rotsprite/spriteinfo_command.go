package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"rotsprite/internal/spriteinfo"
)

func newSpriteInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "spriteinfo [SPRITE...]",
		Short: "Show rotation pivots defined by SPRTINFO resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := ctx.ensureEngine()
			if err != nil {
				return err
			}
			table := e.SpriteInfo()
			names := args
			if len(names) == 0 {
				names = table.Sprites()
			}

			var rows [][]string
			for _, name := range names {
				info, ok := table.Info(name)
				if !ok {
					return fmt.Errorf("sprite %q has no pivot definitions", name)
				}
				for _, frame := range info.Frames() {
					p := info.Pivots[frame]
					rows = append(rows, []string{
						name,
						string(spriteinfo.FrameChar(frame)),
						strconv.Itoa(p.X),
						strconv.Itoa(p.Y),
						p.Axis.String(),
					})
				}
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No sprite pivots defined")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Sprite", "Frame", "X", "Y", "Axis"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}
