package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"rotsprite/internal/convert"
	"rotsprite/internal/patch"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List mounted resources and their image formats",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := ctx.ensureEngine()
			if err != nil {
				return err
			}
			set := e.Archives()

			var rows [][]string
			for i := 0; i < set.Len(); i++ {
				a, ok := set.Archive(uint16(i))
				if !ok {
					continue
				}
				for r := 0; r < a.Len(); r++ {
					res, _ := a.Resource(uint16(r))
					data, err := res.Bytes()
					if err != nil {
						return err
					}
					f := convert.Sniff(data)
					rows = append(rows, []string{
						strconv.Itoa(i),
						strconv.Itoa(r),
						res.Name,
						res.LongName,
						f.String(),
						strconv.Itoa(len(data)),
						dimensions(data, f),
					})
				}
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No resources mounted")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Archive", "#", "Name", "Path", "Format", "Bytes", "Size"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}

func dimensions(data []byte, f convert.Format) string {
	switch {
	case f == convert.FormatPatch:
		p, err := patch.Decode(data)
		if err != nil {
			return "-"
		}
		return fmt.Sprintf("%dx%d", p.Width, p.Height)
	case f == convert.FormatFlat:
		side, _ := convert.FlatSize(len(data))
		return fmt.Sprintf("%dx%d", side, side)
	case f.External():
		w, h, err := convert.ExternalDimensions(data)
		if err != nil {
			return "-"
		}
		return fmt.Sprintf("%dx%d", w, h)
	}
	return "-"
}
