package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"rotsprite/internal/convert"
	"rotsprite/internal/patch"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var outFormat string

	cmd := &cobra.Command{
		Use:   "convert INPUT OUTPUT",
		Short: "Convert between patch, flat, PNG, WebP and TGA",
		Long: "Convert one image file. The input format is detected from its\n" +
			"contents, the output format from the output extension or --to.",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out := args[0], args[1]
			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			to := convert.ParseFormat(filepath.Ext(out))
			if outFormat != "" {
				to = convert.ParseFormat(outFormat)
			}

			var buf bytes.Buffer
			from, err := convertImage(&buf, data, to, convert.DefaultPalette())
			if err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
				return err
			}
			ctx.log().Debug("converted",
				slog.String("input", in),
				slog.String("from", from.String()),
				slog.String("output", out),
				slog.String("to", to.String()))
			return nil
		},
	}
	cmd.Flags().StringVar(&outFormat, "to", "", "Output format, overriding the extension")
	return cmd
}

// convertImage writes data re-encoded as format to and returns the detected
// input format.
func convertImage(buf *bytes.Buffer, data []byte, to convert.Format, pal *convert.Palette) (convert.Format, error) {
	from := convert.Sniff(data)
	if from == convert.FormatUnknown {
		return from, fmt.Errorf("%w: unrecognised input", convert.ErrDecode)
	}

	switch {
	case to == convert.FormatFlat && from == convert.FormatFlat:
		buf.Write(data)
		return from, nil

	case to == convert.FormatPatch, to == convert.FormatFlat:
		p, err := toPatch(data, from, pal)
		if err != nil {
			return from, err
		}
		if to == convert.FormatFlat {
			f, err := convert.PatchToFlat(p)
			if err != nil {
				return from, err
			}
			buf.Write(f.Pix)
			return from, nil
		}
		raw, err := p.MarshalBinary()
		if err != nil {
			return from, err
		}
		buf.Write(raw)
		return from, nil

	case to.External():
		switch {
		case from == convert.FormatFlat:
			f, ok := convert.RawFlat(data)
			if !ok {
				return from, fmt.Errorf("%w: %d bytes is not a flat", convert.ErrDecode, len(data))
			}
			return from, convert.EncodeExternal(buf, convert.FlatToImage(f, pal, false), to)
		case from == convert.FormatPatch:
			p, err := toPatch(data, from, pal)
			if err != nil {
				return from, err
			}
			return from, convert.EncodePatch(buf, p, pal, to)
		default:
			img, _, err := convert.DecodeExternal(data)
			if err != nil {
				return from, err
			}
			return from, convert.EncodeExternal(buf, img, to)
		}
	}
	return from, fmt.Errorf("%w: cannot write %s", convert.ErrUnsupportedFormat, to)
}

func toPatch(data []byte, from convert.Format, pal *convert.Palette) (*patch.Patch, error) {
	switch from {
	case convert.FormatPatch:
		return patch.Decode(data)
	case convert.FormatFlat:
		f, ok := convert.RawFlat(data)
		if !ok {
			return nil, fmt.Errorf("%w: %d bytes is not a flat", convert.ErrDecode, len(data))
		}
		return convert.FlatToPatch(f, 0, 0, false), nil
	default:
		return convert.ExternalToPatch(data, pal)
	}
}
