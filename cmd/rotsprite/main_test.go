package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rotsprite/internal/convert"
	"rotsprite/internal/patch"
)

const testSpriteInfo = `// pivots for the player
Sprite PLAY
{
	Frame A
	{
		XPivot = 2
		YPivot = 6
		RotAxis = Y
	}
}
`

func solidPatchBytes(t *testing.T, w, h int, v uint8) []byte {
	t.Helper()
	p := &patch.Patch{Width: w, Height: h, Columns: make([]patch.Column, w)}
	for x := range p.Columns {
		p.Columns[x] = patch.Column{Posts: []patch.Post{{Pixels: bytes.Repeat([]byte{v}, h)}}}
	}
	data, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal patch: %v", err)
	}
	return data
}

func setupArchive(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]byte{
		"sprites/PLAYA1.lmp": solidPatchBytes(t, 8, 8, 4),
		"SPRTINFO.txt":       []byte(testSpriteInfo),
	}
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestInspectListsResources(t *testing.T) {
	dir := setupArchive(t)
	out, err := runCLI(t, "--archive", dir, "inspect")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	requireContains(t, out, "PLAYA1")
	requireContains(t, out, "SPRITES/PLAYA1.LMP")
	requireContains(t, out, "patch")
	requireContains(t, out, "8x8")
}

func TestSpriteInfoShowsPivots(t *testing.T) {
	dir := setupArchive(t)
	out, err := runCLI(t, "--archive", dir, "spriteinfo")
	if err != nil {
		t.Fatalf("spriteinfo: %v", err)
	}
	requireContains(t, out, "PLAY")
	requireContains(t, out, "pitch")

	if _, err := runCLI(t, "--archive", dir, "spriteinfo", "TROO"); err == nil {
		t.Fatal("expected error for unknown sprite")
	}
}

func TestExportWritesImagesAndManifest(t *testing.T) {
	dir := setupArchive(t)
	outDir := t.TempDir()
	out, err := runCLI(t, "--archive", dir, "export", "PLAYA1",
		"--angles", "0,90,93", "--flip", "--output", outDir, "--workers", "2")
	if err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}
	requireContains(t, out, "Exported: 6")
	for _, name := range []string{"000.png", "090_flip.png", "095.png", "manifest.json"} {
		path := filepath.Join(outDir, "PLAYA1", name)
		if name == "manifest.json" {
			path = filepath.Join(outDir, name)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
}

func TestExportFailsForUnknownResource(t *testing.T) {
	dir := setupArchive(t)
	out, err := runCLI(t, "--archive", dir, "export", "NOPE", "--angles", "30", "--output", t.TempDir())
	if err == nil {
		t.Fatal("expected export error")
	}
	requireContains(t, out, "Failed:   1")
}

func TestConfigRequiresArchive(t *testing.T) {
	_, err := runCLI(t, "inspect")
	if err == nil || !strings.Contains(err.Error(), "archives") {
		t.Fatalf("expected archives validation error, got %v", err)
	}
}

func TestConvertPatchToPNGAndBack(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.lmp")
	if err := os.WriteFile(src, solidPatchBytes(t, 5, 3, 7), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	pngPath := filepath.Join(dir, "out.png")
	if _, err := runCLI(t, "convert", src, pngPath); err != nil {
		t.Fatalf("convert to png: %v", err)
	}
	data, err := os.ReadFile(pngPath)
	if err != nil {
		t.Fatalf("read png: %v", err)
	}
	if convert.Sniff(data) != convert.FormatPNG {
		t.Fatalf("output is %s", convert.Sniff(data))
	}

	back := filepath.Join(dir, "back.bin")
	if _, err := runCLI(t, "convert", pngPath, back, "--to", "patch"); err != nil {
		t.Fatalf("convert to patch: %v", err)
	}
	raw, err := os.ReadFile(back)
	if err != nil {
		t.Fatalf("read patch: %v", err)
	}
	p, err := patch.Decode(raw)
	if err != nil {
		t.Fatalf("decode patch: %v", err)
	}
	if p.Width != 5 || p.Height != 3 || p.Opaque() != 15 {
		t.Fatalf("unexpected patch %dx%d with %d opaque pixels", p.Width, p.Height, p.Opaque())
	}
	if v, ok := p.Pixel(2, 1); !ok || v != 7 {
		t.Fatalf("pixel (2,1) = %d,%t; want 7", v, ok)
	}
}

func TestConvertRejectsUnknownInput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "junk")
	if err := os.WriteFile(src, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	if _, err := runCLI(t, "convert", src, filepath.Join(dir, "out.png")); err == nil {
		t.Fatal("expected error for unknown input")
	}
}

func TestConvertFlatToPNGDrawsEveryPixel(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "floor.lmp")
	flat := bytes.Repeat([]byte{0xFF}, 64*64)
	flat[0] = 7
	if err := os.WriteFile(src, flat, 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	out := filepath.Join(dir, "floor.png")
	if _, err := runCLI(t, "convert", src, out); err != nil {
		t.Fatalf("convert flat: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Fatalf("size %v", b)
	}
	// flats have no holes, index 255 is drawn as a colour
	for _, pt := range [][2]int{{0, 0}, {1, 0}, {63, 63}} {
		if _, _, _, a := img.At(pt[0], pt[1]).RGBA(); a != 0xFFFF {
			t.Fatalf("pixel %v alpha = %d", pt, a)
		}
	}

	same := filepath.Join(dir, "copy.lmp")
	if _, err := runCLI(t, "convert", src, same, "--to", "flat"); err != nil {
		t.Fatalf("flat to flat: %v", err)
	}
	if got, _ := os.ReadFile(same); !bytes.Equal(got, flat) {
		t.Fatal("flat to flat changed bytes")
	}
}
