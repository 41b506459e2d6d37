package patch

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func column(posts ...Post) Column { return Column{Posts: posts} }

func TestMarshalDecodeRoundTrip(t *testing.T) {
	p := &Patch{
		Width:      3,
		Height:     6,
		LeftOffset: -2,
		TopOffset:  5,
		Columns: []Column{
			column(Post{TopDelta: 0, Pixels: []uint8{1, 2, 3}}),
			column(),
			column(Post{TopDelta: 1, Pixels: []uint8{9}}, Post{TopDelta: 4, Pixels: []uint8{7, 8}}),
		},
	}
	data, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if !Check(data) {
		t.Fatal("Check rejected encoded patch")
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Width != 3 || got.Height != 6 || got.LeftOffset != -2 || got.TopOffset != 5 {
		t.Fatalf("header mismatch: %+v", got)
	}
	for x := 0; x < p.Width; x++ {
		for y := 0; y < p.Height; y++ {
			wv, wok := p.Pixel(x, y)
			gv, gok := got.Pixel(x, y)
			if wv != gv || wok != gok {
				t.Fatalf("pixel (%d,%d): got %d,%t want %d,%t", x, y, gv, gok, wv, wok)
			}
		}
	}
	if got.Opaque() != 6 {
		t.Fatalf("expected 6 opaque pixels, got %d", got.Opaque())
	}
}

func TestTallPatchUsesRelativeDeltas(t *testing.T) {
	tests := []struct {
		name  string
		top   int
		count int
	}{
		{"below absolute range", 500, 10},
		{"far below", 1200, 3},
		{"post longer than 255", 0, 300},
		{"long post straddling", 200, 400},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pix := bytes.Repeat([]byte{42}, tc.count)
			p := &Patch{
				Width:   1,
				Height:  tc.top + tc.count,
				Columns: []Column{column(Post{TopDelta: tc.top, Pixels: pix})},
			}
			data, err := p.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary: %v", err)
			}
			got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.Opaque() != tc.count {
				t.Fatalf("expected %d opaque pixels, got %d", tc.count, got.Opaque())
			}
			if _, ok := got.Pixel(0, tc.top-1); ok && tc.top > 0 {
				t.Fatalf("row %d should be transparent", tc.top-1)
			}
			for _, y := range []int{tc.top, tc.top + tc.count - 1} {
				if v, ok := got.Pixel(0, y); !ok || v != 42 {
					t.Fatalf("row %d: got %d,%t", y, v, ok)
				}
			}
		})
	}
}

func TestDecodeClipsRowsPastHeight(t *testing.T) {
	p := &Patch{Width: 1, Height: 8, Columns: []Column{column(Post{TopDelta: 2, Pixels: []uint8{1, 2, 3, 4}})}}
	data, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	// shrink the declared height so the post hangs off the bottom
	binary.LittleEndian.PutUint16(data[2:], 4)
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Opaque() != 2 {
		t.Fatalf("expected 2 visible rows, got %d", got.Opaque())
	}
}

func TestCheckRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte{1, 0, 1, 0}},
		{"zero width", []byte{0, 0, 1, 0, 0, 0, 0, 0}},
		{"negative height", []byte{1, 0, 0xFF, 0xFF, 0, 0, 0, 0, 12, 0, 0, 0, 0xFF}},
		{"offset past end", []byte{1, 0, 1, 0, 0, 0, 0, 0, 99, 0, 0, 0, 0xFF}},
		{"offset inside table", []byte{1, 0, 1, 0, 0, 0, 0, 0, 4, 0, 0, 0, 0xFF}},
		{"text", []byte("not a patch at all")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if Check(tc.data) {
				t.Fatalf("Check accepted %v", tc.data)
			}
			if _, err := Decode(tc.data); !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestDecodeTruncatedColumn(t *testing.T) {
	// one column whose post claims 5 pixels but the data ends early
	data := []byte{1, 0, 5, 0, 0, 0, 0, 0, 12, 0, 0, 0, 0, 5, 0, 1, 2}
	if !Check(data) {
		t.Fatal("header should pass Check")
	}
	if _, err := Decode(data); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestMarshalRejectsBadShape(t *testing.T) {
	if _, err := (&Patch{Width: 0, Height: 4}).MarshalBinary(); err == nil {
		t.Fatal("expected error for zero width")
	}
	if _, err := (&Patch{Width: 2, Height: 4, Columns: make([]Column, 1)}).MarshalBinary(); err == nil {
		t.Fatal("expected error for missing columns")
	}
}

func TestColumnBuilderSplitsOnHoles(t *testing.T) {
	var b ColumnBuilder
	b.Opaque(1)
	b.Opaque(2)
	b.Skip()
	b.Skip()
	b.Opaque(3)
	col := b.Column()
	if len(col.Posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(col.Posts))
	}
	if col.Posts[1].TopDelta != 4 || col.Posts[1].Pixels[0] != 3 {
		t.Fatalf("unexpected second post: %+v", col.Posts[1])
	}
}

func TestPixelFlipped(t *testing.T) {
	p := &Patch{Width: 2, Height: 1, Columns: []Column{
		column(Post{Pixels: []uint8{10}}),
		column(Post{Pixels: []uint8{20}}),
	}}
	if v, _ := p.PixelFlipped(0, 0, true); v != 20 {
		t.Fatalf("flipped pixel = %d, want 20", v)
	}
	if v, _ := p.PixelFlipped(0, 0, false); v != 10 {
		t.Fatalf("pixel = %d, want 10", v)
	}
}
