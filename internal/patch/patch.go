package patch

// Image is a decoded image as held by a cache tree. Each backend has its
// own concrete representation.
type Image interface {
	Size() (width, height int)
	Offsets() (left, top int)
}

// Post is a vertical run of opaque pixels starting at row TopDelta.
type Post struct {
	TopDelta int
	Pixels   []uint8
}

// Column is the ordered list of posts for one image column.
// Rows not covered by a post are transparent.
type Column struct {
	Posts []Post
}

// Patch is a palette-indexed sprite stored as column runs.
type Patch struct {
	Width      int
	Height     int
	LeftOffset int
	TopOffset  int
	Columns    []Column // len == Width
}

// Size returns the patch dimensions.
func (p *Patch) Size() (int, int) { return p.Width, p.Height }

// Offsets returns the draw alignment offsets.
func (p *Patch) Offsets() (int, int) { return p.LeftOffset, p.TopOffset }

// Pixel returns the palette index at (x, y). ok is false for transparent
// or out of range pixels.
func (p *Patch) Pixel(x, y int) (v uint8, ok bool) {
	if x < 0 || y < 0 || x >= p.Width || y >= p.Height || x >= len(p.Columns) {
		return 0, false
	}
	for _, post := range p.Columns[x].Posts {
		if y < post.TopDelta {
			// posts are sorted, nothing further down can cover y
			return 0, false
		}
		if y < post.TopDelta+len(post.Pixels) {
			return post.Pixels[y-post.TopDelta], true
		}
	}
	return 0, false
}

// PixelFlipped is Pixel with the column order mirrored when flip is set.
func (p *Patch) PixelFlipped(x, y int, flip bool) (uint8, bool) {
	if flip {
		x = p.Width - 1 - x
	}
	return p.Pixel(x, y)
}

// Opaque counts the visible pixels.
func (p *Patch) Opaque() int {
	n := 0
	for _, col := range p.Columns {
		for _, post := range col.Posts {
			n += len(post.Pixels)
		}
	}
	return n
}

// ColumnBuilder accumulates pixels top to bottom into posts.
type ColumnBuilder struct {
	col     Column
	current *Post
	row     int
}

// Opaque appends a visible pixel at the next row.
func (b *ColumnBuilder) Opaque(v uint8) {
	if b.current == nil {
		b.col.Posts = append(b.col.Posts, Post{TopDelta: b.row})
		b.current = &b.col.Posts[len(b.col.Posts)-1]
	}
	b.current.Pixels = append(b.current.Pixels, v)
	b.row++
}

// Skip advances past a transparent row.
func (b *ColumnBuilder) Skip() {
	b.current = nil
	b.row++
}

// Column returns the built column. The builder must not be reused.
func (b *ColumnBuilder) Column() Column {
	return b.col
}
