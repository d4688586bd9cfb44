package store

// Color is an RGB color with 16-bit components, as stored in the
// container's background records.
type Color struct {
	R, G, B uint16
}

// ColorFromRGB8 widens 8-bit components to the stored 16-bit range.
func ColorFromRGB8(r, g, b uint8) Color {
	return Color{
		R: uint16(r) * 0x101,
		G: uint16(g) * 0x101,
		B: uint16(b) * 0x101,
	}
}

// RGB8 narrows the color to 8-bit components.
func (c Color) RGB8() (r, g, b uint8) {
	return uint8(c.R >> 8), uint8(c.G >> 8), uint8(c.B >> 8)
}
