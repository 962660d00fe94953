package tilemap

import (
	"encoding/binary"
	"fmt"
)

// typeMask/weightShift implement the byte layout from spec.md §4.1:
// bits 0-1 = type, bits 2-7 = weight (0 meaning "default").
const (
	typeMask    = 0b0000_0011
	weightShift = 2
)

// Serialize encodes the map as: u32 width, u32 height (little-endian),
// then one byte per tile, row-major (y outer, x inner).
func Serialize(m *TileMap) []byte {
	if m == nil {
		return nil
	}
	buf := make([]byte, 8+m.Width*m.Height)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.Width))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(m.Height))
	i := 8
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			tile := m.Tiles[y][x]
			weight := tile.Weight
			if weight < 0 {
				weight = 0
			}
			if weight > MaxWeight {
				weight = MaxWeight
			}
			buf[i] = byte(tile.Type)&typeMask | byte(weight)<<weightShift
			i++
		}
	}
	return buf
}

// Deserialize decodes a map from the wire format, rejecting truncated,
// oversized, or dimensionally invalid payloads per spec.md §4.1/§7.
func Deserialize(data []byte) (*TileMap, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("tilemap: truncated header (%d bytes)", len(data))
	}
	width := int(binary.LittleEndian.Uint32(data[0:4]))
	height := int(binary.LittleEndian.Uint32(data[4:8]))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("tilemap: invalid dimensions %dx%d", width, height)
	}
	want := 8 + width*height
	if len(data) != want {
		return nil, fmt.Errorf("tilemap: expected %d bytes, got %d", want, len(data))
	}
	m := New(width, height)
	i := 8
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			b := data[i]
			i++
			weight := int(b >> weightShift)
			m.Tiles[y][x] = Tile{
				Type:   TileType(b & typeMask),
				Weight: weight,
			}
		}
	}
	return m, nil
}
