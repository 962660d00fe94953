package tilemap

import (
	"bytes"
	"testing"
)

func TestInBoundsAndPassable(t *testing.T) {
	m := CreateEmpty(3, 3)
	m.Set(1, 1, Tile{Type: Blocked})

	if !m.InBounds(0, 0) || m.InBounds(3, 0) || m.InBounds(0, 3) || m.InBounds(-1, 0) {
		t.Fatalf("InBounds disagreement")
	}
	if m.IsPassable(1, 1) {
		t.Fatalf("expected (1,1) blocked")
	}
	if !m.IsPassable(0, 0) {
		t.Fatalf("expected (0,0) passable")
	}
	if IsPassable(m, 5, 5) {
		t.Fatalf("OOB tile must not be passable")
	}
}

func TestAddBorderWalls(t *testing.T) {
	m := CreateEmpty(4, 4)
	AddBorderWalls(m)
	for x := 0; x < 4; x++ {
		if m.IsPassable(x, 0) || m.IsPassable(x, 3) {
			t.Fatalf("border row not blocked at x=%d", x)
		}
	}
	if !m.IsPassable(1, 1) {
		t.Fatalf("interior should remain passable")
	}
}

func TestAddRectangleClipsToBounds(t *testing.T) {
	m := CreateEmpty(5, 5)
	AddRectangle(m, 3, 3, 10, 10)
	if m.IsPassable(4, 4) {
		t.Fatalf("expected (4,4) blocked by clipped rectangle")
	}
	if !m.IsPassable(0, 0) {
		t.Fatalf("origin should be untouched")
	}
}

func TestAddRandomObstaclesDeterministicWithSeed(t *testing.T) {
	seed := int64(42)
	m1 := CreateEmpty(10, 10)
	AddRandomObstacles(m1, 0.3, &seed)

	m2 := CreateEmpty(10, 10)
	AddRandomObstacles(m2, 0.3, &seed)

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if m1.Tiles[y][x] != m2.Tiles[y][x] {
				t.Fatalf("same seed produced different tile at (%d,%d)", x, y)
			}
		}
	}
}

func TestAddRandomObstaclesDensityBounds(t *testing.T) {
	seed := int64(1)
	m := CreateEmpty(20, 20)
	AddRandomObstacles(m, 0, &seed)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if !m.IsPassable(x, y) {
				t.Fatalf("density 0 should leave every tile passable")
			}
		}
	}

	full := CreateEmpty(20, 20)
	AddRandomObstacles(full, 1, &seed)
	for y := 0; y < full.Height; y++ {
		for x := 0; x < full.Width; x++ {
			if full.IsPassable(x, y) {
				t.Fatalf("density 1 should block every tile")
			}
		}
	}
}

func TestCodecRoundTrip(t *testing.T) {
	m := CreateEmpty(3, 3)
	m.Set(1, 1, Tile{Type: Blocked})
	m.Set(0, 0, Tile{Type: Passable, Weight: 7})

	data := Serialize(m)
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if got.Tiles[y][x] != m.Tiles[y][x] {
				t.Fatalf("tile mismatch at (%d,%d): got %+v want %+v", x, y, got.Tiles[y][x], m.Tiles[y][x])
			}
		}
	}
}

func TestCodecExactByteLayout(t *testing.T) {
	m := CreateEmpty(3, 3)
	m.Set(1, 1, Tile{Type: Blocked})
	m.Set(0, 0, Tile{Type: Passable, Weight: 7})

	data := Serialize(m)
	if len(data) != 17 {
		t.Fatalf("expected 17 bytes, got %d", len(data))
	}
	want := []byte{
		3, 0, 0, 0, // width
		3, 0, 0, 0, // height
		7 << 2, 0, 0, // row 0: weight=7 passable, passable, passable
		0, 1, 0, // row 1: passable, blocked, passable
		0, 0, 0, // row 2
	}
	if !bytes.Equal(data, want) {
		t.Fatalf("unexpected byte layout:\ngot  %v\nwant %v", data, want)
	}
}

func TestDeserializeRejectsTruncated(t *testing.T) {
	if _, err := Deserialize([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for truncated header")
	}
}

func TestDeserializeRejectsBadDimensions(t *testing.T) {
	data := make([]byte, 8)
	// width = 0
	if _, err := Deserialize(data); err == nil {
		t.Fatalf("expected error for zero dimensions")
	}
}

func TestDeserializeRejectsWrongLength(t *testing.T) {
	m := CreateEmpty(2, 2)
	data := Serialize(m)
	data = append(data, 0xFF)
	if _, err := Deserialize(data); err == nil {
		t.Fatalf("expected error for oversized payload")
	}
}
