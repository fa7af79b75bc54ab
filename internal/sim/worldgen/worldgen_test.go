package worldgen

import (
	"testing"

	"roguecloud.ai/internal/sim/catalogs"
	"roguecloud.ai/internal/sim/geom"
)

func loadTiles(t *testing.T) catalogs.TileCatalog {
	t.Helper()
	c, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return c.Tiles
}

func TestGenerate_Deterministic(t *testing.T) {
	tiles := loadTiles(t)
	a := Generate(DefaultParams(60, 50, 7), tiles)
	b := Generate(DefaultParams(60, 50, 7), tiles)
	for x := 0; x < 60; x++ {
		for y := 0; y < 50; y++ {
			p := geom.P(x, y)
			ta, tb := a.Tile(p), b.Tile(p)
			if ta.Passable() != tb.Passable() || ta.Terrain()[0] != tb.Terrain()[0] {
				t.Fatalf("maps differ at %v", p)
			}
		}
	}
}

func TestGenerate_BorderIsWalled(t *testing.T) {
	tiles := loadTiles(t)
	m := Generate(DefaultParams(40, 30, 3), tiles)
	for x := 0; x < 40; x++ {
		for _, y := range []int{0, 29} {
			if m.Tile(geom.P(x, y)).Passable() {
				t.Fatalf("border tile (%d,%d) is passable", x, y)
			}
		}
	}
	for y := 0; y < 30; y++ {
		for _, x := range []int{0, 39} {
			if m.Tile(geom.P(x, y)).Passable() {
				t.Fatalf("border tile (%d,%d) is passable", x, y)
			}
		}
	}
}

func TestGenerate_MostlyOpen(t *testing.T) {
	tiles := loadTiles(t)
	m := Generate(DefaultParams(80, 80, 11), tiles)
	open := 0
	for x := 0; x < 80; x++ {
		for y := 0; y < 80; y++ {
			if m.Tile(geom.P(x, y)).Passable() {
				open++
			}
		}
	}
	if open < 80*80/2 {
		t.Fatalf("only %d of %d tiles passable", open, 80*80)
	}
}
