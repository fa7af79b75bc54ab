package view

import (
	"roguecloud.ai/internal/protocol"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/worldmap"
)

// AgentPatch encodes the tiles of b row by row. Tiles missing from m encode as impassable with
// no terrain.
func AgentPatch(m worldmap.Map, b geom.Box) protocol.TilePatch {
	out := protocol.TilePatch{X: b.X, Y: b.Y, W: b.W, H: b.H, Tiles: make([]protocol.TileData, 0, b.Area())}
	for y := b.Y; y < b.Y+b.H; y++ {
		for x := b.X; x < b.X+b.W; x++ {
			out.Tiles = append(out.Tiles, agentTile(m.Tile(geom.P(x, y))))
		}
	}
	return out
}

func agentTile(t *worldmap.Tile) protocol.TileData {
	if t == nil {
		return protocol.TileData{Terrain: []protocol.TileRef{}}
	}
	d := protocol.TileData{Passable: t.Passable(), Terrain: make([]protocol.TileRef, 0, 2)}
	for _, tt := range t.Terrain() {
		d.Terrain = append(d.Terrain, protocol.FromTile(tt))
	}
	for _, p := range t.Properties() {
		d.Props = append(d.Props, protocol.TileProps{Kind: string(p.Kind), Open: p.Open})
	}
	return d
}

// BrowserPatch encodes b relative to origin, one entry of presentation layers per tile.
func BrowserPatch(m worldmap.Map, b geom.Box, origin geom.Position, offset int) protocol.BrowserPatch {
	out := protocol.BrowserPatch{X: b.X - origin.X, Y: b.Y - origin.Y, W: b.W, H: b.H, Data: make([][][]int, 0, b.Area())}
	for y := b.Y; y < b.Y+b.H; y++ {
		for x := b.X; x < b.X+b.W; x++ {
			out.Data = append(out.Data, browserLayers(m.Tile(geom.P(x, y)), offset))
		}
	}
	return out
}

func browserLayers(t *worldmap.Tile, offset int) [][]int {
	if t == nil {
		return [][]int{}
	}
	layers := t.Layers(offset)
	out := make([][]int, 0, len(layers))
	for _, l := range layers {
		if l.Rotation != 0 {
			out = append(out, []int{l.Number, l.Rotation})
		} else {
			out = append(out, []int{l.Number})
		}
	}
	return out
}
