package view

import (
	"roguecloud.ai/internal/protocol"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/worldmap"
)

// BrowserTicksPerCycle is how many ticks each of several creatures sharing a tile is shown
// before the next one.
const BrowserTicksPerCycle = 5

type BrowserInput struct {
	Map           worldmap.Map
	Center        geom.Position
	ViewWidth     int
	ViewHeight    int
	Tick          uint64
	Dirty         []geom.Position
	RoundSecsLeft int
}

// Spectator is the view state of one browser connection.
type Spectator struct {
	tracker *Tracker
}

func NewSpectator() *Spectator { return &Spectator{tracker: NewTracker()} }

func (s *Spectator) ForceFull() { s.tracker.ForceFull() }

func (s *Spectator) Frame(in BrowserInput) protocol.BrowserFrame {
	v := Viewport(in.Map, in.Center, in.ViewWidth, in.ViewHeight)
	plan := s.tracker.Next(v, in.Dirty)
	offset := int(in.Tick / BrowserTicksPerCycle)
	origin := v.TopLeft()

	out := protocol.BrowserFrame{
		Type:           protocol.TypeBrowserFrame,
		Frame:          in.Tick,
		CurrWorldPosX:  v.X,
		CurrWorldPosY:  v.Y,
		CurrViewWidth:  v.W,
		CurrViewHeight: v.H,
		FullSent:       plan.Full,
		FrameData:      make([]protocol.BrowserPatch, 0, len(plan.Regions)),
		Creatures:      make([]protocol.BrowserCreature, 0),
		RoundSecsLeft:  in.RoundSecsLeft,
	}
	for _, r := range plan.Regions {
		out.FrameData = append(out.FrameData, BrowserPatch(in.Map, r, origin, offset))
	}
	forEachTile(in.Map, v, func(t *worldmap.Tile) {
		for _, c := range t.Creatures() {
			bc := protocol.BrowserCreature{
				ID:       c.ID(),
				Position: [2]int{c.Position().X, c.Position().Y},
				HP:       c.HP(),
				MaxHP:    c.MaxHP(),
			}
			if c.IsPlayerCreature() {
				bc.Username = c.Name()
			}
			out.Creatures = append(out.Creatures, bc)
		}
	})
	return out
}
