package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	RoundID int64  `json:"round_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 is a complete round state. Objects are stored by catalog id, so a snapshot is only
// meaningful together with the catalogs whose digest it records.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed          int64  `json:"seed"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	TickMs        int    `json:"tick_ms"`
	CatalogDigest string `json:"catalog_digest"`

	// Terrain holds one RLE layer per terrain depth, bottom first, in column-major tile order.
	Terrain []LayerV1 `json:"terrain"`
	// Passable is an RLE layer of 0/1 values.
	Passable string       `json:"passable"`
	Props    []PropertyV1 `json:"props,omitempty"`

	Creatures     []CreatureV1     `json:"creatures"`
	GroundObjects []GroundObjectV1 `json:"ground_objects"`
	Players       []PlayerV1       `json:"players"`
	Monsters      []MonsterV1      `json:"monsters"`

	Counters CountersV1 `json:"counters"`
}

type LayerV1 struct {
	Numbers   string `json:"numbers"`
	Rotations string `json:"rotations"`
}

type PropertyV1 struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Kind string `json:"kind"`
	Open bool   `json:"open"`
}

type ObjectRefV1 struct {
	Kind  string `json:"kind"`
	DefID int64  `json:"def_id"`
}

type OwnedV1 struct {
	ID     int64       `json:"id"`
	Object ObjectRefV1 `json:"object"`
}

type EffectV1 struct {
	Type      string `json:"type"`
	Magnitude int    `json:"magnitude"`
	Turns     int    `json:"turns"`
}

type CreatureV1 struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Player    bool       `json:"player"`
	UserID    int64      `json:"user_id,omitempty"`
	X         int        `json:"x"`
	Y         int        `json:"y"`
	HP        int        `json:"hp"`
	MaxHP     int        `json:"max_hp"`
	Level     int        `json:"level"`
	WeaponID  int64      `json:"weapon_id"`
	ArmourIDs []int64    `json:"armour_ids,omitempty"`
	Inventory []OwnedV1  `json:"inventory,omitempty"`
	Effects   []EffectV1 `json:"effects,omitempty"`
	Tile      int        `json:"tile"`
	TileRot   int        `json:"tile_rot,omitempty"`
	Behavior  string     `json:"behavior,omitempty"`
}

type GroundObjectV1 struct {
	ID     int64       `json:"id"`
	X      int         `json:"x"`
	Y      int         `json:"y"`
	Object ObjectRefV1 `json:"object"`
}

type PlayerV1 struct {
	CreatureID   int64          `json:"creature_id"`
	UserID       int64          `json:"user_id"`
	Username     string         `json:"username"`
	Score        int64          `json:"score"`
	Dead         bool           `json:"dead"`
	ReviveAt     uint64         `json:"revive_at,omitempty"`
	LastMessage  int64          `json:"last_message"`
	BestWeapon   int            `json:"best_weapon"`
	BestDefenses map[string]int `json:"best_defenses,omitempty"`
}

type MonsterV1 struct {
	CreatureID int64  `json:"creature_id"`
	HomeX      int    `json:"home_x"`
	HomeY      int    `json:"home_y"`
	Dead       bool   `json:"dead"`
	DiedAt     uint64 `json:"died_at,omitempty"`
}

type CountersV1 struct {
	NextCreature int64 `json:"next_creature"`
	NextObject   int64 `json:"next_object"`
	NextEvent    int64 `json:"next_event"`
}

// Path is the conventional file name of a snapshot under dir.
func Path(dir string, roundID int64, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("round-%d", roundID), fmt.Sprintf("%012d.snap.zst", tick))
}

// WriteSnapshot writes a zstd stream holding a JSON header line followed by the gob body.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(w io.Writer, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

// ReadHeader decodes only the header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}
