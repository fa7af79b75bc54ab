package protocol

import "encoding/json"

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TileRef is a sprite number with an optional rotation in degrees.
type TileRef struct {
	Number   int `json:"number"`
	Rotation int `json:"rotation,omitempty"`
}

// ClientConnect (client -> server), the first message on an agent connection.
type ClientConnect struct {
	Type                       string `json:"type"`
	UUID                       string `json:"uuid"`
	Username                   string `json:"username"`
	Password                   string `json:"password"`
	ClientVersion              string `json:"clientVersion"`
	RoundToEnter               *int64 `json:"roundToEnter,omitempty"`
	LastActionResponseReceived *int64 `json:"lastActionResponseReceived,omitempty"`
	InitialConnect             bool   `json:"initialConnect"`
}

// ClientConnectResponse (server -> client).
type ClientConnectResponse struct {
	Type          string `json:"type"`
	ConnectResult string `json:"connectResult"`
	RoundEntered  *int64 `json:"roundEntered,omitempty"`
	CreatureID    int64  `json:"creatureId,omitempty"`
	WorldWidth    int    `json:"worldWidth,omitempty"`
	WorldHeight   int    `json:"worldHeight,omitempty"`
	CatalogDigest string `json:"catalogDigest,omitempty"`
	ServerVersion string `json:"serverVersion,omitempty"`
}

// ActionMessage (client -> server) wraps one action payload, discriminated by its own type.
type ActionMessage struct {
	Type      string          `json:"type"`
	MessageID int64           `json:"messageId"`
	Action    json.RawMessage `json:"action" jsonschema:"type=object"`
}

// ActionMessageResponse (server -> client) answers the ActionMessage with the same messageId.
type ActionMessageResponse struct {
	Type      string          `json:"type"`
	MessageID int64           `json:"messageId"`
	Frame     uint64          `json:"frame"`
	Response  json.RawMessage `json:"response" jsonschema:"type=object"`
}

type ErrorMessage struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Message   string `json:"message,omitempty"`
	MessageID int64  `json:"messageId,omitempty"`
}

type StepAction struct {
	Type        string   `json:"type"`
	Destination Position `json:"destination"`
}

type CombatAction struct {
	Type             string `json:"type"`
	TargetCreatureID int64  `json:"targetCreatureId"`
}

type DrinkItemAction struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

type EquipAction struct {
	Type     string `json:"type"`
	ObjectID int64  `json:"objectId"`
}

type MoveInventoryItemAction struct {
	Type     string `json:"type"`
	ObjectID int64  `json:"objectId"`
	DropItem bool   `json:"dropItem"`
}

type NullAction struct {
	Type string `json:"type"`
}

type StepActionResponse struct {
	Type        string    `json:"type"`
	Success     bool      `json:"success"`
	NewPosition *Position `json:"newPosition,omitempty"`
	FailReason  string    `json:"failReason,omitempty"`
}

type CombatActionResponse struct {
	Type             string `json:"type"`
	Result           string `json:"result"`
	DamageDealt      int    `json:"damageDealt"`
	TargetCreatureID int64  `json:"targetCreatureId"`
}

type DrinkItemActionResponse struct {
	Type    string  `json:"type"`
	Success bool    `json:"success"`
	ID      int64   `json:"id"`
	Effect  *Effect `json:"effect,omitempty"`
}

type EquipActionResponse struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	ObjectID int64  `json:"objectId"`
}

type MoveInventoryItemActionResponse struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	ObjectID int64  `json:"objectId"`
	DropItem bool   `json:"dropItem"`
}

type NullActionResponse struct {
	Type string `json:"type"`
}

type Effect struct {
	Type           string `json:"type"`
	Magnitude      int    `json:"magnitude"`
	RemainingTurns int    `json:"remainingTurns"`
	Name           string `json:"name,omitempty"`
}

// FrameUpdate (server -> client) is sent once per tick to every connected agent.
type FrameUpdate struct {
	Type       string     `json:"type"`
	Frame      uint64     `json:"frame"`
	GameTicks  uint64     `json:"gameTicks"`
	IsFull     bool       `json:"isFull"`
	SelfState  SelfState  `json:"selfState"`
	WorldState WorldState `json:"worldState"`
}

type SelfState struct {
	Creature  Creature         `json:"playerCreature"`
	Inventory []InventoryEntry `json:"inventory"`
	Score     int64            `json:"score"`
}

type WorldState struct {
	ClientViewPosX   int            `json:"clientViewPosX"`
	ClientViewPosY   int            `json:"clientViewPosY"`
	ClientViewWidth  int            `json:"clientViewWidth"`
	ClientViewHeight int            `json:"clientViewHeight"`
	WorldWidth       int            `json:"worldWidth"`
	WorldHeight      int            `json:"worldHeight"`
	RoundSecsLeft    int            `json:"roundSecsLeft"`
	FrameData        []TilePatch    `json:"frameData"`
	VisibleCreatures []Creature     `json:"visibleCreatures"`
	VisibleObjects   []GroundObject `json:"visibleObjects"`
	Drinkables       []DrinkableDef `json:"drinkables,omitempty"`
	Weapons          []WeaponDef    `json:"weapons,omitempty"`
	Armours          []ArmourDef    `json:"armours,omitempty"`
	Events           []Event        `json:"events"`
}

// TilePatch is a rectangle of world tiles, listed row by row starting at (X,Y).
type TilePatch struct {
	X     int        `json:"x"`
	Y     int        `json:"y"`
	W     int        `json:"w"`
	H     int        `json:"h"`
	Tiles []TileData `json:"tiles"`
}

type TileData struct {
	Passable bool        `json:"passable"`
	Terrain  []TileRef   `json:"terrain"`
	Props    []TileProps `json:"props,omitempty"`
}

type TileProps struct {
	Kind string `json:"kind"`
	Open bool   `json:"open"`
}

type Creature struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Position  Position `json:"position"`
	HP        int      `json:"hp"`
	MaxHP     int      `json:"maxHp"`
	Level     int      `json:"level"`
	Player    bool     `json:"player"`
	Username  string   `json:"username,omitempty"`
	Tile      TileRef  `json:"tile"`
	WeaponID  int64    `json:"weaponId,omitempty"`
	ArmourIDs []int64  `json:"armourIds,omitempty"`
	Effects   []Effect `json:"effects,omitempty"`
}

// GroundObject is an item instance lying on the map. ObjectID refers to a catalog definition.
type GroundObject struct {
	ID       int64    `json:"id"`
	Kind     string   `json:"kind"`
	ObjectID int64    `json:"objectId"`
	Position Position `json:"position"`
}

type InventoryEntry struct {
	ID       int64  `json:"id"`
	Kind     string `json:"kind"`
	ObjectID int64  `json:"objectId"`
}

type WeaponDef struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	WeaponType     string  `json:"weaponType"`
	NumAttackDice  int     `json:"numAttackDice"`
	AttackDiceSize int     `json:"attackDiceSize"`
	AttackPlus     int     `json:"attackPlus"`
	HitRating      int     `json:"hitRating"`
	Hands          string  `json:"hands"`
	Tile           TileRef `json:"tile"`
}

type ArmourDef struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Defense int     `json:"defense"`
	Slot    string  `json:"slot"`
	Tile    TileRef `json:"tile"`
}

type DrinkableDef struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Effect Effect  `json:"effect"`
	Tile   TileRef `json:"tile"`
}

// Event is the flattened wire form of every event kind; Type selects which fields apply.
type Event struct {
	Type       string    `json:"type"`
	ID         int64     `json:"id"`
	Frame      uint64    `json:"frame"`
	Position   Position  `json:"position"`
	CreatureID int64     `json:"creatureId,omitempty"`
	From       *Position `json:"from,omitempty"`
	To         *Position `json:"to,omitempty"`
	AttackerID int64     `json:"attackerId,omitempty"`
	DefenderID int64     `json:"defenderId,omitempty"`
	Hit        bool      `json:"hit,omitempty"`
	Damage     int       `json:"damage,omitempty"`
	ObjectID   int64     `json:"objectId,omitempty"`
	DropItem   bool      `json:"dropItem,omitempty"`
	Effect     *Effect   `json:"effect,omitempty"`
}

// BrowserFrame (server -> spectator) is the compact differential view drawn by the browser.
// Patch coordinates are relative to (CurrWorldPosX, CurrWorldPosY).
type BrowserFrame struct {
	Type           string            `json:"type"`
	Frame          uint64            `json:"frame"`
	CurrWorldPosX  int               `json:"currWorldPosX"`
	CurrWorldPosY  int               `json:"currWorldPosY"`
	CurrViewWidth  int               `json:"currViewWidth"`
	CurrViewHeight int               `json:"currViewHeight"`
	FullSent       bool              `json:"fullSent"`
	FrameData      []BrowserPatch    `json:"frameData"`
	Creatures      []BrowserCreature `json:"creatures"`
	RoundSecsLeft  int               `json:"roundSecsLeft"`
}

// BrowserPatch data holds one entry per tile, row by row; each entry lists the tile's layers
// top-down as [number] or [number, rotation].
type BrowserPatch struct {
	X    int       `json:"x"`
	Y    int       `json:"y"`
	W    int       `json:"w"`
	H    int       `json:"h"`
	Data [][][]int `json:"data"`
}

type BrowserCreature struct {
	ID       int64  `json:"id"`
	Position [2]int `json:"position"`
	HP       int    `json:"hp"`
	MaxHP    int    `json:"maxHp"`
	Username string `json:"username,omitempty"`
}
