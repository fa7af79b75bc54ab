package protocol

import "encoding/json"

// Version is the client API version a ClientConnect must carry.
const Version = "1.0"

// Message types.
const (
	TypeClientConnect         = "ClientConnect"
	TypeClientConnectResponse = "ClientConnectResponse"
	TypeActionMessage         = "ActionMessage"
	TypeActionMessageResponse = "ActionMessageResponse"
	TypeFrameUpdate           = "FrameUpdate"
	TypeBrowserFrame          = "BrowserFrame"
	TypeError                 = "Error"
)

// Action and response payload types carried inside ActionMessage / ActionMessageResponse.
const (
	TypeStepAction              = "StepAction"
	TypeCombatAction            = "CombatAction"
	TypeDrinkItemAction         = "DrinkItemAction"
	TypeEquipAction             = "EquipAction"
	TypeMoveInventoryItemAction = "MoveInventoryItemAction"
	TypeNullAction              = "NullAction"

	TypeStepActionResponse              = "StepActionResponse"
	TypeCombatActionResponse            = "CombatActionResponse"
	TypeDrinkItemActionResponse         = "DrinkItemActionResponse"
	TypeEquipActionResponse             = "EquipActionResponse"
	TypeMoveInventoryItemActionResponse = "MoveInventoryItemActionResponse"
	TypeNullActionResponse              = "NullActionResponse"
)

// Connect results.
const (
	ConnectSuccess                     = "SUCCESS"
	ConnectFailInvalidCredentials      = "FAIL_INVALID_CREDENTIALS"
	ConnectFailRoundOver               = "FAIL_ROUND_OVER"
	ConnectFailRoundNotStarted         = "FAIL_ROUND_NOT_STARTED"
	ConnectFailOther                   = "FAIL_OTHER"
	ConnectFailInvalidClientAPIVersion = "FAIL_INVALID_CLIENT_API_VERSION"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
