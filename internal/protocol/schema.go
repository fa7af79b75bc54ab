package protocol

import (
	"encoding/json"
	"sort"

	"github.com/invopop/jsonschema"
)

var schemaTypes = map[string]any{
	"client_connect":          new(ClientConnect),
	"client_connect_response": new(ClientConnectResponse),
	"action_message":          new(ActionMessage),
	"action_message_response": new(ActionMessageResponse),
	"error":                   new(ErrorMessage),
	"frame_update":            new(FrameUpdate),
	"browser_frame":           new(BrowserFrame),

	"step_action":                         new(StepAction),
	"combat_action":                       new(CombatAction),
	"drink_item_action":                   new(DrinkItemAction),
	"equip_action":                        new(EquipAction),
	"move_inventory_item_action":          new(MoveInventoryItemAction),
	"null_action":                         new(NullAction),
	"step_action_response":                new(StepActionResponse),
	"combat_action_response":              new(CombatActionResponse),
	"drink_item_action_response":          new(DrinkItemActionResponse),
	"equip_action_response":               new(EquipActionResponse),
	"move_inventory_item_action_response": new(MoveInventoryItemActionResponse),
	"null_action_response":                new(NullActionResponse),
}

// SchemaNames lists the reflected message schemas in a stable order.
func SchemaNames() []string {
	names := make([]string, 0, len(schemaTypes))
	for n := range schemaTypes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Schema reflects the JSON schema of one wire message; ok is false for unknown names.
func Schema(name string) (*jsonschema.Schema, bool) {
	v, ok := schemaTypes[name]
	if !ok {
		return nil, false
	}
	r := jsonschema.Reflector{}
	s := r.Reflect(v)
	s.Title = name
	s.Description = "RogueCloud wire message, API version " + Version
	return s, true
}

// SchemaJSON is Schema rendered as indented JSON.
func SchemaJSON(name string) ([]byte, bool, error) {
	s, ok := Schema(name)
	if !ok {
		return nil, false, nil
	}
	b, err := json.MarshalIndent(s, "", "  ")
	return b, true, err
}
