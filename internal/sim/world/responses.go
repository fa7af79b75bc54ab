package world

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"roguecloud.ai/internal/protocol"
	"roguecloud.ai/internal/sim/action"
)

const responseCacheSize = 64

// responseCache keeps a player's most recent action responses so a reconnecting client can
// recover answers it missed. The world loop writes; connection goroutines read.
type responseCache struct {
	mu      sync.Mutex
	entries []protocol.ActionMessageResponse
}

func (c *responseCache) add(r protocol.ActionMessageResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, r)
	if over := len(c.entries) - responseCacheSize; over > 0 {
		c.entries = append(c.entries[:0], c.entries[over:]...)
	}
}

// after returns cached responses with a message id above last, oldest first.
func (c *responseCache) after(last int64) []protocol.ActionMessageResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.ActionMessageResponse
	for _, r := range c.entries {
		if r.MessageID > last {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out
}

func (c *responseCache) get(id int64) (protocol.ActionMessageResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].MessageID == id {
			return c.entries[i], true
		}
	}
	return protocol.ActionMessageResponse{}, false
}

// Response returns the wire response the world produced for messageID, if it is still cached.
// Superseded actions never reach the world and are not cached.
func (a *Agent) Response(messageID int64) (protocol.ActionMessageResponse, bool) {
	return a.responses.get(messageID)
}

// ResponseMessage builds the wire message for r outside the world loop.
func ResponseMessage(messageID int64, frame uint64, r action.Response) (protocol.ActionMessageResponse, error) {
	raw, err := protocol.EncodeResponse(r)
	if err != nil {
		return protocol.ActionMessageResponse{}, err
	}
	return protocol.ActionMessageResponse{
		Type:      protocol.TypeActionMessageResponse,
		MessageID: messageID,
		Frame:     frame,
		Response:  raw,
	}, nil
}

func (w *World) cacheResponse(now uint64, p *player, f *action.Future, r action.Response) {
	if f.MessageID() <= 0 {
		return
	}
	msg, err := ResponseMessage(f.MessageID(), now, r)
	if err != nil {
		w.log.Error("encode response", zap.Int64("creature_id", p.creatureID), zap.Error(err))
		return
	}
	p.responses.add(msg)
}
