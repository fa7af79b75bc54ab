package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"roguecloud.ai/internal/persistence/db"
	"roguecloud.ai/internal/protocol"
	"roguecloud.ai/internal/sim/action"
	"roguecloud.ai/internal/sim/rounds"
	"roguecloud.ai/internal/sim/world"
)

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
	frameQueue       = 8
	responseQueue    = 64
)

// Admitter picks the round a connecting client enters.
type Admitter interface {
	Admit(roundToEnter int64) (*rounds.Round, string)
}

type Options struct {
	// AutoRegister creates unknown users on first connect instead of rejecting them.
	AutoRegister  bool
	CatalogDigest string
}

type Server struct {
	rounds Admitter
	users  db.Database
	opts   Options
	log    *zap.Logger

	upgrader websocket.Upgrader
	conns    atomic.Int64
}

func NewServer(r Admitter, users db.Database, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		rounds: r,
		users:  users,
		opts:   opts,
		log:    log.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Connections is the number of agents currently connected.
func (s *Server) Connections() int64 { return s.conns.Load() }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID := uuid.NewString()
		log := s.log.With(zap.String("session", sessionID))

		sess, ok := s.handshake(r.Context(), conn, log)
		if !ok {
			return
		}
		s.conns.Add(1)
		defer s.conns.Add(-1)
		defer sess.round.World.Leave(sess.agent)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		responses := make(chan []byte, responseQueue)

		// Writer goroutine. It is the only writer on conn once the handshake is done.
		go func() {
			defer conn.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case <-sess.round.Done():
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "round over"),
						time.Now().Add(time.Second))
					cancel()
					return
				case b := <-responses:
					if err := writeRaw(conn, b); err != nil {
						cancel()
						return
					}
				case b, ok := <-sess.out:
					if !ok {
						return
					}
					if err := writeRaw(conn, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			if !s.handleMessage(ctx, sess, msg, responses, log) {
				cancel()
				break
			}
		}
		log.Info("agent disconnected", zap.Int64("creature_id", sess.agent.CreatureID))
	}
}

type session struct {
	round *rounds.Round
	agent *world.Agent
	out   chan []byte
}

// handleMessage submits one ActionMessage. It returns false when the connection should end.
func (s *Server) handleMessage(ctx context.Context, sess *session, msg []byte, responses chan<- []byte, log *zap.Logger) bool {
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeActionMessage {
		queueJSON(responses, protocol.ErrorMessage{
			Type: protocol.TypeError, Code: protocol.ErrProtoBadRequest, Message: "expected ActionMessage",
		})
		return true
	}
	var am protocol.ActionMessage
	if err := json.Unmarshal(msg, &am); err != nil {
		queueJSON(responses, protocol.ErrorMessage{
			Type: protocol.TypeError, Code: protocol.ErrProtoBadRequest, Message: err.Error(),
		})
		return true
	}
	act, err := protocol.DecodeAction(am.Action)
	if err != nil {
		queueJSON(responses, protocol.ErrorMessage{
			Type: protocol.TypeError, Code: protocol.ErrBadRequest, Message: err.Error(), MessageID: am.MessageID,
		})
		return true
	}

	f, err := sess.agent.Submit(am.MessageID, act)
	switch {
	case errors.Is(err, world.ErrDuplicateMessage):
		log.Debug("duplicate message ignored", zap.Int64("message_id", am.MessageID))
		return true
	case errors.Is(err, action.ErrDisconnected):
		code := protocol.ErrNotConnected
		select {
		case <-sess.round.Done():
			code = protocol.ErrRoundOver
		default:
		}
		queueJSON(responses, protocol.ErrorMessage{
			Type: protocol.TypeError, Code: code, Message: "session closed", MessageID: am.MessageID,
		})
		return false
	case err != nil:
		queueJSON(responses, protocol.ErrorMessage{
			Type: protocol.TypeError, Code: protocol.ErrInternal, Message: err.Error(), MessageID: am.MessageID,
		})
		return true
	}
	go s.forward(ctx, sess, f, responses, log)
	return true
}

// forward sends f's response once it resolves. Abandoned futures send nothing.
func (s *Server) forward(ctx context.Context, sess *session, f *action.Future, responses chan<- []byte, log *zap.Logger) {
	resp, err := f.Wait(ctx)
	if err != nil {
		return
	}
	msg, ok := sess.agent.Response(f.MessageID())
	if !ok {
		// Superseded actions are answered outside the world loop and never cached.
		msg, err = world.ResponseMessage(f.MessageID(), sess.round.World.CurrentTick(), resp)
		if err != nil {
			log.Error("encode response", zap.Int64("message_id", f.MessageID()), zap.Error(err))
			return
		}
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case responses <- b:
	case <-ctx.Done():
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn, log *zap.Logger) (*session, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeClientConnect {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected ClientConnect"),
			time.Now().Add(time.Second))
		return nil, false
	}
	var hello protocol.ClientConnect
	if err := json.Unmarshal(msg, &hello); err != nil {
		s.reject(conn, protocol.ConnectFailOther)
		return nil, false
	}
	if hello.ClientVersion != protocol.Version {
		s.reject(conn, protocol.ConnectFailInvalidClientAPIVersion)
		return nil, false
	}

	user, result := s.authenticate(ctx, hello.Username, hello.Password, log)
	if result != protocol.ConnectSuccess {
		s.reject(conn, result)
		return nil, false
	}

	var roundToEnter int64
	if hello.RoundToEnter != nil {
		roundToEnter = *hello.RoundToEnter
	}
	round, result := s.rounds.Admit(roundToEnter)
	if result != protocol.ConnectSuccess {
		s.reject(conn, result)
		return nil, false
	}

	var last int64
	if hello.LastActionResponseReceived != nil {
		last = *hello.LastActionResponseReceived
	}
	out := make(chan []byte, frameQueue)
	joinCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	jr, err := round.World.Join(joinCtx, world.JoinRequest{
		UserID:       user.ID,
		Username:     user.Username,
		LastResponse: last,
		Out:          out,
	})
	if err != nil {
		if errors.Is(err, world.ErrStopped) {
			s.reject(conn, protocol.ConnectFailRoundOver)
		} else {
			s.reject(conn, protocol.ConnectFailOther)
		}
		log.Warn("join failed", zap.String("username", user.Username), zap.Error(err))
		return nil, false
	}

	cfg := round.World.Config()
	roundID := round.ID
	welcome := protocol.ClientConnectResponse{
		Type:          protocol.TypeClientConnectResponse,
		ConnectResult: protocol.ConnectSuccess,
		RoundEntered:  &roundID,
		CreatureID:    jr.Agent.CreatureID,
		WorldWidth:    cfg.Width,
		WorldHeight:   cfg.Height,
		CatalogDigest: s.opts.CatalogDigest,
		ServerVersion: protocol.Version,
	}
	if err := writeJSON(conn, welcome); err != nil {
		round.World.Leave(jr.Agent)
		return nil, false
	}
	for _, r := range jr.Replay {
		if err := writeJSON(conn, r); err != nil {
			round.World.Leave(jr.Agent)
			return nil, false
		}
	}
	log.Info("agent connected",
		zap.String("username", user.Username),
		zap.String("client_uuid", hello.UUID),
		zap.Int64("round_id", round.ID),
		zap.Int64("creature_id", jr.Agent.CreatureID),
		zap.Int("replayed", len(jr.Replay)))
	return &session{round: round, agent: jr.Agent, out: out}, true
}

func (s *Server) authenticate(ctx context.Context, username, password string, log *zap.Logger) (db.User, string) {
	username = db.NormalizeUsername(username)
	if username == "" || password == "" {
		return db.User{}, protocol.ConnectFailInvalidCredentials
	}
	u, err := s.users.UserByUsername(ctx, username)
	switch {
	case err == nil:
		if !db.CheckPassword(u.PasswordHash, password) {
			return db.User{}, protocol.ConnectFailInvalidCredentials
		}
		return u, protocol.ConnectSuccess
	case errors.Is(err, db.ErrNotFound) && s.opts.AutoRegister:
		id, err := s.users.CreateUser(ctx, username, password)
		if errors.Is(err, db.ErrUserExists) {
			// Lost a race with another first connect of the same name.
			return s.authenticate(ctx, username, password, log)
		}
		if errors.Is(err, db.ErrInvalidUser) {
			return db.User{}, protocol.ConnectFailInvalidCredentials
		}
		if err != nil {
			log.Error("create user", zap.String("username", username), zap.Error(err))
			return db.User{}, protocol.ConnectFailOther
		}
		return db.User{ID: id, Username: username}, protocol.ConnectSuccess
	case errors.Is(err, db.ErrNotFound):
		return db.User{}, protocol.ConnectFailInvalidCredentials
	default:
		log.Error("load user", zap.String("username", username), zap.Error(err))
		return db.User{}, protocol.ConnectFailOther
	}
}

func (s *Server) reject(conn *websocket.Conn, result string) {
	_ = writeJSON(conn, protocol.ClientConnectResponse{
		Type:          protocol.TypeClientConnectResponse,
		ConnectResult: result,
		ServerVersion: protocol.Version,
	})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, strings.ToLower(result)),
		time.Now().Add(time.Second))
}

func queueJSON(ch chan<- []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case ch <- b:
	default:
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeRaw(conn, b)
}

func writeRaw(conn *websocket.Conn, b []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
