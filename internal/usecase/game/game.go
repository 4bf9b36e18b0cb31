package game

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"goban/internal/bootstrap"
	"goban/internal/domain/game"
	errs "goban/internal/errors"
	"goban/internal/metrics"
)

type connection struct {
	client *Client
	color  game.Color
}

// SessionManager owns the single shared game and the connection registry.
//
// gameMu guards game and startedAt, connsMu guards conns and lastVersion.
// The two are never held at the same time. recorder has its own lock which
// may be taken while holding connsMu.
type SessionManager struct {
	log          *zap.SugaredLogger
	metrics      *metrics.Metrics
	recorder     *Recorder
	maxBoardSize int

	gameMu    sync.Mutex
	game      *game.Game
	startedAt time.Time

	connsMu     sync.Mutex
	conns       map[string]*connection
	lastVersion uint64
}

// NewSessionManager creates the game. metrics and recorder may be nil.
func NewSessionManager(cfg bootstrap.Config, log *zap.SugaredLogger, m *metrics.Metrics, recorder *Recorder) (*SessionManager, error) {
	g, err := game.NewGame(cfg.BoardSize)
	if err != nil {
		return nil, err
	}

	maxBoardSize := cfg.MaxBoardSize
	if maxBoardSize <= 0 || maxBoardSize > MaxSgfBoardSize {
		maxBoardSize = MaxSgfBoardSize
	}

	return &SessionManager{
		log:          log,
		metrics:      m,
		recorder:     recorder,
		maxBoardSize: maxBoardSize,
		game:         g,
		startedAt:    time.Now(),
		conns:        make(map[string]*connection),
	}, nil
}

// Connect registers a new connection without a color.
func (s *SessionManager) Connect() *Client {
	client := newClient(uuid.NewString())

	s.connsMu.Lock()
	s.conns[client.ID] = &connection{client: client}
	s.connsMu.Unlock()

	s.metrics.ConnectionOpened()
	s.log.Infof("connection %s registered", client.ID)

	s.broadcast()
	client.Send(mustMarshal(game.NewYourColorMessage(game.Empty)))

	return client
}

func (s *SessionManager) Disconnect(id string) {
	s.connsMu.Lock()
	conn, ok := s.conns[id]
	if ok {
		delete(s.conns, id)
	}
	s.connsMu.Unlock()

	if !ok {
		return
	}

	conn.client.Close()
	s.metrics.ConnectionClosed()
	s.log.Infof("connection %s deregistered", id)

	s.broadcast()
}

// AssignColor gives color to the connection unless another connection holds it.
// Choosing a new color releases the previous one.
func (s *SessionManager) AssignColor(id string, color game.Color) error {
	if color != game.Black && color != game.White {
		return s.reject(id, fmt.Errorf("%w: %s", errs.ErrInvalidColor, color))
	}

	s.connsMu.Lock()
	conn, ok := s.conns[id]
	if !ok {
		s.connsMu.Unlock()
		return errs.ErrUnknownConnection
	}
	for otherID, other := range s.conns {
		if otherID != id && other.color == color {
			s.connsMu.Unlock()
			return s.reject(id, errs.ErrColorTaken)
		}
	}
	conn.color = color
	s.connsMu.Unlock()

	s.log.Infof("connection %s plays %s", id, color)

	s.broadcast()
	conn.client.Send(mustMarshal(game.NewYourColorMessage(color)))

	return nil
}

func (s *SessionManager) AttemptMove(id string, pos game.Position) error {
	color, err := s.colorOf(id)
	if err != nil {
		s.metrics.ObserveMove(err)
		return s.reject(id, err)
	}

	s.gameMu.Lock()
	err = s.game.PlaceStone(pos, color)
	s.gameMu.Unlock()

	s.metrics.ObserveMove(err)
	if err != nil {
		s.log.Debugf("move %s by %s rejected: %v", pos, color, err)
		return s.reject(id, err)
	}

	s.broadcast()
	return nil
}

// AttemptPass only lets the player whose turn it is pass.
func (s *SessionManager) AttemptPass(id string) error {
	color, err := s.colorOf(id)
	if err != nil {
		return s.reject(id, err)
	}

	s.gameMu.Lock()
	if s.game.Turn() != color {
		s.gameMu.Unlock()
		return s.reject(id, errs.ErrWrongTurn)
	}
	s.game.Pass()
	s.gameMu.Unlock()

	s.metrics.ObservePass()
	s.broadcast()
	return nil
}

// Reset starts a new game and releases every color.
func (s *SessionManager) Reset(id string, size int) error {
	if size <= 0 || size > s.maxBoardSize {
		return s.reject(id, fmt.Errorf("%w: must be in 1..%d", errs.ErrInvalidBoardSize, s.maxBoardSize))
	}

	s.gameMu.Lock()
	err := s.game.Reset(size)
	if err == nil {
		s.startedAt = time.Now()
	}
	s.gameMu.Unlock()

	if err != nil {
		return s.reject(id, err)
	}

	s.connsMu.Lock()
	clients := make([]*Client, 0, len(s.conns))
	for _, conn := range s.conns {
		conn.color = game.Empty
		clients = append(clients, conn.client)
	}
	s.connsMu.Unlock()

	s.metrics.ObserveReset()
	s.log.Infof("game reset to %dx%d", size, size)

	s.broadcast()

	released := mustMarshal(game.NewYourColorMessage(game.Empty))
	for _, client := range clients {
		client.Send(released)
	}

	return nil
}

// ReplyError sends err privately to the connection.
func (s *SessionManager) ReplyError(id string, err error) {
	_ = s.reject(id, err)
}

// Snapshot returns the state message every connection would receive now.
func (s *SessionManager) Snapshot() game.StateMessage {
	s.gameMu.Lock()
	state := s.stateLocked()
	s.gameMu.Unlock()

	s.connsMu.Lock()
	state.Players = s.playersLocked()
	s.connsMu.Unlock()

	return state
}

// Record returns the SGF text of the running game.
func (s *SessionManager) Record() string {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	return s.recordLocked()
}

func (s *SessionManager) ColorOf(id string) (game.Color, bool) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()

	conn, ok := s.conns[id]
	if !ok {
		return game.Empty, false
	}
	return conn.color, true
}

// broadcast pushes one full state to every connection. The game part is read
// under gameMu, the player flags under connsMu. A snapshot older than the last
// one pushed is dropped because a newer full state has already gone out.
func (s *SessionManager) broadcast() {
	s.gameMu.Lock()
	state := s.stateLocked()
	version := s.game.Version()
	var record string
	if s.recorder != nil {
		record = s.recordLocked()
	}
	s.gameMu.Unlock()

	s.connsMu.Lock()
	defer s.connsMu.Unlock()

	if version < s.lastVersion {
		return
	}
	changed := version > s.lastVersion
	s.lastVersion = version

	state.Players = s.playersLocked()
	data := mustMarshal(state)
	for _, conn := range s.conns {
		conn.client.Send(data)
	}
	s.metrics.ObserveBroadcast()

	if changed && s.recorder != nil {
		s.recorder.Submit(record)
	}
}

func (s *SessionManager) stateLocked() game.StateMessage {
	return game.StateMessage{
		Type:      game.TypeState,
		Board:     s.game.Board(),
		BoardSize: s.game.Size(),
		Turn:      s.game.Turn(),
		Prisoners: s.game.Prisoners(),
		Passes:    s.game.Passes(),
	}
}

func (s *SessionManager) recordLocked() string {
	return BuildRecord(s.game.Size(), s.startedAt, s.game.Moves())
}

func (s *SessionManager) playersLocked() game.Players {
	var players game.Players
	for _, conn := range s.conns {
		switch conn.color {
		case game.Black:
			players.Black = true
		case game.White:
			players.White = true
		}
	}
	return players
}

func (s *SessionManager) colorOf(id string) (game.Color, error) {
	color, ok := s.ColorOf(id)
	if !ok {
		return game.Empty, errs.ErrUnknownConnection
	}
	if color == game.Empty {
		return game.Empty, errs.ErrNoColor
	}
	return color, nil
}

// reject replies privately to id and returns err unchanged.
func (s *SessionManager) reject(id string, err error) error {
	s.connsMu.Lock()
	conn, ok := s.conns[id]
	s.connsMu.Unlock()

	if ok {
		conn.client.Send(mustMarshal(game.NewErrorMessage(err)))
	}
	return err
}

// Every message is built from plain structs, so a marshal failure is a bug.
func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("failed to marshal %T: %w", v, err))
	}
	return data
}
