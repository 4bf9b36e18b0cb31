package game

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goban/internal/bootstrap"
	"goban/internal/domain/game"
	errs "goban/internal/errors"
	"goban/internal/metrics"
)

type serverMessage struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Color     game.Color     `json:"color"`
	Board     [][]game.Color `json:"board"`
	BoardSize int            `json:"board_size"`
	Turn      game.Color     `json:"turn"`
	Prisoners game.Prisoners `json:"prisoners"`
	Players   game.Players   `json:"players"`
	Passes    int            `json:"passes"`
}

func testConfig(boardSize int) bootstrap.Config {
	return bootstrap.Config{BoardSize: boardSize, MaxBoardSize: bootstrap.MaxBoardSizeLimit}
}

func newTestSession(t *testing.T, boardSize int) *SessionManager {
	t.Helper()

	s, err := NewSessionManager(testConfig(boardSize), zap.NewNop().Sugar(), nil, nil)
	require.NoError(t, err)
	return s
}

// drain returns every message currently queued for the client.
func drain(t *testing.T, c *Client) []serverMessage {
	t.Helper()

	var messages []serverMessage
	for c.Pending() > 0 {
		data, err := c.Next(context.Background())
		require.NoError(t, err)

		var msg serverMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		messages = append(messages, msg)
	}
	return messages
}

func ofType(messages []serverMessage, typ string) []serverMessage {
	var filtered []serverMessage
	for _, msg := range messages {
		if msg.Type == typ {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

func lastState(t *testing.T, messages []serverMessage) serverMessage {
	t.Helper()

	states := ofType(messages, game.TypeState)
	require.NotEmpty(t, states)
	return states[len(states)-1]
}

// seat connects a client, gives it a color and discards the setup messages.
func seat(t *testing.T, s *SessionManager, color game.Color) *Client {
	t.Helper()

	client := s.Connect()
	require.NoError(t, s.AssignColor(client.ID, color))
	drain(t, client)
	return client
}

func TestSessionManager_Connect(t *testing.T) {
	t.Run("New connection gets the state then its empty color", func(t *testing.T) {
		s := newTestSession(t, 9)

		client := s.Connect()
		messages := drain(t, client)

		require.Len(t, messages, 2)
		assert.Equal(t, game.TypeState, messages[0].Type)
		assert.Equal(t, 9, messages[0].BoardSize)
		assert.Equal(t, game.Black, messages[0].Turn)
		assert.Equal(t, game.TypeYourColor, messages[1].Type)
		assert.Equal(t, game.Empty, messages[1].Color)
	})

	t.Run("Existing connections see the new broadcast", func(t *testing.T) {
		s := newTestSession(t, 9)
		first := s.Connect()
		drain(t, first)

		s.Connect()

		messages := drain(t, first)
		require.Len(t, messages, 1)
		assert.Equal(t, game.TypeState, messages[0].Type)
	})

	t.Run("Your color message is sent as null", func(t *testing.T) {
		s := newTestSession(t, 9)
		client := s.Connect()

		_, _ = client.Next(context.Background())
		data, err := client.Next(context.Background())

		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"your_color","color":null}`, string(data))
	})
}

func TestSessionManager_AssignColor(t *testing.T) {
	t.Run("Assigned color is broadcast and confirmed privately", func(t *testing.T) {
		s := newTestSession(t, 9)
		player := s.Connect()
		watcher := s.Connect()
		drain(t, player)
		drain(t, watcher)

		require.NoError(t, s.AssignColor(player.ID, game.Black))

		playerMessages := drain(t, player)
		require.Len(t, playerMessages, 2)
		assert.True(t, playerMessages[0].Players.Black)
		assert.Equal(t, game.TypeYourColor, playerMessages[1].Type)
		assert.Equal(t, game.Black, playerMessages[1].Color)

		watcherMessages := drain(t, watcher)
		require.Len(t, watcherMessages, 1)
		assert.True(t, watcherMessages[0].Players.Black)
		assert.False(t, watcherMessages[0].Players.White)
	})

	t.Run("Taken color is rejected and the holder keeps it", func(t *testing.T) {
		s := newTestSession(t, 9)
		holder := seat(t, s, game.White)
		challenger := s.Connect()
		drain(t, challenger)

		err := s.AssignColor(challenger.ID, game.White)

		require.ErrorIs(t, err, errs.ErrColorTaken)
		color, _ := s.ColorOf(holder.ID)
		assert.Equal(t, game.White, color)
		color, _ = s.ColorOf(challenger.ID)
		assert.Equal(t, game.Empty, color)

		messages := drain(t, challenger)
		require.Len(t, messages, 1)
		assert.Equal(t, game.TypeError, messages[0].Type)
		assert.Equal(t, errs.ErrColorTaken.Error(), messages[0].Message)
		assert.Empty(t, drain(t, holder), "the holder is not notified")
	})

	t.Run("Switching colors frees the old one", func(t *testing.T) {
		s := newTestSession(t, 9)
		player := seat(t, s, game.Black)

		require.NoError(t, s.AssignColor(player.ID, game.White))

		state := lastState(t, drain(t, player))
		assert.False(t, state.Players.Black)
		assert.True(t, state.Players.White)
	})

	t.Run("Re-choosing your own color is accepted", func(t *testing.T) {
		s := newTestSession(t, 9)
		player := seat(t, s, game.Black)

		assert.NoError(t, s.AssignColor(player.ID, game.Black))
	})
}

func TestSessionManager_AttemptMove(t *testing.T) {
	t.Run("Connection without a color may not move", func(t *testing.T) {
		s := newTestSession(t, 9)
		observer := s.Connect()
		drain(t, observer)

		err := s.AttemptMove(observer.ID, game.Position{X: 2, Y: 2})

		require.ErrorIs(t, err, errs.ErrNoColor)
		messages := drain(t, observer)
		require.Len(t, messages, 1)
		assert.Equal(t, "must choose a color first", messages[0].Message)
		assert.Equal(t, game.Empty, s.Snapshot().Board[2][2])
	})

	t.Run("Accepted move is broadcast to everyone", func(t *testing.T) {
		s := newTestSession(t, 9)
		black := seat(t, s, game.Black)
		white := seat(t, s, game.White)
		drain(t, black)

		require.NoError(t, s.AttemptMove(black.ID, game.Position{X: 2, Y: 3}))

		for _, client := range []*Client{black, white} {
			messages := drain(t, client)
			require.Len(t, messages, 1)
			assert.Equal(t, game.Black, messages[0].Board[3][2])
			assert.Equal(t, game.White, messages[0].Turn)
		}
	})

	t.Run("Rejected move is only reported to the mover", func(t *testing.T) {
		s := newTestSession(t, 9)
		black := seat(t, s, game.Black)
		white := seat(t, s, game.White)
		drain(t, black)

		err := s.AttemptMove(white.ID, game.Position{X: 4, Y: 4})

		require.ErrorIs(t, err, errs.ErrWrongTurn)
		messages := drain(t, white)
		require.Len(t, messages, 1)
		assert.Equal(t, game.TypeError, messages[0].Type)
		assert.Equal(t, "Not your turn", messages[0].Message)
		assert.Empty(t, drain(t, black))
	})

	t.Run("Capture is reflected in the prisoners", func(t *testing.T) {
		s := newTestSession(t, 9)
		black := seat(t, s, game.Black)
		white := seat(t, s, game.White)

		moves := []struct {
			client *Client
			pos    game.Position
		}{
			{black, game.Position{X: 0, Y: 1}},
			{white, game.Position{X: 1, Y: 1}},
			{black, game.Position{X: 2, Y: 1}},
			{white, game.Position{X: 8, Y: 8}},
			{black, game.Position{X: 1, Y: 0}},
			{white, game.Position{X: 7, Y: 8}},
			{black, game.Position{X: 1, Y: 2}},
		}
		for _, m := range moves {
			require.NoError(t, s.AttemptMove(m.client.ID, m.pos))
		}

		state := lastState(t, drain(t, white))
		assert.Equal(t, game.Prisoners{Black: 1}, state.Prisoners)
		assert.Equal(t, game.Empty, state.Board[1][1])
	})
}

func TestSessionManager_AttemptPass(t *testing.T) {
	t.Run("Only the player to move may pass", func(t *testing.T) {
		s := newTestSession(t, 9)
		black := seat(t, s, game.Black)
		white := seat(t, s, game.White)
		drain(t, black)

		err := s.AttemptPass(white.ID)

		require.ErrorIs(t, err, errs.ErrWrongTurn)
		assert.Equal(t, game.Black, s.Snapshot().Turn)
		assert.Empty(t, drain(t, black))
	})

	t.Run("Pass is broadcast with the pass count", func(t *testing.T) {
		s := newTestSession(t, 9)
		black := seat(t, s, game.Black)

		require.NoError(t, s.AttemptPass(black.ID))

		state := lastState(t, drain(t, black))
		assert.Equal(t, game.White, state.Turn)
		assert.Equal(t, 1, state.Passes)
	})

	t.Run("Observers may not pass", func(t *testing.T) {
		s := newTestSession(t, 9)
		observer := s.Connect()

		assert.ErrorIs(t, s.AttemptPass(observer.ID), errs.ErrNoColor)
	})
}

func TestSessionManager_Reset(t *testing.T) {
	t.Run("Reset clears the board and every color", func(t *testing.T) {
		// Given: a game in progress with both seats taken
		s := newTestSession(t, 19)
		black := seat(t, s, game.Black)
		white := seat(t, s, game.White)
		require.NoError(t, s.AttemptMove(black.ID, game.Position{X: 3, Y: 3}))
		require.NoError(t, s.AttemptMove(white.ID, game.Position{X: 4, Y: 4}))
		drain(t, black)
		drain(t, white)

		// When: anybody resets to 9x9
		require.NoError(t, s.Reset(white.ID, 9))

		// Then: the new empty board is broadcast and colors are released
		for _, client := range []*Client{black, white} {
			messages := drain(t, client)
			state := lastState(t, messages)
			assert.Equal(t, 9, state.BoardSize)
			assert.Len(t, state.Board, 9)
			assert.Equal(t, game.Black, state.Turn)
			assert.Equal(t, game.Prisoners{}, state.Prisoners)
			assert.Equal(t, game.Players{}, state.Players)

			colors := ofType(messages, game.TypeYourColor)
			require.Len(t, colors, 1)
			assert.Equal(t, game.Empty, colors[0].Color)

			color, _ := s.ColorOf(client.ID)
			assert.Equal(t, game.Empty, color)
		}

		assert.ErrorIs(t, s.AttemptMove(black.ID, game.Position{X: 0, Y: 0}), errs.ErrNoColor)
	})

	t.Run("Out of range sizes are rejected", func(t *testing.T) {
		s := newTestSession(t, 9)
		client := s.Connect()
		drain(t, client)

		for _, size := range []int{0, -3, bootstrap.MaxBoardSizeLimit + 1} {
			err := s.Reset(client.ID, size)
			assert.ErrorIs(t, err, errs.ErrInvalidBoardSize)
		}

		assert.Equal(t, 9, s.Snapshot().BoardSize)
		assert.Len(t, ofType(drain(t, client), game.TypeError), 3)
	})
}

func TestSessionManager_Disconnect(t *testing.T) {
	t.Run("Disconnect frees the color for the others", func(t *testing.T) {
		s := newTestSession(t, 9)
		black := seat(t, s, game.Black)
		watcher := s.Connect()
		drain(t, watcher)

		s.Disconnect(black.ID)

		state := lastState(t, drain(t, watcher))
		assert.False(t, state.Players.Black)
		assert.False(t, black.Send([]byte("x")), "the queue is closed")

		newcomer := s.Connect()
		assert.NoError(t, s.AssignColor(newcomer.ID, game.Black))
	})

	t.Run("Unknown ids are ignored", func(t *testing.T) {
		s := newTestSession(t, 9)

		assert.NotPanics(t, func() { s.Disconnect("missing") })
		assert.ErrorIs(t, s.AssignColor("missing", game.Black), errs.ErrUnknownConnection)
	})
}

func TestSessionManager_ConcurrentPlay(t *testing.T) {
	// Given: two players and an observer
	s := newTestSession(t, 19)
	black := seat(t, s, game.Black)
	white := seat(t, s, game.White)
	observer := s.Connect()

	const stones = 20
	playerMoves := func(client *Client, row int) {
		for i := 0; i < stones; i++ {
			p := game.Position{X: i % 10, Y: row + 2*(i/10)}
			for {
				err := s.AttemptMove(client.ID, p)
				if err == nil {
					break
				}
				if !errors.Is(err, errs.ErrWrongTurn) {
					t.Errorf("unexpected error at %s: %v", p, err)
					return
				}
				runtime.Gosched()
			}
		}
	}

	// When: both hammer the server while the observer keeps reading
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); playerMoves(black, 0) }()
	go func() { defer wg.Done(); playerMoves(white, 10) }()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = s.Snapshot()
		}
	}()
	wg.Wait()

	// Then: every stone landed, turns alternated and the last broadcast is the final state
	final := s.Snapshot()
	assert.Equal(t, game.Black, final.Turn)

	count := map[game.Color]int{}
	for _, row := range final.Board {
		for _, cell := range row {
			count[cell]++
		}
	}
	assert.Equal(t, stones, count[game.Black])
	assert.Equal(t, stones, count[game.White])

	state := lastState(t, drain(t, observer))
	assert.Equal(t, final.Board, state.Board)
	assert.Equal(t, final.Turn, state.Turn)
}

func TestSessionManager_Recorder(t *testing.T) {
	store := &fakeRecordStore{}
	recorder := NewRecorder(store, zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go recorder.Run(ctx)

	s, err := NewSessionManager(testConfig(9), zap.NewNop().Sugar(), metrics.New(prometheus.NewRegistry()), recorder)
	require.NoError(t, err)
	black := seat(t, s, game.Black)

	require.NoError(t, s.AttemptMove(black.ID, game.Position{X: 2, Y: 2}))

	require.Eventually(t, func() bool {
		return strings.HasSuffix(store.last(), ";B[cc])")
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, store.last(), s.Record())
}

func pendingRecord(r *Recorder) *string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

func TestSessionManager_StaleBroadcastIsDropped(t *testing.T) {
	// Given: a session whose last pushed state is newer than the game
	recorder := NewRecorder(&fakeRecordStore{}, zap.NewNop().Sugar())
	s, err := NewSessionManager(testConfig(9), zap.NewNop().Sugar(), nil, recorder)
	require.NoError(t, err)
	client := s.Connect()
	drain(t, client)
	require.Nil(t, pendingRecord(recorder))

	s.gameMu.Lock()
	current := s.game.Version()
	s.gameMu.Unlock()

	s.connsMu.Lock()
	s.lastVersion = current + 1
	s.connsMu.Unlock()

	// When: an older snapshot is broadcast
	s.broadcast()

	// Then: nothing is queued and nothing is recorded
	assert.Zero(t, client.Pending())
	assert.Nil(t, pendingRecord(recorder))

	// and a newer game version goes out again
	s.gameMu.Lock()
	require.NoError(t, s.game.Reset(9))
	require.NoError(t, s.game.Reset(9))
	s.gameMu.Unlock()

	s.broadcast()

	assert.Equal(t, 1, client.Pending())
	assert.NotNil(t, pendingRecord(recorder))
}
