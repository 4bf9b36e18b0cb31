package game

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goban/internal/domain/game"
	errs "goban/internal/errors"
	"goban/internal/httpresponse"
	gameuc "goban/internal/usecase/game"
	"goban/internal/utils"
)

const (
	sgfContentType    = "application/x-go-sgf"
	closeWriteTimeout = time.Second
	// largest inbound frame; every client message fits in a few dozen bytes
	maxMessageSize = 4 << 10
)

var (
	errBinaryFrame      = errors.New("binary frames are not supported")
	errRouteNotFound    = errors.New("route not found")
	errMethodNotAllowed = errors.New("method not allowed")
)

type GameHandler struct {
	ctx      context.Context
	log      *zap.SugaredLogger
	session  *gameuc.SessionManager
	upgrader websocket.Upgrader
}

// NewGameHandler serves the shared session. Open websockets are closed when ctx is done.
func NewGameHandler(ctx context.Context, log *zap.SugaredLogger, session *gameuc.SessionManager) *GameHandler {
	return &GameHandler{
		ctx:     ctx,
		log:     log,
		session: session,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (g *GameHandler) Routes(r chi.Router) {
	r.Get("/ws", g.HandleWebSocket)
	r.Get("/state", g.HandleState)
	r.Get("/sgf", g.HandleSGF)
	r.Get("/healthz", g.HandleHealth)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpresponse.WriteErrorResponse(w, http.StatusNotFound, errRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpresponse.WriteErrorResponse(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
	})
}

// HandleWebSocket registers the connection and runs its reader and writer
// until either side stops.
func (g *GameHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Errorf("upgrade error: %v", err)
		return
	}

	conn.SetReadLimit(maxMessageSize)

	client := g.session.Connect()
	defer g.session.Disconnect(client.ID)

	group, ctx := errgroup.WithContext(g.ctx)
	group.Go(func() error {
		return g.writeLoop(ctx, conn, client)
	})
	group.Go(func() error {
		return g.readLoop(conn, client.ID)
	})

	err = group.Wait()
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		g.log.Warnf("connection %s closed: %v", client.ID, err)
		return
	}
	g.log.Debugf("connection %s closed: %v", client.ID, err)
}

// readLoop always returns a non-nil error so the writer is cancelled.
func (g *GameHandler) readLoop(conn *websocket.Conn, id string) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if messageType != websocket.TextMessage {
			g.session.ReplyError(id, fmt.Errorf("%w: %v", errs.ErrMalformedMessage, errBinaryFrame))
			continue
		}

		g.dispatch(id, data)
	}
}

// writeLoop owns every data write to conn and closes it on the way out, which
// unblocks the reader.
func (g *GameHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *gameuc.Client) error {
	defer conn.Close()

	for {
		msg, err := client.Next(ctx)
		if err != nil {
			if g.ctx.Err() != nil {
				closing := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
				_ = conn.WriteControl(websocket.CloseMessage, closing, time.Now().Add(closeWriteTimeout))
			}
			return err
		}

		if err = conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return err
		}
	}
}

func (g *GameHandler) dispatch(id string, data []byte) {
	var msg game.ClientMessage
	if err := utils.DecodeJSON(data, &msg); err != nil {
		g.session.ReplyError(id, fmt.Errorf("%w: %v", errs.ErrMalformedMessage, err))
		return
	}

	var err error
	switch msg.Type {
	case game.TypeChooseColor:
		var color game.Color
		color, err = game.ParseColor(msg.Color)
		if err != nil {
			g.session.ReplyError(id, err)
			break
		}
		err = g.session.AssignColor(id, color)
	case game.TypeMove:
		if msg.X == nil || msg.Y == nil {
			err = fmt.Errorf("%w: move requires x and y", errs.ErrMalformedMessage)
			g.session.ReplyError(id, err)
			break
		}
		err = g.session.AttemptMove(id, game.Position{X: *msg.X, Y: *msg.Y})
	case game.TypePass:
		err = g.session.AttemptPass(id)
	case game.TypeReset:
		if msg.BoardSize == nil {
			err = fmt.Errorf("%w: reset requires board_size", errs.ErrMalformedMessage)
			g.session.ReplyError(id, err)
			break
		}
		err = g.session.Reset(id, *msg.BoardSize)
	default:
		err = fmt.Errorf("%w: %q", errs.ErrUnknownMessageType, msg.Type)
		g.session.ReplyError(id, err)
	}

	if err != nil {
		g.log.Debugf("%s from %s rejected: %v", msg.Type, id, err)
	}
}

func (g *GameHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, g.session.Snapshot())
}

func (g *GameHandler) HandleSGF(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", sgfContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(g.session.Record())); err != nil {
		g.log.Errorf("failed to write sgf: %v", err)
	}
}

type healthResponse struct {
	Status string `json:"status"`
}

func (g *GameHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, healthResponse{Status: "ok"})
}
