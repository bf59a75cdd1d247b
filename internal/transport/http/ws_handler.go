package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"treasure-quest-service/internal/app"
	"treasure-quest-service/internal/domain"
)

// DefaultTickInterval is how often a playing client receives the remaining time.
const DefaultTickInterval = time.Second

type WSHandler struct {
	service      *app.GameService
	upgrader     websocket.Upgrader
	tickInterval time.Duration
	logger       *slog.Logger
}

// WSOptions tunes the websocket handler. Empty AllowedOrigins accepts any origin.
type WSOptions struct {
	AllowedOrigins []string
	TickInterval   time.Duration
	Logger         *slog.Logger
}

func NewWSHandler(service *app.GameService, opts WSOptions) *WSHandler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		tickInterval: opts.TickInterval,
		logger:       opts.Logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || lo.Contains(allowed, origin)
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	Name      string `json:"name"`
	Anonymous bool   `json:"anonymous"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type hintPayload struct {
	Password string `json:"password"`
}

type pausePayload struct {
	Paused bool `json:"paused"`
}

type leaderboardPayload struct {
	Filter string `json:"filter"`
}

type statePayload struct {
	ClientID string `json:"clientId"`
	app.Status
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type warningPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and drives one client's run.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	logger := h.logger.With(slog.String("client", clientID))
	engine := h.service.Open(ctx, clientID)
	defer h.service.Close(clientID)

	s := &wsSession{
		handler:  h,
		engine:   engine,
		clientID: clientID,
		logger:   logger,
		send:     make(chan outboundMessage[any], 16),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range s.send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("ws write error", slog.Any("err", err))
				cancel()
				// keep draining so producers never block
				for range s.send {
				}
				return
			}
		}
	}()

	var workers sync.WaitGroup
	if changes, unsubscribe, err := h.service.Leaderboard().Subscribe(ctx); err != nil {
		logger.Warn("leaderboard subscription unavailable", slog.Any("err", err))
	} else {
		defer unsubscribe()
		workers.Add(1)
		go func() {
			defer workers.Done()
			for {
				select {
				case change, ok := <-changes:
					if !ok {
						return
					}
					s.push("leaderboardChanged", change)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	s.pushState()
	s.startTicker(ctx, &workers)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		s.dispatch(ctx, &workers, inbound)
	}

	cancel()
	s.stopTicker()
	workers.Wait()
	close(s.send)
	<-writerDone
}

// wsSession is the per-connection state of ServeWS.
type wsSession struct {
	handler  *WSHandler
	engine   *app.Engine
	clientID string
	logger   *slog.Logger
	send     chan outboundMessage[any]

	tickMu  sync.Mutex
	tickRun *tickLoop
}

type tickLoop struct {
	cancel context.CancelFunc
}

// push is only called by goroutines that finish before send is closed.
func (s *wsSession) push(typ string, payload any) {
	s.send <- outboundMessage[any]{Type: typ, Payload: payload}
}

func (s *wsSession) pushError(err error) {
	s.push("error", errorPayload{Message: err.Error()})
}

func (s *wsSession) pushState() {
	s.push("state", statePayload{ClientID: s.clientID, Status: s.engine.Status()})
}

// pushResult announces a finalized run, with a warning when it missed the leaderboard.
func (s *wsSession) pushResult(result *domain.RunResult) {
	if result == nil {
		return
	}
	s.push("completed", result)
	if result.Warning != "" {
		s.push("warning", warningPayload{Message: result.Warning})
	}
}

func (s *wsSession) dispatch(ctx context.Context, workers *sync.WaitGroup, inbound inboundMessage) {
	switch inbound.Type {
	case "start":
		var payload startPayload
		if !s.decode(inbound, &payload) {
			return
		}
		if _, err := s.engine.Start(ctx, payload.Name, payload.Anonymous); err != nil {
			s.pushError(err)
			return
		}
		s.pushState()
		s.startTicker(ctx, workers)

	case "answer":
		var payload answerPayload
		if !s.decode(inbound, &payload) {
			return
		}
		res, err := s.engine.SubmitAnswer(ctx, payload.Answer)
		switch {
		case res.Result != nil:
			if res.Correct {
				s.push("answerResult", res)
			}
			s.pushResult(res.Result)
			s.stopTicker()
		case errors.Is(err, domain.ErrRunFinished):
			s.pushState()
		case err != nil:
			s.pushError(err)
		default:
			s.push("answerResult", res)
			if res.NextLevel != nil {
				s.push("levelAdvanced", res.NextLevel)
			}
		}

	case "hint":
		var payload hintPayload
		if !s.decode(inbound, &payload) {
			return
		}
		res, err := s.engine.UnlockHint(payload.Password)
		if err != nil {
			s.pushError(err)
			return
		}
		s.push("hintResult", res)

	case "pause":
		var payload pausePayload
		if !s.decode(inbound, &payload) {
			return
		}
		if err := s.engine.SetPaused(payload.Paused); err != nil {
			s.pushError(err)
		}

	case "reset":
		s.stopTicker()
		if err := s.engine.Reset(ctx); err != nil {
			s.logger.Warn("clear snapshot on reset", slog.Any("err", err))
		}
		s.pushState()

	case "leaderboard":
		var payload leaderboardPayload
		if len(inbound.Payload) > 0 && !s.decode(inbound, &payload) {
			return
		}
		filter, err := domain.ParseLeaderboardFilter(payload.Filter)
		if err != nil {
			s.pushError(err)
			return
		}
		board, err := s.handler.service.Leaderboard().Query(ctx, filter)
		if err != nil {
			s.logger.Warn("leaderboard query failed", slog.Any("err", err))
			s.pushError(errors.New("leaderboard unavailable"))
			return
		}
		s.push("leaderboard", board)

	default:
		s.pushError(errors.New("unsupported message type"))
	}
}

func (s *wsSession) decode(inbound inboundMessage, target any) bool {
	if len(inbound.Payload) == 0 {
		return true
	}
	if err := json.Unmarshal(inbound.Payload, target); err != nil {
		s.pushError(errors.New("invalid " + inbound.Type + " payload"))
		return false
	}
	return true
}

// startTicker runs the expiry check while the engine is playing. At most one loop runs
// per connection.
func (s *wsSession) startTicker(ctx context.Context, workers *sync.WaitGroup) {
	if s.engine.State() != app.StatePlaying {
		return
	}
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	if s.tickRun != nil {
		return
	}
	tickCtx, cancel := context.WithCancel(ctx)
	run := &tickLoop{cancel: cancel}
	s.tickRun = run

	workers.Add(1)
	go func() {
		defer workers.Done()
		defer cancel()
		app.RunTicker(tickCtx, s.handler.tickInterval, s.tick)
		s.tickMu.Lock()
		if s.tickRun == run {
			s.tickRun = nil
		}
		s.tickMu.Unlock()
	}()
}

func (s *wsSession) stopTicker() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	if s.tickRun != nil {
		s.tickRun.cancel()
		s.tickRun = nil
	}
}

func (s *wsSession) tick(ctx context.Context) bool {
	tick, result, err := s.engine.Tick(ctx)
	switch {
	case result != nil:
		s.push("tick", tick)
		s.pushResult(result)
		return false
	case errors.Is(err, domain.ErrRunFinished):
		// another connection of the same client finalized the run
		s.pushState()
		return false
	case err != nil:
		return false
	}
	s.push("tick", tick)
	return true
}
