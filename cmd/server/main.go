// Command server is the thin HTTP/WebSocket transport adapter described
// in SPEC_FULL.md §4's "Transport adapter" row: it exposes the §6 player
// command API over gin and multiplexes per-player broadcast topics onto
// gorilla/websocket connections. No game logic lives here; every request
// is translated into a call against internal/supervisor and
// internal/matchmaking, the way the teacher's cmd/game-server/main.go
// translates WebSocket frames into internal/game.Table calls.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decred/slog"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shortdeck-engine/internal/analytics"
	"shortdeck-engine/internal/betting"
	"shortdeck-engine/internal/broadcast"
	"shortdeck-engine/internal/config"
	"shortdeck-engine/internal/eventlog"
	pgstore "shortdeck-engine/internal/eventlog/postgres"
	"shortdeck-engine/internal/game"
	"shortdeck-engine/internal/matchmaking"
	"shortdeck-engine/internal/supervisor"
	"shortdeck-engine/internal/telemetry"
	"shortdeck-engine/internal/token"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // transport-layer CORS policy is an external collaborator's concern
	},
}

// server bundles the wiring every handler needs: the registry of live
// games, the matchmaking queue, the pubsub transports subscribe to, and
// the session-token signer reconnects are checked against.
type server struct {
	cfg        config.Config
	supervisor *supervisor.Supervisor
	queue      *matchmaking.Queue
	pubsub     *broadcast.PubSub
	signer     *token.Signer
	log        telemetry.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := telemetry.NewLogger("SERVER", slog.LevelInfo)

	store, cleanup, err := buildEventStore(cfg, log)
	if err != nil {
		log.Errorf("event store: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	sink := buildAnalyticsSink(log)

	pubsub := broadcast.NewPubSub()
	bcast := broadcast.NewBroadcaster(pubsub, log)
	sup := supervisor.New(store, bcast, sink, cfg.SmallBlind, cfg.BigBlind, cfg.SnapshotIntervalEvents, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sup.RecoverAll(ctx); err != nil {
		log.Errorf("recovery: %v", err)
	}

	signer := token.NewSigner(cfg.TokenSecret)
	queue := matchmaking.NewQueue(cfg.PlayersPerGame, cfg.StartingChips, sup, signer, pubsub, log)
	go queue.Run(ctx)

	srv := &server{cfg: cfg, supervisor: sup, queue: queue, pubsub: pubsub, signer: signer, log: log}

	router := gin.Default()
	srv.routes(router)

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	go func() {
		log.Infof("listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Infof("shutting down: draining games (grace %dms)", cfg.GraceShutdownMS)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.GraceShutdownMS)*time.Millisecond+5*time.Second)
	defer cancel()

	if err := sup.Shutdown(shutdownCtx); err != nil {
		log.Errorf("supervisor shutdown: %v", err)
	}
	queue.Stop()
	_ = httpServer.Shutdown(shutdownCtx)
}

func buildEventStore(cfg config.Config, log telemetry.Logger) (eventlog.Store, func(), error) {
	noop := func() {}

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		return eventlog.NewMemoryStore(), noop, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, noop, fmt.Errorf("open postgres: %w", err)
	}
	pg := pgstore.NewEventStore(db)
	if err := pg.CreateSchema(context.Background()); err != nil {
		return nil, noop, fmt.Errorf("create schema: %w", err)
	}

	var store eventlog.Store = pg
	cleanup := func() { _ = db.Close() }

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		publisher, err := eventlog.NewKafkaPublisher(eventlog.KafkaPublisherConfig{
			Brokers: []string{brokers},
			Topic:   "shortdeck.events",
		}, log)
		if err != nil {
			log.Errorf("kafka publisher unavailable, continuing without mirror: %v", err)
		} else {
			store = eventlog.NewMirroringStore(store, publisher)
			prevCleanup := cleanup
			cleanup = func() { _ = publisher.Close(); prevCleanup() }
		}
	}
	return store, cleanup, nil
}

func buildAnalyticsSink(log telemetry.Logger) game.HandHistorySink {
	host := os.Getenv("CLICKHOUSE_HOST")
	if host == "" {
		return analytics.NewGameSink(analytics.NopSink{}, log)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	chSink, err := analytics.NewClickHouseSink(ctx, analytics.ClickHouseConfig{
		Host:     host,
		Port:     9000,
		Database: envOr("CLICKHOUSE_DB", "default"),
		Username: envOr("CLICKHOUSE_USER", "default"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
	})
	if err != nil {
		log.Errorf("clickhouse unavailable, continuing without analytics: %v", err)
		return analytics.NewGameSink(analytics.NopSink{}, log)
	}
	if err := chSink.CreateTable(ctx); err != nil {
		log.Errorf("clickhouse create table: %v", err)
	}
	return analytics.NewGameSink(chSink, log)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *server) routes(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/api/queue/join", s.handleQueueJoin)
	r.POST("/api/queue/leave", s.handleQueueLeave)
	r.GET("/api/queue/status", s.handleQueueStatus)

	r.POST("/api/games", s.handleCreateGame)
	r.GET("/api/games/:gameId", s.handleGetState)
	r.POST("/api/games/:gameId/start", s.handleStartHand)
	r.POST("/api/games/:gameId/actions", s.handlePlayerAction)
	r.POST("/api/games/:gameId/end", s.handleEndGame)

	r.GET("/ws/:gameId/:playerId", s.handleWebSocket)
}

type queueJoinRequest struct {
	Name string `json:"name"`
}

func (s *server) handleQueueJoin(c *gin.Context) {
	var req queueJoinRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input"})
		return
	}
	if err := s.queue.Join(c.Request.Context(), req.Name); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *server) handleQueueLeave(c *gin.Context) {
	var req queueJoinRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input"})
		return
	}
	if err := s.queue.Leave(c.Request.Context(), req.Name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *server) handleQueueStatus(c *gin.Context) {
	status, err := s.queue.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

type createGamePlayer struct {
	ID    string `json:"id"`
	Chips int    `json:"chips"`
}

type createGameRequest struct {
	Players []createGamePlayer `json:"players"`
}

// validateSeating enforces the §6 create_game error taxonomy: empty,
// too_many (>10), too_few (<2), duplicate_id, invalid_id, invalid_chips.
func validateSeating(players []createGamePlayer) error {
	if len(players) == 0 {
		return errors.New("empty")
	}
	if len(players) < 2 {
		return errors.New("too_few")
	}
	if len(players) > 10 {
		return errors.New("too_many")
	}
	seen := make(map[string]bool, len(players))
	for _, p := range players {
		if p.ID == "" {
			return errors.New("invalid_id")
		}
		if seen[p.ID] {
			return errors.New("duplicate_id")
		}
		seen[p.ID] = true
		if p.Chips <= 0 {
			return errors.New("invalid_chips")
		}
	}
	return nil
}

func (s *server) handleCreateGame(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input"})
		return
	}
	if err := validateSeating(req.Players); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	seeds := make([]matchmaking.PlayerSeed, len(req.Players))
	for i, p := range req.Players {
		seeds[i] = matchmaking.PlayerSeed{Name: p.ID, Chips: p.Chips}
	}

	gameID, err := s.supervisor.CreateGame(c.Request.Context(), seeds)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"game_id": gameID})
}

func (s *server) lookup(c *gin.Context) (*game.Actor, bool) {
	gameID := c.Param("gameId")
	actor, ok := s.supervisor.Lookup(gameID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "game_not_found"})
		return nil, false
	}
	return actor, true
}

// filteredView captures the actor's current snapshot and builds the view
// recipientID is permitted to see, so no handler ever hands back a raw
// game.State with every seat's hole cards attached. An empty recipientID
// (an unauthenticated observer) sees no one's hole cards.
func (s *server) filteredView(c *gin.Context, actor *game.Actor, recipientID string) (broadcast.GameView, error) {
	snap, err := actor.CaptureSnapshot(c.Request.Context())
	if err != nil {
		return broadcast.GameView{}, err
	}
	return broadcast.BuildView(snap, recipientID), nil
}

func (s *server) handleGetState(c *gin.Context) {
	actor, ok := s.lookup(c)
	if !ok {
		return
	}
	view, err := s.filteredView(c, actor, c.Query("player_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *server) handleStartHand(c *gin.Context) {
	actor, ok := s.lookup(c)
	if !ok {
		return
	}
	if _, err := actor.StartHand(c.Request.Context()); err != nil {
		c.JSON(statusForEngineError(err), gin.H{"error": err.Error()})
		return
	}
	view, err := s.filteredView(c, actor, c.Query("player_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

type actionRequest struct {
	PlayerID string `json:"player_id"`
	Action   string `json:"action"`
	Amount   int    `json:"amount"`
}

func parseAction(req actionRequest) (betting.Action, error) {
	switch req.Action {
	case "fold":
		return betting.Action{Kind: betting.Fold}, nil
	case "call":
		return betting.Action{Kind: betting.Call}, nil
	case "check":
		return betting.Action{Kind: betting.Check}, nil
	case "raise":
		if req.Amount <= 0 {
			return betting.Action{}, errors.New("invalid_input")
		}
		return betting.Action{Kind: betting.Raise, Amount: req.Amount}, nil
	case "all_in":
		return betting.Action{Kind: betting.AllIn}, nil
	default:
		return betting.Action{}, errors.New("invalid_input")
	}
}

func (s *server) handlePlayerAction(c *gin.Context) {
	actor, ok := s.lookup(c)
	if !ok {
		return
	}
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlayerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input"})
		return
	}
	action, err := parseAction(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := actor.PlayerAction(c.Request.Context(), req.PlayerID, action); err != nil {
		c.JSON(statusForEngineError(err), gin.H{"error": err.Error()})
		return
	}
	view, err := s.filteredView(c, actor, req.PlayerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *server) handleEndGame(c *gin.Context) {
	actor, ok := s.lookup(c)
	if !ok {
		return
	}
	if err := actor.EndGame(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.supervisor.EndGame(c.Request.Context(), c.Param("gameId")); err != nil {
		s.log.Warnf("end game cleanup: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// statusForEngineError maps the §7 error taxonomy onto HTTP status
// codes: protocol violations are client errors, persistence failures
// are server errors.
func statusForEngineError(err error) int {
	var belowMin *betting.BelowMinimumRaiseError
	switch {
	case errors.As(err, &belowMin):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrPersistFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, game.ErrPlayerNotFound), errors.Is(err, betting.ErrPlayerNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// handleWebSocket upgrades the connection and subscribes it to the
// requested player's filtered topic, validating the session token the
// matchmaking queue issued at game_ready before allowing the
// subscription, per spec.md §4.7/§6.
func (s *server) handleWebSocket(c *gin.Context) {
	gameID := c.Param("gameId")
	playerID := c.Param("playerId")
	tok := c.Query("token")

	if _, err := s.signer.RequireGame(tok, gameID); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Errorf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	topic := broadcast.GameTopic(gameID, playerID)
	ch := s.pubsub.Subscribe(topic)
	defer s.pubsub.Unsubscribe(topic, ch)

	ended := s.pubsub.Subscribe("game:" + gameID + ":ended")
	defer s.pubsub.Unsubscribe("game:"+gameID+":ended", ended)

	done := make(chan struct{})
	go s.drainIncoming(conn, done)

	for {
		select {
		case <-done:
			return
		case msg := <-ch:
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case msg := <-ended:
			_ = conn.WriteJSON(msg)
			return
		}
	}
}

// drainIncoming discards client->server WebSocket frames (this endpoint
// is read-only broadcast; actions arrive over the REST action endpoint)
// but must keep reading so gorilla notices a closed connection.
func (s *server) drainIncoming(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
