package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/park285/chesslm/internal/appbuilder"
	"github.com/park285/chesslm/internal/game"
	"github.com/park285/chesslm/internal/stream"
	"github.com/park285/chesslm/pkg/chessdto"
)

const streamPath = "/api/stream"

// Server exposes the live game over HTTP and a websocket stream. The stream is
// mounted on a net/http mux in front of the fiber app because the websocket
// handshake needs a hijackable net/http connection.
type Server struct {
	app     *fiber.App
	deps    *appbuilder.Deps
	hub     *stream.Hub
	logger  *zap.Logger
	subID   int
	handler http.Handler
	http    *http.Server
}

func New(d *appbuilder.Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{deps: d, logger: logger}
	s.hub = stream.NewHub(logger, stream.WithInitial(s.initialEvent))
	s.subID = d.Controller.Subscribe(func(ev game.Event) { s.hub.Broadcast(eventDTO(ev)) })

	app := fiber.New(fiber.Config{
		ErrorHandler:          errorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestLogger(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID",
	}))

	app.Get("/health", s.health)

	api := app.Group("/api")
	if rpm := d.Config.RateLimit; rpm > 0 {
		api.Use(limiter.New(limiter.Config{
			Max:        rpm,
			Expiration: time.Minute,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(chessdto.ErrorResponse{
					Error: "rate limit exceeded",
					Code:  chessdto.CodeRateLimited,
				})
			},
		}))
	}
	api.Use(contentTypeValidator)

	api.Get("/models", s.listModels)
	api.Post("/game", validated[chessdto.NewGameRequest](), s.startGame)
	api.Get("/game", s.getGame)
	api.Post("/game/move", validated[chessdto.MoveRequest](), s.humanMove)
	api.Post("/game/ai-turn", s.aiTurn)
	api.Post("/game/reset", s.resetGame)
	api.Get("/game/moves", s.legalMoves)
	api.Get("/game/board.png", s.boardPNG)
	api.Get("/game/pgn", s.exportPGN)
	api.Get("/games/:id", s.storedGame)
	api.Post("/games/:id/resume", s.resumeGame)
	api.Post("/ai-move", s.aiMove)
	api.Post("/debug", s.debug)

	s.app = app

	mux := http.NewServeMux()
	mux.Handle(streamPath, s.hub)
	mux.Handle("/", adaptor.FiberApp(app))
	s.handler = mux
	s.http = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// App is the fiber application without the stream route.
func (s *Server) App() *fiber.App { return s.app }

// Handler serves the stream and every fiber route.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. A clean shutdown returns nil.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http_listen", zap.String("addr", ln.Addr().String()))
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes stream clients first; hijacked connections are not tracked by net/http.
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Controller.Unsubscribe(s.subID)
	s.hub.Close()
	return s.http.Shutdown(ctx)
}

func (s *Server) initialEvent() (chessdto.Event, bool) {
	snap, err := s.deps.Controller.Snapshot()
	if err != nil {
		return chessdto.Event{}, false
	}
	return chessdto.Event{Type: string(game.EventState), Game: gameDTO(snap)}, true
}
