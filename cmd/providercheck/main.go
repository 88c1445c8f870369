// Command providercheck asks one model for a move and optionally watches a running server's event stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chesslm/internal/appbuilder"
	appcfg "github.com/park285/chesslm/internal/config"
	"github.com/park285/chesslm/internal/domain"
	"github.com/park285/chesslm/internal/obslog"
	"github.com/park285/chesslm/pkg/chessdto"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func main() {
	modelID := flag.String("model", "", "model id to ask (default: catalog default)")
	fen := flag.String("fen", startFEN, "position to ask about")
	pgn := flag.String("pgn", "", "move history shown to the model")
	streamURL := flag.String("stream", "", "websocket URL of a running server, e.g. ws://localhost:3001/api/stream")
	watch := flag.Duration("watch", 10*time.Second, "how long to watch the stream")
	skipAsk := flag.Bool("skip-ask", false, "only watch the stream")
	flag.Parse()

	if !*skipAsk {
		askModel(*modelID, *fen, *pgn)
	}
	if *streamURL == "" {
		log.Println("no -stream URL; skipping stream check")
		return
	}
	watchStream(*streamURL, *watch)
}

func askModel(modelID, fen, pgn string) {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	deps, err := appbuilder.New(cfg, obslog.L())
	if err != nil {
		log.Fatalf("init error: %v", err)
	}
	defer func() { _ = deps.Close() }()

	model := deps.Models.Default()
	if modelID != "" {
		var ok bool
		if model, ok = deps.Models.Lookup(modelID); !ok {
			log.Fatalf("unknown model %q", modelID)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLMTimeout+5*time.Second)
	defer cancel()
	start := time.Now()
	thought, err := deps.Suggester.Suggest(ctx, model, domain.Position{FEN: fen, PGN: pgn})
	if err != nil {
		log.Printf("%s (%s) error after %s: %v", model.ID, model.Provider, time.Since(start).Round(time.Millisecond), err)
		return
	}
	log.Printf("%s (%s) ok in %s: move=%s eval=%.2f depth=%d",
		model.ID, model.Provider, time.Since(start).Round(time.Millisecond), thought.Move, thought.Evaluation, thought.Depth)
	if thought.Reasoning != "" {
		fmt.Printf("reasoning: %s\n", thought.Reasoning)
	}
}

func watchStream(url string, d time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	conn, _, err := websocket.Dial(dialCtx, url, nil)
	dialCancel()
	if err != nil {
		log.Printf("stream connect error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	for {
		var ev chessdto.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if ctx.Err() == nil {
				log.Printf("stream read error: %v", err)
			}
			return
		}
		line := fmt.Sprintf("event=%s game=%s moves=%d thinking=%v", ev.Type, ev.Game.ID, len(ev.Game.State.Moves), ev.Game.Thinking)
		if ev.Move != nil {
			line += " move=" + ev.Move.SAN
		}
		if ev.Error != "" {
			line += " error=" + ev.Error
		}
		fmt.Println(line)
	}
}
