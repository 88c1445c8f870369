// Command chesslm-term plays a game against hosted models in the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/park285/chesslm/internal/adapter/termview"
	"github.com/park285/chesslm/internal/appbuilder"
	appcfg "github.com/park285/chesslm/internal/config"
	"github.com/park285/chesslm/internal/domain"
	"github.com/park285/chesslm/internal/game"
	"github.com/park285/chesslm/internal/obslog"
)

type session struct {
	deps *appbuilder.Deps
	view *termview.Formatter
	out  io.Writer
}

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	// Logs go to a file so they do not interleave with the board.
	opts := obslog.OptionsFromEnv()
	opts.Console = false
	opts.File = true
	logger, err := obslog.Build(opts)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	obslog.Set(logger)
	defer func() { _ = logger.Sync() }()

	deps, err := appbuilder.New(cfg, logger)
	if err != nil {
		log.Fatalf("init error: %v", err)
	}
	defer func() { _ = deps.Close() }()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "chess> ",
		HistoryFile:     ".chesslm_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		log.Fatalf("readline error: %v", err)
	}
	defer rl.Close()

	s := &session{
		deps: deps,
		view: termview.NewFormatter(deps.Messages, useColor()),
		out:  rl.Stdout(),
	}
	deps.Controller.Subscribe(s.onEvent)

	if err := s.newGame(nil); err != nil {
		fmt.Fprintln(s.out, err)
		return
	}

	for {
		rl.SetPrompt(s.prompt())
		line, err := rl.Readline()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				break
			}
			continue
		}
		if err != nil {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" || line == "q" {
			break
		}
		s.execute(line)
	}
}

// useColor honours NO_COLOR and USE_COLOR, falling back to whether stdout is a terminal.
func useColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("USE_COLOR"))); v != "" {
		return v == "1" || v == "true" || v == "yes"
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func (s *session) prompt() string {
	snap, err := s.deps.Controller.Snapshot()
	if err != nil {
		return "chess> "
	}
	if snap.State.IsGameOver {
		return "chess (over)> "
	}
	return fmt.Sprintf("chess %s> ", strings.ToLower(string(snap.State.SideToMove)))
}

func (s *session) execute(line string) {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	ctl := s.deps.Controller

	switch cmd {
	case "help", "?":
		fmt.Fprintln(s.out, s.view.Help())
	case "moves":
		if len(args) == 0 {
			fmt.Fprintln(s.out, "usage: moves <square>")
			return
		}
		dests, err := ctl.LegalDestinations(args[0])
		if err != nil {
			fmt.Fprintln(s.out, err)
			return
		}
		if len(dests) == 0 {
			fmt.Fprintf(s.out, "no legal moves from %s\n", args[0])
			return
		}
		fmt.Fprintf(s.out, "%s: %s\n", args[0], strings.Join(dests, " "))
	case "ai":
		if _, err := ctl.RunAITurn(context.Background()); err != nil {
			s.report("", err)
		}
	case "new":
		if err := s.newGame(args); err != nil {
			fmt.Fprintln(s.out, err)
		}
	case "models":
		fmt.Fprintln(s.out, s.view.Models(s.deps.Models.All(), s.deps.Models.Default().ID))
	case "history":
		if snap, ok := s.snapshot(); ok {
			fmt.Fprintln(s.out, s.view.History(snap.State))
		}
	case "analysis":
		if snap, ok := s.snapshot(); ok {
			fmt.Fprintln(s.out, s.view.Analysis(snap.Analyses))
		}
	case "pgn":
		pgn, err := ctl.ExportPGN()
		if err != nil {
			fmt.Fprintln(s.out, err)
			return
		}
		fmt.Fprintln(s.out, pgn)
	case "board":
		if snap, ok := s.snapshot(); ok {
			s.printBoard(snap)
		}
	case "reset":
		if _, _, err := ctl.Reset(); err != nil {
			fmt.Fprintln(s.out, err)
		}
	case "resume":
		ctl.Resume()
	default:
		if _, err := ctl.HumanMove(cmd); err != nil {
			s.report(cmd, err)
		}
	}
}

// newGame parses "new [model] [mode]". The human plays white in human-vs-ai.
func (s *session) newGame(args []string) error {
	modelID, mode := "", domain.ModeHumanVsAI
	for _, a := range args {
		switch domain.Mode(strings.ToLower(a)) {
		case domain.ModeHumanVsAI, domain.ModeAIVsAI:
			mode = domain.Mode(strings.ToLower(a))
		default:
			modelID = a
		}
	}
	if modelID != "" {
		if _, ok := s.deps.Models.Lookup(modelID); !ok {
			return errors.New(s.view.UnknownModel(modelID))
		}
	}
	white := appbuilder.SideSpec{Kind: domain.Human}
	if mode == domain.ModeAIVsAI {
		white = appbuilder.SideSpec{Kind: domain.AI, ModelID: modelID}
	}
	cfg, err := s.deps.GameConfig(mode, white, appbuilder.SideSpec{Kind: domain.AI, ModelID: modelID}, nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, s.view.Banner(cfg))
	_, err = s.deps.Controller.Start(cfg)
	return err
}

func (s *session) snapshot() (game.Snapshot, bool) {
	snap, err := s.deps.Controller.Snapshot()
	if err != nil {
		fmt.Fprintln(s.out, err)
		return game.Snapshot{}, false
	}
	return snap, true
}

func (s *session) report(move string, err error) {
	switch {
	case errors.Is(err, game.ErrNotHumanTurn):
		if snap, ok := s.snapshot(); ok {
			fmt.Fprintln(s.out, s.view.NotYourTurn(snap))
		}
	case errors.Is(err, game.ErrMalformedMove), errors.Is(err, game.ErrIllegalMove):
		fmt.Fprintln(s.out, s.view.Rejected(move, err))
	default:
		fmt.Fprintln(s.out, err)
	}
}

func (s *session) printBoard(snap game.Snapshot) {
	fmt.Fprintln(s.out, s.view.Board(snap))
	fmt.Fprintln(s.out, s.view.Status(snap))
	if snap.State.IsGameOver {
		fmt.Fprintln(s.out, s.view.GameOver(snap.State))
	}
}

// onEvent prints controller events. It only reads the snapshot it is given.
func (s *session) onEvent(ev game.Event) {
	switch ev.Kind {
	case game.EventThinking:
		side := ev.Snapshot.Config.Side(ev.Snapshot.State.SideToMove)
		fmt.Fprintln(s.out, s.view.Thinking(termview.PlayerName(side)))
	case game.EventMove:
		if ev.Move != nil {
			mover := domain.White
			if len(ev.Snapshot.State.Moves)%2 == 0 {
				mover = domain.Black
			}
			fmt.Fprintln(s.out, s.view.Move(*ev.Move, ev.Snapshot.Config.Side(mover)))
		}
		s.printBoard(ev.Snapshot)
	case game.EventRejected:
		side := ev.Snapshot.Config.Side(ev.Snapshot.State.SideToMove)
		fmt.Fprintf(s.out, "%s: %s (type \"resume\" to retry)\n", termview.PlayerName(side), ev.Err)
	case game.EventState, game.EventReset:
		s.printBoard(ev.Snapshot)
	}
}
