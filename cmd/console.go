package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/store-locator/internal/locator"
	"github.com/sells-group/store-locator/internal/view"
)

const consoleHelp = `commands:
  address <text>   set the address input (empty clears it)
  radius <miles>   set the search radius
  submit           search
  select <n>       open result n
  show             print the map, list and status
  quit             exit
`

var consoleOutput string

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive search session on stdin",
	Long:  "Reads one command per line from stdin and drives a single locator session. An initial search around the default map center runs on start.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initLocator("console")
		if err != nil {
			return err
		}
		return runConsole(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), env, consoleOutput)
	},
}

type consoleAction int

const (
	actionDispatch consoleAction = iota
	actionShow
	actionHelp
	actionQuit
)

// parseConsoleLine turns one input line into a console action and, for
// actionDispatch, the command to send.
func parseConsoleLine(line string) (consoleAction, locator.Command, error) {
	line = strings.TrimSpace(line)
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "address":
		return actionDispatch, locator.AddressChanged{Text: rest}, nil
	case "radius":
		miles, err := strconv.ParseFloat(rest, 64)
		if err != nil || miles <= 0 {
			return 0, nil, eris.Errorf("radius: %q is not a positive number", rest)
		}
		return actionDispatch, locator.RadiusChanged{Miles: miles}, nil
	case "submit", "search":
		return actionDispatch, locator.Submit{}, nil
	case "select":
		idx, err := strconv.Atoi(rest)
		if err != nil || idx < 0 {
			return 0, nil, eris.Errorf("select: %q is not a result index", rest)
		}
		return actionDispatch, locator.Select{Index: idx}, nil
	case "show":
		return actionShow, nil, nil
	case "help", "?":
		return actionHelp, nil, nil
	case "quit", "exit":
		return actionQuit, nil, nil
	default:
		return 0, nil, eris.Errorf("unknown command %q (try help)", verb)
	}
}

func runConsole(ctx context.Context, in io.Reader, out io.Writer, env *locatorEnv, format string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	out = &syncWriter{w: out}

	settled := make(chan struct{}, 16)
	surfaces, disp := env.newSession(locator.WithSettledHook(func(locator.Command, error) {
		select {
		case settled <- struct{}{}:
		default:
		}
	}))

	cmds := make(chan locator.Command)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := disp.Run(gctx, cmds)
		close(settled)
		return err
	})
	g.Go(func() error {
		for range settled {
			printStatus(out, surfaces.Banner.Status())
		}
		return nil
	})

	send := func(cmd locator.Command) bool {
		select {
		case cmds <- cmd:
			return true
		case <-gctx.Done():
			return false
		}
	}

	send(locator.Init{})

	scanner := bufio.NewScanner(in)
loop:
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		action, cmd, err := parseConsoleLine(scanner.Text())
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		switch action {
		case actionDispatch:
			if !send(cmd) {
				break loop
			}
		case actionShow:
			if err := surfaces.Capture().Write(out, format); err != nil {
				fmt.Fprintln(out, err)
			}
		case actionHelp:
			fmt.Fprint(out, consoleHelp)
		case actionQuit:
			break loop
		}
	}
	close(cmds)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return eris.Wrap(scanner.Err(), "console: read input")
}

// syncWriter serializes writes from the input loop and the status printer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func printStatus(out io.Writer, s locator.Status) {
	if s.Text == "" {
		return
	}
	if s.Level != locator.LevelNone {
		fmt.Fprintf(out, "[%s] %s\n", s.Level, s.Text)
		return
	}
	fmt.Fprintln(out, s.Text)
}

func init() {
	consoleCmd.Flags().StringVarP(&consoleOutput, "output", "o", view.FormatText, "format for show: text, json or yaml")
	rootCmd.AddCommand(consoleCmd)
}
