// ABOUTME: Interactive chat command: one socket, a session, a renderer and a stdin loop
// ABOUTME: Runs the connection, optional metrics server and input under one errgroup

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/2389/cortex-console/internal/config"
	"github.com/2389/cortex-console/internal/connection"
	"github.com/2389/cortex-console/internal/metrics"
	"github.com/2389/cortex-console/internal/outputs"
	"github.com/2389/cortex-console/internal/session"
)

const sendTimeout = 10 * time.Second

func newChatCmd(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Open a chat with the agent backend",
		Long: `Open a chat with the agent backend over its websocket.

Type a prompt and press Enter. Agent steps stream as they arrive and final
outputs are rendered as markdown. When an agent asks a question, the next
line you type is sent as the answer. /help lists commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd.Context(), strings.Join(args, " "), raw, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print outputs without markdown rendering")
	return cmd
}

// chat ties one session to one connection for the life of the command.
type chat struct {
	sess    *session.Session
	conn    *connection.Manager
	printer *printer
	logger  *slog.Logger
}

func (a *app) runChat(ctx context.Context, first string, raw bool, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := metrics.New()
	sess := session.New(session.Options{
		PreviewDelay: a.cfg.Preview.Delay,
		Metrics:      m,
		Logger:       a.logger,
	})
	defer sess.Close()

	header := http.Header{}
	if a.cfg.Backend.Token != "" {
		header.Set("Authorization", "Bearer "+a.cfg.Backend.Token)
	}
	mgr := connection.New(connection.Config{
		URL:              a.cfg.Backend.WSURL,
		MaxAttempts:      a.cfg.Connection.MaxAttempts,
		RetryInterval:    a.cfg.Connection.RetryInterval,
		HandshakeTimeout: a.cfg.Connection.HandshakeTimeout,
		Header:           header,
	}, sess, sess, connection.WithLogger(a.logger), connection.WithMetrics(m))

	c := &chat{
		sess:    sess,
		conn:    mgr,
		printer: newPrinter(out, !raw),
		logger:  a.logger,
	}

	heading.Fprintf(out, "cortex-console %s connecting to %s\n", version, a.cfg.Backend.WSURL)
	dim.Fprintln(out, "Type a prompt and press Enter. /help for commands. Ctrl+C to quit.")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := mgr.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if a.cfg.Metrics.Enabled {
		g.Go(func() error {
			return serveMetrics(gctx, a.cfg.Metrics, m, a.logger)
		})
	}

	g.Go(func() error {
		c.printer.follow(gctx, sess)
		return nil
	})

	g.Go(func() error {
		// Leaving the input loop ends the chat.
		defer cancel()
		defer mgr.Close()
		return c.readInput(gctx, in, first)
	})

	return g.Wait()
}

func (c *chat) readInput(ctx context.Context, in io.Reader, first string) error {
	if first != "" {
		c.submit(ctx, first)
	}

	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
			return
		}
		errCh <- io.EOF
	}()

	for {
		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-lines:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}
		if strings.HasPrefix(input, "/") {
			c.command(input)
			continue
		}

		if c.sess.Snapshot().Status.AwaitingInput {
			c.answer(ctx, input)
			continue
		}
		c.submit(ctx, input)
	}
}

// submit records a prompt and sends it. When the socket is down the prompt
// stays pending and goes out as soon as a connection opens.
func (c *chat) submit(ctx context.Context, prompt string) {
	turnID, err := c.sess.Submit(prompt)
	if err != nil {
		c.printer.println(bad, "[error] %v", err)
		return
	}
	c.send(ctx, turnID, prompt)
}

func (c *chat) answer(ctx context.Context, text string) {
	key, err := c.sess.Answer(text)
	if err != nil {
		c.printer.println(bad, "[error] %v", err)
		return
	}
	c.send(ctx, key, text)
}

func (c *chat) send(ctx context.Context, key, text string) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	err := c.conn.Send(sendCtx, key, text)
	switch {
	case err == nil:
	case errors.Is(err, connection.ErrNotConnected):
		c.printer.println(dim, "not connected yet, will send when the socket opens")
	default:
		c.printer.println(bad, "[error] %v", err)
	}
}

func (c *chat) command(input string) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/new":
		c.sess.NewChat()
	case "/outputs":
		c.printer.listOutputs(c.sess.Snapshot())
	case "/show":
		n, err := strconv.Atoi(arg)
		if err != nil {
			c.printer.println(bad, "usage: /show <number>")
			return
		}
		c.move(func() (outputs.Transition, bool) { return c.sess.Select(n - 1) })
	case "/next":
		c.move(c.sess.Next)
	case "/prev":
		c.move(c.sess.Previous)
	case "/close":
		c.sess.ClearSelection()
	case "/preview":
		if url := c.sess.Snapshot().LiveURL; url != "" {
			c.printer.println(warn, "live preview: %s", url)
		} else {
			c.printer.println(dim, "no live preview")
		}
	case "/research":
		c.printer.showResearch(c.sess.Snapshot())
	case "/status":
		st := c.sess.Snapshot().Status
		c.printer.println(nil, "loading=%t awaiting_input=%t connected=%t", st.Loading, st.AwaitingInput, c.conn.Connected())
	case "/help":
		c.printHelp()
	default:
		c.printer.println(bad, "unknown command %s, try /help", name)
	}
}

// move changes the selected output and prints the one now selected.
func (c *chat) move(fn func() (outputs.Transition, bool)) {
	tr, ok := fn()
	if !ok {
		c.printer.println(dim, "no such output")
		return
	}
	snap := c.sess.Snapshot()
	if entry, ok := snap.SelectedOutput(); ok {
		c.printer.showOutput(tr.Enter, entry)
	}
}

func (c *chat) printHelp() {
	c.printer.println(nil, `Commands:
  /outputs       List agent outputs
  /show <n>      Show output n in full
  /next, /prev   Step through outputs
  /close         Clear the output selection
  /preview       Show the live browser preview URL
  /research      Show research plan, sources and thoughts
  /status        Show loading and connection state
  /new           Start a new chat
  /help          Show this help
  /quit          Exit`)
}

// serveMetrics exposes the Prometheus registry until ctx ends.
func serveMetrics(ctx context.Context, cfg config.MetricsConfig, m *metrics.Metrics, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, m.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", cfg.Addr, "path", cfg.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
