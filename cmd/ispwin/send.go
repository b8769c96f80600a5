package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/ispwin/ispwin/internal/bus"
	"github.com/ispwin/ispwin/internal/config"
	"github.com/ispwin/ispwin/internal/desktop"
	"github.com/ispwin/ispwin/internal/storage"
)

// ErrNoResponse is returned when no desktop answers before the timeout.
var ErrNoResponse = errors.New("no desktop answered")

type sendRequest struct {
	Command string
	Param   string
	Extra   map[string]any
	Timeout time.Duration
	JSON    bool
}

// parseExtras turns key=value pairs into a message's extra map. A value that
// is valid JSON keeps its decoded type, so width=40 is a number and
// force=true a boolean.
func parseExtras(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	extra := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid extra %q: want key=value", pair)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			extra[key] = decoded
		} else {
			extra[key] = value
		}
	}
	return extra, nil
}

// newCommand builds the wire message for req with a fresh id.
func newCommand(req sendRequest) bus.Message {
	return bus.Message{
		Type:    bus.TypeCommand,
		Command: req.Command,
		Param:   req.Param,
		Extra:   req.Extra,
		ID:      uuid.NewString(),
	}
}

// awaitResponse sends cmd on b and returns the first response addressed to
// it. b must not be started yet.
func awaitResponse(ctx context.Context, b *bus.Bus, cmd bus.Message, timeout time.Duration) (bus.Message, error) {
	responses := make(chan bus.Message, 1)
	b.Subscribe(func(msg bus.Message) {
		if msg.Type != bus.TypeResponse || msg.To != cmd.ID {
			return
		}
		select {
		case responses <- msg:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := b.Start(ctx); err != nil {
		return bus.Message{}, err
	}
	if err := b.Send(cmd); err != nil {
		return bus.Message{}, err
	}

	select {
	case resp := <-responses:
		return resp, nil
	case <-ctx.Done():
		return bus.Message{}, fmt.Errorf("%w on channel %s within %s", ErrNoResponse, b.Name(), timeout)
	}
}

func runSend(ctx context.Context, req sendRequest) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := storage.Open(storage.Backend(cfg.Storage.Backend), cfg.StorageDir())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	b, err := desktop.OpenBus(cfg, store)
	if err != nil {
		return fmt.Errorf("failed to open bus: %w", err)
	}
	defer b.Close()

	if req.Timeout <= 0 {
		req.Timeout = config.DefaultSendTimeout
	}
	resp, err := awaitResponse(ctx, b, newCommand(req), req.Timeout)
	if err != nil {
		return err
	}

	if req.JSON || !term.IsTerminal(int(os.Stdout.Fd())) {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		fmt.Println(formatResponse(resp))
	}

	if resp.Response != nil && !resp.Response.Success {
		return fmt.Errorf("%s failed: %s", req.Command, resp.Response.Error)
	}
	return nil
}

var (
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// formatResponse renders a response for a terminal.
func formatResponse(msg bus.Message) string {
	r := msg.Response
	if r == nil {
		return failStyle.Render("✗") + " empty response"
	}

	command := ""
	if r.Echo != nil {
		command = r.Echo.Command
	}
	if !r.Success {
		return fmt.Sprintf("%s %s %s", failStyle.Render("✗"), command, r.Error)
	}

	var sb strings.Builder
	sb.WriteString(okStyle.Render("✓") + " " + command)
	if r.Window != nil {
		sb.WriteString(" " + labelStyle.Render("window") + " " + *r.Window)
	}
	return sb.String()
}
