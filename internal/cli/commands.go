// Package cli implements the interactive console: session status, movement
// targets and session start/stop.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/nrelay-go/nrelay/internal/client"
	"github.com/nrelay-go/nrelay/internal/events"
	"github.com/nrelay-go/nrelay/internal/hooks"
	"github.com/nrelay-go/nrelay/internal/protocol"
)

const commandTimeout = 2 * time.Second

// Sessions is the part of the session manager the console drives.
type Sessions interface {
	Statuses(ctx context.Context) []client.Status
	Find(id string) (*client.Client, error)
	Stop(ctx context.Context, id string) error
	Restart(id string) error
}

// CLI provides an interactive command-line interface.
type CLI struct {
	eventBus *events.EventBus
	sessions Sessions
	host     *hooks.Host

	in  io.Reader
	out io.Writer
}

// NewCLI creates a console reading commands from in and writing to out.
func NewCLI(eventBus *events.EventBus, sessions Sessions, host *hooks.Host, in io.Reader, out io.Writer) *CLI {
	return &CLI{
		eventBus: eventBus,
		sessions: sessions,
		host:     host,
		in:       in,
		out:      out,
	}
}

// Start runs the command loop until ctx is cancelled or input ends.
func (c *CLI) Start(ctx context.Context) {
	fmt.Fprintln(c.out, "\nnrelay ready. Type 'help' for available commands.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			parts := strings.Fields(line)
			if len(parts) == 0 {
				continue
			}
			if err := c.execute(ctx, strings.ToLower(parts[0]), parts[1:]); err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
			}
		}
	}
}

// execute processes a single command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		return c.printStatus(ctx, args)
	case "extensions", "ext":
		c.printExtensions()
	case "move":
		return c.cmdMove(ctx, args)
	case "stop":
		return c.cmdStop(ctx, args)
	case "start":
		return c.cmdStart(args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Shutting down nrelay...")
		c.eventBus.Emit(ctx, events.Event{
			Type:   events.EventShutdown,
			Source: "cli",
		})
	default:
		fmt.Fprintf(c.out, "Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

func (c *CLI) printHelp() {
	fmt.Fprintln(c.out, `
  status [id]         Show all sessions, or one in detail
  extensions          List loaded extensions and hook counters
  move <id> <x> <y>   Set a session's movement target
  stop <id>           Disconnect a session and keep it offline
  start <id>          Re-enable a stopped session
  quit                Shut down nrelay
  help                Show this help message

  <id> is the session index shown by 'status' or the account GUID.`)
}

func (c *CLI) printStatus(ctx context.Context, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if len(args) > 0 {
		cl, err := c.sessions.Find(args[0])
		if err != nil {
			return err
		}
		st, err := cl.Snapshot(ctx)
		if err != nil {
			return err
		}
		c.printSessionDetail(st)
		return nil
	}

	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"#", "Account", "Server", "State", "Map", "Position", "Reconnects"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for i, st := range c.sessions.Statuses(ctx) {
		state := st.State.String()
		if st.Disabled {
			state += " (stopped)"
		}
		tw.Append([]string{
			strconv.Itoa(i),
			st.GUID,
			st.Server,
			state,
			st.MapInfo.Name,
			fmt.Sprintf("%.1f, %.1f", st.PlayerData.WorldPos.X, st.PlayerData.WorldPos.Y),
			strconv.Itoa(st.Reconnects),
		})
	}

	tw.Render()
	return nil
}

func (c *CLI) printSessionDetail(st client.Status) {
	pd := st.PlayerData
	fmt.Fprintf(c.out, "\n  Account:    %s\n", st.GUID)
	fmt.Fprintf(c.out, "  Server:     %s\n", st.Server)
	fmt.Fprintf(c.out, "  State:      %s\n", st.State)
	fmt.Fprintf(c.out, "  Stopped:    %v\n", st.Disabled)
	fmt.Fprintf(c.out, "  Character:  %s (id %d, class %d, level %d)\n", pd.Name, st.CharInfo.CharID, pd.Class, pd.Level)
	fmt.Fprintf(c.out, "  HP/MP:      %d/%d  %d/%d\n", pd.HP, pd.MaxHP, pd.MP, pd.MaxMP)
	fmt.Fprintf(c.out, "  Map:        %s (%dx%d)\n", st.MapInfo.Name, st.MapInfo.Width, st.MapInfo.Height)
	fmt.Fprintf(c.out, "  Position:   %.2f, %.2f\n", pd.WorldPos.X, pd.WorldPos.Y)
	if st.NextPos != nil {
		fmt.Fprintf(c.out, "  Target:     %.2f, %.2f\n", st.NextPos.X, st.NextPos.Y)
	}
	fmt.Fprintf(c.out, "  Packets:    %d in, %d out\n", st.PacketsIn, st.PacketsOut)
	fmt.Fprintln(c.out)
}

// printExtensions lists every loaded extension with its hook counters.
func (c *CLI) printExtensions() {
	if c.host == nil {
		fmt.Fprintln(c.out, "No extension host.")
		return
	}

	stats := make(map[string]hooks.OwnerStats)
	for _, s := range c.host.Registry().Stats() {
		stats[s.Owner] = s
	}

	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"Extension", "Author", "Calls", "Faults"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	for _, info := range c.host.Loaded() {
		s := stats[info.Name]
		tw.Append([]string{info.Name, info.Author, strconv.Itoa(s.Calls), strconv.Itoa(s.Faults)})
	}
	tw.Render()
}

func (c *CLI) cmdMove(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: move <id> <x> <y>")
	}
	x, errX := strconv.ParseFloat(args[1], 32)
	y, errY := strconv.ParseFloat(args[2], 32)
	if errX != nil || errY != nil {
		return fmt.Errorf("invalid position: %s %s", args[1], args[2])
	}

	cl, err := c.sessions.Find(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := cl.MoveTo(ctx, protocol.WorldPosData{X: float32(x), Y: float32(y)}); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s moving to %.2f, %.2f\n", cl.GUID(), x, y)
	return nil
}

func (c *CLI) cmdStop(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: stop <id>")
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := c.sessions.Stop(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Session %s stopped\n", args[0])
	return nil
}

func (c *CLI) cmdStart(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: start <id>")
	}
	if err := c.sessions.Restart(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Session %s started\n", args[0])
	return nil
}
