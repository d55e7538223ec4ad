package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"trivia-lab/client"
	"trivia-lab/domain"
	"trivia-lab/runtime"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play a lobby against a running server",
	Long: `Register an organizer, open a lobby, let players join and rename, then
start the game while a roster synchronizer prints every change it sees.

The server is read from TRIVIA_SERVER_URL.

Examples:
  triviactl simulate --players 3
  TRIVIA_COLOURS=false triviactl simulate --players 5 --name "Friday quiz"`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().Int("players", 3, "Number of players joining the lobby")
	simulateCmd.Flags().String("name", "Simulated quiz", "Session name")
}

// printer is shared by the synchronizer callbacks and the main flow.
type printer struct {
	mu      *sync.Mutex
	out     io.Writer
	colours bool
}

func newPrinter(out io.Writer, colours bool) printer {
	return printer{mu: &sync.Mutex{}, out: out, colours: colours}
}

func (p printer) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

func (p printer) step(format string, args ...any) {
	line := fmt.Sprintf("  ====== "+format+" ======", args...)
	if p.colours {
		line = color.New(color.BgBlack, color.FgGreen).Render(line)
	}
	p.println(line)
}

func (p printer) info(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if p.colours {
		line = color.FgCyan.Render(line)
	}
	p.println(line)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	players, _ := cmd.Flags().GetInt("players")
	name, _ := cmd.Flags().GetString("name")
	config, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := newPrinter(cmd.OutOrStdout(), config.Colours)
	log := logs.GetLoggerFromString(config.LogLevel)
	anonymous := client.New(log, config.ServerURL, config.Timeout, config.BufferSize)
	return simulate(ctx, log, out, anonymous, config.Backoff, name, players)
}

func simulate(ctx context.Context, log *slog.Logger, out printer, anonymous *client.Client, backoff time.Duration,
	name string, players int) error {
	out.step("Organizer")
	email := fmt.Sprintf("organizer-%s@trivia.local", uuid.NewString()[:8])
	token, err := anonymous.Register(ctx, email, uuid.NewString())
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	organizer := anonymous.WithBearer(token)
	session, err := organizer.CreateSession(ctx, name)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	out.info("Lobby %s opened, invite %s", session.ID, session.InvitePath())

	out.step("Roster synchronizer")
	started := make(chan domain.Session, 1)
	synchronizer := runtime.NewRosterSynchronizer(log, organizer, session.ID, backoff).
		OnRosterChange(func(roster []domain.Participant) {
			names := lo.Map(roster, func(p domain.Participant, _ int) string { return p.DisplayName })
			out.info("roster (%d): %s", len(roster), strings.Join(names, ", "))
		}).
		OnPhaseChange(func(s domain.Session) {
			select {
			case started <- s:
			default:
			}
		})
	syncCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	syncErr := make(chan error, 1)
	go func() { syncErr <- synchronizer.Run(syncCtx) }()

	out.step("Players join")
	organizerSeat, _, err := organizer.Join(ctx, session.ID, "Host")
	if err != nil {
		return fmt.Errorf("organizer join: %w", err)
	}
	roster := []domain.ParticipantID{organizerSeat.ID}
	for i := 1; i <= players; i++ {
		participant, handle, err := anonymous.Join(ctx, session.ID, fmt.Sprintf("Player %d", i))
		if err != nil {
			return fmt.Errorf("player %d join: %w", i, err)
		}
		roster = append(roster, participant.ID)
		if i == 1 {
			if _, err := anonymous.WithHandle(handle).Rename(ctx, session.ID, participant.ID, "Player One"); err != nil {
				return fmt.Errorf("rename: %w", err)
			}
		}
	}

	out.step("Start")
	active, alreadyStarted, err := organizer.Start(ctx, session.ID, roster)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if alreadyStarted {
		out.info("Session was already started")
	}
	for _, assignment := range active.RoundAssignments {
		out.info("round %d  %-14s moderator %s", assignment.Round, assignment.Category,
			active.ModeratorOrder[(assignment.Round-1)%len(active.ModeratorOrder)])
	}

	select {
	case s := <-started:
		moderator, _ := s.CurrentModerator()
		out.info("Synchronizer saw the start, first moderator %s", moderator)
	case err := <-syncErr:
		return fmt.Errorf("synchronizer: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
		return fmt.Errorf("synchronizer never saw the start")
	}
	cancel()
	return <-syncErr
}
