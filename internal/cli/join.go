package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/callerr"
	"github.com/BioHazard786/huddle/internal/config"
	"github.com/BioHazard786/huddle/internal/media"
	"github.com/BioHazard786/huddle/internal/peer"
	"github.com/BioHazard786/huddle/internal/roomname"
	"github.com/BioHazard786/huddle/internal/session"
	"github.com/BioHazard786/huddle/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagNickname string
	flagServer   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
)

var joinCmd = &cobra.Command{
	Use:     "join [room]",
	Aliases: []string{"j"},
	Short:   "Join a room and talk to everyone in it",
	Long: `Join a room on the relay and open an audio link to every participant.
Without a room name a new one is made up; share it with the others.

Press m to mute or unmute, q to leave.

Examples:
  huddle join
  huddle join standup --nickname alice
  huddle join standup --server relay.example.com
  huddle join standup --relay --turn turn.example.com -u user -p secret`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			roomID := roomname.Generate()
			ui.PrintInfo(fmt.Sprintf("Starting room %s, others can join with: huddle join %s", ui.BoldStyle.Render(roomID), roomID))
			return joinRoom(cmd.Context(), roomID)
		}
		return joinRoom(cmd.Context(), args[0])
	},
}

func joinRoom(ctx context.Context, roomID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	relayOnly := cfg.UseRelay(config.RestrictiveNetwork)
	if relayOnly && !cfg.ForceRelay {
		ui.PrintWarning("VPN or carrier-grade NAT detected, routing audio through TURN")
	}

	c, err := newCall(cfg, relayOnly, slog.Default())
	if err != nil {
		return err
	}
	defer c.Close()

	spin := ui.NewConnectionSpinner(fmt.Sprintf("Connecting to %s...", cfg.Server))
	spin.Start()
	if err := c.Join(ctx, roomID, flagNickname); err != nil {
		spin.Error("Could not join room")
		return err
	}
	spin.Success(fmt.Sprintf("Joined %s", ui.BoldStyle.Render(roomID)))

	if err := ui.RunCall(c, c.Store(), roomID, displayName(flagNickname)); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Left %s", roomID))
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		Server:     flagServer,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
	})
	if err != nil {
		return nil, callerr.NewError("load config", err)
	}
	return cfg, nil
}

// newCall wires a session client, a pion-backed orchestrator and a silent
// local source into a Call.
func newCall(cfg *config.Config, relayOnly bool, logger *slog.Logger) (*call.Call, error) {
	source, err := media.NewSilenceSource("huddle")
	if err != nil {
		return nil, callerr.WrapError("create local stream", callerr.ErrMedia, err.Error())
	}

	client := session.NewClient(session.Options{
		URL:    cfg.WebSocketURL,
		Logger: logger,
	})

	orch := peer.NewOrchestrator(peer.Options{
		Signaler: client,
		Factory: peer.NewPionFactory(peer.PionOptions{
			ICEServers: cfg.ICEServers(),
			RelayOnly:  relayOnly,
			Logger:     logger,
		}),
		Source: source,
		Sink:   media.NewCountingSink(logger),
		Logger: logger,
	})

	return call.New(call.Options{
		Session:      client,
		Orchestrator: orch,
		Source:       source,
		Logger:       logger,
	}), nil
}

func displayName(nickname string) string {
	if nickname == "" {
		return "anonymous"
	}
	return nickname
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagNickname, "nickname", "n", "", "Name shown to other participants")
	joinCmd.Flags().StringVarP(&flagServer, "server", "S", "", "Relay server address")
	joinCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	joinCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	joinCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	joinCmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
}
