package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/BioHazard786/huddle/internal/callerr"
	"github.com/BioHazard786/huddle/internal/config"
	"github.com/BioHazard786/huddle/internal/dns"
	"github.com/BioHazard786/huddle/internal/server"
	"github.com/BioHazard786/huddle/internal/ui"
	"github.com/spf13/cobra"
)

const statusTimeout = 10 * time.Second

var flagStatusServer string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the health of a relay server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{Server: flagStatusServer})
		if err != nil {
			return callerr.NewError("load config", err)
		}

		spin := ui.NewConnectionSpinner(fmt.Sprintf("Checking %s...", cfg.Server))
		spin.Start()
		status, err := fetchStatus(cmd.Context(), newHTTPClient(), cfg.HealthURL)
		if err != nil {
			spin.Error("Relay unreachable")
			return err
		}
		spin.Stop()

		status.Server = cfg.Server
		fmt.Println(ui.TitleStyle.Render("Relay status"))
		ui.RenderStatus(os.Stdout, status)
		return nil
	},
}

func newHTTPClient() *http.Client {
	resolver := &dns.Resolver{}
	return &http.Client{
		Timeout:   statusTimeout,
		Transport: &http.Transport{DialContext: resolver.DialContext},
	}
}

// fetchStatus reads the relay's health endpoint and times the round trip.
func fetchStatus(ctx context.Context, client *http.Client, url string) (ui.RelayStatus, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ui.RelayStatus{}, callerr.NewError("fetch status", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return ui.RelayStatus{}, callerr.WrapError("fetch status", callerr.ErrTransport, err.Error())
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		return ui.RelayStatus{}, callerr.WrapError("fetch status", callerr.ErrTransport, resp.Status)
	}

	var health server.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return ui.RelayStatus{}, callerr.WrapError("fetch status", callerr.ErrProtocol, err.Error())
	}

	return ui.RelayStatus{
		Status:       health.Status,
		Version:      health.Version,
		Rooms:        health.Rooms,
		Participants: health.Participants,
		Latency:      latency,
	}, nil
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&flagStatusServer, "server", "S", "", "Relay server address")
}
