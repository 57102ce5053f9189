package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gg2-lobby/lobbyd/internal/config"
	"github.com/gg2-lobby/lobbyd/internal/constants"
	"github.com/gg2-lobby/lobbyd/internal/legacy"
	"github.com/gg2-lobby/lobbyd/internal/logging"
	"github.com/gg2-lobby/lobbyd/internal/model"
	"github.com/gg2-lobby/lobbyd/internal/newstyle"
	"github.com/gg2-lobby/lobbyd/internal/probe"
	"github.com/gg2-lobby/lobbyd/internal/registry"
	"github.com/gg2-lobby/lobbyd/internal/status"
	"github.com/gg2-lobby/lobbyd/internal/throttle"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the lobby registry server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults apply if unset)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Pretty = cfg.Log.Pretty
	logger := logging.New(logCfg)

	reg := registry.New(time.Duration(cfg.Timing.ServerExpirationSecs)*time.Second, logging.NewWithComponent(logCfg, "registry"))
	prober := probe.New(logging.NewWithComponent(logCfg, "prober"))
	bannedIPs := cfg.BannedIPv4Set()

	// A single throttle filter is shared across both protocols' register
	// handlers, matching protocols/common.py's module-level RECENT_ENDPOINTS.
	filter := throttle.New()

	commit := func(s *model.GameServer) {
		switch reg.Put(s) {
		case registry.Accepted:
			logger.Debug().Str("server", s.String()).Msg("server registered")
		case registry.RejectedEndpointOwned:
			logger.Info().Str("server", s.String()).Msg("registration rejected: endpoint owned by another server")
		}
	}

	legacyRegister := legacy.NewRegisterHandler(filter, bannedIPs, prober, commit, logging.NewWithComponent(logCfg, "legacy.register"))
	legacyQuery := legacy.NewQueryHandler(reg, logging.NewWithComponent(logCfg, "legacy.query"))
	newstyleDispatch := newstyle.NewDispatcher(filter, bannedIPs, prober, commit, reg.Remove, logging.NewWithComponent(logCfg, "newstyle.register"))
	newstyleList := newstyle.NewListHandler(reg, logging.NewWithComponent(logCfg, "newstyle.list"))
	statusHandler := status.New(reg, logging.NewWithComponent(logCfg, "status"))

	udpLegacy, err := listenUDP(cfg.Ports.Legacy)
	if err != nil {
		return fmt.Errorf("listen legacy udp: %w", err)
	}
	defer udpLegacy.Close()

	udpNewStyle, err := listenUDP(cfg.Ports.NewStyle)
	if err != nil {
		return fmt.Errorf("listen new-style udp: %w", err)
	}
	defer udpNewStyle.Close()

	tcpQuery, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Ports.LegacyQuery))
	if err != nil {
		return fmt.Errorf("listen legacy tcp: %w", err)
	}
	defer tcpQuery.Close()

	tcpList, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Ports.NewStyleList))
	if err != nil {
		return fmt.Errorf("listen new-style tcp: %w", err)
	}
	defer tcpList.Close()

	mux := http.NewServeMux()
	mux.Handle("/status", statusHandler)
	webServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Ports.Web),
		Handler: mux,
	}

	go serveUDP(udpLegacy, legacyRegister.HandleDatagram, logger)
	go serveUDP(udpNewStyle, newstyleDispatch.HandleDatagram, logger)
	go func() {
		if err := legacyQuery.Serve(tcpQuery); err != nil {
			logger.Warn().Err(err).Msg("legacy query listener stopped")
		}
	}()
	go func() {
		if err := newstyleList.Serve(tcpList); err != nil {
			logger.Warn().Err(err).Msg("new-style list listener stopped")
		}
	}()
	go func() {
		if err := webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("status server stopped")
		}
	}()

	logger.Info().
		Int("legacy_port", cfg.Ports.Legacy).
		Int("newstyle_port", cfg.Ports.NewStyle).
		Int("web_port", cfg.Ports.Web).
		Msg("lobbyd ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ConnectionTimeout)
	defer cancel()
	return webServer.Shutdown(shutdownCtx)
}

func listenUDP(port int) (*net.UDPConn, error) {
	return net.ListenUDP("udp", &net.UDPAddr{Port: port})
}

func serveUDP(conn *net.UDPConn, handle func(data []byte, src netip.AddrPort), logger zerolog.Logger) {
	buf := make([]byte, 65535)
	for {
		n, addr, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			logger.Debug().Err(err).Msg("udp listener stopped")
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		// Processed synchronously: within one source endpoint, datagrams
		// must be handled in arrival order, which a goroutine-per-packet
		// fan-out cannot guarantee.
		handle(data, addr)
	}
}
