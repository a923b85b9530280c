package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sockmux/sockmux/poller"
	"github.com/sockmux/sockmux/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sockmux daemon",
	Long: `Start the sockmux daemon with an echo handler: every data message is
sent back on the channel it arrived on. This makes a deployed node directly
usable for integration and load testing; coordination daemons embed the
server package with their own handler instead.

Every flag can also be set through the environment as SOCKMUX_<FLAG>
(e.g. SOCKMUX_LISTEN=0.0.0.0:5431). Send SIGUSR1 for a metrics dump.`,
	PreRunE: bindConfig,
	RunE:    runServe,
}

func init() {
	f := serveCmd.PersistentFlags()
	f.String("listen", "0.0.0.0:5431", "numeric host:port to bind")
	f.Int("buffer-size", 64<<10, "per-direction frame buffer capacity in bytes; also the hard per-message ceiling")
	f.Int("max-channels", 1024, "channel id budget per stream")
	f.Int("max-streams", 0, "maximum concurrent connections (0 = unbounded)")
	f.Int("backlog", 128, "listen queue length")
	f.Int("batch-size", 128, "readiness events handled per loop iteration")
	f.String("backend", "epoll", "readiness backend (epoll, select)")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.String("log-format", "text", "log format (text, json)")
}

func bindConfig(cmd *cobra.Command, _ []string) error {
	viper.SetEnvPrefix("SOCKMUX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	return viper.BindPFlags(cmd.Flags())
}

func runServe(_ *cobra.Command, _ []string) error {
	logHandler, err := newLogHandler(viper.GetString("log-level"), viper.GetString("log-format"))
	if err != nil {
		return err
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	sink := metrics.NewInmemSink(10*time.Second, time.Minute)
	metrics.DefaultInmemSignal(sink)
	if _, err := metrics.NewGlobal(metrics.DefaultConfig("sockmuxd"), sink); err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	srv, err := server.New[struct{}](echoHandler{},
		server.WithListenAddr(viper.GetString("listen")),
		server.WithBufferSize(viper.GetInt("buffer-size")),
		server.WithMaxChannels(viper.GetInt("max-channels")),
		server.WithMaxStreams(viper.GetInt("max-streams")),
		server.WithBacklog(viper.GetInt("backlog")),
		server.WithBatchSize(viper.GetInt("batch-size")),
		server.WithBackend(poller.Backend(viper.GetString("backend"))),
		server.WithLogHandler(logHandler),
	)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig.String())
		srv.Close()
	}()

	return srv.Run()
}

func newLogHandler(level, format string) (slog.Handler, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "json":
		return slog.NewJSONHandler(os.Stderr, opts), nil
	case "text":
		return slog.NewTextHandler(os.Stderr, opts), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
}

// echoHandler reflects every data message back on its own channel.
type echoHandler struct{}

func (echoHandler) OnConnect(c *server.Client[struct{}]) {
	slog.Debug("channel opened", "channel", c.Channel())
}

func (echoHandler) OnMessage(c *server.Client[struct{}], payload []byte) {
	if err := c.Send(payload); err != nil {
		slog.Warn("echo failed", "channel", c.Channel(), "error", err)
	}
}

func (echoHandler) OnDisconnect(c *server.Client[struct{}]) {
	c.ClearContext()
	slog.Debug("channel closed", "channel", c.Channel())
}
