package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/nhle/octobar/internal/credential"
	"github.com/nhle/octobar/internal/logging"
	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/internal/notify"
	"github.com/nhle/octobar/internal/source/github"
	"github.com/nhle/octobar/internal/store"
	appsync "github.com/nhle/octobar/internal/sync"
)

const usage = `usage: octobar [-config path] [command]

commands:
  tui        interactive inbox (default)
  init       write the effective configuration to the config path
  daemon     poll in the background and log alerts
  login      store an access token (read from stdin when piped)
  logout     forget the token and the local cache
  list       print cached notifications
  read <id>  mark one thread as read
  read-all   mark every thread as read
  poll       run one reconciliation pass
`

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", model.DefaultConfigPath(), "path to config yaml")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cmd := "tui"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath, cmd, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "octobar:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath, cmd string, args []string) error {
	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	if cmd == "init" {
		return runInit(cfgPath, cfg, os.Stdout)
	}

	out := logging.Console
	if cmd == "tui" {
		out = logging.File
	}
	log, closer, err := logging.New(cfg.Log, out)
	if err != nil {
		return err
	}
	defer closer.Close()

	rt, err := newRuntime(cfg, log, cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	switch cmd {
	case "tui":
		return runTUI(ctx, rt)
	case "daemon":
		return runDaemon(ctx, rt, cfg.Metrics.Addr)
	case "login":
		return runLogin(ctx, rt, os.Stdin)
	case "logout":
		return rt.engine.SignOut(ctx)
	case "list":
		return runList(ctx, rt, os.Stdout)
	case "read":
		if len(args) < 2 {
			return errors.New("read needs a thread id")
		}
		return rt.engine.MarkAsRead(ctx, args[1])
	case "read-all":
		return rt.engine.MarkAllAsRead(ctx)
	case "poll":
		return runPoll(ctx, rt, os.Stdout)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// runtime holds the wired collaborators for one invocation.
type runtime struct {
	log      zerolog.Logger
	store    *store.SQLiteStore
	engine   *appsync.Engine
	feed     *notify.FeedSink
	registry *prometheus.Registry
}

func newRuntime(cfg *model.AppConfig, log zerolog.Logger, cmd string) (*runtime, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	var creds credential.TokenStore
	switch cfg.Keyring.Backend {
	case "file":
		creds = credential.NewFileStore(cfg.Keyring.Service, filepath.Join(model.ConfigDir(), "credentials"))
	default:
		creds = credential.NewKeyringStore(cfg.Keyring.Service, model.ConfigDir())
	}

	rt := &runtime{log: log, store: st, registry: prometheus.NewRegistry()}

	sinks := notify.Multi{notify.NewLogSink(log, true)}
	if cmd == "tui" {
		rt.feed = notify.NewFeedSink(16)
		sinks = append(sinks, rt.feed)
	}

	rt.engine = appsync.New(appsync.Deps{
		Remote:      github.NewAdapter(cfg.API, log),
		Store:       st,
		Credentials: creds,
		Sink:        sinks,
		Log:         log,
	},
		appsync.WithMetrics(appsync.NewMetrics(rt.registry)),
		appsync.WithRetention(cfg.Store.Retention()),
		appsync.WithFetchTimeout(cfg.API.Timeout()),
	)
	return rt, nil
}

func (rt *runtime) close() {
	rt.engine.Stop()
	if err := rt.store.Close(); err != nil {
		rt.log.Warn().Err(err).Msg("closing store")
	}
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
