package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-util/errors"
	"golang.org/x/sync/errgroup"

	"github.com/quartzmc/quartz/auth"
	"github.com/quartzmc/quartz/conf"
	"github.com/quartzmc/quartz/game"
	"github.com/quartzmc/quartz/http/health"
	"github.com/quartzmc/quartz/internal"
	"github.com/quartzmc/quartz/protocol"
)

func main() {
	cfg := conf.Default()

	flag.StringVar(&cfg.Server.Bind, "bind", cfg.Server.Bind, "game listen address")
	flag.StringVar(&cfg.Status.MOTD, "motd", cfg.Status.MOTD, "message of the day")
	flag.IntVar(&cfg.Status.MaxPlayers, "max-players", cfg.Status.MaxPlayers, "player cap reported in status")
	flag.BoolVar(&cfg.Login.OnlineMode, "online", cfg.Login.OnlineMode, "verify logins against the session server")
	compression := flag.Int("compression", int(cfg.Login.CompressionThreshold), "compression threshold, negative disables")
	flag.StringVar(&cfg.Metrics.Bind, "metrics-bind", cfg.Metrics.Bind, "ops HTTP listen address")
	flag.Parse()

	cfg.Login.CompressionThreshold = int32(*compression)

	log.SetLogger(log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
	))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	keyPair, err := auth.NewKeyPair()
	if err != nil {
		log.Fatalf("generate login keypair failed: %+v", err)
	}

	bridge := internal.NewBridge(cfg.Conn.BridgeSize)
	loop := game.NewLoop(cfg.Game, bridge, cancel)

	svr, err := internal.NewServer(cfg, bridge,
		internal.WithKeyPair(keyPair),
		internal.WithOnlineCounter(loop.Online),
	)
	if err != nil {
		log.Fatalf("build server failed: %+v", err)
	}

	ops := health.NewServer(cfg.Metrics.Bind, func() protocol.StatusInfo {
		return protocol.StatusInfo{
			Version: protocol.StatusVersion{
				Name:     cfg.Status.VersionName,
				Protocol: cfg.Status.ProtocolVersion,
			},
			Players: protocol.StatusPlayers{
				Max:    cfg.Status.MaxPlayers,
				Online: loop.Online(),
				Sample: []protocol.StatusSample{},
			},
			Description: protocol.StatusText{Text: cfg.Status.MOTD},
		}
	})

	if err := svr.Start(ctx); err != nil {
		log.Fatalf("start server failed: %+v", err)
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return ops.Start(egCtx)
	})

	eg.Go(func() error {
		if err := loop.Run(egCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		return nil
	})

	go readConsole(ctx, loop)

	log.Infof("server started. bind=%s online-mode=%v", cfg.Server.Bind, cfg.Login.OnlineMode)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case <-c:
	case <-egCtx.Done():
	}

	cancel()

	if err := svr.Stop(ctx); err != nil {
		log.Errorf("stop server failed: %+v", err)
	}

	if err := ops.Stop(ctx); err != nil {
		log.Errorf("stop ops server failed: %+v", err)
	}

	if err := eg.Wait(); err != nil {
		log.Errorf("shutdown with error: %+v", err)
	}

	log.Infof("server stopped")
}

// readConsole feeds operator commands to the tick loop until stdin closes.
func readConsole(ctx context.Context, loop *game.Loop) {
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		loop.Submit(scanner.Text())
	}
}
