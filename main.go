// Command terminal-core runs the trading terminal core against the simulated
// engine: connect, login, confirm settlement, subscribe, then stream events
// until interrupted. A desktop shell attaches over the push endpoint.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"terminal-core/internal/events"
	"terminal-core/internal/gateway"
	"terminal-core/internal/push"
	"terminal-core/pkg/config"
	"terminal-core/pkg/ctp"
	"terminal-core/pkg/i18n"
	"terminal-core/pkg/log"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Setup("info")
		log.Error("failed to load config", zap.Error(err))
		os.Exit(1)
	}
	log.Setup(cfg.LogLevel)
	defer log.Sync()
	i18n.SetLanguage(i18n.Language(cfg.Language))

	sim := ctp.NewSimulator()
	defer sim.Close()

	term, err := gateway.New(cfg, sim.Md, sim.Td)
	if err != nil {
		log.Error("failed to build gateway", zap.Error(err))
		os.Exit(1)
	}
	defer term.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := term.ConnectWithRetry(ctx, func(attempt int, wait time.Duration) {
		log.Warn("reconnecting", zap.Int("attempt", attempt), zap.Duration("wait", wait))
	}); err != nil {
		log.Error("connect failed", zap.Error(err))
		os.Exit(1)
	}
	if err := term.Login(ctx); err != nil {
		log.Error("login failed", zap.Error(err))
		os.Exit(1)
	}

	qctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	doc, err := term.QuerySettlement(qctx, "")
	cancel()
	switch {
	case err != nil:
		log.Warn("settlement query failed", zap.Error(err))
	case doc.TradingDay != "":
		qctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
		if err := term.ConfirmSettlement(qctx); err != nil {
			log.Warn("settlement confirm failed", zap.Error(err))
		}
		cancel()
	}

	if len(cfg.Instruments) > 0 {
		if err := term.Subscribe(cfg.Instruments...); err != nil {
			log.Error("subscribe failed", zap.Error(err))
		}
	}

	var pushSrv *push.Server
	if cfg.PushAddr != "" {
		pushSrv = push.NewServer(term.Bus(), cfg.PushAddr)
		pushSrv.Start()
	}

	ch, unsub := term.Events(256)
	defer unsub()
	for {
		select {
		case e := <-ch:
			logEvent(e)
		case <-ctx.Done():
			log.Info("shutting down")
			if pushSrv != nil {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				pushSrv.Shutdown(sctx)
				cancel()
			}
			return
		}
	}
}

func logEvent(e events.Event) {
	switch e.Type {
	case events.TypeMarketData:
		log.Debug("event", zap.String("type", string(e.Type)), zap.Any("payload", e.Payload))
	case events.TypeError, events.TypeLoginFailed, events.TypeSubscriptionFailed:
		log.Error("event", zap.String("type", string(e.Type)), zap.Any("payload", e.Payload))
	default:
		log.Info("event", zap.String("type", string(e.Type)), zap.Any("payload", e.Payload))
	}
}
