// Package app wires configuration, logging, the Discord transport and the
// bot together and runs them until shutdown.
package app

import (
	"context"
	"errors"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"relaybot/internal/bot"
	"relaybot/internal/config"
	"relaybot/internal/event"
	"relaybot/internal/transport/discord"
	"relaybot/plugins/utility"
	logx "relaybot/pkg/logx"
)

const eventBuffer = 256

type App struct {
	cfgm    *config.Manager
	log     logx.Logger
	logs    *logx.Service
	adapter *discord.Adapter
	bot     *bot.Bot
	events  chan event.Event

	stopOnce sync.Once
}

// New loads the config at cfgPath and builds every component. ctx bounds the
// lifetime of the bot's background jobs.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath, logx.NewConsole("info").With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// The channel sink needs the adapter, which needs a logger: start without
	// a sender and attach it once the adapter exists.
	logSvc, log := logx.NewService(cfg.LogConfig(), nil)

	ad, err := discord.New(discord.Config{Token: cfg.Bot.Token, GuildID: cfg.Bot.GuildID}, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	logSvc.SetSender(ad)

	opts := botOptions(cfg)
	if cfg.Bot.PublishCommands {
		opts.Publisher = ad
	}
	b, err := bot.New(ctx, opts, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	util := utility.New(utility.Config{
		AnnounceChannel: cfg.Utility.AnnounceChannel,
		DigestTimes:     cfg.Utility.DigestTimes,
	}, utility.Deps{
		Logger:    log,
		Messenger: ad,
		Commands:  b.Registry(),
		Buttons:   b.Buttons(),
		Waiter:    b.Waiter(),
		Scheduler: b.Scheduler(),
	})
	if err := b.RegisterCommands(util); err != nil {
		_ = b.Close(context.Background())
		_ = logSvc.Close()
		return nil, err
	}

	return &App{
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		adapter: ad,
		bot:     b,
		events:  make(chan event.Event, eventBuffer),
	}, nil
}

func (a *App) Bot() *bot.Bot { return a.bot }

// Run connects to the gateway and handles events until ctx is done or a
// component fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if err := a.adapter.Start(gctx, a.events); err != nil {
		return err
	}
	a.log.Info("bot started",
		logx.String("config", a.cfgm.Path()),
		logx.Int("commands", len(a.bot.GetCommands())),
	)
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}

	g.Go(func() error {
		err := a.bot.Run(gctx, a.events)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error { return a.cfgm.Watch(gctx) })
	g.Go(func() error {
		a.followConfig(gctx)
		return nil
	})
	return g.Wait()
}

// followConfig applies reloaded configs to the bot and the log service.
// Token, prefix and task changes need a restart.
func (a *App) followConfig(ctx context.Context) {
	ch := a.cfgm.Subscribe(1)
	defer a.cfgm.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-ch:
			if !ok {
				return
			}
			a.bot.Apply(settings(cfg))
			a.logs.Apply(cfg.LogConfig())
			if cfg.Bot.Prefix != a.bot.Registry().Prefix() {
				a.log.Warn("prefix change needs a restart", logx.String("prefix", cfg.Bot.Prefix))
			}
		}
	}
}

// Stop shuts the bot down and disconnects. Safe to call more than once.
func (a *App) Stop(ctx context.Context, reason string) error {
	var err error
	a.stopOnce.Do(func() {
		a.log.Info("stopping", logx.String("reason", reason))
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

		a.bot.HandleEvent(ctx, &event.Shutdown{Reason: reason})
		err = errors.Join(
			a.adapter.Stop(ctx),
			a.bot.Close(ctx),
		)
		if err != nil {
			a.log.Warn("stopped with errors", logx.Err(err))
		} else {
			a.log.Info("stopped")
		}
		_ = a.logs.Close()
	})
	return err
}

func settings(cfg *config.Config) bot.Settings {
	loc, err := cfg.Location()
	if err != nil {
		loc = nil
	}
	return bot.Settings{
		Location:          loc,
		DeniedMessage:     cfg.Bot.DeniedMessage,
		NotOwnerMessage:   cfg.Buttons.NotOwnerMessage,
		ButtonTimeout:     cfg.ButtonTimeout(),
		CommandTimeout:    cfg.CommandTimeout(),
		AutocompleteLimit: cfg.Bot.AutocompleteLimit,
	}
}

func botOptions(cfg *config.Config) bot.Options {
	s := settings(cfg)
	return bot.Options{
		Prefix:            cfg.Bot.Prefix,
		Location:          s.Location,
		DeniedMessage:     s.DeniedMessage,
		NotOwnerMessage:   s.NotOwnerMessage,
		ButtonTimeout:     s.ButtonTimeout,
		CommandTimeout:    s.CommandTimeout,
		AutocompleteLimit: s.AutocompleteLimit,
		Workers:           cfg.Bot.Workers,
	}
}
