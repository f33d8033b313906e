// Package bot implements the Telegram command layer over the pot engine.
//
// Architecture overview:
//   - tgbot.go    — TgBot struct, lifecycle (Start/Stop), Core interface
//   - commands.go — User commands: /start, /buyticket, /wallet, /pot, /refer, /setupi, /help
//   - admin.go    — Admin commands: /openpot, /closepot, /reveal, /payouts, /paid, /failed, /stats
//   - notify.go   — core.Notifier implementation: channel announcements and winner DMs
//   - helpers.go  — Shared utilities: Sanitize, plainResponse, reportError
//
// The bot is deliberately thin: every command resolves to one engine
// call and formats its outcome. Contention outcomes (ticket already
// sold, pot closed) come back as ordinary errors and turn into
// re-prompts, never stack traces.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"

	"luckydrop/entity"
	"luckydrop/impl/core"
	"luckydrop/lib/sl"
)

// BotConfig holds Telegram-specific configuration. Location is the
// display timezone for window times; storage stays in UTC.
type BotConfig struct {
	AdminId   int64
	ChannelId int64
	Location  *time.Location
}

// Core defines the engine operations the bot depends on.
// Implemented by impl/core.
type Core interface {
	RegisterUser(ctx context.Context, telegramId int64, username, refCode string) (*entity.User, bool, error)
	User(ctx context.Context, telegramId int64) (*entity.User, error)
	SetUpi(ctx context.Context, telegramId int64, upiId string) error
	BuyTicket(ctx context.Context, telegramId int64) (*core.Purchase, error)
	CurrentPot(ctx context.Context) (*entity.Pot, error)
	CreateDailyPot(ctx context.Context) (*entity.Pot, error)
	CreateTodayPot(ctx context.Context, maxUsers int, ticketPrice float64) (*entity.Pot, error)
	ClosePot(ctx context.Context, potId string) error
	RevealPot(ctx context.Context, potId string) error
	PendingPayouts(ctx context.Context) ([]*entity.PayoutRecord, error)
	SettlePayout(ctx context.Context, id string, status entity.PayoutStatus) (*entity.PayoutRecord, error)
	Stats(ctx context.Context) (*core.Stats, error)
	RevealDelay() time.Duration
}

// TgBot is the Telegram bot instance.
type TgBot struct {
	log     *slog.Logger
	api     *tgbotapi.Bot
	core    Core
	updater *ext.Updater
	config  BotConfig
}

func NewTgBot(apiKey string, engine Core, log *slog.Logger, cfg BotConfig) (*TgBot, error) {
	tgBot := &TgBot{
		log:    log.With(sl.Module("tgbot")),
		core:   engine,
		config: cfg,
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

func (t *TgBot) Start() error {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Error("handling update:", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	t.updater = ext.NewUpdater(dispatcher, nil)

	// User commands
	dispatcher.AddHandler(handlers.NewCommand("start", t.start))
	dispatcher.AddHandler(handlers.NewCommand("buyticket", t.buyTicket))
	dispatcher.AddHandler(handlers.NewCommand("wallet", t.wallet))
	dispatcher.AddHandler(handlers.NewCommand("pot", t.pot))
	dispatcher.AddHandler(handlers.NewCommand("refer", t.refer))
	dispatcher.AddHandler(handlers.NewCommand("setupi", t.setUpi))
	dispatcher.AddHandler(handlers.NewCommand("help", t.help))

	// Admin commands
	dispatcher.AddHandler(handlers.NewCommand("openpot", t.openPot))
	dispatcher.AddHandler(handlers.NewCommand("closepot", t.closePot))
	dispatcher.AddHandler(handlers.NewCommand("reveal", t.reveal))
	dispatcher.AddHandler(handlers.NewCommand("payouts", t.payouts))
	dispatcher.AddHandler(handlers.NewCommand("paid", t.paid))
	dispatcher.AddHandler(handlers.NewCommand("failed", t.failed))
	dispatcher.AddHandler(handlers.NewCommand("stats", t.stats))

	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}

	t.updater.Idle()
	return nil
}

func (t *TgBot) Stop() {
	if t.updater != nil {
		t.log.Info("stopping telegram bot")
		t.updater.Stop()
	}
}
