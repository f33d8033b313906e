package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"luckydrop/bot"
	"luckydrop/impl/core"
	"luckydrop/internal/config"
	"luckydrop/internal/database"
	"luckydrop/internal/database/memstore"
	"luckydrop/internal/http-server/api"
	"luckydrop/internal/scheduler"
	"luckydrop/lib/clock"
	"luckydrop/lib/logger"
	"luckydrop/lib/sl"
)

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "luckydrop.log", "path to log file")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	log := logger.SetupLogger(conf.Env, *logPath)
	log.Info("starting luckydrop", slog.String("config", *configPath), slog.String("env", conf.Env))

	var store core.Store
	if conf.Mongo.Enabled {
		mongo := database.NewMongoClient(conf)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := mongo.EnsureIndexes(ctx); err != nil {
			log.Error("ensure indexes", sl.Err(err))
		}
		cancel()
		store = mongo
		log.Info("using mongo store", slog.String("database", conf.Mongo.Database))
	} else {
		store = memstore.New()
		log.Warn("mongo disabled; using in-memory store, state will not survive restart")
	}

	clk := clock.System()
	engine := core.New(store, conf.Pot, clk, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tgBot *bot.TgBot
	if conf.Telegram.ApiKey != "" {
		b, err := bot.NewTgBot(conf.Telegram.ApiKey, engine, log, bot.BotConfig{
			AdminId:   conf.Telegram.AdminId,
			ChannelId: conf.Telegram.ChannelId,
			Location:  conf.Pot.Location(),
		})
		if err != nil {
			log.Error("init telegram bot", sl.Err(err))
		} else {
			tgBot = b
			engine.SetNotifier(tgBot)
			// mirror warnings and errors to the admin chat
			log = slog.New(logger.NewTelegramHandler(log.Handler(), tgBot, slog.LevelWarn))
			go func() {
				if err := tgBot.Start(); err != nil {
					log.Error("telegram bot stopped", sl.Err(err))
					stop()
				}
			}()
		}
	} else {
		log.Warn("telegram api key not set; bot disabled")
	}

	sched := scheduler.New(engine, clk, log)
	go func() {
		if err := sched.Run(ctx); err != nil {
			log.Error("scheduler stopped", sl.Err(err))
		}
	}()

	go func() {
		if err := api.New(conf, log, engine); err != nil {
			log.Error("api server stopped", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	if tgBot != nil {
		tgBot.Stop()
	}
}
