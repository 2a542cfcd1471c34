package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/open-builders/giveaway-raffle/internal/cache/redis"
	"github.com/open-builders/giveaway-raffle/internal/common/logger"
	"github.com/open-builders/giveaway-raffle/internal/config"
	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
	du "github.com/open-builders/giveaway-raffle/internal/domain/user"
	apphttp "github.com/open-builders/giveaway-raffle/internal/http"
	"github.com/open-builders/giveaway-raffle/internal/platform/db"
	"github.com/open-builders/giveaway-raffle/internal/platform/lock"
	redisplatform "github.com/open-builders/giveaway-raffle/internal/platform/redis"
	"github.com/open-builders/giveaway-raffle/internal/repository/postgres"
	"github.com/open-builders/giveaway-raffle/internal/repository/sqlite"
	"github.com/open-builders/giveaway-raffle/internal/service/challenge"
	"github.com/open-builders/giveaway-raffle/internal/service/draw"
	gsvc "github.com/open-builders/giveaway-raffle/internal/service/giveaway"
	"github.com/open-builders/giveaway-raffle/internal/service/notifications"
	"github.com/open-builders/giveaway-raffle/internal/service/participation"
	"github.com/open-builders/giveaway-raffle/internal/service/scheduler"
	"github.com/open-builders/giveaway-raffle/internal/service/telegram"
	usersvc "github.com/open-builders/giveaway-raffle/internal/service/user"
	"github.com/open-builders/giveaway-raffle/internal/workers"
)

type stores struct {
	giveaways    dg.Repository
	participants dg.ParticipantRepository
	winners      dg.WinnerRepository
	users        du.Repository
	close        func()
}

func openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	if cfg.UsePostgres() {
		pg, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return stores{}, err
		}
		if cfg.DBAutoMigrate {
			if err := db.Migrate(ctx, pg); err != nil {
				_ = pg.Close()
				return stores{}, err
			}
		}
		log.Info().Msg("using postgres store")
		return stores{
			giveaways:    postgres.NewGiveawayRepository(pg),
			participants: postgres.NewParticipantRepository(pg),
			winners:      postgres.NewWinnerRepository(pg),
			users:        postgres.NewUserRepository(pg),
			close:        func() { _ = pg.Close() },
		}, nil
	}

	gdb, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return stores{}, err
	}
	log.Info().Str("path", cfg.SQLitePath).Msg("using sqlite store")
	return stores{
		giveaways:    sqlite.NewGiveawayRepository(gdb),
		participants: sqlite.NewParticipantRepository(gdb),
		winners:      sqlite.NewWinnerRepository(gdb),
		users:        sqlite.NewUserRepository(gdb),
		close: func() {
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Init("giveaway-raffle", true)
		log.Fatal().Err(err).Msg("config load")
	}
	logger.Init("giveaway-raffle", cfg.Debug)

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer st.close()

	var (
		rdb    *redisplatform.Client
		locker lock.Locker = lock.NewLocal()
	)
	if cfg.RedisAddr != "" {
		rdb, err = redisplatform.Open(ctx, redisplatform.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			log.Fatal().Err(err).Msg("redis open")
		}
		defer rdb.Close()
		// the local lock keeps same-process callers from polling redis
		locker = lock.Chain{lock.NewLocal(), lock.NewRedis(rdb.Client, cfg.LockTTL)}
	}

	var userCache usersvc.Cache
	if rdb != nil {
		userCache = redis.NewUserCache(rdb.Client, cfg.UserCacheTTL)
	}
	users := usersvc.NewService(st.users, userCache)

	admins, err := cfg.AdminIDSet()
	if err != nil {
		log.Fatal().Err(err).Msg("admin ids")
	}

	draws := draw.NewService(st.giveaways, st.participants, st.winners, locker)
	sched := scheduler.New(st.giveaways, locker).WithReconcile(cfg.SchedulerReconcileSpec)
	giveaways := gsvc.NewService(st.giveaways, st.participants, st.winners, locker).
		WithScheduler(sched).
		WithSuperAdmins(admins)
	challenges := challenge.NewService(cfg.ChallengeTTL)
	joins := participation.NewService(st.giveaways, st.participants).
		WithChallenges(challenges).
		WithUsers(users)

	if cfg.TelegramBotToken != "" {
		bot, err := telegram.NewClient(cfg.TelegramBotToken)
		if err != nil {
			log.Fatal().Err(err).Msg("telegram client")
		}
		notifier, err := notifications.NewService(bot, cfg.DefaultLocale)
		if err != nil {
			log.Fatal().Err(err).Msg("notifications")
		}
		notifier.WithUsers(users)
		draws.WithNotifier(notifier, cfg.NotifyTimeout)
		sched.WithNotifier(notifier)
		giveaways.WithNotifier(notifier)
		joins.WithMembership(bot)
	} else {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set; notifications and channel checks are disabled")
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("scheduler start")
	}
	challenges.Start(ctx)

	deps := apphttp.Deps{
		Giveaways:     giveaways,
		Draws:         draws,
		Scheduler:     sched,
		Participation: joins,
		Challenges:    challenges,
		Users:         users,
	}
	if rdb != nil {
		deps.Redis = rdb.Client
		worker := workers.NewRedisStreamWorker(rdb.Client, workers.StreamConfig{
			Stream:   cfg.EventsStream,
			Group:    cfg.EventsGroup,
			Consumer: cfg.EventsConsumer,
		}, draws, giveaways, sched)
		go worker.Start(ctx)
	}

	app := apphttp.NewFiberApp(deps, cfg)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Error().Err(err).Msg("listen")
			stop()
		}
	}()

	<-ctx.Done()
	stop()
	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	sched.Stop()
	challenges.Stop()
	draws.Wait()
	log.Info().Msg("server stopped")
}
