package workers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	go_redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
)

// Drawer runs draws for giveaways.
type Drawer interface {
	DrawWinners(ctx context.Context, giveawayID string) ([]dg.Winner, error)
	Redraw(ctx context.Context, giveawayID string) ([]dg.Winner, error)
}

// Publisher publishes giveaways on behalf of their admin.
type Publisher interface {
	Publish(ctx context.Context, id string, requester int64) (*dg.Giveaway, error)
	GetOwned(ctx context.Context, id string, requester int64) (*dg.Giveaway, error)
}

// Scheduler arms and cancels delayed publishes.
type Scheduler interface {
	Schedule(ctx context.Context, id string, at time.Time) error
	Cancel(ctx context.Context, id string) error
}

// StreamConfig names the stream and the consumer identity.
type StreamConfig struct {
	Stream   string
	Group    string
	Consumer string
}

// RedisStreamWorker consumes admin commands posted by the bot to a Redis
// stream. Every message carries "type", "giveaway_id" and "admin_id";
// "schedule" also carries "publish_at" as RFC 3339.
type RedisStreamWorker struct {
	rdb       go_redis.Cmdable
	cfg       StreamConfig
	draws     Drawer
	giveaways Publisher
	scheduler Scheduler
}

func NewRedisStreamWorker(rdb go_redis.Cmdable, cfg StreamConfig, draws Drawer, giveaways Publisher, sched Scheduler) *RedisStreamWorker {
	return &RedisStreamWorker{rdb: rdb, cfg: cfg, draws: draws, giveaways: giveaways, scheduler: sched}
}

// Start blocks reading the stream until ctx is done.
func (w *RedisStreamWorker) Start(ctx context.Context) {
	err := w.rdb.XGroupCreateMkStream(ctx, w.cfg.Stream, w.cfg.Group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		log.Error().Err(err).Str("stream", w.cfg.Stream).Msg("create consumer group")
	}

	log.Info().Str("stream", w.cfg.Stream).Str("group", w.cfg.Group).Msg("redis stream worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("redis stream worker stopped")
			return
		default:
		}

		entries, err := w.rdb.XReadGroup(ctx, &go_redis.XReadGroupArgs{
			Group:    w.cfg.Group,
			Consumer: w.cfg.Consumer,
			Streams:  []string{w.cfg.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if !errors.Is(err, go_redis.Nil) && ctx.Err() == nil {
				log.Warn().Err(err).Msg("read stream")
				time.Sleep(time.Second)
			}
			continue
		}

		for _, stream := range entries {
			for _, msg := range stream.Messages {
				if err := w.processMessage(ctx, msg.Values); err != nil {
					log.Warn().Err(err).Str("message_id", msg.ID).Interface("values", msg.Values).Msg("command failed")
				}
				// failed commands are not retried; the admin sees the outcome in the app
				if err := w.rdb.XAck(ctx, w.cfg.Stream, w.cfg.Group, msg.ID).Err(); err != nil {
					log.Warn().Err(err).Str("message_id", msg.ID).Msg("ack message")
				}
			}
		}
	}
}

func (w *RedisStreamWorker) processMessage(ctx context.Context, values map[string]interface{}) error {
	cmd, _ := values["type"].(string)
	id, _ := values["giveaway_id"].(string)
	if cmd == "" || id == "" {
		return fmt.Errorf("%w: type and giveaway_id are required", dg.ErrValidation)
	}
	adminStr, _ := values["admin_id"].(string)
	adminID, err := strconv.ParseInt(adminStr, 10, 64)
	if err != nil || adminID == 0 {
		return fmt.Errorf("%w: invalid admin_id %q", dg.ErrValidation, adminStr)
	}

	logger := log.With().Str("command", cmd).Str("giveaway_id", id).Int64("admin_id", adminID).Logger()

	if cmd == "publish" {
		if _, err := w.giveaways.Publish(ctx, id, adminID); err != nil {
			return err
		}
		logger.Info().Msg("command applied")
		return nil
	}

	if _, err := w.giveaways.GetOwned(ctx, id, adminID); err != nil {
		return err
	}
	switch cmd {
	case "draw":
		winners, err := w.draws.DrawWinners(ctx, id)
		if err != nil {
			return err
		}
		logger.Info().Int("winners", len(winners)).Msg("command applied")
		return nil
	case "redraw":
		winners, err := w.draws.Redraw(ctx, id)
		if err != nil {
			return err
		}
		logger.Info().Int("winners", len(winners)).Msg("command applied")
		return nil
	case "schedule":
		raw, _ := values["publish_at"].(string)
		at, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			return fmt.Errorf("%w: publish_at: %v", dg.ErrInvalidTime, perr)
		}
		err = w.scheduler.Schedule(ctx, id, at)
	case "cancel_schedule":
		err = w.scheduler.Cancel(ctx, id)
	default:
		return fmt.Errorf("%w: unknown command %q", dg.ErrValidation, cmd)
	}
	if err != nil {
		return err
	}
	logger.Info().Msg("command applied")
	return nil
}
