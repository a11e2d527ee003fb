package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
)

// RunStatusEvent is the payload published on every run status transition.
type RunStatusEvent struct {
	RunID          string    `json:"run_id"`
	Status         string    `json:"status"`
	FailReason     string    `json:"fail_reason,omitempty"`
	RuleSetVersion string    `json:"rule_set_version"`
	At             time.Time `json:"at"`
}

// RunNotifier fans run status transitions out to interested consumers.
// Publishing is best-effort: a dead broker never fails a run.
type RunNotifier interface {
	PublishStatus(ctx context.Context, run *types.CalculationRun)
	Close() error
}

type redisRunNotifier struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisRunNotifier connects to REDIS_ADDR and publishes status events on
// REDIS_CHANNEL (default "run_events").
func NewRedisRunNotifier(baseLog *logger.Logger) (RunNotifier, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "run_events"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisRunNotifier{
		log:     baseLog.With("service", "RunNotifier"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (n *redisRunNotifier) PublishStatus(ctx context.Context, run *types.CalculationRun) {
	if n == nil || n.rdb == nil || run == nil {
		return
	}
	evt := RunStatusEvent{
		RunID:          run.ID.String(),
		Status:         string(run.Status),
		FailReason:     string(run.FailReason),
		RuleSetVersion: run.RuleSetVersion,
		At:             time.Now().UTC(),
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := n.rdb.Publish(ctx, n.channel, raw).Err(); err != nil {
		n.log.Warn("Run status publish failed", "run_id", run.ID, "error", err)
	}
}

func (n *redisRunNotifier) Close() error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Close()
}

type nopRunNotifier struct{}

// NewNopRunNotifier is used when no broker is configured.
func NewNopRunNotifier() RunNotifier { return nopRunNotifier{} }

func (nopRunNotifier) PublishStatus(context.Context, *types.CalculationRun) {}
func (nopRunNotifier) Close() error                                         { return nil }
