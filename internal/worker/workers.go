package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/service"
)

// StartNotificationWorker registers notification handlers and delivers queued
// notifications on g until ctx is cancelled.
func StartNotificationWorker(ctx context.Context, g *Group, notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	g.Go(ctx, "notification-delivery", notificationService.Run)
}

// Sweeper is a store that evicts its expired entries in a loop until ctx ends.
type Sweeper interface {
	Run(ctx context.Context, interval time.Duration)
}

// Group tracks background loops so shutdown can wait for them.
type Group struct {
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewGroup builds an empty worker group.
func NewGroup(logger *zap.Logger) *Group {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Group{logger: logger}
}

// Go runs fn in a tracked goroutine. fn must return once ctx is cancelled.
func (g *Group) Go(ctx context.Context, name string, fn func(context.Context)) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.logger.Info("worker started", zap.String("worker", name))
		fn(ctx)
		g.logger.Info("worker stopped", zap.String("worker", name))
	}()
}

// StartSweeper runs s until ctx is cancelled.
func (g *Group) StartSweeper(ctx context.Context, name string, s Sweeper, interval time.Duration) {
	if s == nil {
		return
	}
	g.Go(ctx, name, func(ctx context.Context) { s.Run(ctx, interval) })
}

// Wait blocks until every started worker returns.
func (g *Group) Wait() {
	g.wg.Wait()
}
