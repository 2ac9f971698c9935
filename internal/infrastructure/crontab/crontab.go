package crontab

import (
	"context"
	"fmt"
	"time"

	"github.com/mileusna/crontab"

	"studyhall/chat-api/internal/config"
	"studyhall/chat-api/internal/infrastructure/logger"
	"studyhall/chat-api/internal/sync/chatsession"
	"studyhall/chat-api/internal/sync/querycache"
	"studyhall/chat-api/internal/utils/platformerrors"
)

const (
	DefaultSweepInterval = 10 // in minutes
)

type Crontab struct {
	ctab     *crontab.Crontab
	cache    *querycache.Cache
	sessions *chatsession.Manager
}

func NewCrontab(cache *querycache.Cache, sessions *chatsession.Manager) *Crontab {
	return &Crontab{
		ctab:     crontab.New(),
		cache:    cache,
		sessions: sessions,
	}
}

func (c *Crontab) Run(ctx context.Context) error {
	log := logger.GetLogger()
	cfg := config.GetGlobal()

	sweepInterval := DefaultSweepInterval
	idleTimeout := time.Hour
	if cfg != nil {
		if cfg.CacheSweepMinutes > 0 {
			sweepInterval = cfg.CacheSweepMinutes
		}
		if cfg.SessionIdleTimeout > 0 {
			idleTimeout = cfg.SessionIdleTimeout
		}
	}

	// execute once on server start
	c.sweep()

	cronExpr := fmt.Sprintf("*/%d * * * *", sweepInterval)
	if err := c.ctab.AddJob(cronExpr, c.sweep); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to add cache sweep job")
	}
	log.Info().Msgf("Cache sweep scheduled: every %d minute(s)", sweepInterval)

	if err := c.ctab.AddJob(cronExpr, func() {
		if reaped := c.sessions.Reap(idleTimeout); reaped > 0 {
			log.Info().Msgf("Reaped %d idle chat session(s)", reaped)
		}
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to add session reap job")
	}

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) sweep() {
	if swept := c.cache.Sweep(); swept > 0 {
		log := logger.GetLogger()
		log.Debug().Msgf("Swept %d expired cache entries", swept)
	}
}
