package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthChecker is re-evaluated by the prober.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// ProbeConfig holds configuration for the store prober.
type ProbeConfig struct {
	// Interval is how often the store is checked.
	// Default: 30 seconds
	Interval time.Duration

	// Timeout bounds a single check.
	// Default: 10 seconds
	Timeout time.Duration
}

// StoreProber checks the backing store in the background so readiness and
// request gating see a fresh value, and logs when connectivity changes.
type StoreProber struct {
	checker   HealthChecker
	config    ProbeConfig
	log       logrus.FieldLogger
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	healthy   *bool
	mu        sync.Mutex
}

// NewStoreProber creates a new prober.
func NewStoreProber(checker HealthChecker, config ProbeConfig, logger logrus.FieldLogger) *StoreProber {
	if config.Interval == 0 {
		config.Interval = 30 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &StoreProber{
		checker: checker,
		config:  config,
		log:     logger.WithField("component", "store-prober"),
		stopCh:  make(chan struct{}),
	}
}

// Start runs a first check immediately, then one per interval.
func (p *StoreProber) Start() {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = true
	p.ticker = time.NewTicker(p.config.Interval)
	p.mu.Unlock()

	p.log.WithField("interval", p.config.Interval).Info("Store prober started")

	p.RunNow()
	go p.run()
}

func (p *StoreProber) run() {
	for {
		select {
		case <-p.ticker.C:
			p.RunNow()
		case <-p.stopCh:
			p.log.Info("Store prober stopped")
			return
		}
	}
}

// RunNow performs one check and returns its result.
func (p *StoreProber) RunNow() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()

	err := p.checker.Check(ctx)
	healthy := err == nil

	p.mu.Lock()
	changed := p.healthy == nil || *p.healthy != healthy
	p.healthy = &healthy
	p.mu.Unlock()

	if changed {
		if healthy {
			p.log.Info("Backing store reachable")
		} else {
			p.log.WithError(err).Error("Backing store unreachable; requests will fail until it recovers")
		}
	}
	return err
}

// Stop stops the prober.
func (p *StoreProber) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.ticker != nil {
			p.ticker.Stop()
		}
		close(p.stopCh)
		p.isRunning = false
	})
}
