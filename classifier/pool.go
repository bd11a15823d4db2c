package classifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Tutortoise/voice-screening-service/models"
	"go.uber.org/zap"
)

const (
	DefaultPoolSize          = 4
	DefaultAcquireTimeout    = 5 * time.Second
	DefaultHealthCheckPeriod = 60 * time.Second
	maxRecordedErrors        = 10
)

// Session runs single inferences. Implementations need not be safe for
// concurrent use.
type Session interface {
	Run(v models.FeatureVector) (Prediction, error)
	Destroy()
}

// SessionFactory creates a fresh Session.
type SessionFactory func() (Session, error)

type PoolConfig struct {
	Size              int
	AcquireTimeout    time.Duration
	HealthCheckPeriod time.Duration
	// Probabilities reports whether sessions fill Prediction.Probabilities.
	Probabilities bool
}

// SessionPool bounds concurrent inference to a fixed set of sessions. Sessions
// that fail are discarded and replaced by the health check. It implements
// Classifier and ProbabilityEstimator.
type SessionPool struct {
	sessions      chan Session
	size          int
	factory       SessionFactory
	timeout       time.Duration
	probabilities bool
	logger        *zap.Logger

	mu         sync.Mutex
	closed     bool
	live       int
	done       chan struct{}
	lastErrors []error

	metrics *PoolMetrics
}

type PoolMetrics struct {
	mu              sync.RWMutex
	inUse           int
	totalAcquired   int64
	totalReleased   int64
	acquireFailures int64
	discarded       int64
	waitTime        time.Duration
}

// PoolStats is a point-in-time copy of the pool counters.
type PoolStats struct {
	Size            int           `json:"size"`
	Live            int           `json:"live"`
	Idle            int           `json:"idle"`
	InUse           int           `json:"inUse"`
	TotalAcquired   int64         `json:"totalAcquired"`
	TotalReleased   int64         `json:"totalReleased"`
	AcquireFailures int64         `json:"acquireFailures"`
	Discarded       int64         `json:"discarded"`
	WaitTime        time.Duration `json:"waitTimeNs"`
	LastErrors      []string      `json:"lastErrors,omitempty"`
}

func NewSessionPool(factory SessionFactory, cfg PoolConfig, logger *zap.Logger) (*SessionPool, error) {
	if cfg.Size <= 0 {
		cfg.Size = DefaultPoolSize
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.HealthCheckPeriod <= 0 {
		cfg.HealthCheckPeriod = DefaultHealthCheckPeriod
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool := &SessionPool{
		sessions:      make(chan Session, cfg.Size),
		size:          cfg.Size,
		factory:       factory,
		timeout:       cfg.AcquireTimeout,
		probabilities: cfg.Probabilities,
		logger:        logger,
		done:          make(chan struct{}),
		metrics:       &PoolMetrics{},
	}

	for i := 0; i < cfg.Size; i++ {
		session, err := factory()
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("failed to initialize session %d: %w", i, err)
		}
		pool.live++
		pool.sessions <- session
	}

	go pool.healthCheck(cfg.HealthCheckPeriod)

	logger.Info("Session pool ready",
		zap.Int("size", cfg.Size),
		zap.Duration("acquireTimeout", cfg.AcquireTimeout),
		zap.Bool("probabilities", cfg.Probabilities))
	return pool, nil
}

// Acquire waits for an idle session, the acquire timeout or ctx, whichever
// comes first.
func (p *SessionPool) Acquire(ctx context.Context) (Session, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	start := time.Now()
	defer func() {
		p.metrics.mu.Lock()
		p.metrics.waitTime += time.Since(start)
		p.metrics.mu.Unlock()
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case session, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		p.metrics.mu.Lock()
		p.metrics.inUse++
		p.metrics.totalAcquired++
		p.metrics.mu.Unlock()
		return session, nil
	case <-timer.C:
		p.metrics.mu.Lock()
		p.metrics.acquireFailures++
		p.metrics.mu.Unlock()
		return nil, ErrAcquireTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a healthy session to the pool.
func (p *SessionPool) Release(session Session) {
	p.metrics.mu.Lock()
	p.metrics.inUse--
	p.metrics.totalReleased++
	p.metrics.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.live--
		session.Destroy()
		return
	}
	p.sessions <- session
}

// Discard destroys a session that failed. The health check creates its
// replacement.
func (p *SessionPool) Discard(session Session, cause error) {
	p.metrics.mu.Lock()
	p.metrics.inUse--
	p.metrics.discarded++
	p.metrics.mu.Unlock()

	session.Destroy()

	p.mu.Lock()
	p.live--
	p.mu.Unlock()

	p.recordError(cause)
	p.logger.Warn("Discarded model session", zap.Error(cause))
}

func (p *SessionPool) run(ctx context.Context, v models.FeatureVector) (Prediction, error) {
	session, err := p.Acquire(ctx)
	if err != nil {
		return Prediction{}, &PredictionError{Message: "no model session available", Cause: err}
	}

	pred, err := session.Run(v)
	if err != nil {
		p.Discard(session, err)
		return Prediction{}, &PredictionError{Message: "model inference failed", Cause: err}
	}
	p.Release(session)
	return pred, nil
}

// Predict returns the label code the model assigns to v.
func (p *SessionPool) Predict(ctx context.Context, v models.FeatureVector) (int64, error) {
	pred, err := p.run(ctx, v)
	if err != nil {
		return 0, err
	}
	return pred.Label, nil
}

// PredictProbability returns the class distribution for v, or
// ErrProbabilityUnsupported when the model has no probability output.
func (p *SessionPool) PredictProbability(ctx context.Context, v models.FeatureVector) ([]float64, error) {
	if !p.probabilities {
		return nil, ErrProbabilityUnsupported
	}
	pred, err := p.run(ctx, v)
	if err != nil {
		return nil, err
	}
	if pred.Probabilities == nil {
		return nil, ErrProbabilityUnsupported
	}
	return pred.Probabilities, nil
}

// Classify runs v once and returns both outputs.
func (p *SessionPool) Classify(ctx context.Context, v models.FeatureVector) (Prediction, error) {
	return p.run(ctx, v)
}

func (p *SessionPool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.done)
	close(p.sessions)

	for session := range p.sessions {
		p.live--
		session.Destroy()
	}
}

func (p *SessionPool) healthCheck(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.replenish()
		}
	}
}

// replenish tops the pool back up to its configured size.
func (p *SessionPool) replenish() {
	p.mu.Lock()
	missing := p.size - p.live
	p.mu.Unlock()

	for i := 0; i < missing; i++ {
		session, err := p.factory()
		if err != nil {
			p.recordError(err)
			p.logger.Error("Failed to replenish model session", zap.Error(err))
			continue
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			session.Destroy()
			return
		}
		p.live++
		p.sessions <- session
		p.mu.Unlock()
	}
	if missing > 0 {
		p.logger.Info("Replenished session pool", zap.Int("missing", missing))
	}
}

func (p *SessionPool) recordError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastErrors = append(p.lastErrors, err)
	if len(p.lastErrors) > maxRecordedErrors {
		p.lastErrors = p.lastErrors[1:]
	}
}

func (p *SessionPool) Stats() PoolStats {
	p.metrics.mu.RLock()
	stats := PoolStats{
		InUse:           p.metrics.inUse,
		TotalAcquired:   p.metrics.totalAcquired,
		TotalReleased:   p.metrics.totalReleased,
		AcquireFailures: p.metrics.acquireFailures,
		Discarded:       p.metrics.discarded,
		WaitTime:        p.metrics.waitTime,
	}
	p.metrics.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	stats.Size = p.size
	stats.Live = p.live
	if !p.closed {
		stats.Idle = len(p.sessions)
	}
	for _, err := range p.lastErrors {
		stats.LastErrors = append(stats.LastErrors, err.Error())
	}
	return stats
}
