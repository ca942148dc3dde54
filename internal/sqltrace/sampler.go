package sqltrace

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/apmtrace/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/apmtrace/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/apmtrace/internal/shared/utils"
	"github.com/GriffinCanCode/apmtrace/internal/tracing"
)

// Config controls which statements are kept and explained.
type Config struct {
	Threshold        time.Duration
	MaxSamples       int
	ExplainEnabled   bool
	ExplainThreshold time.Duration
	ExplainPerSecond float64 // zero means unlimited
	ExplainTimeout   time.Duration
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:        500 * time.Millisecond,
		MaxSamples:       10,
		ExplainEnabled:   true,
		ExplainThreshold: 500 * time.Millisecond,
		ExplainPerSecond: 1,
		ExplainTimeout:   time.Second,
	}
}

// Sample aggregates calls of one obfuscated statement.
type Sample struct {
	ID              uint32
	Query           string
	MetricName      string
	TransactionName string
	TransactionGUID string
	Instance        string
	Database        string

	Count int
	Total time.Duration
	Min   time.Duration
	Max   time.Duration

	Plan         *tracing.ExplainPlan
	ExplainError string

	pending *tracing.SQLStatement
}

// Sampler implements tracing.SQLSampler.
type Sampler struct {
	cfg     Config
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *zap.Logger
	monitor *monitoring.Metrics

	mu      sync.Mutex
	samples map[uint32]*Sample
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBreaker replaces the default explain breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(s *Sampler) {
		if b != nil {
			s.breaker = b
		}
	}
}

// WithMonitor counts explain outcomes.
func WithMonitor(m *monitoring.Metrics) Option {
	return func(s *Sampler) { s.monitor = m }
}

// New creates a sampler.
func New(cfg Config, opts ...Option) *Sampler {
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = DefaultConfig().MaxSamples
	}
	if cfg.ExplainTimeout <= 0 {
		cfg.ExplainTimeout = DefaultConfig().ExplainTimeout
	}
	limit := rate.Inf
	if cfg.ExplainPerSecond > 0 {
		limit = rate.Limit(cfg.ExplainPerSecond)
	}

	s := &Sampler{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  zap.NewNop(),
		samples: make(map[uint32]*Sample),
	}
	s.breaker = resilience.New("explain", resilience.Settings{
		Cooldown: 30 * time.Second,
		Trip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NoticeSQL records a finished statement. It never runs the explainer;
// plans for the slowest call of each statement are queued and resolved by
// Snapshot or Harvest.
func (s *Sampler) NoticeSQL(in tracing.SQLSample) {
	if in.Statement == nil || in.Duration < s.cfg.Threshold {
		return
	}
	query := Obfuscate(in.Statement.SQL)
	key := utils.DefaultHasher().Hash32(query)

	s.mu.Lock()
	sample, ok := s.samples[key]
	if !ok {
		if !s.makeRoom(in.Duration) {
			s.mu.Unlock()
			return
		}
		sample = &Sample{ID: key, Query: query, Min: in.Duration}
		s.samples[key] = sample
	}
	sample.Count++
	sample.Total += in.Duration
	if in.Duration < sample.Min {
		sample.Min = in.Duration
	}
	if in.Duration >= sample.Max {
		sample.Max = in.Duration
		sample.MetricName = in.MetricName
		sample.TransactionName = in.TransactionName
		sample.TransactionGUID = in.TransactionGUID
		sample.Instance = in.Statement.InstanceID
		sample.Database = in.Statement.DatabaseName
		sample.Plan = nil
		sample.ExplainError = ""
		sample.pending = nil
		if s.shouldExplain(in) {
			sample.pending = in.Statement
		}
	}
	s.mu.Unlock()
}

// makeRoom evicts the fastest sample when full and d is slower than it.
func (s *Sampler) makeRoom(d time.Duration) bool {
	if len(s.samples) < s.cfg.MaxSamples {
		return true
	}
	var fastest *Sample
	for _, sample := range s.samples {
		if fastest == nil || sample.Max < fastest.Max {
			fastest = sample
		}
	}
	if fastest == nil || d <= fastest.Max {
		return false
	}
	delete(s.samples, fastest.ID)
	return true
}

func (s *Sampler) shouldExplain(in tracing.SQLSample) bool {
	return s.cfg.ExplainEnabled &&
		in.Duration >= s.cfg.ExplainThreshold &&
		in.Statement.CanExplain()
}

func (s *Sampler) explain(stmt *tracing.SQLStatement) (*tracing.ExplainPlan, string) {
	if !s.limiter.Allow() {
		s.monitor.RecordExplain("rate_limited")
		return nil, ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ExplainTimeout)
	defer cancel()

	plan, err := resilience.Call(ctx, s.breaker, stmt.Explain)
	switch {
	case err == nil:
		s.monitor.RecordExplain("ok")
		return plan, ""
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		s.monitor.RecordExplain("circuit_open")
		return nil, ""
	default:
		s.monitor.RecordExplain("error")
		s.logger.Debug("explain plan failed", zap.Error(err), zap.String("adapter", stmt.Adapter))
		return nil, err.Error()
	}
}

// Harvest returns the samples slowest first and starts over. Pending
// explain plans are resolved first, off the host's query path.
func (s *Sampler) Harvest() []Sample {
	s.mu.Lock()
	old := s.samples
	s.samples = make(map[uint32]*Sample)
	s.mu.Unlock()

	for _, sample := range byDuration(old) {
		if sample.pending != nil {
			sample.Plan, sample.ExplainError = s.explain(sample.pending)
			sample.pending = nil
		}
	}
	return sortSamples(old)
}

// Snapshot returns the samples slowest first without resetting. Pending
// explain plans are resolved first.
func (s *Sampler) Snapshot() []Sample {
	s.resolvePending()

	s.mu.Lock()
	defer s.mu.Unlock()

	return sortSamples(s.samples)
}

type pendingExplain struct {
	id   uint32
	max  time.Duration
	stmt *tracing.SQLStatement
}

// resolvePending runs the explain plans queued by NoticeSQL, slowest first,
// without holding the lock.
func (s *Sampler) resolvePending() {
	s.mu.Lock()
	var work []pendingExplain
	for _, sample := range byDuration(s.samples) {
		if sample.pending != nil {
			work = append(work, pendingExplain{id: sample.ID, max: sample.Max, stmt: sample.pending})
			sample.pending = nil
		}
	}
	s.mu.Unlock()

	for _, w := range work {
		plan, errText := s.explain(w.stmt)
		s.mu.Lock()
		if cur, ok := s.samples[w.id]; ok && cur.Max == w.max && cur.pending == nil {
			cur.Plan = plan
			cur.ExplainError = errText
		}
		s.mu.Unlock()
	}
}

// byDuration orders samples slowest first so the limiter favors them.
func byDuration(m map[uint32]*Sample) []*Sample {
	out := make([]*Sample, 0, len(m))
	for _, sample := range m {
		out = append(out, sample)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Max != out[j].Max {
			return out[i].Max > out[j].Max
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortSamples(m map[uint32]*Sample) []Sample {
	sorted := byDuration(m)
	out := make([]Sample, len(sorted))
	for i, sample := range sorted {
		out[i] = *sample
		out[i].pending = nil
	}
	return out
}
