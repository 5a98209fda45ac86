package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cigarlens/backend/internal/domain"
)

// Backend attempt outcomes reported to metrics
const (
	outcomeSuccess     = "success"
	outcomeUnavailable = "unavailable"
	outcomeParseError  = "parse_error"
	outcomeRejected    = "rejected"
)

// configurationHints are appended to the terminal error when every backend failed
var configurationHints = []string{
	"inference.api_key is set and enabled for the Generative Language API",
	"inference.preferred_models lists backend ids available to this key (without the models/ prefix)",
	"the key's project has free-tier or billed quota for at least one listed backend",
	"inference.capabilities_file does not mark every available backend as no_quota",
}

// CandidateProvider yields the ordered backend candidates for one call
type CandidateProvider interface {
	Candidates(ctx context.Context) []domain.ModelCandidate
}

// BackendRunnerConfig holds configuration for the backend runner
type BackendRunnerConfig struct {
	// RequestsPerMinute bounds backend calls across all requests; 0 means unlimited
	RequestsPerMinute int
}

// RunResult is the accepted output of one backend
type RunResult struct {
	Text      string
	Model     string
	Transport string
	Attempts  []string
}

// BackendRunner executes an inference request against candidate backends in order,
// trying the primary transport and then the secondary one for each candidate.
type BackendRunner struct {
	candidates  CandidateProvider
	primary     domain.InferenceTransport
	secondary   domain.InferenceTransport
	rateLimiter *rate.Limiter
	metrics     Metrics
	logger      *zap.Logger
}

// NewBackendRunner creates a new backend runner. secondary may be nil.
func NewBackendRunner(candidates CandidateProvider, primary, secondary domain.InferenceTransport, config BackendRunnerConfig, metrics Metrics, logger *zap.Logger) *BackendRunner {
	limit := rate.Inf
	if config.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(config.RequestsPerMinute))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackendRunner{
		candidates:  candidates,
		primary:     primary,
		secondary:   secondary,
		rateLimiter: rate.NewLimiter(limit, 1),
		metrics:     metricsOrNop(metrics),
		logger:      logger.Named("backend-runner"),
	}
}

func (r *BackendRunner) transports() []domain.InferenceTransport {
	out := make([]domain.InferenceTransport, 0, 2)
	if r.primary != nil {
		out = append(out, r.primary)
	}
	if r.secondary != nil {
		out = append(out, r.secondary)
	}
	return out
}

// Run tries candidates serially until accept returns nil for a response.
// Unavailable backends and accept errors matching domain.ErrParse fall through to the
// next transport or candidate; any other error is returned immediately.
// When every attempt falls through, Run returns a *domain.RecognitionError.
func (r *BackendRunner) Run(ctx context.Context, req *domain.InferenceRequest, accept func(text string) error) (*RunResult, error) {
	candidates := r.candidates.Candidates(ctx)
	transports := r.transports()
	if len(candidates) == 0 || len(transports) == 0 {
		return nil, &domain.RecognitionError{Hints: configurationHints}
	}

	var attempts []string
	var lastErr error
	for _, candidate := range candidates {
		for _, transport := range transports {
			if err := r.rateLimiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter error: %w", err)
			}

			attempt := candidate.ID + "/" + transport.Name()
			attempts = append(attempts, attempt)

			start := time.Now()
			text, err := transport.Generate(ctx, candidate.ID, req)
			if err == nil {
				if perr := accept(text); perr != nil {
					err = fmt.Errorf("%s: %w", attempt, perr)
				}
			}
			elapsed := time.Since(start)

			if err == nil {
				r.metrics.BackendAttempt(candidate.ID, transport.Name(), outcomeSuccess, elapsed)
				r.logger.Debug("backend succeeded",
					zap.String("model", candidate.ID),
					zap.String("transport", transport.Name()),
					zap.String("source", string(candidate.Source)),
					zap.Duration("elapsed", elapsed))
				return &RunResult{Text: text, Model: candidate.ID, Transport: transport.Name(), Attempts: attempts}, nil
			}

			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, domain.ErrConfiguration) {
				return nil, err
			}
			if !domain.Fallthrough(err) {
				r.metrics.BackendAttempt(candidate.ID, transport.Name(), outcomeRejected, elapsed)
				r.logger.Warn("backend rejected request",
					zap.String("model", candidate.ID),
					zap.String("transport", transport.Name()),
					zap.Error(err))
				return nil, err
			}

			outcome := outcomeUnavailable
			if errors.Is(err, domain.ErrParse) {
				outcome = outcomeParseError
			}
			r.metrics.BackendAttempt(candidate.ID, transport.Name(), outcome, elapsed)
			r.logger.Info("backend attempt fell through",
				zap.String("model", candidate.ID),
				zap.String("transport", transport.Name()),
				zap.String("outcome", outcome),
				zap.Error(err))
			lastErr = err
		}
	}

	return nil, &domain.RecognitionError{Attempts: attempts, LastErr: lastErr, Hints: configurationHints}
}
