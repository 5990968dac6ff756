// Package server exposes the fitter as an HTTP and JSON-RPC 2.0 job service.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/copyleftdev/lmfit/internal/config"
	apperrors "github.com/copyleftdev/lmfit/internal/errors"
	"github.com/copyleftdev/lmfit/internal/logging"
	"github.com/copyleftdev/lmfit/internal/optimization"
	"github.com/copyleftdev/lmfit/internal/optimization/lm"
	"github.com/copyleftdev/lmfit/internal/optimization/models"
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// FitterFactory builds the fitter for one job.
type FitterFactory func(cfg *optimization.Config, logger *zap.Logger) (optimization.Fitter, error)

func newLMFitter(cfg *optimization.Config, logger *zap.Logger) (optimization.Fitter, error) {
	return lm.NewSolver(cfg, logger)
}

// Option configures a Server.
type Option func(*Server)

// WithZapLogger sets the logger handed to the fitters.
func WithZapLogger(l *zap.Logger) Option {
	return func(s *Server) { s.zlog = l }
}

// WithFitterFactory replaces the Levenberg-Marquardt fitter.
func WithFitterFactory(f FitterFactory) Option {
	return func(s *Server) { s.newFitter = f }
}

// Server manages fit jobs. At most cfg.Fit.WorkerCount fits run at once;
// further jobs stay pending until a slot frees up.
type Server struct {
	cfg       *config.Config
	logger    Logger
	zlog      *zap.Logger
	newFitter FitterFactory
	sem       *semaphore.Weighted

	jobs   map[string]*Job
	jobsMu sync.RWMutex

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewServer creates a new server instance with the given config and logger
func NewServer(cfg *config.Config, logger Logger, opts ...Option) *Server {
	workers := cfg.Fit.WorkerCount
	if workers < 1 {
		workers = 1
	}
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		zlog:      zap.NewNop(),
		newFitter: newLMFitter,
		sem:       semaphore.NewWeighted(int64(workers)),
		jobs:      make(map[string]*Job),
		ctx:       ctx,
		stop:      stop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func badRequest(err error, op string) *apperrors.Error {
	return apperrors.Wrap(err, "invalid fit request").
		WithOperation(op).
		WithComponent("server").
		WithStatus(http.StatusBadRequest)
}

// Start validates req and queues a fit job.
func (s *Server) Start(req *FitRequest) (*JobView, error) {
	const op = "Server.Start"

	if err := validate.Struct(req); err != nil {
		return nil, badRequest(err, op)
	}

	shape, err := models.Lookup(req.Model)
	if err != nil {
		return nil, badRequest(err, op)
	}
	data, err := models.NewDataset(req.X, req.Y, req.EY)
	if err != nil {
		return nil, badRequest(err, op)
	}
	curve := models.NewCurve(shape, data)

	x := append([]float64(nil), req.Init...)
	if req.Init == nil {
		x = shape.Guess(data)
	}
	var params []optimization.Param
	if req.Params != nil {
		params = make([]optimization.Param, len(req.Params))
		for i, p := range req.Params {
			params[i] = p.Param()
		}
	}

	fc := req.Config.Apply(s.cfg.FitConfig())
	id := uuid.NewString()
	fitter, err := s.newFitter(&fc, s.zlog.With(zap.String("job_id", id)))
	if err != nil {
		return nil, badRequest(err, op)
	}

	now := time.Now()
	ctx, cancel := context.WithCancel(s.ctx)
	job := &Job{
		ID:          id,
		Model:       req.Model,
		ParamNames:  shape.ParamNames(),
		Status:      JobPending,
		StartTime:   now,
		LastUpdated: now,
		cancel:      cancel,
	}

	s.jobsMu.Lock()
	s.prune(now)
	s.jobs[id] = job
	view := job.view()
	s.jobsMu.Unlock()

	fitsStarted.WithLabelValues(req.Model).Inc()
	s.logger.Info("Fit job accepted", map[string]interface{}{
		"job_id": id,
		"model":  req.Model,
		"points": data.Len(),
	})

	s.wg.Add(1)
	go s.run(ctx, job, fitter, curve, x, params)

	return view, nil
}

// run executes a job once a worker slot is available.
func (s *Server) run(ctx context.Context, job *Job, fitter optimization.Fitter, model optimization.Model, x []float64, params []optimization.Param) {
	defer s.wg.Done()
	defer job.cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.finish(job, nil, err)
		return
	}
	defer s.sem.Release(1)

	s.jobsMu.Lock()
	if job.Status == JobPending {
		job.Status = JobRunning
		job.LastUpdated = time.Now()
	}
	s.jobsMu.Unlock()

	fitsRunning.Inc()
	defer fitsRunning.Dec()

	start := time.Now()
	res, err := fitter.Fit(ctx, model, x, params)
	fitDuration.WithLabelValues(job.Model).Observe(time.Since(start).Seconds())

	s.finish(job, res, err)
}

// finish records the outcome of a job unless it was cancelled meanwhile.
func (s *Server) finish(job *Job, res *optimization.Result, err error) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if job.Status.Terminal() {
		return
	}

	now := time.Now()
	job.EndTime = &now
	job.LastUpdated = now

	switch {
	case err == nil:
		job.Status = JobCompleted
		job.Result = res
		fitEvaluations.WithLabelValues(job.Model).Observe(float64(res.Evaluations))
		s.logger.Info("Fit job completed", map[string]interface{}{
			"job_id":      job.ID,
			"status":      res.Status.String(),
			"chi2":        res.BestNorm,
			"iterations":  res.Iterations,
			"evaluations": res.Evaluations,
		})
	case ctxDone(err):
		job.Status = JobCancelled
	default:
		job.Status = JobFailed
		job.Err = err.Error()
		s.logger.WithFields(map[string]interface{}{"job_id": job.ID}).WithError(err).Warn("Fit job failed")
	}
	fitsFinished.WithLabelValues(job.Model, string(job.Status)).Inc()
}

func ctxDone(err error) bool {
	return apperrors.Is(err, context.Canceled) || apperrors.Is(err, context.DeadlineExceeded)
}

// Status returns a snapshot of the job.
func (s *Server) Status(id string) (*JobView, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, notFound(id)
	}
	return job.view(), nil
}

// Cancel stops a pending or running job.
func (s *Server) Cancel(id string) (*JobView, error) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, notFound(id)
	}
	if job.Status.Terminal() {
		return nil, apperrors.Errorf("cannot cancel job with status %s", job.Status).
			WithOperation("Server.Cancel").
			WithComponent("server").
			WithStatus(http.StatusConflict)
	}

	job.cancel()
	now := time.Now()
	job.Status = JobCancelled
	job.EndTime = &now
	job.LastUpdated = now
	fitsFinished.WithLabelValues(job.Model, string(JobCancelled)).Inc()

	s.logger.Info("Fit job cancelled", map[string]interface{}{
		"job_id": id,
	})
	return job.view(), nil
}

func notFound(id string) *apperrors.Error {
	return apperrors.Errorf("fit job %s not found", id).
		WithComponent("server").
		WithStatus(http.StatusNotFound)
}

// prune drops terminal jobs older than the configured TTL. The caller must
// hold the jobs lock.
func (s *Server) prune(now time.Time) {
	ttl := s.cfg.Fit.JobTTL
	if ttl <= 0 {
		return
	}
	for id, job := range s.jobs {
		if job.EndTime != nil && now.Sub(*job.EndTime) > ttl {
			delete(s.jobs, id)
		}
	}
}

// Close cancels every job and waits for the workers to return.
func (s *Server) Close() error {
	s.stop()
	s.wg.Wait()
	return nil
}
