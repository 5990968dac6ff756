package server

import (
	"context"
	"time"

	"github.com/copyleftdev/lmfit/internal/optimization"
)

// JobStatus is the lifecycle state of a fit job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job can no longer change state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Job tracks one fit. Fields are guarded by Server.jobsMu.
type Job struct {
	ID          string
	Model       string
	ParamNames  []string
	Status      JobStatus
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	Result      *optimization.Result
	Err         string

	cancel context.CancelFunc
}

// JobView is the JSON representation of a job.
type JobView struct {
	ID          string      `json:"id"`
	Model       string      `json:"model"`
	Status      JobStatus   `json:"status"`
	StartTime   time.Time   `json:"start_time"`
	EndTime     *time.Time  `json:"end_time,omitempty"`
	LastUpdated time.Time   `json:"last_update"`
	Result      *ResultView `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// ResultView is the JSON representation of a fit result.
type ResultView struct {
	Status      string      `json:"status"`
	Converged   bool        `json:"converged"`
	ParamNames  []string    `json:"param_names"`
	Params      []float64   `json:"params"`
	Errors      []float64   `json:"errors"`
	Chi2        float64     `json:"chi2"`
	InitialChi2 float64     `json:"initial_chi2"`
	ReducedChi2 *float64    `json:"reduced_chi2,omitempty"`
	DoF         int         `json:"dof"`
	Iterations  int         `json:"iterations"`
	Evaluations int         `json:"evaluations"`
	NumFree     int         `json:"num_free"`
	NumPegged   int         `json:"num_pegged"`
	Covariance  [][]float64 `json:"covariance"`
	Singular    []bool      `json:"singular"`
}

// view snapshots the job. The caller must hold the jobs lock.
func (j *Job) view() *JobView {
	v := &JobView{
		ID:          j.ID,
		Model:       j.Model,
		Status:      j.Status,
		StartTime:   j.StartTime,
		LastUpdated: j.LastUpdated,
		Error:       j.Err,
	}
	if j.EndTime != nil {
		end := *j.EndTime
		v.EndTime = &end
	}
	if j.Result != nil {
		v.Result = newResultView(j.Result, j.ParamNames)
	}
	return v
}

func newResultView(r *optimization.Result, names []string) *ResultView {
	v := &ResultView{
		Status:      r.Status.String(),
		Converged:   r.Status.Converged(),
		ParamNames:  names,
		Params:      r.Params,
		Errors:      r.Errors,
		Chi2:        r.BestNorm,
		InitialChi2: r.OrigNorm,
		DoF:         r.DoF,
		Iterations:  r.Iterations,
		Evaluations: r.Evaluations,
		NumFree:     r.NumFree,
		NumPegged:   r.NumPegged,
		Singular:    r.Singular,
	}
	if r.DoF > 0 {
		red := r.ReducedChiSquare()
		v.ReducedChi2 = &red
	}
	if r.Covariance != nil {
		n := r.Covariance.SymmetricDim()
		v.Covariance = make([][]float64, n)
		for i := range v.Covariance {
			v.Covariance[i] = make([]float64, n)
			for j := range v.Covariance[i] {
				v.Covariance[i][j] = r.Covariance.At(i, j)
			}
		}
	}
	return v
}
