package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/recogo/index"
	"github.com/hupe1980/recogo/model"
)

// dispatch fits every cluster concurrently and blocks until all fits have
// completed. Each task builds the cluster's index and invokes the fitter;
// tasks share nothing but read access to the registered models. A
// per-cluster failure maps to an empty candidate list; cancellation is a
// call-level failure.
func (e *Engine) dispatch(ctx context.Context, p *Params) (*state, error) {
	n := len(p.Clusters)

	st := &state{
		clusters: make([]model.PointCloud, n),
		indexes:  make([]index.Index, n),
		fits:     make([][]model.FitCandidate, n),
		rep:      make([]int, n),
	}
	st.stats.Clusters = n

	copy(st.clusters, p.Clusters)

	for i := range st.rep {
		st.rep[i] = i
	}

	if n == 0 {
		return st, nil
	}

	count := max(1, p.CandidateCount)
	errs := make([]error, n)

	var (
		wg       sync.WaitGroup
		fitCalls atomic.Int64
	)

	for i := range st.clusters {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			if e.controller != nil {
				if err := e.controller.AcquireFitSlot(ctx); err != nil {
					errs[i] = err
					return
				}
				defer e.controller.ReleaseFitSlot()
			}

			idx, err := e.builder.Build(st.clusters[i])
			if err != nil {
				errs[i] = err
				return
			}

			st.indexes[i] = idx

			fitCalls.Add(1)

			fits, err := e.fitter.FitBestModels(ctx, st.clusters[i], idx, count, p.ConfidenceCutoff)
			if err != nil {
				errs[i] = err
				return
			}

			st.fits[i] = fits
		}(i)
	}

	wg.Wait()

	st.stats.FitCalls = int(fitCalls.Load())

	for i, err := range errs {
		if err == nil {
			continue
		}

		if isCallLevel(err) {
			return nil, err
		}

		// Per-cluster failure: this cluster contributes no candidates, the
		// call goes on.
		st.stats.FailedFits++
		e.logger.Debug("cluster fit failed", "cluster", i, "error", err)
	}

	return st, nil
}

// isCallLevel reports whether a task error must abort the whole call
// instead of emptying one cluster's candidates.
func isCallLevel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
