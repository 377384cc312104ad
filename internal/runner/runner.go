package runner

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/sourcegraph/conc"
)

// Runner dispatches requests at a fixed period against a shared client.
type Runner[R any] struct {
	opt    Options
	client Client[R]
}

// New validates the options and returns a Runner bound to client.
func New[R any](opt Options, client Client[R]) (*Runner[R], error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, ErrNilClient
	}
	return &Runner[R]{opt: opt, client: client}, nil
}

// Run admits requests from reqs, one every Period, until Duration is covered or reqs
// is exhausted, and waits for every admitted request to finish. The returned records
// are in admission order, one per admitted request.
//
// Cancelling ctx does not stop a run; ctx only carries values (such as trace
// parents) into client calls. Run fails only if a request goroutine panics, in which
// case no records are returned.
func (r *Runner[R]) Run(ctx context.Context, reqs iter.Seq[R]) ([]Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	var (
		wg     conc.WaitGroup
		slots  []*Record
		offset time.Duration
	)

	if reqs != nil {
		for req := range reqs {
			if offset >= r.opt.Duration {
				break
			}

			entry := scheduleEntry{index: len(slots), offset: offset}
			slot := &Record{Scheduled: entry.offset}
			slots = append(slots, slot)
			if r.opt.Observer != nil {
				r.opt.Observer.Admitted(entry.index, entry.offset)
			}

			wg.Go(func() {
				*slot = r.dispatch(ctx, start, entry, req)
				if r.opt.Observer != nil {
					r.opt.Observer.Finished(entry.index, *slot)
				}
			})
			offset += r.opt.Period
		}
	}

	if recovered := wg.WaitAndRecover(); recovered != nil {
		return nil, fmt.Errorf("%w: %w", ErrTaskCrashed, recovered.AsError())
	}

	records := make([]Record, len(slots))
	for i, slot := range slots {
		records[i] = *slot
	}
	return records, nil
}

// dispatch waits for the entry's dispatch instant, sends req and measures it.
func (r *Runner[R]) dispatch(ctx context.Context, start time.Time, entry scheduleEntry, req R) Record {
	sleepUntil(start.Add(entry.offset))

	sent := time.Now()
	return Record{
		Scheduled:   entry.offset,
		StartOffset: sent.Sub(start),
		Outcome:     r.send(ctx, sent, req),
	}
}

type callResult struct {
	err      error
	panicked bool
	value    any
}

// send races the client call against the timeout. A call that loses the race keeps
// running in its own goroutine; its result, error included, is dropped into the
// buffered channel and never read.
func (r *Runner[R]) send(ctx context.Context, sent time.Time, req R) Outcome {
	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- callResult{panicked: true, value: v}
			}
		}()
		err := r.client.Do(ctx, req)
		done <- callResult{err: err}
	}()

	var expired <-chan time.Time
	if r.opt.Timeout > 0 {
		timer := time.NewTimer(r.opt.Timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case res := <-done:
		elapsed := time.Since(sent)
		if res.panicked {
			panic(res.value)
		}
		if res.err != nil && r.opt.Failures != nil {
			r.opt.Failures.LogFailure(res.err)
		}
		return Completed(elapsed)
	case <-expired:
		return TimedOut()
	}
}

func sleepUntil(deadline time.Time) {
	wait := time.Until(deadline)
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	<-timer.C
}
