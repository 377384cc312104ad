// Package runner provides the fixed-rate dispatch engine for sron.
//
// The runner sends one request every [Options.Period] until [Options.Duration] has
// been covered or the request source runs dry. Each request is scheduled against a
// single start instant captured when the run begins, so a slow response never delays
// the dispatch of the requests behind it. This removes coordinated omission: tail
// latency is sampled at the configured rate no matter how the target behaves.
//
// # Basic Usage
//
// Create a runner with options and a client, then feed it a request source:
//
//	r, err := runner.New(runner.Options{
//		Period:   2 * time.Millisecond,
//		Duration: 10 * time.Second,
//		Timeout:  time.Second,
//	}, client)
//	if err != nil {
//		return err
//	}
//	records, err := r.Run(ctx, runner.Cycle(requests))
//
// # Client Interface
//
// The [Client] interface defines how a single request is sent:
//
//	type Client[R any] interface {
//		Do(ctx context.Context, req R) error
//	}
//
// The returned error is never interpreted by the runner. A call that returns before
// the timeout is a [Completed] outcome whether or not it failed; its error is passed
// to Options.Failures. Calls abandoned by the timeout are not reported at all, even
// if they fail later.
//
// # Request Sources
//
// Sources are plain iter.Seq values. [Cycle] repeats a slice forever, [Slice] walks it
// once, [Repeat] calls a constructor for every element and [Take] and [Concat] combine
// them. The pacing loop only ever pulls the next element.
//
// # Concurrency
//
// Every admitted request runs in its own goroutine. There is no cap on in-flight
// requests: a slow target under a tight period grows the number of goroutines until
// the run ends. A panic inside a request goroutine fails the whole run with
// [ErrTaskCrashed].
package runner
