package combine

import "context"

// Action tells the runner what to do after a partition fails.
type Action string

const (
	ActionFail Action = "fail" // Stop the run and return the error
	ActionSkip Action = "skip" // Leave the partition unpublished and continue
)

// ErrorHandler decides whether a failed partition aborts the run. Without
// one, the runner stops on the first partition error. Either way the failed
// partition stays unpublished (pending or stale-temp) for a future run;
// skipping never publishes a partial result.
//
// Example:
//
//	runner.WithErrorHandler(combine.ErrorHandlerFunc(
//	    func(ctx context.Context, key combine.OutputPartitionKey, err error) combine.Action {
//	        slog.ErrorContext(ctx, "partition failed", "partition", key, "error", err)
//	        return combine.ActionSkip
//	    },
//	))
//
// Skipped errors still increment Stats.Errors.
type ErrorHandler interface {
	// OnError is called once per failed partition.
	OnError(ctx context.Context, key OutputPartitionKey, err error) Action
}

// ErrorHandlerFunc adapts a function to the ErrorHandler interface.
type ErrorHandlerFunc func(ctx context.Context, key OutputPartitionKey, err error) Action

func (f ErrorHandlerFunc) OnError(ctx context.Context, key OutputPartitionKey, err error) Action {
	return f(ctx, key, err)
}

// Flusher is an optional RowSink capability. When the sink implements it,
// the Combiner calls Flush after each constituent input file, so buffered
// rows reach the temp file at file boundaries and the in-flight buffer stays
// bounded no matter how large the partition grows.
type Flusher interface {
	Flush() error
}

// Starter is an optional RowSink capability. Start is called exactly once
// per partition, before the header and first row. Use it to acquire
// resources that must be held for the partition's lifetime; a Start error
// aborts the partition before anything is written.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is an optional RowSink capability. Stop is called exactly once
// per partition, after the last constituent file and before the output
// publishes, whether the partition succeeded or not. err is the error that
// aborted the partition, or nil.
//
// Example:
//
//	func (s *dbSink) Stop(ctx context.Context, err error) {
//	    if err != nil {
//	        s.tx.Rollback()
//	        return
//	    }
//	    s.tx.Commit()
//	}
type Stopper interface {
	Stop(ctx context.Context, err error)
}
