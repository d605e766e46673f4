/*Package pipeline runs a linear chain of processing stages between a
Source and a Sink.  Unlike a hand-wired chain of channels, each stage
executes as an isolated asyncgen job: the stage's workers pull values
from their predecessor on demand, so backpressure, buffering and error
propagation come from the underlying runtime.*/
package pipeline

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/xerrors"

	"github.com/brandonshearin/asyncgen"
)

//Source is implemented by types that generate the values fed into a
//Pipeline.
type Source interface {
	//Next advances the source; it returns false when no values remain
	//or an error occurred.
	Next(context.Context) bool

	//Value returns the value fetched by the last successful Next.
	Value() interface{}

	//Error returns the error that stopped the source, if any.
	Error() error
}

//Sink is implemented by types that can operate as the tail of a
//pipeline.
type Sink interface {
	//Consume processes one value emitted out of the pipeline.
	Consume(context.Context, interface{}) error
}

/*Processor is implemented by types that transform values as part of a
pipeline stage.  Returning a nil value discards the input, preventing
it from reaching later stages.*/
type Processor interface {
	Process(context.Context, interface{}) (interface{}, error)
}

//ProcessorFunc is an adapter to allow the use of plain functions as
//Processor instances.  If f is a function with the appropriate
//signature, ProcessorFunc(f) is a Processor that calls f.
type ProcessorFunc func(ctx context.Context, v interface{}) (interface{}, error)

//Process calls f(ctx, v).
func (f ProcessorFunc) Process(ctx context.Context, v interface{}) (interface{}, error) {
	return f(ctx, v)
}

//StageSpec describes one stage of a pipeline: its processor and the
//worker/buffer configuration of the asyncgen job that will run it.
type StageSpec struct {
	Proc    Processor
	Workers int
	Buffer  int
}

//FIFO returns a stage that processes values one at a time, preserving
//their order.
func FIFO(proc Processor) StageSpec {
	return StageSpec{Proc: proc, Workers: 1}
}

/*FixedWorkerPool returns a stage that spins up numWorkers isolated
workers to process values in parallel.  Outputs are interleaved in
completion order.*/
func FixedWorkerPool(proc Processor, numWorkers int) StageSpec {
	if numWorkers <= 0 {
		panic("pipeline: FixedWorkerPool: numWorkers must be > 0")
	}
	return StageSpec{Proc: proc, Workers: numWorkers}
}

//Buffered returns a FIFO stage that may run ahead of its consumer by
//up to buffer values.
func Buffered(proc Processor, buffer int) StageSpec {
	if buffer < 0 {
		panic("pipeline: Buffered: buffer must be >= 0")
	}
	return StageSpec{Proc: proc, Workers: 1, Buffer: buffer}
}

//Pipeline chains stages between a source and a sink.
type Pipeline struct {
	stages []StageSpec
}

//New returns a pipeline where every source value traverses each of the
//specified stages in order.
func New(stages ...StageSpec) *Pipeline {
	return &Pipeline{stages: stages}
}

/*Process reads the source to exhaustion, streams every value through
the stages and hands the results to the sink.  It blocks until all data
has been processed, an error occurs, or ctx expires.  A failed stage
starves the stages behind it, so a single failure drains the whole run;
the first error that reaches the end of the chain, or that the sink
reports, stops the run and is returned wrapped in a multierror.*/
func (p *Pipeline) Process(ctx context.Context, source Source, sink Sink) error {
	var upstream interface{} = asyncgen.SequenceFunc(func() (interface{}, error) {
		if !source.Next(ctx) {
			if err := source.Error(); err != nil {
				return nil, xerrors.Errorf("pipeline source: %w", err)
			}
			return nil, asyncgen.ErrStopIteration
		}
		return source.Value(), nil
	})

	for i, spec := range p.stages {
		job, err := startStage(i, spec, upstream)
		if err != nil {
			return err
		}
		upstream = job
	}

	out, err := asyncgen.AsSequence(upstream)
	if err != nil {
		return err
	}

	var result error
	for {
		if ctx.Err() != nil {
			break
		}
		v, err := out.Next()
		if err == asyncgen.ErrStopIteration {
			break
		}
		if err != nil {
			result = multierror.Append(result, err)
			break
		}
		if err := sink.Consume(ctx, v); err != nil {
			result = multierror.Append(result, xerrors.Errorf("pipeline sink: %w", err))
			break
		}
	}
	return result
}

//startStage wraps one processor as a generator job reading from its
//predecessor.
func startStage(index int, spec StageSpec, upstream interface{}) (*asyncgen.Job, error) {
	proc := spec.Proc
	fn := func(ctx context.Context, args asyncgen.Args) (asyncgen.Sequence, error) {
		in := args.Input("in")
		return asyncgen.SequenceFunc(func() (interface{}, error) {
			for {
				v, err := in.Next()
				if err != nil {
					// ErrStopIteration and upstream failures flow
					// through to this stage's consumer untouched
					return nil, err
				}
				out, err := proc.Process(ctx, v)
				if err != nil {
					return nil, xerrors.Errorf("pipeline stage %d: %w", index, err)
				}
				if out == nil {
					continue // discard
				}
				return out, nil
			}
		}), nil
	}

	f, err := asyncgen.Wrap(fn, []string{"in"}, asyncgen.Options{Workers: spec.Workers, Buffer: spec.Buffer})
	if err != nil {
		return nil, err
	}
	return f.Call(asyncgen.Args{"in": upstream})
}
