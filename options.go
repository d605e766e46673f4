package asyncgen

import (
	"context"

	"golang.org/x/xerrors"
)

/*Generator is the user function contract.  It is invoked once inside
each worker context of a job and must return the Sequence the worker
will produce from.  The work itself belongs in the returned Sequence:
a Generator that consumes one of its async inputs before returning is
rejected as a configuration error, because the eager read would defeat
the lazy pull protocol.

The supplied context identifies the worker context (see
transport.ContextID).  args holds the call's keyword arguments, with
every declared input replaced by its proxy.*/
type Generator func(ctx context.Context, args Args) (Sequence, error)

//Args carries the keyword arguments of one call of a wrapped function.
type Args map[string]interface{}

//Input returns the declared input named key.  Inside a worker context
//this is the AsyncInput proxy installed by the runtime; the result is
//nil if no such input exists.
func (a Args) Input(key string) Sequence {
	seq, _ := a[key].(Sequence)
	return seq
}

func cloneArgs(args Args) Args {
	out := make(Args, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

//Options configure a wrapped generator function.
type Options struct {
	//Workers is the number of isolated worker contexts each call
	//spawns.  Zero means one.  With more than one worker, outputs are
	//interleaved in completion order.
	Workers int

	//Buffer is how many values the job may pre-produce beyond the
	//reads its consumer currently has outstanding.
	Buffer int

	//TempfileOutput makes workers serialize each produced value to a
	//scratch file and hand off only the path.  Intended for large
	//values that are expensive to keep in flight.
	TempfileOutput bool
}

//Func is a wrapped generator function; it is what the decorator
//returns in place of the original.  Each Call spawns a fresh job.
type Func struct {
	fn         Generator
	inputNames []string
	opts       Options
}

/*Wrap ties a generator function to its declared async inputs and
options.  Each name in inputNames must be supplied as a keyword
argument at call time; its value is streamed into the workers on
demand.  A bad option is a configuration error reported here, before
any call is made.*/
func Wrap(fn Generator, inputNames []string, opts Options) (*Func, error) {
	if fn == nil {
		return nil, xerrors.New("asyncgen: a generator function is required")
	}
	if opts.Workers == 0 {
		opts.Workers = 1
	}
	if opts.Workers < 1 {
		return nil, xerrors.Errorf("asyncgen: workers must be at least 1, got %d", opts.Workers)
	}
	if opts.Buffer < 0 {
		return nil, xerrors.Errorf("asyncgen: buffer must not be negative, got %d", opts.Buffer)
	}
	seen := make(map[string]bool, len(inputNames))
	for _, name := range inputNames {
		if name == "" {
			return nil, xerrors.New("asyncgen: input names must not be empty")
		}
		if seen[name] {
			return nil, xerrors.Errorf("asyncgen: input %q declared twice", name)
		}
		seen[name] = true
	}

	names := make([]string, len(inputNames))
	copy(names, inputNames)
	return &Func{fn: fn, inputNames: names, opts: opts}, nil
}

//MustWrap is like Wrap but panics on a configuration error.
func MustWrap(fn Generator, inputNames []string, opts Options) *Func {
	f, err := Wrap(fn, inputNames, opts)
	if err != nil {
		panic(err)
	}
	return f
}

/*Call invokes the wrapped function.  Every declared input must be
present in args and be iterable; the remaining arguments pass through
to the generator untouched.  The returned Job is a lazy sequence over
the call's output.  Startup failures - a worker raising before its
ready handshake, or a generator consuming an input eagerly - are
returned here, before the job is handed to the caller.*/
func (f *Func) Call(args Args) (*Job, error) {
	return newJob(f.fn, args, f.inputNames, f.opts)
}
