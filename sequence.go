package asyncgen

import (
	"reflect"

	"golang.org/x/xerrors"
)

//ErrStopIteration signals the normal exhaustion of a Sequence.  It
//travels through the pipeline like any other error, so a generator
//reading an input observes its upstream ending as this error on the
//input's Next call.
var ErrStopIteration = xerrors.New("stop iteration")

/*Sequence is implemented by lazy value streams.  Since there is no
upper bound on how many values a stage can produce, everything in this
package fetches values on demand through this two-operation contract:
Next returns the next value, or ErrStopIteration once the stream is
exhausted.  Any other error is the stream "raising"; a well-behaved
consumer observes it exactly once and stops advancing.*/
type Sequence interface {
	Next() (interface{}, error)
}

//SequenceFunc is an adapter to allow the use of plain functions as
//Sequence instances, the way a generator body closes over its own
//state.
type SequenceFunc func() (interface{}, error)

//Next calls f.
func (f SequenceFunc) Next() (interface{}, error) { return f() }

//FromSlice returns a Sequence over the provided values.
func FromSlice(values ...interface{}) Sequence {
	var i int
	return SequenceFunc(func() (interface{}, error) {
		if i == len(values) {
			return nil, ErrStopIteration
		}
		v := values[i]
		i++
		return v, nil
	})
}

/*AsSequence adapts v into a Sequence.  A Sequence is returned as-is;
slices and arrays of any element type iterate their elements.  Anything
else is not iterable and yields a type error - this is the boundary
where the "all async inputs must be iterable" contract is enforced.*/
func AsSequence(v interface{}) (Sequence, error) {
	if seq, ok := v.(Sequence); ok {
		return seq, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		var i int
		return SequenceFunc(func() (interface{}, error) {
			if i == rv.Len() {
				return nil, ErrStopIteration
			}
			elem := rv.Index(i).Interface()
			i++
			return elem, nil
		}), nil
	}

	return nil, xerrors.Errorf("expected all the async inputs to be iterable; %T is not", v)
}

//Collect drains seq into a slice.  It stops at ErrStopIteration and
//returns any other error together with the values gathered so far.
func Collect(seq Sequence) ([]interface{}, error) {
	var out []interface{}
	for {
		v, err := seq.Next()
		if err == ErrStopIteration {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}
