package asyncgen

import (
	"reflect"

	"golang.org/x/xerrors"
)

/*Splitter fans one upstream of keyed composites out into per-key child
sequences.  Each upstream value is indexed once per declared key and
the components are queued per child, so the k-th value delivered to
every child corresponds to the k-th upstream composite.

Consuming only one child while ignoring its siblings grows the ignored
children's queues without bound; a balanced consumer drains all keys at
a similar pace.*/
type Splitter struct {
	input  Sequence
	job    *Job // non-nil when the upstream is an async job
	keys   []interface{}
	queues map[interface{}][]interface{}

	//waitingForNext guards against double-requesting from an async
	//upstream while a previous request is still outstanding
	waitingForNext bool
}

//NewSplitter builds a splitter over src, which must be iterable and
//yield values indexable by every one of keys.
func NewSplitter(src interface{}, keys ...interface{}) (*Splitter, error) {
	seq, err := AsSequence(src)
	if err != nil {
		return nil, err
	}
	s := &Splitter{
		input:  seq,
		keys:   append([]interface{}(nil), keys...),
		queues: make(map[interface{}][]interface{}, len(keys)),
	}
	if j, ok := src.(*Job); ok {
		s.job = j
	}
	for _, key := range keys {
		s.queues[key] = nil
	}
	return s, nil
}

//Get returns the child sequence for key.  Asking for a key that was
//not declared at construction is an error.
func (s *Splitter) Get(key interface{}) (Sequence, error) {
	if _, ok := s.queues[key]; !ok {
		return nil, xerrors.Errorf("splitter: the key you asked for, %v, was not in the list of keys to retrieve", key)
	}
	return &SplitterOutput{splitter: s, key: key}, nil
}

//SplitterOutput is the child sequence of a Splitter for one key.
type SplitterOutput struct {
	splitter *Splitter
	key      interface{}
}

//Next implements Sequence.
func (o *SplitterOutput) Next() (interface{}, error) {
	return o.splitter.pull(o.key)
}

func (s *Splitter) pull(key interface{}) (interface{}, error) {
	if len(s.queues[key]) == 0 {
		if err := s.pullInput(); err != nil {
			return nil, err
		}
	}
	queue := s.queues[key]
	if len(queue) == 0 {
		return nil, ErrStopIteration
	}
	v := queue[0]
	s.queues[key] = queue[1:]
	return v, nil
}

/*pullInput advances the upstream by one composite and distributes its
components across every key's queue.

For an async upstream the request is raised at most once: a child that
finds a request already outstanding waits alongside it, and whichever
waiter sees the value first consumes and distributes it.  The wait is
cancellable so the other waiters notice the flag clearing and return to
find their queues refilled.*/
func (s *Splitter) pullInput() error {
	var data interface{}

	if s.job != nil {
		if !s.waitingForNext {
			s.waitingForNext = true
			s.job.requestData()
		}

		s.job.waitForNext(func() bool { return !s.waitingForNext })

		if !s.waitingForNext {
			// a sibling consumed the outstanding request and
			// distributed on our behalf
			return nil
		}
		v, err := s.job.getData(false)
		s.waitingForNext = false
		if err != nil {
			return err
		}
		data = v
	} else {
		v, err := s.input.Next()
		if err != nil {
			return err
		}
		data = v
	}

	for _, key := range s.keys {
		component, err := indexValue(data, key)
		if err != nil {
			return err
		}
		s.queues[key] = append(s.queues[key], component)
	}
	return nil
}

//indexValue extracts the component of a composite upstream value for
//one key: slices and arrays index by int, maps by a key of their key
//type.
func indexValue(data, key interface{}) (interface{}, error) {
	rv := reflect.ValueOf(data)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		i, ok := key.(int)
		if !ok {
			return nil, xerrors.Errorf("splitter: cannot index %T with key %v", data, key)
		}
		if i < 0 || i >= rv.Len() {
			return nil, xerrors.Errorf("splitter: index %d out of range for %T of length %d", i, data, rv.Len())
		}
		return rv.Index(i).Interface(), nil
	case reflect.Map:
		kv := reflect.ValueOf(key)
		if !kv.IsValid() || !kv.Type().AssignableTo(rv.Type().Key()) {
			return nil, xerrors.Errorf("splitter: cannot index %T with key %v", data, key)
		}
		elem := rv.MapIndex(kv)
		if !elem.IsValid() {
			return nil, xerrors.Errorf("splitter: %T has no key %v", data, key)
		}
		return elem.Interface(), nil
	}
	return nil, xerrors.Errorf("splitter: value of type %T is not indexable", data)
}
