package asyncgen

import (
	"context"
	"time"

	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(SplitterTestSuite))

type SplitterTestSuite struct{}

func (s *SplitterTestSuite) TestColumnsInIsolation(c *gc.C) {
	src := FromSlice(
		[]interface{}{1, "a"},
		[]interface{}{2, "b"},
		[]interface{}{3, "c"},
	)
	split, err := NewSplitter(src, 0, 1)
	c.Assert(err, gc.IsNil)

	numbers, err := split.Get(0)
	c.Assert(err, gc.IsNil)
	letters, err := split.Get(1)
	c.Assert(err, gc.IsNil)

	vals, err := Collect(numbers)
	c.Assert(err, gc.IsNil)
	c.Assert(vals, gc.DeepEquals, []interface{}{1, 2, 3})

	// the sibling's column was buffered while the first child drained
	vals, err = Collect(letters)
	c.Assert(err, gc.IsNil)
	c.Assert(vals, gc.DeepEquals, []interface{}{"a", "b", "c"})
}

func (s *SplitterTestSuite) TestMapComposites(c *gc.C) {
	src := FromSlice(
		map[string]interface{}{"x": 1, "y": 2},
		map[string]interface{}{"x": 3, "y": 4},
	)
	split, err := NewSplitter(src, "x", "y")
	c.Assert(err, gc.IsNil)

	xs, err := split.Get("x")
	c.Assert(err, gc.IsNil)
	vals, err := Collect(xs)
	c.Assert(err, gc.IsNil)
	c.Assert(vals, gc.DeepEquals, []interface{}{1, 3})
}

func (s *SplitterTestSuite) TestUndeclaredKey(c *gc.C) {
	split, err := NewSplitter(FromSlice(), 0, 1)
	c.Assert(err, gc.IsNil)

	_, err = split.Get(7)
	c.Assert(err, gc.ErrorMatches, ".*the key you asked for, 7, was not in the list of keys.*")
}

func (s *SplitterTestSuite) TestIndexingFailureSurfaces(c *gc.C) {
	split, err := NewSplitter(FromSlice([]interface{}{1}), 0, 5)
	c.Assert(err, gc.IsNil)

	child, err := split.Get(5)
	c.Assert(err, gc.IsNil)
	_, err = child.Next()
	c.Assert(err, gc.ErrorMatches, ".*index 5 out of range.*")
}

func (s *SplitterTestSuite) TestNonIndexableValue(c *gc.C) {
	split, err := NewSplitter(FromSlice(42), 0)
	c.Assert(err, gc.IsNil)

	child, err := split.Get(0)
	c.Assert(err, gc.IsNil)
	_, err = child.Next()
	c.Assert(err, gc.ErrorMatches, ".*not indexable.*")
}

/*TestAsyncSiblingsCooperate wires three buffered async consumers to
the three keys of a splitter over an async source.  Each consumer
sleeps in proportion to the value it received, so the concatenated
event log pins down the cooperative schedule: siblings make progress
while any one of them is being waited on, and the k-th value each child
sees comes from the k-th upstream tuple.*/
func (s *SplitterTestSuite) TestAsyncSiblingsCooperate(c *gc.C) {
	events := new(eventLog)
	unit := 50 * time.Millisecond

	source := MustWrap(func(ctx context.Context, args Args) (Sequence, error) {
		return FromSlice(
			[]interface{}{3, 1, 0},
			[]interface{}{0, 1, 4},
			[]interface{}{0, 5, 0},
		), nil
	}, nil, Options{})

	srcJob, err := source.Call(nil)
	c.Assert(err, gc.IsNil)
	split, err := NewSplitter(srcJob, 0, 1, 2)
	c.Assert(err, gc.IsNil)

	consumer := func(label string) *Func {
		return MustWrap(func(ctx context.Context, args Args) (Sequence, error) {
			in := args.Input("i")
			return SequenceFunc(func() (interface{}, error) {
				v, err := in.Next()
				if err != nil {
					return nil, err
				}
				time.Sleep(time.Duration(v.(int)) * unit)
				events.add(label)
				return v, nil
			}), nil
		}, []string{"i"}, Options{Buffer: 1})
	}

	var jobs []*Job
	for i, label := range []string{"c", "b", "a"} {
		child, err := split.Get(i)
		c.Assert(err, gc.IsNil)
		job, err := consumer(label).Call(Args{"i": child})
		c.Assert(err, gc.IsNil)
		jobs = append(jobs, job)
	}

	// zip the siblings so all three are driven in lockstep
	zipped, err := Map(func(values []interface{}) (interface{}, error) {
		return values, nil
	}, jobs[0], jobs[1], jobs[2])
	c.Assert(err, gc.IsNil)

	rows, err := Collect(zipped)
	c.Assert(err, gc.IsNil)

	// each child received its own column, in upstream order: the rows
	// reassemble the original tuples
	c.Assert(rows, gc.DeepEquals, []interface{}{
		[]interface{}{3, 1, 0},
		[]interface{}{0, 1, 4},
		[]interface{}{0, 5, 0},
	})

	c.Assert(events.String(), gc.Equals, "abcccbaab",
		gc.Commentf("unexpected schedule: %v", events.snapshot()))
}
