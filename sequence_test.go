package asyncgen

import (
	gc "gopkg.in/check.v1"
	"golang.org/x/xerrors"
)

var _ = gc.Suite(new(SequenceTestSuite))

type SequenceTestSuite struct{}

func (s *SequenceTestSuite) TestFromSlice(c *gc.C) {
	vals, err := Collect(FromSlice(1, "two", 3.0))
	c.Assert(err, gc.IsNil)
	c.Assert(vals, gc.DeepEquals, []interface{}{1, "two", 3.0})

	vals, err = Collect(FromSlice())
	c.Assert(err, gc.IsNil)
	c.Assert(vals, gc.HasLen, 0)
}

func (s *SequenceTestSuite) TestAsSequenceAdaptsSlices(c *gc.C) {
	seq, err := AsSequence([]int{1, 2})
	c.Assert(err, gc.IsNil)
	vals, err := Collect(seq)
	c.Assert(err, gc.IsNil)
	c.Assert(vals, gc.DeepEquals, []interface{}{1, 2})

	seq, err = AsSequence([2]string{"x", "y"})
	c.Assert(err, gc.IsNil)
	vals, err = Collect(seq)
	c.Assert(err, gc.IsNil)
	c.Assert(vals, gc.DeepEquals, []interface{}{"x", "y"})
}

func (s *SequenceTestSuite) TestAsSequencePassesSequencesThrough(c *gc.C) {
	// a pointer-typed Sequence, so identity can be compared with ==;
	// SequenceFunc values are funcs and not comparable
	var orig Sequence = &AsyncInput{key: "i"}
	seq, err := AsSequence(orig)
	c.Assert(err, gc.IsNil)
	c.Assert(seq, gc.Equals, orig)
}

func (s *SequenceTestSuite) TestAsSequenceRejectsNonIterables(c *gc.C) {
	_, err := AsSequence(42)
	c.Assert(err, gc.ErrorMatches, ".*expected all the async inputs to be iterable.*")

	_, err = AsSequence(nil)
	c.Assert(err, gc.ErrorMatches, ".*expected all the async inputs to be iterable.*")
}

func (s *SequenceTestSuite) TestCollectStopsAtError(c *gc.C) {
	i := 0
	seq := SequenceFunc(func() (interface{}, error) {
		i++
		if i == 3 {
			return nil, xerrors.New("third time is not the charm")
		}
		return i, nil
	})

	vals, err := Collect(seq)
	c.Assert(err, gc.ErrorMatches, ".*third time is not the charm.*")
	c.Assert(vals, gc.DeepEquals, []interface{}{1, 2})
}
