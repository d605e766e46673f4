package asyncgen

/*Map zips N lazy sequences with a combining function, synchronously.
On each step every input is advanced independently; inputs that have
already ended contribute nil, so fn must be prepared to see the
sentinel.  The map ends only when every input has ended on the same
step, giving it the length of its longest input.*/
func Map(fn func(values []interface{}) (interface{}, error), inputs ...interface{}) (Sequence, error) {
	seqs := make([]Sequence, len(inputs))
	for i, in := range inputs {
		seq, err := AsSequence(in)
		if err != nil {
			return nil, err
		}
		seqs[i] = seq
	}

	done := make([]bool, len(seqs))
	return SequenceFunc(func() (interface{}, error) {
		hasNext := false
		values := make([]interface{}, len(seqs))
		for i, seq := range seqs {
			if done[i] {
				continue
			}
			v, err := seq.Next()
			if err == ErrStopIteration {
				done[i] = true
				continue
			}
			if err != nil {
				return nil, err
			}
			values[i] = v
			hasNext = true
		}
		if !hasNext {
			return nil, ErrStopIteration
		}
		return fn(values)
	}), nil
}
