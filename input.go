package asyncgen

import (
	"golang.org/x/xerrors"

	"github.com/brandonshearin/asyncgen/transport"
)

/*AsyncInput stands in for a declared input inside a worker context.
The generator sees it in place of the iterable the caller passed.  Each
advance round-trips to the driver: Next sends pull_input for the
declared key and blocks until exactly one reply arrives.  Values handed
off as tempfiles are materialized here, inside the worker, so the
driver never pays for decoding them.*/
type AsyncInput struct {
	key     string
	channel *transport.Channel
}

//Key returns the declared input name this proxy serves.
func (in *AsyncInput) Key() string { return in.key }

//Next requests one value on the input's key.  An upstream ending is
//observed as ErrStopIteration; any other upstream error arrives
//verbatim, so the generator may handle it or let it propagate.
func (in *AsyncInput) Next() (interface{}, error) {
	in.channel.Send(transport.Message{Tag: tagPullInput, Value: in.key})

	reply := in.channel.Receive()
	switch reply.Tag {
	case tagNextInput:
		return reply.Value, nil
	case tagNextInputTempfile:
		return materializeTempfile(reply.Value.(string))
	case tagException:
		return nil, reply.Value.(error)
	default:
		return nil, xerrors.Errorf("asyncgen: AsyncInput: unexpected reply %q", reply.Tag)
	}
}
