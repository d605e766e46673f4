package asyncgen

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/brandonshearin/asyncgen/transport"
)

//Worker protocol tags.  The protocol is synchronous per direction but
//interleaved between directions: a worker may emit pull_input between
//receiving pull_output and answering it.
const (
	// worker -> driver
	tagReady             = "ready"
	tagPullInput         = "pull_input"
	tagNextValue         = "next_value"
	tagNextValueTempfile = "next_value_tempfile"
	tagStopIteration     = "stop_iteration"
	tagException         = "exception"

	// driver -> worker
	tagPullOutput         = "pull_output"
	tagPullOutputTempfile = "pull_output_tempfile"
	tagNextInput          = "next_input"
	tagNextInputTempfile  = "next_input_tempfile"
	tagQuit               = "quit"
)

//worker is the driver-side handle for one worker context.
type worker struct {
	channel *transport.Channel
	job     *Job
}

func (w *worker) send(msg transport.Message) { w.channel.Send(msg) }

/*runWorker is the body of one worker context.  It obtains the user
sequence, emits the ready handshake, then serves driver commands until
told to quit.  Exactly one of next_value, next_value_tempfile,
stop_iteration or exception answers each pull.*/
func runWorker(ctx context.Context, ch *transport.Channel, fn Generator, args Args, inputNames []string) {
	defer func() {
		if r := recover(); r != nil {
			ch.Send(transport.Message{Tag: tagException, Value: recoveredError(r)})
		}
	}()

	// every context gets its own proxies; the driver-side args never
	// carry a channel
	args = cloneArgs(args)
	for _, name := range inputNames {
		args[name] = &AsyncInput{key: name, channel: ch}
	}

	seq, err := fn(ctx, args)
	if err == nil && seq == nil {
		err = xerrors.New("asyncgen: generator function returned a nil sequence")
	}
	if err != nil {
		ch.Send(transport.Message{Tag: tagException, Value: err})
		return
	}
	ch.Send(transport.Message{Tag: tagReady})

	for {
		cmd := ch.Receive()
		switch cmd.Tag {
		case tagPullOutput, tagPullOutputTempfile:
			reply := nextValueMessage(seq, cmd.Tag == tagPullOutputTempfile)
			ch.Send(reply)
			if reply.Tag == tagException {
				// raising terminates the worker; the driver will not
				// speak to this context again
				return
			}
		case tagQuit:
			return
		default:
			ch.Send(transport.Message{
				Tag:   tagException,
				Value: xerrors.Errorf("asyncgen: worker: command %q not implemented", cmd.Tag),
			})
			return
		}
	}
}

//nextValueMessage advances seq once and builds the reply for the
//driver's pull.
func nextValueMessage(seq Sequence, tempfile bool) transport.Message {
	v, err := seq.Next()
	if err == ErrStopIteration {
		return transport.Message{Tag: tagStopIteration}
	}
	if err != nil {
		return transport.Message{Tag: tagException, Value: err}
	}
	if tempfile {
		path, err := writeTempfile(v)
		if err != nil {
			return transport.Message{Tag: tagException, Value: err}
		}
		return transport.Message{Tag: tagNextValueTempfile, Value: path}
	}
	return transport.Message{Tag: tagNextValue, Value: v}
}

func recoveredError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return xerrors.Errorf("asyncgen: worker panic: %v", r)
}
