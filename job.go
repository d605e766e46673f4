package asyncgen

import (
	"context"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/brandonshearin/asyncgen/transport"
)

//readyDatum is one materialized-but-unconsumed output of a job: a
//plain value, a tempfile path, or a latched exception.
type readyDatum struct {
	tag   string
	value interface{}
}

//pendingInput records a worker blocked waiting for a value on one of
//its declared inputs.
type pendingInput struct {
	worker *worker
	name   string
}

/*Job is the driver for one call of a wrapped generator function.  It
owns the call's workers, dispatches output pulls under the buffer
bound, services the workers' input pulls by reading from the upstream
sequences bound at call time, and surfaces values and exceptions to its
own consumer.  Job implements Sequence, so a job can be passed directly
as the input of another call.

Every worker is in exactly one of idle, busy, waiting-for-input or
terminated.  A worker moves busy to idle only by delivering a value;
it terminates on quit or on raising.*/
type Job struct {
	id string

	idleWorkers         []*worker
	busyWorkers         []*worker
	workersWaitingInput []pendingInput
	readyData           []readyDatum

	input map[string]Sequence

	bufferSize     int
	tempfileOutput bool

	//waitingData counts the consumer reads currently outstanding; it
	//is one half of the dispatch bound bufferSize+waitingData.
	waitingData   int
	stopIteration bool

	queue *WorkerQueue
}

func newJob(fn Generator, args Args, inputNames []string, opts Options) (*Job, error) {
	j := &Job{
		id:             uuid.NewString(),
		input:          make(map[string]Sequence, len(inputNames)),
		bufferSize:     opts.Buffer,
		tempfileOutput: opts.TempfileOutput,
		queue:          defaultQueue,
	}

	args = cloneArgs(args)
	for _, name := range inputNames {
		raw, ok := args[name]
		if !ok {
			return nil, xerrors.Errorf("did not find async input named %q - did you pass it as a named argument?", name)
		}
		seq, err := AsSequence(raw)
		if err != nil {
			return nil, err
		}
		// the worker side installs its own proxy under this name
		delete(args, name)
		j.input[name] = seq
	}

	for c := 0; c < opts.Workers; c++ {
		ch, err := j.launchWorker(fn, args, inputNames)
		if err != nil {
			j.quitIdleWorkers()
			return nil, err
		}
		w := &worker{channel: ch, job: j}
		j.idleWorkers = append(j.idleWorkers, w)
		j.queue.addChannel(ch, w)
	}
	j.queue.register(j)

	log.WithFields(log.Fields{"job": j.id, "workers": opts.Workers}).Debug("asyncgen: job spawned")
	return j, nil
}

/*launchWorker spawns one worker context and waits for its ready
handshake.  A worker that raises before ready surfaces the error here,
synchronously.  A worker that asks for input before ready is a
generator function doing its reads eagerly, which the lazy protocol
cannot serve.*/
func (j *Job) launchWorker(fn Generator, args Args, inputNames []string) (*transport.Channel, error) {
	ch := transport.Spawn(func(ctx context.Context, wch *transport.Channel) {
		runWorker(ctx, wch, fn, args, inputNames)
	})

	msg := ch.Receive()
	switch msg.Tag {
	case tagReady:
		return ch, nil
	case tagException:
		return nil, msg.Value.(error)
	case tagPullInput:
		return nil, xerrors.New("asyncgen: all async functions must be generators; this one consumed an input before returning its sequence")
	default:
		return nil, xerrors.Errorf("asyncgen: worker context did not start up correctly (got %q)", msg.Tag)
	}
}

//quitIdleWorkers tears down the workers spawned so far when a later
//launch fails.  Idle workers are parked in Receive, so quit reaches
//them immediately.
func (j *Job) quitIdleWorkers() {
	for _, w := range j.idleWorkers {
		w.send(transport.Message{Tag: tagQuit})
		j.queue.removeChannel(w.channel)
	}
	j.idleWorkers = nil
}

/*doPrePoll makes sure no worker is blocking on this job, to avoid
deadlocks.  Called once per scheduler tick: first it fills the dispatch
window - while a worker is idle and the in-flight count is under
bufferSize+waitingData, one more output pull goes out - then it answers
every input pull the workers have raised, pulling one value from the
upstream bound to that input name.*/
func (j *Job) doPrePoll() {
	for len(j.idleWorkers) > 0 &&
		len(j.readyData)+len(j.busyWorkers) < j.bufferSize+j.waitingData {
		w := j.idleWorkers[0]
		j.idleWorkers = j.idleWorkers[1:]
		j.busyWorkers = append(j.busyWorkers, w)
		if j.tempfileOutput {
			w.send(transport.Message{Tag: tagPullOutputTempfile})
		} else {
			w.send(transport.Message{Tag: tagPullOutput})
		}
	}

	if len(j.idleWorkers) == 0 && len(j.busyWorkers) == 0 && len(j.readyData) == 0 {
		j.latchStop()
	}

	for len(j.workersWaitingInput) > 0 {
		pending := j.workersWaitingInput[0]
		j.workersWaitingInput = j.workersWaitingInput[1:]
		j.serveInput(pending.worker, pending.name)
	}
}

/*serveInput answers one worker's pull on the named input.  When the
upstream is itself a tempfile-producing job and this job also hands off
tempfiles, the path is forwarded as-is - the value would otherwise be
decoded here only to be re-encoded by the worker.  Every upstream
error, ErrStopIteration included, is forwarded verbatim; the generator
observes the upstream ending as the end of that input.*/
func (j *Job) serveInput(w *worker, name string) {
	src, ok := j.input[name]
	if !ok {
		w.send(transport.Message{Tag: tagException, Value: xerrors.Errorf("asyncgen: no async input named %q", name)})
		return
	}

	if up, isJob := src.(*Job); isJob && up.tempfileOutput && j.tempfileOutput {
		path, err := up.NextTempfile()
		if err != nil {
			w.send(transport.Message{Tag: tagException, Value: err})
			return
		}
		w.send(transport.Message{Tag: tagNextInputTempfile, Value: path})
		return
	}

	v, err := src.Next()
	if err != nil {
		w.send(transport.Message{Tag: tagException, Value: err})
		return
	}
	w.send(transport.Message{Tag: tagNextInput, Value: v})
}

//workerHasMessage dispatches one message read off a worker's channel.
func (j *Job) workerHasMessage(w *worker, msg transport.Message) {
	switch msg.Tag {
	case tagPullInput:
		j.workersWaitingInput = append(j.workersWaitingInput, pendingInput{worker: w, name: msg.Value.(string)})

	case tagNextValue, tagNextValueTempfile:
		j.readyData = append(j.readyData, readyDatum{tag: msg.Tag, value: msg.Value})
		j.removeBusy(w)
		j.idleWorkers = append(j.idleWorkers, w)

	case tagStopIteration:
		w.send(transport.Message{Tag: tagQuit})
		j.removeBusy(w)
		j.queue.removeChannel(w.channel)
		j.doPrePoll()

	case tagException:
		err := msg.Value.(error)
		//the error is the next thing the consumer sees: pending values
		//are dropped.  A second exception arriving before the first is
		//consumed joins it instead of replacing it.
		if len(j.readyData) == 1 && j.readyData[0].tag == tagException {
			err = multierror.Append(j.readyData[0].value.(error), err)
		}
		j.readyData = []readyDatum{{tag: tagException, value: err}}
		j.removeBusy(w)
		j.queue.removeChannel(w.channel)
		log.WithFields(log.Fields{"job": j.id, "error": err}).Debug("asyncgen: worker exception latched")

	default:
		panic(xerrors.Errorf("asyncgen: Job.workerHasMessage: message %q not implemented", msg.Tag))
	}
}

func (j *Job) removeBusy(w *worker) {
	for i, busy := range j.busyWorkers {
		if busy == w {
			j.busyWorkers = append(j.busyWorkers[:i], j.busyWorkers[i+1:]...)
			return
		}
	}
}

//latchStop marks the job exhausted for good: every subsequent advance
//reports ErrStopIteration.
func (j *Job) latchStop() {
	if j.stopIteration {
		return
	}
	j.stopIteration = true
	j.queue.unregister(j)
	log.WithField("job", j.id).Debug("asyncgen: job stop latched")
}

func (j *Job) requestData() { j.waitingData++ }

//waitForNext ticks the shared scheduler until this job has a ready
//datum, has latched stop, or cancelled reports true.  Each tick lets
//every job in the process make progress, so blocking here never stalls
//the rest of the pipeline.
func (j *Job) waitForNext(cancelled func() bool) {
	for len(j.readyData) == 0 && !j.stopIteration && !(cancelled != nil && cancelled()) {
		j.queue.tick()
	}
}

func (j *Job) getData(wantTempfile bool) (interface{}, error) {
	j.waitingData--

	if j.stopIteration {
		return nil, ErrStopIteration
	}

	datum := j.readyData[0]
	j.readyData = j.readyData[1:]
	switch datum.tag {
	case tagNextValue:
		if wantTempfile {
			return nil, xerrors.New("asyncgen: tempfile data was requested; worker returned normal data")
		}
		return datum.value, nil
	case tagNextValueTempfile:
		path := datum.value.(string)
		if wantTempfile {
			return path, nil
		}
		return consumerMaterialize(path)
	case tagException:
		j.latchStop()
		return nil, datum.value.(error)
	default:
		panic(xerrors.Errorf("asyncgen: Job.getData: datum %q not implemented", datum.tag))
	}
}

//Next advances the job's output by one value, driving the shared
//scheduler while it waits.  Implements Sequence.
func (j *Job) Next() (interface{}, error) {
	j.requestData()
	j.waitForNext(nil)
	return j.getData(false)
}

/*NextTempfile advances the job's output and returns the scratch-file
path holding the next serialized value, without materializing it.  Only
valid on jobs configured with TempfileOutput; ownership of the file
passes to the caller, who must redeem the path destructively.*/
func (j *Job) NextTempfile() (string, error) {
	j.requestData()
	j.waitForNext(nil)
	v, err := j.getData(true)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
