package asyncgen

import (
	log "github.com/sirupsen/logrus"

	"github.com/brandonshearin/asyncgen/transport"
)

/*WorkerQueue is the process-wide scheduler.  Every live job registers
here, and every worker channel is watched by the one shared poller, so
a single blocking wait serves the whole pipeline graph: while one
stage's consumer waits for a value, upstream stages keep being polled
and keep making progress.

There is exactly one instance per process.  The driver side is
cooperative and single-goroutine; ticking the queue from multiple
goroutines at once is not supported.*/
type WorkerQueue struct {
	poller  *transport.Poller
	jobs    []*Job
	workers map[*transport.Channel]*worker
}

var defaultQueue = newWorkerQueue()

func newWorkerQueue() *WorkerQueue {
	return &WorkerQueue{
		poller:  transport.NewPoller(),
		workers: make(map[*transport.Channel]*worker),
	}
}

func (q *WorkerQueue) register(j *Job) {
	q.jobs = append(q.jobs, j)
}

func (q *WorkerQueue) unregister(j *Job) {
	for i, job := range q.jobs {
		if job == j {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return
		}
	}
}

func (q *WorkerQueue) addChannel(ch *transport.Channel, w *worker) {
	q.workers[ch] = w
	q.poller.Add(ch)
}

func (q *WorkerQueue) removeChannel(ch *transport.Channel) {
	delete(q.workers, ch)
	q.poller.Remove(ch)
}

/*tick runs one scheduling step: every registered job refills its
dispatch window and answers its workers' pending input pulls, then the
poller blocks until at least one worker has spoken, and the readable
batch is delivered.  Serving an input pull may re-enter tick through an
upstream job's Next; that is safe because doPrePoll is idempotent and
all state is per-job.*/
func (q *WorkerQueue) tick() {
	// pre-polling can register and unregister jobs under us
	jobs := make([]*Job, len(q.jobs))
	copy(jobs, q.jobs)
	for _, j := range jobs {
		j.doPrePoll()
	}

	if !q.poller.Active() {
		return
	}
	for _, ev := range q.poller.Poll() {
		w, ok := q.workers[ev.Channel]
		if !ok {
			// the channel was dropped while this batch was in flight
			log.WithField("channel", ev.Channel.ID()).Debug("asyncgen: message on removed channel discarded")
			continue
		}
		w.job.workerHasMessage(w, ev.Message)
	}
}
