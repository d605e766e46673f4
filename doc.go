/*Package asyncgen is a parallel generator pipeline runtime.  A
generator function is wrapped once (see Wrap) and every call of the
wrapped function runs in one or more isolated worker contexts, while the
caller iterates the call's output as a lazy Sequence.  Jobs wire
together by passing one job as the named input of another, so pipelines
of arbitrary depth run concurrently with each stage pulling values on
demand.

The driver side is cooperative and single-goroutine: all jobs in the
process share one WorkerQueue, and every consumer read is a scheduling
point for the entire pipeline.  Consuming jobs from multiple goroutines
at once is not supported.  Worker contexts run in parallel with each
other, but a generator that closes over mutable state shared with other
contexts must synchronize that state itself.*/
package asyncgen
