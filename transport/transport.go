/*Package transport provides the isolation layer the asyncgen runtime is
built on: worker contexts, the full-duplex message channels connecting a
driver to its workers, and a poller that multiplexes over any number of
channels.

A worker context is a goroutine with its own identity. The driver and the
worker each hold one endpoint of the same link and exchange tagged
messages over it. Contexts never share an endpoint.*/
package transport

import (
	"context"

	"github.com/google/uuid"
)

//Message is the unit of exchange between a driver and a worker.  Every
//message carries a tag naming its meaning and an optional value.
type Message struct {
	Tag   string
	Value interface{}
}

/*Channel is one endpoint of a full-duplex message link.  Send never
blocks the caller for the single in-flight message the asyncgen protocol
allows; Receive blocks until the peer has sent.*/
type Channel struct {
	id  string
	out chan Message
	in  chan Message
}

//ID returns the identity shared by both endpoints of the link.
func (c *Channel) ID() string { return c.id }

//Send delivers msg to the peer endpoint.
func (c *Channel) Send(msg Message) { c.out <- msg }

//Receive blocks until the peer endpoint sends a message.
func (c *Channel) Receive() Message { return <-c.in }

//newPair wires up the two endpoints of a fresh link.  Each direction is
//buffered for one message so a well-behaved peer can send its single
//outstanding message and move on without rendezvousing.
func newPair() (driver, worker *Channel) {
	id := uuid.NewString()
	a := make(chan Message, 1)
	b := make(chan Message, 1)
	driver = &Channel{id: id, out: a, in: b}
	worker = &Channel{id: id, out: b, in: a}
	return driver, worker
}

//ContextFunc is the body of a worker context.  The supplied context
//carries the worker's identity (see ContextID) and the channel is the
//worker-side endpoint of the link back to the driver.
type ContextFunc func(ctx context.Context, ch *Channel)

type contextIDKey struct{}

/*Spawn starts fn in a new isolated worker context and returns the
driver-side endpoint of the link connecting to it.  The context id is
unique per spawn, so two workers of the same job are distinguishable
from each other and from the spawning caller.*/
func Spawn(fn ContextFunc) *Channel {
	driver, worker := newPair()
	ctx := context.WithValue(context.Background(), contextIDKey{}, worker.id)
	go fn(ctx, worker)
	return driver
}

//ContextID returns the identity of the worker context that owns ctx, or
//an empty string when ctx does not belong to a worker context.
func ContextID(ctx context.Context) string {
	id, _ := ctx.Value(contextIDKey{}).(string)
	return id
}
