package transport

import "reflect"

//Event pairs a readable channel with the message that was read from it.
type Event struct {
	Channel *Channel
	Message Message
}

/*Poller multiplexes over a dynamic set of channels.  The channel set
changes as workers spawn and terminate, so a fixed select statement
cannot serve here; Poll builds its cases from the live set on every
call.*/
type Poller struct {
	channels []*Channel
}

//NewPoller returns an empty poller.
func NewPoller() *Poller { return new(Poller) }

//Add registers ch so that Poll watches it.
func (p *Poller) Add(ch *Channel) {
	p.channels = append(p.channels, ch)
}

//Remove drops ch from the watched set.  Messages still buffered on ch
//are no longer observable through the poller.
func (p *Poller) Remove(ch *Channel) {
	for i, c := range p.channels {
		if c == ch {
			p.channels = append(p.channels[:i], p.channels[i+1:]...)
			return
		}
	}
}

//Active reports whether any channel is still being watched.
func (p *Poller) Active() bool { return len(p.channels) > 0 }

/*Poll blocks until at least one watched channel has a message, then
returns one event for every channel that is readable at that moment.
The protocol allows a single outstanding message per channel, so one
read per channel drains everything observable.*/
func (p *Poller) Poll() []Event {
	for {
		if len(p.channels) == 0 {
			return nil
		}

		cases := make([]reflect.SelectCase, len(p.channels))
		for i, c := range p.channels {
			cases[i] = reflect.SelectCase{
				Dir:  reflect.SelectRecv,
				Chan: reflect.ValueOf(c.in),
			}
		}

		chosen, recv, ok := reflect.Select(cases)
		if !ok {
			// a closed endpoint can never carry another message
			p.Remove(p.channels[chosen])
			continue
		}

		events := []Event{{Channel: p.channels[chosen], Message: recv.Interface().(Message)}}
		for i, c := range p.channels {
			if i == chosen {
				continue
			}
			select {
			case msg := <-c.in:
				events = append(events, Event{Channel: c, Message: msg})
			default:
			}
		}
		return events
	}
}
