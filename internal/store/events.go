package store

import "github.com/roach88/statekit/internal/event"

// Lifecycle event types. Payloads:
//
//	BeforeInitialize   *Transition (Next is the initial value; handlers may replace it)
//	AfterInitialize    the initial value
//	BeforeFirstUse     current value
//	AfterFirstUse      current value
//	AfterFirstMount    *subscriber.Descriptor
//	AfterMount         *subscriber.Descriptor
//	AfterUnmount       *subscriber.Descriptor
//	AfterLastUnmount   *subscriber.Descriptor
//	BeforeUpdate       *Transition (PreventDefault vetoes; handlers may replace Next)
//	AfterUpdate        *Transition (Prev is the value before the first commit of the wave)
//	SetterException    *SetterError
//	SetterRejection    *SetterError
//	BeforePlugin       nil
//	AfterPlugin        the plugin initializer's result
const (
	BeforeInitialize event.Type = "BeforeInitialize"
	AfterInitialize  event.Type = "AfterInitialize"
	BeforeFirstUse   event.Type = "BeforeFirstUse"
	AfterFirstUse    event.Type = "AfterFirstUse"
	AfterFirstMount  event.Type = "AfterFirstMount"
	AfterMount       event.Type = "AfterMount"
	AfterUnmount     event.Type = "AfterUnmount"
	AfterLastUnmount event.Type = "AfterLastUnmount"
	BeforeUpdate     event.Type = "BeforeUpdate"
	AfterUpdate      event.Type = "AfterUpdate"
	SetterException  event.Type = "SetterException"
	SetterRejection  event.Type = "SetterRejection"
	BeforePlugin     event.Type = "BeforePlugin"
	AfterPlugin      event.Type = "AfterPlugin"
)

// Transition is the payload of update events.
type Transition struct {
	Prev any
	Next any
}
