package model

// Event is something that happens to a seat: a user action, a scan or a
// timeout detected by the reconciler.
type Event string

const (
	EvReserve   Event = "reserve"
	EvArrive    Event = "arrive"
	EvDepart    Event = "depart"
	EvCancel    Event = "cancel"
	EvNoShow    Event = "no_show"
	EvExpire    Event = "expire"
	EvAdminFree Event = "admin_free"
)

// Edge is one legal transition of the seat state machine.  Outcome is the
// ledger status written when the edge concludes a booking; it is empty for
// edges that do not touch the ledger.
type Edge struct {
	From    SeatStatus
	Event   Event
	To      SeatStatus
	Outcome BookingStatus
}

// Concludes reports whether taking the edge appends a ledger record.
func (e Edge) Concludes() bool { return e.Outcome != "" }

var transitionTable = []Edge{
	{From: SeatFree, Event: EvReserve, To: SeatPending},
	{From: SeatPending, Event: EvArrive, To: SeatActive},
	{From: SeatActive, Event: EvDepart, To: SeatFree, Outcome: BookingCompleted},

	{From: SeatPending, Event: EvCancel, To: SeatFree, Outcome: BookingCancelled},
	{From: SeatActive, Event: EvCancel, To: SeatFree, Outcome: BookingCancelled},

	// reconciler timeouts
	{From: SeatPending, Event: EvNoShow, To: SeatFree, Outcome: BookingNoShow},
	{From: SeatActive, Event: EvExpire, To: SeatFree, Outcome: BookingCompleted},

	{From: SeatPending, Event: EvAdminFree, To: SeatFree, Outcome: BookingAdminFreed},
	{From: SeatActive, Event: EvAdminFree, To: SeatFree, Outcome: BookingAdminFreed},
}

// Transition returns the edge leaving from on ev.  The second result is
// false when the event is not legal in that state.
func Transition(from SeatStatus, ev Event) (Edge, bool) {
	for _, e := range transitionTable {
		if e.From == from && e.Event == ev {
			return e, true
		}
	}
	return Edge{}, false
}
