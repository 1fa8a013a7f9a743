package animation

// EventType identifies a model notification.
type EventType int

const (
	// GroupStarted fires when a group is created or an existing group is
	// refreshed by a matching restart.
	GroupStarted EventType = iota
	// ModelReset fires after all model state was cleared.
	ModelReset
)

func (t EventType) String() string {
	switch t {
	case GroupStarted:
		return "GroupStarted"
	case ModelReset:
		return "ModelReset"
	default:
		return "Unknown"
	}
}

// Event is delivered to observers on the model's loop.
type Event struct {
	Type  EventType
	Group *Group
	// Merged is set when Group absorbed an equivalent restarted group.
	Merged bool
}

// Observer receives model events.
type Observer func(Event)

type subscription struct {
	id int
	fn Observer
}
