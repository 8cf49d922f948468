package registry

type EventKind int

const (
	// EventChanged fires after any change to either collection view.
	EventChanged EventKind = iota + 1
	// EventSuggestionsCleared tells the presentation layer to drop the active
	// suggestions and search query.
	EventSuggestionsCleared
	// EventNotification carries a non-fatal ledger failure.
	EventNotification
)

func (k EventKind) String() string {
	switch k {
	case EventChanged:
		return "changed"
	case EventSuggestionsCleared:
		return "suggestions_cleared"
	case EventNotification:
		return "notification"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind EventKind
	Key  string
	Err  error
}

// EventSink receives events outside the registry lock. It must not block.
type EventSink func(Event)
