package session

// Event is anything the session reports to its host. Delivery never
// blocks the engine: when the host falls behind, events are dropped and
// the host catches up through Status.
type Event interface {
	event()
}

// StateChanged reports a lifecycle transition
type StateChanged struct {
	From, To State
}

// IndexProgress reports how much of the source has been indexed
type IndexProgress struct {
	Scanned  int64
	Total    int64
	Lines    int
	Fraction float32
}

// IndexComplete is sent once a static source is fully indexed
type IndexComplete struct {
	Lines        int
	DecodeErrors int64
}

// RebuildProgress reports lines evaluated by the rebuild of Generation
type RebuildProgress struct {
	Generation uint64
	Done       int
	Total      int
}

// RebuildComplete is sent when the map for Generation is published
type RebuildComplete struct {
	Generation         uint64
	TotalFilteredCount int
	Accelerated        bool
}

// FilterFailed means the rebuild for Generation could not run; the
// previous map stays visible
type FilterFailed struct {
	Generation uint64
	Err        error
}

// StreamExtended reports lines appended by a live source
type StreamExtended struct {
	Generation         uint64
	TotalLines         int
	Added              []int
	TotalFilteredCount int
}

// SourceFailed carries the read error that moved the session to Error
type SourceFailed struct {
	Err error
}

func (StateChanged) event()    {}
func (IndexProgress) event()   {}
func (IndexComplete) event()   {}
func (RebuildProgress) event() {}
func (RebuildComplete) event() {}
func (FilterFailed) event()    {}
func (StreamExtended) event()  {}
func (SourceFailed) event()    {}
