package layman

// Observer receives dispatch events. Implementations must be safe for
// concurrent use.
type Observer interface {
	// LayerInvoked is called right before a matching layer runs.
	LayerInvoked(l Layer, async bool)
	// Suspended is called when a chain parks waiting for its continuation.
	Suspended()
	// Finished is called once per dispatch; stopped is true when a layer
	// returned Stop.
	Finished(stopped bool)
}

type nopObserver struct{}

func (nopObserver) LayerInvoked(Layer, bool) {}
func (nopObserver) Suspended()               {}
func (nopObserver) Finished(bool)            {}
