package metrics

import "github.com/joeydtaylor/layman/pkg/layman"

// DispatchObserver feeds dispatcher events into Prometheus.
type DispatchObserver struct{}

var _ layman.Observer = DispatchObserver{}

func (DispatchObserver) LayerInvoked(_ layman.Layer, async bool) {
	if async {
		layersInvoked.WithLabelValues("async").Inc()
		return
	}
	layersInvoked.WithLabelValues("sync").Inc()
}

func (DispatchObserver) Suspended() { suspensions.Inc() }

func (DispatchObserver) Finished(stopped bool) {
	if stopped {
		dispatchesFinished.WithLabelValues("stopped").Inc()
		return
	}
	dispatchesFinished.WithLabelValues("exhausted").Inc()
}
