// Package layman is a small layer dispatcher for net/http.
//
// A Dispatcher holds an ordered list of layers. Each layer may be limited to
// a route, a method and a host; every layer that matches a request runs, in
// registration order, until one returns Stop, the list runs out, or a layer
// suspends the chain:
//
//	d := layman.New()
//	d.Use(layman.HandlerFunc(logRequest))
//	d.Get(layman.HandlerFunc(hello), layman.Route("/hello"))
//	d.Host("api.example.com", apiDispatcher)
//	http.ListenAndServe(":8080", d)
//
// # Suspension
//
// A layer that starts work elsewhere returns Suspend (or is registered with
// Connect / Async) and later calls next.Resume() to run the remaining
// layers. Each suspension has its own continuation, so concurrent requests
// never share resume state.
//
// # Finalizing
//
// When the chain finishes the response is ended, unless AutoEnd is off or
// the dispatcher runs nested inside another one. Layers can end it
// themselves with w.End(); ServeHTTP returns once that has happened.
package layman
