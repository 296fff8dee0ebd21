package manifest

// HandlerType enumerates the supported layer handler kinds.
type HandlerType string

const (
	HandlerInproc  HandlerType = "inproc"
	HandlerRespond HandlerType = "respond"
	HandlerRelay   HandlerType = "relay"
	HandlerProxy   HandlerType = "proxy"
	HandlerGroup   HandlerType = "group"
)
