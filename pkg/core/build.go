package core

import (
	"fmt"

	"github.com/joeydtaylor/layman/pkg/layman"
	manifest "github.com/joeydtaylor/layman/pkg/manifest"
	"github.com/joeydtaylor/layman/pkg/middleware/logger"
	"go.uber.org/zap"
)

// BuildDispatcher turns a validated manifest into a dispatcher. Ambient
// layers come first in this order: auth, metrics, access log. The manifest
// layers follow in declaration order.
func BuildDispatcher(cfg manifest.Config, deps BuildDeps) (*layman.Dispatcher, error) {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Creds == nil {
		deps.Creds = NewPolicyProvider(deps.Auth)
	}

	b := &builder{
		cfg:     cfg,
		deps:    deps,
		groups:  make(map[string]*manifest.Group, len(cfg.Groups)),
		built:   map[string]*layman.Dispatcher{},
		visited: map[string]bool{},
	}
	for i := range cfg.Groups {
		b.groups[cfg.Groups[i].Name] = &cfg.Groups[i]
	}

	d, err := b.dispatcher(cfg.Dispatcher)
	if err != nil {
		return nil, err
	}

	if cfg.Auth.Enabled && deps.Auth != nil {
		use(d, deps.Auth.Layer())
	}
	if cfg.Metrics.Enabled && deps.Metrics != nil {
		deps.Metrics.AddSkipPaths(cfg.Metrics.Path)
		deps.Metrics.AddSkipPaths(cfg.Metrics.SkipPaths...)
		use(d, deps.Metrics.Layer())
	}
	if cfg.Logging.AccessLog && deps.LogMW != nil {
		deps.LogMW.AddBodyLogPaths(cfg.Logging.BodyPaths...)
		if cfg.Logging.Pretty {
			deps.LogMW.SetPretty(logger.NewPretty(nil))
		}
		use(d, deps.LogMW.Layer())
	}

	if err := b.register(d, cfg.Layers); err != nil {
		return nil, err
	}
	deps.Log.Info("dispatcher built",
		zap.Int("layers", len(d.Layers())),
		zap.Int("groups", len(cfg.Groups)),
		zap.Bool("autoEnd", d.AutoEnd()),
		zap.Bool("autoAsync", d.AutoAsync()),
	)
	return d, nil
}

type builder struct {
	cfg     manifest.Config
	deps    BuildDeps
	groups  map[string]*manifest.Group
	built   map[string]*layman.Dispatcher
	visited map[string]bool // groups on the current build path
}

func (b *builder) dispatcher(dc manifest.Dispatcher) (*layman.Dispatcher, error) {
	re, err := dc.CompileHostPattern()
	if err != nil {
		return nil, err
	}
	opts := []layman.Option{
		layman.WithAutoEnd(dc.AutoEndOr(true)),
		layman.WithAutoAsync(dc.AutoAsync),
		layman.WithLogger(b.deps.Log),
	}
	if re != nil {
		opts = append(opts, layman.WithHostPattern(re))
	}
	if b.deps.Observer != nil {
		opts = append(opts, layman.WithObserver(b.deps.Observer))
	}
	return layman.New(opts...), nil
}

func (b *builder) register(d *layman.Dispatcher, ls []manifest.Layer) error {
	for i, l := range ls {
		h, err := b.handler(l)
		if err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
		if l.Policy.TimeoutMS > 0 {
			h = withTimeout(h, l.Policy.TimeoutMS)
		}
		h = withGuard(h, b.deps.Auth, l.Guard)
		use(d, h, layerOptions(l)...)
	}
	return nil
}

// group builds (once) the nested dispatcher for name.
func (b *builder) group(name string) (*layman.Dispatcher, error) {
	if d, ok := b.built[name]; ok {
		return d, nil
	}
	g, ok := b.groups[name]
	if !ok {
		return nil, fmt.Errorf("group %q not declared", name)
	}
	if b.visited[name] {
		return nil, fmt.Errorf("group %q includes itself", name)
	}
	b.visited[name] = true
	defer delete(b.visited, name)

	d, err := b.dispatcher(g.Dispatcher)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", name, err)
	}
	if err := b.register(d, g.Layers); err != nil {
		return nil, fmt.Errorf("group %q: %w", name, err)
	}
	b.built[name] = d
	return d, nil
}

// use registers h, settling its result through the continuation when d
// will run it connect-style.
func use(d *layman.Dispatcher, h layman.Handler, opts ...layman.LayerOption) {
	if runsAsync(d, opts) {
		h = settle(h)
	}
	d.Use(h, opts...)
}

func layerOptions(l manifest.Layer) []layman.LayerOption {
	var opts []layman.LayerOption
	if l.Route != "" {
		opts = append(opts, layman.Route(l.Route))
	}
	if l.Method != "" {
		opts = append(opts, layman.Method(l.Method))
	}
	if l.Host != "" {
		opts = append(opts, layman.OnHost(l.Host))
	}
	switch {
	case l.Async, l.Handler.Type == manifest.HandlerRelay, l.Handler.Type == manifest.HandlerProxy:
		opts = append(opts, layman.Async())
	}
	return opts
}
