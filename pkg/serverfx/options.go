package serverfx

import "os"

// Options allow per-service env keys/defaults without code duplication.
type Options struct {
	Service         string // for logs only
	ManifestEnv     string // e.g. "LAYMAN_MANIFEST"
	DefaultManifest string // e.g. "manifest.toml"
	ListenAddrEnv   string // e.g. "SERVER_LISTEN_ADDRESS"
	DefaultListen   string // e.g. ":4000"
	TLSCertEnv      string // e.g. "SSL_SERVER_CERTIFICATE"
	TLSKeyEnv       string // e.g. "SSL_SERVER_KEY"
}

type Option func(*Options)

func WithService(s string) Option            { return func(o *Options) { o.Service = s } }
func WithManifestEnv(k string) Option        { return func(o *Options) { o.ManifestEnv = k } }
func WithDefaultManifest(path string) Option { return func(o *Options) { o.DefaultManifest = path } }
func WithListenEnv(k string) Option          { return func(o *Options) { o.ListenAddrEnv = k } }
func WithDefaultListen(addr string) Option   { return func(o *Options) { o.DefaultListen = addr } }
func WithTLSCertKeyEnv(cert, key string) Option {
	return func(o *Options) { o.TLSCertEnv, o.TLSKeyEnv = cert, key }
}

func defaultOptions() Options {
	return Options{
		Service:         "layman",
		ManifestEnv:     "LAYMAN_MANIFEST",
		DefaultManifest: "manifest.toml",
		ListenAddrEnv:   "SERVER_LISTEN_ADDRESS",
		DefaultListen:   ":4000",
		TLSCertEnv:      "SSL_SERVER_CERTIFICATE",
		TLSKeyEnv:       "SSL_SERVER_KEY",
	}
}

func (o Options) manifestPath() string { return envOr(o.ManifestEnv, o.DefaultManifest) }
func (o Options) listenAddr() string   { return envOr(o.ListenAddrEnv, o.DefaultListen) }

func envOr(k, def string) string {
	if k == "" {
		return def
	}
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
