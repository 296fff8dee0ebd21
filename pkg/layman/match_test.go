package layman

import (
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayerMatches(t *testing.T) {
	testCases := []struct {
		name    string
		layer   Layer
		path    string
		method  string
		host    string
		hasHost bool
		want    bool
	}{
		{"unconstrained", Layer{}, "anything", "PATCH", "", false, true},
		{"route hit", Layer{Route: Is("a")}, "a", "GET", "", false, true},
		{"route miss", Layer{Route: Is("a")}, "ab", "GET", "", false, false},
		{"route case sensitive", Layer{Route: Is("a")}, "A", "GET", "", false, false},
		{"root route", Layer{Route: Is("")}, "", "GET", "", false, true},
		{"root route vs path", Layer{Route: Is("")}, "a", "GET", "", false, false},
		{"method hit", Layer{Method: Is("GET")}, "a", "GET", "", false, true},
		{"method miss", Layer{Method: Is("GET")}, "a", "POST", "", false, false},
		{"host hit", Layer{Host: Is("api.example.com")}, "a", "GET", "api.example.com", true, true},
		{"host miss", Layer{Host: Is("api.example.com")}, "a", "GET", "other.example.com", true, false},
		{"host missing on request", Layer{Host: Is("api.example.com")}, "a", "GET", "", false, false},
		{"all three", Layer{Route: Is("a"), Method: Is("GET"), Host: Is("h")}, "a", "GET", "h", true, true},
		{"all three one off", Layer{Route: Is("a"), Method: Is("GET"), Host: Is("h")}, "a", "PUT", "h", true, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.layer.Matches(tc.path, tc.method, tc.host, tc.hasHost))
		})
	}
}

func TestDeriveTarget(t *testing.T) {
	r := httptest.NewRequest("GET", "http://api.example.com:8080/a/b?x=1", nil)
	got := deriveTarget(r, DefaultHostPattern)
	assert.Equal(t, "a/b", got.path)
	assert.Equal(t, "GET", got.method)
	assert.Equal(t, "api.example.com", got.host)
	assert.True(t, got.hasHost)

	r = httptest.NewRequest("POST", "/", nil)
	r.Host = ""
	got = deriveTarget(r, DefaultHostPattern)
	assert.Equal(t, "", got.path)
	assert.False(t, got.hasHost)

	// escapes are matched as sent
	r = httptest.NewRequest("GET", "/a%2Fb", nil)
	assert.Equal(t, "a%2Fb", deriveTarget(r, DefaultHostPattern).path)

	// only one leading separator is removed
	r = httptest.NewRequest("GET", "//double", nil)
	assert.Equal(t, "/double", deriveTarget(r, DefaultHostPattern).path)

	r = httptest.NewRequest("GET", "/", nil)
	r.Host = "tenant-7.local"
	got = deriveTarget(r, regexp.MustCompile(`^tenant-(\d+)`))
	assert.Equal(t, "7", got.host)

	r.Host = "nomatch"
	got = deriveTarget(r, regexp.MustCompile(`^tenant-(\d+)`))
	assert.False(t, got.hasHost)
}

func TestLayerOptions(t *testing.T) {
	var l Layer
	Route("/a")(&l)
	assert.Equal(t, Is("a"), l.Route)
	Route("/")(&l)
	assert.Equal(t, Is(""), l.Route)

	Method("")(&l)
	assert.False(t, l.Method.Set)
	Method("GET")(&l)
	assert.Equal(t, Is("GET"), l.Method)

	OnHost("")(&l)
	assert.False(t, l.Host.Set)
	OnHost("h")(&l)
	assert.Equal(t, Is("h"), l.Host)

	Async()(&l)
	assert.True(t, l.Async)

	assert.Equal(t, "*", Constraint{}.String())
	assert.Equal(t, "stop", Stop.String())
}

func TestStoreNilHandlerBecomesNoop(t *testing.T) {
	var s Store
	s.Add(Layer{Route: Is("a")})
	assert.Equal(t, 1, s.Len())
	assert.NotNil(t, s.Layers()[0].Handler)
	assert.Equal(t, Continue, s.Layers()[0].Handler.ServeLayer(nil, nil, nil))
}
