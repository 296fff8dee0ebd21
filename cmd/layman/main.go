package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joeydtaylor/layman/pkg/codec"
	"github.com/joeydtaylor/layman/pkg/core"
	"github.com/joeydtaylor/layman/pkg/serverfx"
	"go.uber.org/fx"
)

type echoMsg struct {
	Message string `json:"message"`
}

func init() {
	core.Register("hello", func(context.Context, []byte) ([]byte, int, error) {
		out, err := codec.JSONStrict.Marshal(map[string]string{
			"hello": "world",
			"time":  time.Now().UTC().Format(time.RFC3339),
		})
		return out, http.StatusOK, err
	})

	core.Register("echo", func(_ context.Context, in []byte) ([]byte, int, error) {
		var m echoMsg
		if err := codec.JSONStrict.Unmarshal(in, &m); err != nil {
			return nil, http.StatusBadRequest, err
		}
		out, err := codec.JSONStrict.Marshal(m)
		return out, http.StatusOK, err
	})
}

func main() {
	fx.New(serverfx.Module(serverfx.WithService("layman"))).Run()
}
