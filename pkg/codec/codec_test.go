package codec

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type msg struct {
	Text string `json:"text"`
}

func TestJSONStrictMarshal(t *testing.T) {
	b, err := JSONStrict.Marshal(msg{Text: "<b>&</b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"text":"<b>&</b>"}`, string(b))
}

func TestJSONStrictUnmarshal(t *testing.T) {
	var m msg
	require.NoError(t, JSONStrict.Unmarshal([]byte(`{"text":"hi"}`), &m))
	assert.Equal(t, "hi", m.Text)

	assert.ErrorContains(t, JSONStrict.Unmarshal([]byte(`{"text":"hi","x":1}`), &m), "unknown field")
	assert.ErrorIs(t, JSONStrict.Unmarshal([]byte(`{"text":"a"} {"text":"b"}`), &m), ErrTrailingContent)
}

func TestDecodeLimit(t *testing.T) {
	var m msg
	require.NoError(t, Decode(JSONStrict, strings.NewReader(`{"text":"ok"}`), 64, &m))
	assert.Error(t, Decode(JSONStrict, strings.NewReader(`{"text":"too long"}`), 4, &m))
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, Write(rec, JSONStrict, http.StatusAccepted, map[string]string{"status": "queued"}))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"queued"}`, rec.Body.String())
}
