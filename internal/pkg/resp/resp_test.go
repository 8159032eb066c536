package resp

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestDecodeSuccess(t *testing.T) {
	var data struct {
		ID int64 `json:"id"`
	}
	msg, err := Decode(response(200, `{"code":0,"message":"joined","data":{"id":4}}`), &data)
	require.NoError(t, err)
	assert.Equal(t, "joined", msg)
	assert.Equal(t, int64(4), data.ID)
}

func TestDecodeFailure(t *testing.T) {
	_, err := Decode(response(403, `{"code":2005,"message":"not admin"}`), nil)
	se, ok := AsStatus(err)
	require.True(t, ok)
	assert.Equal(t, 403, se.Status)
	assert.Equal(t, "not admin", se.Message)
}

func TestDecodeFailureWithoutEnvelope(t *testing.T) {
	_, err := Decode(response(502, `<html>bad gateway</html>`), nil)
	se, ok := AsStatus(err)
	require.True(t, ok)
	assert.Equal(t, "Bad Gateway", se.Message)
}
