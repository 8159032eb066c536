package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	token, err := GenerateToken(&Payload{ID: 7, Nickname: "alice"}, "secret", time.Hour)
	require.NoError(t, err)

	p, err := Inspect(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "alice", p.Nickname)
	assert.False(t, Expired(p, time.Now()))
	assert.True(t, Expired(p, time.Now().Add(2*time.Hour)))
}

func TestInspectMalformed(t *testing.T) {
	_, err := Inspect("not-a-token")
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestExpiredWithoutExpiry(t *testing.T) {
	assert.False(t, Expired(&Payload{}, time.Now()))
}

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestBearerTransport(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := &http.Client{Transport: &BearerTransport{Source: staticToken("abc")}}
	res, err := client.Get(srv.URL)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, "Bearer abc", got)

	client = &http.Client{Transport: &BearerTransport{Source: staticToken("")}}
	res, err = client.Get(srv.URL)
	require.NoError(t, err)
	res.Body.Close()
	assert.Empty(t, got)
}
