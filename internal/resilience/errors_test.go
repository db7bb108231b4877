package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "dial tcp: timeout" }
func (timeoutErr) Timeout() bool { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("unexpected status 404"), false},
		{"marked", Transient(errors.New("http 502"), 502), true},
		{"wrapped by eris", eris.Wrap(Transient(errors.New("http 502"), 502), "dart: list"), true},
		{"net timeout", fmt.Errorf("get: %w", timeoutErr{}), true},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"message", errors.New("write: broken pipe"), true},
		{"starting up", errors.New("FATAL: the database system is starting up"), true},
		{"pg connect", &pgconn.ConnectError{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransient(t *testing.T) {
	assert.NoError(t, Transient(nil, 500))

	inner := errors.New("fetcher: all retries exhausted")
	err := Transient(inner, 503)
	assert.Equal(t, inner.Error(), err.Error())
	assert.ErrorIs(t, err, inner)

	var te *TransientError
	assert.ErrorAs(t, err, &te)
	assert.Equal(t, 503, te.StatusCode)
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, RetryableStatus(code), code)
	}
	for _, code := range []int{200, 301, 400, 401, 404, 501} {
		assert.False(t, RetryableStatus(code), code)
	}
}
