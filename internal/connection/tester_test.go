package connection

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net"
	"nexdb/internal/types"
	"testing"
	"time"
)

// closedPort returns a local port nothing is listening on
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestUnreachableServer(t *testing.T) {
	tests := []types.Engine{types.EnginePostgres, types.EngineMysql}
	for _, engine := range tests {
		t.Run(engine.String(), func(t *testing.T) {
			port := closedPort(t)
			_, err := NewTester(2*time.Second).Test(context.Background(), types.Credentials{
				Engine:   engine,
				Host:     "127.0.0.1",
				Port:     port,
				Username: "nobody",
				Secret:   "wrong",
			})
			require.Error(t, err)

			var connErr *types.ConnectionFailedError
			require.True(t, errors.As(err, &connErr))
			assert.Contains(t, connErr.Host, "127.0.0.1")
			assert.NotContains(t, err.Error(), "wrong")
		})
	}
}

func TestUnsupportedEngine(t *testing.T) {
	_, err := NewTester(0).Test(context.Background(), types.Credentials{Engine: "sqlite"})
	assert.ErrorIs(t, err, types.ErrUnsupportedEngine)
}
