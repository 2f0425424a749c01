package webd

import (
	"testing"

	"github.com/rotblauer/aploc/params"
)

// newTestWebDaemon creates a new WebDaemon for testing purposes,
// with its data dir in a test temp dir. It is closed when the test ends.
func newTestWebDaemon(t *testing.T) *WebDaemon {
	t.Helper()
	config := params.DefaultTestWebDaemonConfig()
	config.DataDir = t.TempDir()
	daemon, err := NewWebDaemon(config, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := daemon.Close(); err != nil {
			t.Error(err)
		}
	})
	return daemon
}
