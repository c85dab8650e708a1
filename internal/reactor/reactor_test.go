//go:build linux

package reactor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/routerwrt/lnmgr/internal/control"
	"github.com/routerwrt/lnmgr/internal/graph"
	"github.com/routerwrt/lnmgr/internal/ingest"
)

type noopCaps struct{}

func (noopCaps) HasCapability(string) bool { return false }

type pipeIngester struct {
	fd int
}

func newPipeIngester(t *testing.T) *pipeIngester {
	t.Helper()
	fds := make([]int, 2)
	require.NoError(t, unix.Pipe2(fds, unix.O_NONBLOCK))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return &pipeIngester{fd: fds[0]}
}

func (p *pipeIngester) FD() int                            { return p.fd }
func (p *pipeIngester) Sync(g *graph.Graph) error           { return nil }
func (p *pipeIngester) Handle(g *graph.Graph) (bool, error) { return false, nil }
func (p *pipeIngester) Close() error                        { return nil }

func TestNew_RegistersEveryFDAndCloseTearsDown(t *testing.T) {
	g := graph.New()
	sockPath := filepath.Join(t.TempDir(), "lnmgr.sock")
	ctrl, err := control.Listen(sockPath, g)
	require.NoError(t, err)

	ing := newPipeIngester(t)

	r, err := New(g, noopCaps{}, ctrl, []ingest.Ingester{ing})
	require.NoError(t, err)

	r.Close()
}
