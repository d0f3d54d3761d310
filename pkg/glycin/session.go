/*
Copyright 2026 The glycin-go Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package glycin

import (
	"context"
	"os"
	"sync"
	"time"

	"glycin.dev/glycin/internal/rpc"
	"glycin.dev/glycin/internal/sandbox"
	"glycin.dev/glycin/pkg/config"
	"glycin.dev/glycin/pkg/env"
)

// SandboxPolicy selects how loader and editor children are isolated.
type SandboxPolicy int

const (
	// SandboxAuto picks the right mechanism for the environment:
	// portal spawn inside an installed Flatpak, bubblewrap on the
	// host. In a non-installed development Flatpak it degrades to
	// SandboxNotSandboxed, which is unsafe.
	SandboxAuto SandboxPolicy = iota
	SandboxBwrap
	SandboxFlatpakSpawn
	// SandboxNotSandboxed runs loaders as plain child processes.
	// Permitted only for tests.
	SandboxNotSandboxed
)

func (p SandboxPolicy) internal() sandbox.Policy {
	switch p {
	case SandboxBwrap:
		return sandbox.Bwrap
	case SandboxFlatpakSpawn:
		return sandbox.FlatpakSpawn
	case SandboxNotSandboxed:
		return sandbox.NotSandboxed
	}
	return sandbox.Auto
}

var (
	policyMu      sync.RWMutex
	defaultPolicy = SandboxAuto
)

// DefaultSandboxPolicy returns the policy new loaders and creators
// start with.
func DefaultSandboxPolicy() SandboxPolicy {
	policyMu.RLock()
	defer policyMu.RUnlock()
	return defaultPolicy
}

// SetDefaultSandboxPolicy changes the process-wide default. Existing
// handles keep the policy they were created with.
func SetDefaultSandboxPolicy(p SandboxPolicy) {
	policyMu.Lock()
	defer policyMu.Unlock()
	defaultPolicy = p
}

// DefaultRequestTimeout bounds each IPC request when the caller's
// context carries no deadline of its own. Expiry kills the child and
// fails the request.
const DefaultRequestTimeout = 60 * time.Second

// tearDownTimeout bounds the best-effort tear_down exchange during
// session shutdown.
const tearDownTimeout = time.Second

// A session owns one sandboxed child and the command channel to it.
// It serializes requests: at most one is in flight at a time.
type session struct {
	conn  *rpc.Conn
	child *sandbox.Child // nil when the peer is in-process (tests)

	mu     sync.Mutex
	closed bool
}

// spawnSession launches the binary from entry under the given policy
// and wires up the command channel.
func spawnSession(ctx context.Context, entry config.Entry, policy SandboxPolicy, exposeDir string) (*session, error) {
	conn, childSock, err := rpc.SocketPair()
	if err != nil {
		return nil, failed(err, "creating command channel")
	}
	child, err := sandbox.Launch(ctx, policy.internal(), sandbox.Options{
		Exec:              entry.Exec,
		ChildSocket:       childSock,
		ExposeDir:         exposeDir,
		FontconfigVisible: entry.FontconfigVisible,
	})
	childSock.Close()
	if err != nil {
		conn.Close()
		return nil, failed(err, "spawning %s for %s", entry.Exec, entry.MIME)
	}
	return &session{conn: conn, child: child}, nil
}

// call issues one request and decodes its reply, applying the default
// deadline when ctx has none. Any transport failure, deadline expiry
// or cancellation kills the child: the session does not try to
// recover a broken stream.
func (s *session) call(ctx context.Context, m rpc.Method, args interface{}, files []*os.File, reply interface{}) ([]*os.File, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRequestTimeout)
		defer cancel()
	}
	outFiles, err := s.conn.Call(ctx, m, args, files, reply)
	if err != nil {
		if _, isRemote := err.(*rpc.RemoteError); !isRemote {
			// Transport-level breakage; the child may be wedged
			// mid-write. Kill the process group and reap.
			s.kill()
		}
		return nil, err
	}
	return outFiles, nil
}

// kill terminates the child without the tear_down courtesy.
func (s *session) kill() {
	if s.child != nil {
		s.child.Kill()
		s.child.Wait()
	}
}

// close shuts the session down: best-effort tear_down, then kill and
// reap. Idempotent, and safe on every exit path.
func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), tearDownTimeout)
	defer cancel()
	if _, err := s.conn.Call(ctx, rpc.TearDown, struct{}{}, nil, nil); err != nil {
		env.Logf("session: tear_down: %v", err)
	}
	s.kill()
	s.conn.Close()
}
