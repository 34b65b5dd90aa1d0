package bus

import (
	"bufio"
	"context"
	"fmt"
	"net"

	"github.com/cuemby/fleetsim/internal/log"
	"github.com/cuemby/fleetsim/internal/proto"
)

// WorkerConn is a hub worker's side of the transport: a SUB connection to
// the controller's downlink, subscribed on the worker's own hub tag, and
// a PUSH connection to the controller's uplink.
type WorkerConn struct {
	sub    net.Conn
	subR   *bufio.Reader
	push   net.Conn
	prefix string
}

// Dial connects to the controller's downlink and uplink endpoints and
// subscribes the downlink connection to prefix (the worker's own hub
// tag). Per the spec's handshake requirement, callers must send
// HubConnectInd on the returned connection only after Dial succeeds —
// Dial itself only establishes the sockets.
func Dial(ctx context.Context, downlinkAddr, uplinkAddr, prefix string) (*WorkerConn, error) {
	var dialer net.Dialer

	sub, err := dialer.DialContext(ctx, "tcp", downlinkAddr)
	if err != nil {
		return nil, fmt.Errorf("bus: dial downlink: %w", err)
	}
	if _, err := sub.Write([]byte(prefix + "\n")); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("bus: send subscription: %w", err)
	}

	push, err := dialer.DialContext(ctx, "tcp", uplinkAddr)
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("bus: dial uplink: %w", err)
	}

	return &WorkerConn{sub: sub, subR: bufio.NewReader(sub), push: push, prefix: prefix}, nil
}

// Recv blocks until the next frame addressed to this worker arrives on
// the downlink, decoding it into an Envelope. Malformed frames are
// logged at warn and skipped rather than returned as an error that
// would tear down the connection.
func (w *WorkerConn) Recv() (proto.Envelope, error) {
	for {
		line, err := w.subR.ReadBytes('\n')
		if err != nil {
			return proto.Envelope{}, fmt.Errorf("bus: downlink closed: %w", err)
		}
		_, env, decodeErr := proto.ParseFrame(trimNewlineBytes(line))
		if decodeErr != nil {
			log.WithComponent("bus").Warn().Err(decodeErr).Str("subscriber", w.prefix).Msg("dropping malformed downlink frame")
			continue
		}
		return env, nil
	}
}

// Send pushes an envelope to the controller's uplink.
func (w *WorkerConn) Send(env proto.Envelope) error {
	frame, err := proto.Frame(env)
	if err != nil {
		return err
	}
	_, err = w.push.Write(append(frame, '\n'))
	return err
}

// Close closes both connections with no linger: any frame in flight on
// the uplink at close time is lost, matching the spec's cancellation
// semantics for worker shutdown.
func (w *WorkerConn) Close() error {
	_ = w.push.Close()
	return w.sub.Close()
}
