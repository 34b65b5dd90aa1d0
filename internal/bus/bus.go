// Package bus implements the controller-side half of the pub/sub
// transport (C2): a downlink that fans out tag-prefixed frames to
// connected hub workers, and an uplink that collects frames pushed back
// by workers. Delivery is at-most-once, best-effort, and FIFO per
// connection; the bus never blocks a slow subscriber at the expense of
// the others — a full send buffer simply drops the frame.
package bus

import (
	"bufio"
	"context"
	"net"
	"sync"

	"github.com/cuemby/fleetsim/internal/log"
	"github.com/cuemby/fleetsim/internal/proto"
	"github.com/rs/zerolog"
)

// subscriberBuffer bounds how many outstanding frames a slow worker
// connection may have queued before new frames are dropped for it.
const subscriberBuffer = 256

// Uplink is a decoded frame received from a worker, paired with the raw
// tag it arrived under (kept distinct from the envelope's own address so
// malformed frames can still be logged with their routing tag).
type Uplink struct {
	Tag string
	Env proto.Envelope
}

// Server is the controller's side of the transport: it binds a downlink
// (publish) listener and an uplink (pull/collector) listener.
type Server struct {
	logger zerolog.Logger

	mu   sync.RWMutex
	subs map[*subscriber]struct{}

	Incoming chan Uplink
}

type subscriber struct {
	prefix string
	out    chan []byte
	conn   net.Conn
}

// NewServer creates a bus server. Callers must call ListenDownlink and
// ListenUplink (typically concurrently) to actually bind the sockets.
func NewServer() *Server {
	return &Server{
		logger:   log.WithComponent("bus"),
		subs:     make(map[*subscriber]struct{}),
		Incoming: make(chan Uplink, 1024),
	}
}

// ListenDownlink binds the publish endpoint and returns its bound
// address (useful when addr requests an ephemeral port, e.g. "host:0").
// Each connecting worker must send a single subscription line (its own
// hub tag) before receiving any frames; it then receives every
// published frame whose tag it prefixes.
func (s *Server) ListenDownlink(ctx context.Context, addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	go s.acceptLoop(ctx, ln, s.handleDownlinkConn)
	return ln.Addr().String(), nil
}

// ListenUplink binds the pull/collector endpoint and returns its bound
// address. Workers push frames; the server decodes them and forwards
// them on Incoming.
func (s *Server) ListenUplink(ctx context.Context, addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	go s.acceptLoop(ctx, ln, s.handleUplinkConn)
	return ln.Addr().String(), nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, handle func(context.Context, net.Conn)) {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn().Err(err).Msg("accept failed")
			continue
		}
		go handle(ctx, conn)
	}
}

func (s *Server) handleDownlinkConn(ctx context.Context, conn net.Conn) {
	reader := bufio.NewReader(conn)
	prefix, err := reader.ReadString('\n')
	if err != nil {
		s.logger.Warn().Err(err).Msg("downlink connection closed before subscribing")
		_ = conn.Close()
		return
	}
	prefix = trimNewline(prefix)

	sub := &subscriber{prefix: prefix, out: make(chan []byte, subscriberBuffer), conn: conn}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sub.out:
			if !ok {
				return
			}
			if _, err := conn.Write(append(frame, '\n')); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleUplinkConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			tag, env, decodeErr := proto.ParseFrame(trimNewlineBytes(line))
			if decodeErr != nil {
				s.logger.Warn().Err(decodeErr).Msg("dropping malformed uplink frame")
			} else {
				select {
				case s.Incoming <- Uplink{Tag: tag, Env: env}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err != nil {
			// Worker closed with linger=0 equivalent: any unread bytes are
			// simply lost, per the spec's cancellation semantics.
			return
		}
	}
}

// Publish fans the envelope out to every downlink subscriber whose
// prefix is a prefix of the envelope's tag. Best-effort: a subscriber
// with a full buffer silently misses the frame.
func (s *Server) Publish(env proto.Envelope) error {
	frame, err := proto.Frame(env)
	if err != nil {
		return err
	}
	tag := env.Address.Tag()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for sub := range s.subs {
		if !hasPrefix(sub.prefix, tag) {
			continue
		}
		select {
		case sub.out <- frame:
		default:
			s.logger.Warn().Str("tag", tag).Str("subscriber", sub.prefix).Msg("downlink buffer full, dropping frame")
		}
	}
	return nil
}

func hasPrefix(prefix, tag string) bool {
	return len(tag) >= len(prefix) && tag[:len(prefix)] == prefix
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func trimNewlineBytes(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
