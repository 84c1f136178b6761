package rendezvous

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ucibridge/application/logging"
	"ucibridge/infrastructure/network"
)

const (
	dispatchTimeout = 10 * time.Second
	sweepInterval   = 5 * time.Minute

	DefaultMaxSessions = 100
	DefaultStaleAfter  = time.Hour
)

// record is one relay session. The pairing channel is the signal between
// the client-role handler (sender) and the server-role handler (waiter);
// it is also used to wake a superseded server handler.
type record struct {
	server     *network.LineConn
	client     *network.LineConn
	registered time.Time

	pairOnce sync.Once
	paired   chan struct{}
	finished chan struct{}
}

func newRecord(server *network.LineConn, registered time.Time) *record {
	return &record{
		server:     server,
		registered: registered,
		paired:     make(chan struct{}),
		finished:   make(chan struct{}),
	}
}

func (r *record) signalPairing() {
	r.pairOnce.Do(func() { close(r.paired) })
}

// Server is the standalone rendezvous service. It pairs an outbound
// "server" leg from a bridge host with an inbound "client" leg by session
// id and pipes bytes between them. One mutex guards the session map.
type Server struct {
	mu       sync.Mutex
	sessions map[string]*record

	maxSessions int
	staleAfter  time.Duration
	logger      logging.Logger
	now         func() time.Time
}

func NewServer(maxSessions int, staleAfter time.Duration, logger logging.Logger) *Server {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Server{
		sessions:    make(map[string]*record),
		maxSessions: maxSessions,
		staleAfter:  staleAfter,
		logger:      logger,
		now:         time.Now,
	}
}

// Run accepts connections until the context is cancelled.
func (s *Server) Run(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()
	go s.sweepStale(ctx)

	s.logger.Printf("relay server listening on %s", listener.Addr())
	for {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warnf("accept failed: %v", acceptErr)
			continue
		}
		go s.dispatch(ctx, network.NewLineConn(conn))
	}
}

// dispatch reads and validates the hello line and routes to the role
// handler.
func (s *Server) dispatch(ctx context.Context, conn *network.LineConn) {
	line, readErr := conn.ReadLine(dispatchTimeout)
	if readErr != nil {
		conn.Close()
		return
	}

	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "SESSION" || fields[1] == "" {
		_ = conn.WriteLine("ERROR invalid session request")
		conn.Close()
		return
	}

	id := fields[1]
	switch fields[2] {
	case "server":
		s.handleServer(ctx, conn, id)
	case "client":
		s.handleClient(ctx, conn, id)
	default:
		_ = conn.WriteLine("ERROR invalid role")
		conn.Close()
	}
}

func (s *Server) handleServer(ctx context.Context, conn *network.LineConn, id string) {
	rec := newRecord(conn, s.now())

	s.mu.Lock()
	if old, exists := s.sessions[id]; exists {
		// Supersession: a restarted bridge host re-registers under its
		// deterministic id. Close the old legs and wake the old handler
		// before installing the replacement.
		old.server.Close()
		if old.client != nil {
			old.client.Close()
		}
		old.signalPairing()
		s.logger.Printf("session %s superseded", id)
	} else if len(s.sessions) >= s.maxSessions {
		s.mu.Unlock()
		_ = conn.WriteLine("ERROR max sessions reached")
		conn.Close()
		return
	}
	s.sessions[id] = rec
	s.mu.Unlock()

	if writeErr := conn.WriteLine("REGISTERED"); writeErr != nil {
		s.drop(id, rec)
		conn.Close()
		return
	}
	s.logger.Printf("session %s registered", id)

	select {
	case <-ctx.Done():
		s.drop(id, rec)
		conn.Close()
		return
	case <-rec.paired:
	}

	s.mu.Lock()
	current, installed := s.sessions[id]
	if !installed || current != rec {
		// Superseded while waiting. The replacement owns the map entry.
		s.mu.Unlock()
		conn.Close()
		close(rec.finished)
		return
	}
	client := rec.client
	s.mu.Unlock()

	if client == nil {
		s.drop(id, rec)
		conn.Close()
		return
	}

	if writeErr := conn.WriteLine("PAIRED"); writeErr != nil {
		s.drop(id, rec)
		conn.Close()
		client.Close()
		return
	}
	s.logger.Printf("session %s paired", id)

	s.pipe(conn, client)
	s.drop(id, rec)
}

func (s *Server) handleClient(ctx context.Context, conn *network.LineConn, id string) {
	s.mu.Lock()
	rec, exists := s.sessions[id]
	if !exists {
		s.mu.Unlock()
		_ = conn.WriteLine("ERROR unknown session")
		conn.Close()
		return
	}
	rec.client = conn
	s.mu.Unlock()

	if writeErr := conn.WriteLine("CONNECTED"); writeErr != nil {
		conn.Close()
		return
	}
	rec.signalPairing()

	// The server-role handler owns the byte-copy and cleanup from here.
	select {
	case <-ctx.Done():
	case <-rec.finished:
	}
}

// pipe copies bytes in both directions until either leg ends. Buffered
// readers carry any bytes read ahead of the hello line.
func (s *Server) pipe(server, client *network.LineConn) {
	// The hello reads armed read deadlines on both legs; the raw copy must
	// outlive them.
	_ = server.Conn().SetReadDeadline(time.Time{})
	_ = client.Conn().SetReadDeadline(time.Time{})

	var group errgroup.Group
	group.Go(func() error {
		_, copyErr := io.Copy(client.Conn(), server.Buffered())
		server.Close()
		client.Close()
		return copyErr
	})
	group.Go(func() error {
		_, copyErr := io.Copy(server.Conn(), client.Buffered())
		server.Close()
		client.Close()
		return copyErr
	})
	_ = group.Wait()
}

// drop removes the record if it is still the installed one and closes its
// legs.
func (s *Server) drop(id string, rec *record) {
	s.mu.Lock()
	if current, exists := s.sessions[id]; exists && current == rec {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	rec.server.Close()
	if rec.client != nil {
		rec.client.Close()
	}
	close(rec.finished)
}

// sweepStale periodically drops sessions that registered long ago and never
// paired, or whose handlers are wedged.
func (s *Server) sweepStale(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			var stale []*record
			for id, rec := range s.sessions {
				if s.now().Sub(rec.registered) > s.staleAfter {
					delete(s.sessions, id)
					stale = append(stale, rec)
					s.logger.Printf("session %s removed as stale", id)
				}
			}
			s.mu.Unlock()

			for _, rec := range stale {
				rec.server.Close()
				if rec.client != nil {
					rec.client.Close()
				}
				rec.signalPairing()
			}
		}
	}
}

// SessionCount reports the number of installed sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
