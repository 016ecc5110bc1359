package transport

import (
	"encoding/json"
	"net"
	"sync"

	"go.uber.org/zap"
)

// Handler dispatches one decoded request. The returned value is JSON-encoded
// into the response envelope; a non-nil error is sent back as a displayable
// message instead.
type Handler interface {
	Handle(method string, params json.RawMessage) (any, error)
}

// Server accepts agent connections and answers envelopes one connection at a
// time per goroutine. Requests on a single connection are answered in order.
type Server struct {
	handler Handler
	log     *zap.Logger
}

func NewServer(h Handler, log *zap.Logger) *Server {
	return &Server{handler: h, log: log}
}

// Serve runs the accept loop until the listener is closed.
func (s *Server) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	var writeMu sync.Mutex

	for {
		var env envelope
		if err := dec.Decode(&env); err != nil {
			return
		}

		reply := envelope{ID: env.ID}
		result, err := s.handler.Handle(env.Method, env.Params)
		if err != nil {
			s.log.Warn("request failed",
				zap.String("method", env.Method),
				zap.Error(err))
			reply.Error = err.Error()
		} else if result != nil {
			raw, merr := json.Marshal(result)
			if merr != nil {
				reply.Error = merr.Error()
			} else {
				reply.Result = raw
			}
		}

		writeMu.Lock()
		werr := enc.Encode(reply)
		writeMu.Unlock()
		if werr != nil {
			return
		}
	}
}
