package meshws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"

	"voxelbyte/internal/meshproto"
	"voxelbyte/internal/sim/chunk"
	"voxelbyte/internal/sim/mesh"
)

// ChunkSource resolves chunk ids for CHUNK_VOXELS dumps.
type ChunkSource interface {
	Get(id chunk.ID) *chunk.Chunk
}

type Config struct {
	// AllowRemote accepts non-loopback clients.
	AllowRemote bool
	// SendBuffer is the per-session queue of live messages. A session that
	// falls this far behind is disconnected.
	SendBuffer int
	// Voxels enables CHUNK_VOXELS for clients that ask for them.
	Voxels bool
}

// Server streams finished chunk meshes to renderer clients. It implements
// render.Sink; BufferMesh is called by the engine loop and never blocks.
type Server struct {
	cfg       Config
	log       *log.Logger
	validator *meshproto.Validator
	chunks    ChunkSource
	viewer    chan<- mgl32.Vec3
	bootstrap func() meshproto.BootstrapResponse

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	dropped  atomic.Uint64
	kicked   atomic.Uint64

	mu       sync.Mutex
	order    []chunk.ID
	meshes   map[chunk.ID][]byte
	voxels   map[chunk.ID][]byte
	sessions map[string]*session
}

type session struct {
	id     string
	out    chan []byte
	voxels bool
	cancel context.CancelFunc
}

func NewServer(cfg Config, chunks ChunkSource, viewer chan<- mgl32.Vec3, bootstrap func() meshproto.BootstrapResponse, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 4096
	}
	v, err := meshproto.NewValidator()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:       cfg,
		log:       logger,
		validator: v,
		chunks:    chunks,
		viewer:    viewer,
		bootstrap: bootstrap,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		meshes:   map[chunk.ID][]byte{},
		voxels:   map[chunk.ID][]byte{},
		sessions: map[string]*session{},
	}, nil
}

// BufferMesh encodes m once, keeps it for late joiners and fans it out to
// every live session. A repeated id is ignored.
func (s *Server) BufferMesh(id chunk.ID, origin chunk.Pos, m *mesh.VoxelMesh) {
	b, err := json.Marshal(meshproto.NewChunkMesh(id, origin, m))
	if err != nil {
		s.log.Printf("meshws encode mesh id=%d: %v", id, err)
		return
	}
	var vb []byte
	if s.cfg.Voxels && s.chunks != nil {
		if c := s.chunks.Get(id); c != nil {
			vb, _ = json.Marshal(meshproto.NewChunkVoxels(c))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meshes[id]; ok {
		return
	}
	s.order = append(s.order, id)
	s.meshes[id] = b
	if vb != nil {
		s.voxels[id] = vb
	}
	for _, sess := range s.sessions {
		if sess.voxels && vb != nil {
			if !s.offer(sess, vb) {
				continue
			}
		}
		s.offer(sess, b)
	}
}

// offer queues b without blocking. A full queue kicks the session; it can
// reconnect and replay. Caller holds s.mu.
func (s *Server) offer(sess *session, b []byte) bool {
	select {
	case sess.out <- b:
		return true
	default:
		s.dropped.Add(1)
		s.kicked.Add(1)
		s.log.Printf("meshws slow session=%s kicked", sess.id)
		delete(s.sessions, sess.id)
		sess.cancel()
		return false
	}
}

func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.meshes)
}

func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) Dropped() uint64 { return s.dropped.Load() }
func (s *Server) Kicked() uint64  { return s.kicked.Load() }

// join registers a session and returns everything buffered so far. Both
// happen under one lock so the session sees each mesh exactly once.
func (s *Server) join(sess *session) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.id] = sess
	replay := make([][]byte, 0, 2*len(s.order))
	for _, id := range s.order {
		if vb, ok := s.voxels[id]; ok && sess.voxels {
			replay = append(replay, vb)
		}
		replay = append(replay, s.meshes[id])
	}
	return replay
}

func (s *Server) leave(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Server) setVoxels(id string, on bool) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.voxels = on
	}
	s.mu.Unlock()
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.cfg.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		var resp meshproto.BootstrapResponse
		if s.bootstrap != nil {
			resp = s.bootstrap()
		}
		resp.ProtocolVersion = meshproto.Version
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.cfg.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := s.validator.Validate(msg)
		if err != nil || base.Type != meshproto.TypeSubscribe {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}
		var sub meshproto.SubscribeMsg
		_ = json.Unmarshal(msg, &sub)
		if sub.ProtocolVersion != meshproto.Version {
			closeWith(conn, websocket.ClosePolicyViolation, "unsupported protocol_version")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sess := &session{
			id:     fmt.Sprintf("R%d", s.nextID.Add(1)),
			out:    make(chan []byte, s.cfg.SendBuffer),
			voxels: sub.Voxels && s.cfg.Voxels,
			// Closing the conn unblocks the reader of a kicked session.
			cancel: func() { cancel(); _ = conn.Close() },
		}
		replay := s.join(sess)
		defer s.leave(sess.id)
		s.log.Printf("meshws join session=%s replay=%d voxels=%v", sess.id, len(replay), sess.voxels)

		stats, _ := json.Marshal(meshproto.StatsMsg{
			Type:            meshproto.TypeStats,
			ProtocolVersion: meshproto.Version,
			Chunks:          s.Len(),
			Replayed:        len(replay),
		})

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			write := func(b []byte) error {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				return conn.WriteMessage(websocket.TextMessage, b)
			}
			if err := write(stats); err != nil {
				writeErr <- err
				return
			}
			for _, b := range replay {
				if err := write(b); err != nil {
					writeErr <- err
					return
				}
			}
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-sess.out:
					if err := write(b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: VIEWER moves, SUBSCRIBE toggles voxels.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := s.validator.Validate(msg)
			if err != nil {
				s.log.Printf("meshws session=%s bad message: %v", sess.id, err)
				continue
			}
			switch base.Type {
			case meshproto.TypeViewer:
				var vm meshproto.ViewerMsg
				if err := json.Unmarshal(msg, &vm); err != nil {
					continue
				}
				if s.viewer == nil {
					continue
				}
				select {
				case s.viewer <- mgl32.Vec3{vm.Pos[0], vm.Pos[1], vm.Pos[2]}:
				default:
					// Drop updates under load; the client may resend.
				}
			case meshproto.TypeSubscribe:
				var again meshproto.SubscribeMsg
				if err := json.Unmarshal(msg, &again); err == nil {
					s.setVoxels(sess.id, again.Voxels && s.cfg.Voxels)
				}
			}
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		s.log.Printf("meshws leave session=%s", sess.id)
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
