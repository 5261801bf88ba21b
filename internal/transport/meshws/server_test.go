package meshws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"

	"voxelbyte/internal/meshproto"
	"voxelbyte/internal/sim/chunk"
	"voxelbyte/internal/sim/mesh"
	"voxelbyte/internal/sim/store"
	"voxelbyte/internal/sim/terrain"
	"voxelbyte/internal/sim/voxel"
)

type fixture struct {
	srv    *Server
	store  *store.ChunkStore
	viewer chan mgl32.Vec3
	http   *httptest.Server
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{store: store.New(), viewer: make(chan mgl32.Vec3, 4)}
	srv, err := NewServer(cfg, f.store, f.viewer, func() meshproto.BootstrapResponse {
		return meshproto.BootstrapResponse{ChunkSize: chunk.Size, ChunkRadius: 4, Workers: 2, Seed: 6, Palette: voxel.Default().Palette()}
	}, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	f.srv = srv
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/bootstrap", srv.BootstrapHandler())
	mux.HandleFunc("/v1/mesh/ws", srv.WSHandler())
	f.http = httptest.NewServer(mux)
	t.Cleanup(f.http.Close)
	return f
}

func (f *fixture) meshChunk(x, z int32) *chunk.Chunk {
	c := chunk.NewAt(x, z)
	c.Generate(terrain.Flat(-0.5))
	f.store.Insert(c)
	f.srv.BufferMesh(c.ID(), c.Origin(), mesh.Build(c))
	return c
}

func (f *fixture) dial(t *testing.T, sub string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/v1/mesh/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := conn.WriteMessage(websocket.TextMessage, []byte(sub)); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	return conn
}

func read(t *testing.T, conn *websocket.Conn) (meshproto.BaseMessage, []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := meshproto.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return base, b
}

const subscribe = `{"type":"SUBSCRIBE","protocol_version":"1.0"}`

func TestSubscribeReceivesLiveMesh(t *testing.T) {
	f := newFixture(t, Config{})
	conn := f.dial(t, subscribe)

	base, b := read(t, conn)
	if base.Type != meshproto.TypeStats {
		t.Fatalf("first message type=%s", base.Type)
	}
	var stats meshproto.StatsMsg
	_ = json.Unmarshal(b, &stats)
	if stats.Replayed != 0 {
		t.Fatalf("replayed=%d want 0", stats.Replayed)
	}

	c := f.meshChunk(2, -3)
	base, b = read(t, conn)
	if base.Type != meshproto.TypeChunkMesh {
		t.Fatalf("type=%s want CHUNK_MESH", base.Type)
	}
	var msg meshproto.ChunkMeshMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.ChunkID != int64(c.ID()) || msg.CX != 2 || msg.CZ != -3 {
		t.Fatalf("header=%+v", msg)
	}
	if msg.Origin != [3]int{128, 0, -192} {
		t.Fatalf("origin=%v", msg.Origin)
	}
	m, err := msg.Mesh()
	if err != nil {
		t.Fatalf("Mesh: %v", err)
	}
	if m.Quads() == 0 {
		t.Fatalf("empty mesh")
	}
}

func TestLateJoinerReplay(t *testing.T) {
	f := newFixture(t, Config{Voxels: true})
	f.meshChunk(0, 0)
	f.meshChunk(1, 0)
	// duplicate buffer is ignored
	f.srv.BufferMesh(chunk.PackID(0, 0), chunk.Pos{}, &mesh.VoxelMesh{})
	if f.srv.Len() != 2 {
		t.Fatalf("cached=%d want 2", f.srv.Len())
	}

	conn := f.dial(t, `{"type":"SUBSCRIBE","protocol_version":"1.0","voxels":true}`)
	base, b := read(t, conn)
	var stats meshproto.StatsMsg
	_ = json.Unmarshal(b, &stats)
	if base.Type != meshproto.TypeStats || stats.Replayed != 4 {
		t.Fatalf("stats=%+v", stats)
	}

	var types []string
	for i := 0; i < 4; i++ {
		base, b := read(t, conn)
		types = append(types, base.Type)
		if base.Type == meshproto.TypeChunkVoxels {
			var vm meshproto.ChunkVoxelsMsg
			_ = json.Unmarshal(b, &vm)
			ids, err := vm.Voxels()
			if err != nil {
				t.Fatalf("Voxels: %v", err)
			}
			if ids[0] != voxel.Grass {
				t.Fatalf("voxel[0]=%d want grass", ids[0])
			}
		}
	}
	want := []string{meshproto.TypeChunkVoxels, meshproto.TypeChunkMesh, meshproto.TypeChunkVoxels, meshproto.TypeChunkMesh}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("replay order=%v want %v", types, want)
		}
	}
}

func TestViewerMessage(t *testing.T) {
	f := newFixture(t, Config{})
	conn := f.dial(t, subscribe)
	read(t, conn)

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"VIEWER","pos":[1,2]}`))
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"VIEWER","pos":[-10.5,64,300]}`))
	select {
	case p := <-f.viewer:
		if p != (mgl32.Vec3{-10.5, 64, 300}) {
			t.Fatalf("viewer=%v", p)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("no viewer update")
	}
	select {
	case p := <-f.viewer:
		t.Fatalf("invalid viewer message forwarded: %v", p)
	default:
	}
}

func TestBadHandshakeCloses(t *testing.T) {
	f := newFixture(t, Config{})
	conn := f.dial(t, `{"type":"SUBSCRIBE","protocol_version":"0.1"}`)
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v want policy violation close", err)
	}
}

func TestSlowSessionKicked(t *testing.T) {
	f := newFixture(t, Config{SendBuffer: 1})
	sess := &session{id: "R0", out: make(chan []byte, 1), cancel: func() {}}
	f.srv.join(sess)
	f.meshChunk(0, 0)
	f.meshChunk(0, 1)
	if f.srv.Sessions() != 0 || f.srv.Kicked() != 1 {
		t.Fatalf("sessions=%d kicked=%d", f.srv.Sessions(), f.srv.Kicked())
	}
}

func TestBootstrap(t *testing.T) {
	f := newFixture(t, Config{})
	resp, err := http.Get(f.http.URL + "/v1/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var boot meshproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if boot.ProtocolVersion != meshproto.Version || boot.ChunkSize != 64 || len(boot.Palette) != 4 {
		t.Fatalf("bootstrap=%+v", boot)
	}
	resp2, err := http.Post(f.http.URL+"/v1/bootstrap", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", resp2.StatusCode)
	}
}
