package meshproto

import (
	"encoding/json"

	"voxelbyte/internal/sim/voxel"
)

// Version is the renderer stream protocol version.
const Version = "1.0"

// Message types.
const (
	TypeSubscribe   = "SUBSCRIBE"
	TypeViewer      = "VIEWER"
	TypeChunkMesh   = "CHUNK_MESH"
	TypeChunkVoxels = "CHUNK_VOXELS"
	TypeStats       = "STATS"
)

// Payload encodings.
const (
	EncodingMesh   = "F32LE_U32LE_B64"
	EncodingVoxels = "RLE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Client -> Server. First message on the mesh WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// Also stream CHUNK_VOXELS for every chunk.
	Voxels bool `json:"voxels,omitempty"`
}

// Client -> Server. Moves the streaming viewer.
type ViewerMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version,omitempty"`
	Pos             [3]float32 `json:"pos"`
}

// Server -> Client. One finished chunk mesh. Vertices are base64 of
// little-endian float32 (x y z r g b per vertex), indices base64 of
// little-endian uint32. Positions are chunk-local; add Origin for world space.
type ChunkMeshMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ChunkID         int64  `json:"chunk_id"`
	CX              int32  `json:"cx"`
	CZ              int32  `json:"cz"`
	Origin          [3]int `json:"origin"`
	VertexCount     int    `json:"vertex_count"`
	IndexCount      int    `json:"index_count"`
	Encoding        string `json:"encoding"`
	Vertices        string `json:"vertices"`
	Indices         string `json:"indices"`
}

// Server -> Client. Raw voxel ids of a chunk in x*S*S + y*S + z order.
type ChunkVoxelsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ChunkID         int64  `json:"chunk_id"`
	CX              int32  `json:"cx"`
	CZ              int32  `json:"cz"`
	Size            int    `json:"size"`
	Encoding        string `json:"encoding"`
	Data            string `json:"data"`
}

// Server -> Client. Sent once after SUBSCRIBE.
type StatsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Chunks          int    `json:"chunks"`
	Replayed        int    `json:"replayed"`
}

// HTTP response for GET /v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string               `json:"protocol_version"`
	ChunkSize       int                  `json:"chunk_size"`
	ChunkRadius     int                  `json:"chunk_radius"`
	Workers         int                  `json:"workers"`
	Seed            int64                `json:"seed"`
	ColorMode       string               `json:"color_mode"`
	Palette         []voxel.PaletteEntry `json:"palette"`
}
