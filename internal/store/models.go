package store

import "time"

type Room struct {
	ID        string    `json:"id"` // Using UUID for external ID
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	DocumentKindFile   = "file"
	DocumentKindLink   = "link"
	DocumentKindObject = "object" // key in the configured object storage bucket
)

type Document struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	Title      string    `json:"title"`
	Kind       string    `json:"kind"`
	Location   string    `json:"location"` // path, URL or object key depending on Kind
	UploadedAt time.Time `json:"uploaded_at"`
}

// Chunk is compared by Text only; the other fields are metadata.
type Chunk struct {
	Text       string `json:"text"`
	DocumentID string `json:"document_id,omitempty"`
	Source     string `json:"source,omitempty"`
}

type ChunkSet struct {
	RoomID    string    `json:"room_id"`
	Chunks    []Chunk   `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ByDocument groups chunks by the document they were extracted from, keeping order.
func (cs *ChunkSet) ByDocument() map[string][]Chunk {
	out := make(map[string][]Chunk)
	for _, c := range cs.Chunks {
		out[c.DocumentID] = append(out[c.DocumentID], c)
	}
	return out
}

// Texts returns the chunk texts in order.
func (cs *ChunkSet) Texts() []string {
	texts := make([]string, 0, len(cs.Chunks))
	for _, c := range cs.Chunks {
		texts = append(texts, c.Text)
	}
	return texts
}

type Turn struct {
	ID           string    `json:"id"`
	RoomID       string    `json:"room_id"`
	QueryText    string    `json:"query_text"`
	ResponseText string    `json:"response_text"`
	CreatedAt    time.Time `json:"created_at"`
}

// DedupScope controls which existing turns block persisting a turn with the same query text.
type DedupScope string

const (
	DedupGlobal DedupScope = "global"
	DedupRoom   DedupScope = "room"
)
