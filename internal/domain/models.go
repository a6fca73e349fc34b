// Package domain defines the persistence models for folders, files, chunks,
// conversations, and messages. These types are mapped with GORM and form the
// core data layer of the document-chat application.
package domain

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// Folder index statuses. Transitions are owned exclusively by the indexer:
// pending → indexing → ready | failed.
const (
	FolderStatusPending  = "pending"
	FolderStatusIndexing = "indexing"
	FolderStatusReady    = "ready"
	FolderStatusFailed   = "failed"
)

// File index statuses.
const (
	FileStatusPending = "pending"
	FileStatusIndexed = "indexed"
	FileStatusFailed  = "failed"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Folder is the tenant-scoped root of indexing: one registered provider
// folder whose documents are chunked and embedded.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - OwnerID: identifier of the owning tenant; indexed for retrieval.
//   - ProviderRef: opaque reference into the file-storage provider.
//   - Name: display name of the folder.
//   - IndexStatus: pending | indexing | ready | failed.
//   - FilesTotal / FilesIndexed: progress counters; FilesIndexed never
//     exceeds FilesTotal and is observable mid-run by status pollers.
//   - LastError: human-readable failure summary (never internal detail).
type Folder struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	OwnerID      string    `json:"owner_id"      gorm:"type:varchar(64);not null;index:idx_owner_folders"`
	ProviderRef  string    `json:"provider_ref"  gorm:"type:varchar(255);not null"`
	Name         string    `json:"name"          gorm:"type:varchar(255);not null"`
	IndexStatus  string    `json:"index_status"  gorm:"type:varchar(16);not null;default:'pending';check:index_status IN ('pending','indexing','ready','failed')"`
	FilesTotal   int       `json:"files_total"   gorm:"not null;default:0"`
	FilesIndexed int       `json:"files_indexed" gorm:"not null;default:0"`
	LastError    string    `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Folder.
func (Folder) TableName() string { return "folders" }

// File is one source document discovered while listing a folder at the
// storage provider. Rows are replaced on re-indexing together with their
// chunks, so files carry no soft-delete marker.
type File struct {
	ID             string    `json:"id"               gorm:"type:char(36);primaryKey"`
	FolderID       string    `json:"folder_id"        gorm:"type:char(36);not null;index:idx_folder_files"`
	ProviderFileID string    `json:"provider_file_id" gorm:"type:varchar(255);not null"`
	Name           string    `json:"name"             gorm:"type:varchar(255);not null"`
	MimeType       string    `json:"mime_type"        gorm:"type:varchar(128);not null"`
	IndexStatus    string    `json:"index_status"     gorm:"type:varchar(16);not null;default:'pending';check:index_status IN ('pending','indexed','failed')"`
	IndexError     string    `json:"index_error,omitempty" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Folder is the owning folder. Files are cascade-deleted with it.
	Folder Folder `json:"-" gorm:"foreignKey:FolderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for File.
func (File) TableName() string { return "files" }

// Chunk is the atomic retrieval unit: a bounded span of extracted text with
// its embedding and location metadata. Chunks are immutable once written and
// replaced wholesale when their folder is re-indexed.
//
// OwnerID duplicates the folder owner as defense-in-depth isolation: every
// similarity query filters on it directly instead of trusting the join chain.
type Chunk struct {
	ID          string          `json:"id"        gorm:"type:char(36);primaryKey"`
	FileID      string          `json:"file_id"   gorm:"type:char(36);not null;index:idx_file_chunks,priority:1"`
	OwnerID     string          `json:"owner_id"  gorm:"type:varchar(64);not null;index:idx_owner_chunks"`
	Position    int             `json:"position"  gorm:"not null;index:idx_file_chunks,priority:2"`
	Text        string          `json:"text"      gorm:"type:text;not null"`
	Page        *int            `json:"page,omitempty"`
	HeadingPath string          `json:"heading_path,omitempty" gorm:"type:varchar(512)"`
	Embedding   pgvector.Vector `json:"-"         gorm:"type:vector(768)"`
	CreatedAt   time.Time       `json:"created_at"`

	// File is the owning document. Chunks are cascade-deleted with it.
	File File `json:"-" gorm:"foreignKey:FileID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Chunk.
func (Chunk) TableName() string { return "chunks" }

// Conversation is a chat thread scoped to one folder. UpdatedAt is bumped on
// every appended message and drives the listing order.
type Conversation struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	FolderID  string         `json:"folder_id"  gorm:"type:char(36);not null;index:idx_folder_convs"`
	Title     string         `json:"title"      gorm:"type:varchar(255);not null;default:'New conversation'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	// Folder is the parent folder. Conversations are cascade-deleted with it.
	Folder Folder `json:"-" gorm:"foreignKey:FolderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Message is one turn within a conversation, authored either by the "user"
// or the "assistant". Assistant messages carry the resolved citation set;
// the map is empty for user messages.
type Message struct {
	ID             string         `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string         `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1"`
	Role           string         `json:"role"            gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content        string         `json:"content"         gorm:"type:text;not null"`
	Citations      CitationMap    `json:"citations,omitempty" gorm:"type:text"`
	CreatedAt      time.Time      `json:"created_at"      gorm:"index:idx_conv_msgs,priority:2"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-"               gorm:"index"`

	// Conversation is the parent thread. Messages are cascade-deleted with it.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }
