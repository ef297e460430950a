// Package store defines the metadata-store client boundary consumed by the
// shovel core. The wire protocol, connection management, and retry policy
// live behind the Client interface.
package store

import (
	"context"
	"path"
	"time"
)

// Entry types written by the shovel.
const (
	TypeDirectory = "directory"
	TypeObject    = "object"
)

// Fixed sentinel values stamped into every record. The generated load is
// synthetic; nothing ever reads these back.
const (
	SentinelOwner       = "00000000-0000-0000-0000-000000000000"
	SentinelObjectID    = "11111111-1111-1111-1111-111111111111"
	SentinelContentMD5  = "1B2M2Y8AsgTpgAmY7PhCfg=="
	SentinelContentType = "application/octet-stream"
	SentinelStorageID   = "1.stor.emy-10.joyent.us"
)

// Shark is one placeholder storage location attached to object records.
type Shark struct {
	MantaStorageID string `json:"manta_storage_id"`
}

// Record is the metadata record accepted by the store's single write
// primitive.
type Record struct {
	Dirname       string    `json:"dirname"`
	Key           string    `json:"key"`
	MTime         time.Time `json:"mtime"`
	Owner         string    `json:"owner"`
	RequestID     string    `json:"requestId"`
	Roles         []string  `json:"roles"`
	Type          string    `json:"type"`
	Etag          *string   `json:"etag"`
	ContentLength *int64    `json:"contentLength,omitempty"`
	ContentMD5    string    `json:"contentMD5,omitempty"`
	ContentType   string    `json:"contentType,omitempty"`
	ObjectID      string    `json:"objectId,omitempty"`
	Sharks        []Shark   `json:"sharks,omitempty"`
}

// NewDirectoryRecord builds the record for a directory entry at key.
func NewDirectoryRecord(requestID, key string) *Record {
	return &Record{
		Dirname:   path.Dir(key),
		Key:       key,
		MTime:     time.Now(),
		Owner:     SentinelOwner,
		RequestID: requestID,
		Roles:     []string{},
		Type:      TypeDirectory,
	}
}

// NewObjectRecord builds the record for a zero-byte object entry at key.
func NewObjectRecord(requestID, key string) *Record {
	var length int64
	return &Record{
		Dirname:       path.Dir(key),
		Key:           key,
		MTime:         time.Now(),
		Owner:         SentinelOwner,
		RequestID:     requestID,
		Roles:         []string{},
		Type:          TypeObject,
		ContentLength: &length,
		ContentMD5:    SentinelContentMD5,
		ContentType:   SentinelContentType,
		ObjectID:      SentinelObjectID,
		Sharks:        []Shark{{MantaStorageID: SentinelStorageID}},
	}
}

// Client is the asynchronous write primitive exposed by the metadata
// store. Ready is closed once a connection is established and operations
// may start; Fatal delivers connection-level failures after which the
// process must terminate.
type Client interface {
	Put(ctx context.Context, rec *Record) error
	Ready() <-chan struct{}
	Fatal() <-chan error
	Close() error
}
