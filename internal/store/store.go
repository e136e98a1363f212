// Package store reads and writes snapshot files on the local disk or in an
// S3-compatible bucket.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"boardsnap/internal/config"
)

// ErrNotFound is returned when a snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

// Object describes a stored snapshot.
type Object struct {
	Key      string
	Size     int64
	Modified time.Time
}

// Store persists snapshot documents.
type Store interface {
	// Save writes data under name and returns where it landed.
	Save(ctx context.Context, name string, data []byte) (string, error)
	// Load reads the snapshot at key.
	Load(ctx context.Context, key string) ([]byte, error)
	// List returns the stored snapshots, oldest first.
	List(ctx context.Context) ([]Object, error)
}

// Location is a parsed store target.
type Location struct {
	S3     bool
	Bucket string
	// Path is the directory, or the key prefix inside Bucket.
	Path string
}

func (l Location) String() string {
	if l.S3 {
		return "s3://" + joinKey(l.Bucket, l.Path)
	}
	return l.Path
}

// ParseLocation splits "s3://bucket/prefix" targets from local paths.
func ParseLocation(target string) (Location, error) {
	rest, ok := strings.CutPrefix(target, "s3://")
	if !ok {
		if target == "" {
			target = "."
		}
		return Location{Path: target}, nil
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("%q names no bucket", target)
	}
	return Location{S3: true, Bucket: bucket, Path: strings.Trim(prefix, "/")}, nil
}

// Open returns the store for target, falling back to the configured output
// directory when target is empty.
func Open(ctx context.Context, cfg config.StoreConfig, target string) (Store, error) {
	if target == "" {
		target = cfg.OutputDir
	}
	loc, err := ParseLocation(target)
	if err != nil {
		return nil, err
	}
	if !loc.S3 {
		return NewFileStore(loc.Path), nil
	}
	client, err := NewS3Client(ctx, cfg.S3)
	if err != nil {
		return nil, err
	}
	return NewS3Store(client, loc.Bucket, loc.Path), nil
}

// Load reads a snapshot addressed by a full reference: a local file path
// or s3://bucket/key.
func Load(ctx context.Context, cfg config.StoreConfig, ref string) ([]byte, error) {
	loc, err := ParseLocation(ref)
	if err != nil {
		return nil, err
	}
	if !loc.S3 {
		return NewFileStore("").Load(ctx, loc.Path)
	}
	client, err := NewS3Client(ctx, cfg.S3)
	if err != nil {
		return nil, err
	}
	return NewS3Store(client, loc.Bucket, "").Load(ctx, loc.Path)
}

func joinKey(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(name, "/")
}
