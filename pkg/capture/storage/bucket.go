package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"

	"github.com/trainloop/capture/pkg/capture"
)

// Bucket stores blobs in a Go CDK bucket (S3, GCS, or in memory). Object
// stores cannot append, so Append rewrites the object under a lock.
type Bucket struct {
	bucket *blob.Bucket
	target string

	// mu serializes read-modify-write appends from this process.
	mu sync.Mutex
}

var _ Backend = (*Bucket)(nil)

// OpenBucket opens a bucket URL such as s3://bucket/prefix?region=us-east-1.
// A path after the bucket name becomes the key prefix.
func OpenBucket(ctx context.Context, target string) (*Bucket, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("storage: invalid bucket URL %q: %w", target, err)
	}
	if p := strings.Trim(u.Path, "/"); p != "" {
		q := u.Query()
		q.Set("prefix", p+"/")
		u.RawQuery = q.Encode()
		u.Path = ""
	}

	b, err := blob.OpenBucket(ctx, u.String())
	if err != nil {
		return nil, capture.NewStorageError("blob", "open", target, err)
	}
	return &Bucket{bucket: b, target: target}, nil
}

// NewBucket wraps an already opened bucket.
func NewBucket(b *blob.Bucket, target string) *Bucket {
	return &Bucket{bucket: b, target: target}
}

func (b *Bucket) String() string {
	return b.target
}

func (b *Bucket) Read(ctx context.Context, key string) ([]byte, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	data, err := b.bucket.ReadAll(ctx, k)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, capture.ErrNotExist
	}
	if err != nil {
		return nil, capture.NewStorageError("blob", "read", key, err)
	}
	return data, nil
}

func (b *Bucket) Write(ctx context.Context, key string, data []byte) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := b.bucket.WriteAll(ctx, k, data, &blob.WriterOptions{ContentType: contentType(k)}); err != nil {
		return capture.NewStorageError("blob", "write", key, err)
	}
	return nil
}

func (b *Bucket) Append(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.Read(ctx, key)
	if err != nil && !errors.Is(err, capture.ErrNotExist) {
		return capture.NewStorageError("blob", "append", key, err)
	}

	var buf bytes.Buffer
	buf.Grow(len(existing) + len(data))
	buf.Write(existing)
	buf.Write(data)
	if err := b.Write(ctx, key, buf.Bytes()); err != nil {
		return capture.NewStorageError("blob", "append", key, err)
	}
	return nil
}

func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	it := b.bucket.List(&blob.ListOptions{Prefix: prefix})
	var keys []string
	for {
		obj, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, capture.NewStorageError("blob", "list", prefix, err)
		}
		if !obj.IsDir {
			keys = append(keys, obj.Key)
		}
	}
	return keys, nil
}

func (b *Bucket) Delete(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = b.bucket.Delete(ctx, k)
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return capture.NewStorageError("blob", "delete", key, err)
	}
	return nil
}

func (b *Bucket) Close() error {
	return b.bucket.Close()
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".jsonl"):
		return "application/x-ndjson"
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
