package object

import (
	"context"
	"io"
	"net/url"
	"strings"
)

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	Save(ctx context.Context, userId string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	// PublicURL returns the stored URL recorded on the document row. The
	// object path is recoverable from it via the /object/public/ marker.
	PublicURL(storageKey string) string
}

// PublicURLFor composes the conventional public URL for a stored object.
func PublicURLFor(base, bucket, storageKey string) string {
	segments := strings.Split(storageKey, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(base, "/") + "/object/public/" + bucket + "/" + strings.Join(segments, "/")
}
