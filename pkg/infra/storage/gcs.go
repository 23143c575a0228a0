package storage

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
)

// Client uploads job artifacts to a Google Cloud Storage bucket
type Client struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ interfaces.ArtifactStore = (*Client)(nil)

// New creates an artifact store writing to the given bucket. Objects
// are placed under prefix when it is non-empty.
func New(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*Client, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}
	return &Client{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close releases the underlying client
func (c *Client) Close() error {
	return c.client.Close()
}

// Upload stores the object and returns its gs:// location
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	objectName := name
	if c.prefix != "" {
		objectName = c.prefix + "/" + name
	}

	w := c.client.Bucket(c.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", goerr.Wrap(err, "failed to write artifact",
			goerr.V("bucket", c.bucket), goerr.V("object", objectName))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize artifact",
			goerr.V("bucket", c.bucket), goerr.V("object", objectName))
	}

	return "gs://" + c.bucket + "/" + objectName, nil
}
