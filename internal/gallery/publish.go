package gallery

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// source lists and opens the files of a rendered gallery.
type source interface {
	Walk(fn func(rel string) error) error
	Load(ctx context.Context, path string) (io.ReadCloser, error)
}

// uploader stores one file under a prefix in remote storage.
type uploader interface {
	Save(ctx context.Context, prefix, filename string, src io.Reader) (string, error)
}

// Publisher uploads a rendered gallery folder to remote storage.
type Publisher struct {
	uploader uploader
	strategy retry.Strategy
}

// NewPublisher creates a Publisher retrying each upload with strategy.
func NewPublisher(u uploader, strategy retry.Strategy) *Publisher {
	return &Publisher{uploader: u, strategy: strategy}
}

// Publish uploads every file of src below prefix, keeping the relative
// layout (thumbs/ stays thumbs/). It stops at the first file that cannot be
// uploaded after retries and returns the number of files uploaded.
func (p *Publisher) Publish(ctx context.Context, src source, prefix string) (int, error) {
	var uploaded int

	err := src.Walk(func(rel string) error {
		objectPrefix := path.Join(prefix, path.Dir(rel))

		err := retry.Do(func() error {
			return p.upload(ctx, src, rel, objectPrefix)
		}, p.strategy)
		if err != nil {
			return fmt.Errorf("publish %s: %w", rel, err)
		}

		uploaded++
		zlog.Logger.Debug().Str("file", rel).Msg("published")
		return nil
	})

	return uploaded, err
}

func (p *Publisher) upload(ctx context.Context, src source, rel, prefix string) error {
	f, err := src.Load(ctx, rel)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = p.uploader.Save(ctx, prefix, path.Base(rel), f)
	return err
}
