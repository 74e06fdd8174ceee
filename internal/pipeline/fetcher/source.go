package fetcher

import (
	"context"
	"fmt"

	"symdir/config"
)

// Source opens a session against the server that hosts the feed files.
type Source interface {
	Name() string
	Open(ctx context.Context) (Session, error)
}

// Session retrieves files until closed. One session serves one fetch.
type Session interface {
	Retrieve(ctx context.Context, file string) ([]byte, error)
	Close() error
}

// NewSource builds the transport selected by cfg.Source.
func NewSource(ctx context.Context, cfg config.FeedConfig) (Source, error) {
	switch cfg.Source {
	case config.SourceFTP, "":
		return NewFTPSource(cfg.FTP, cfg.Timeout), nil
	case config.SourceHTTP:
		return NewHTTPSource(cfg.HTTP, cfg.Timeout), nil
	case config.SourceS3:
		return NewS3Source(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown feed source %q", cfg.Source)
	}
}
