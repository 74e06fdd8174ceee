package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"symdir/logger"
)

// Payloads holds the raw bytes of both feed files from one session.
type Payloads struct {
	Nasdaq []byte
	Other  []byte
	Source string
}

// Fetcher downloads the two symbol directory files as a unit.
type Fetcher struct {
	source     Source
	nasdaqFile string
	otherFile  string
	timeout    time.Duration
	log        *logger.Log
}

func New(source Source, nasdaqFile, otherFile string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		source:     source,
		nasdaqFile: nasdaqFile,
		otherFile:  otherFile,
		timeout:    timeout,
		log:        logger.GetLogger(),
	}
}

// Fetch opens one session, retrieves both files and closes it. Either both
// payloads come back or a *FetchError does.
func (f *Fetcher) Fetch(ctx context.Context) (*Payloads, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	log := f.log.WithComponent("fetcher").WithFields(logger.Fields{"source": f.source.Name()})
	start := time.Now()

	session, err := f.source.Open(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to open feed session")
		return nil, &FetchError{Op: "open", Err: err}
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.WithError(cerr).Debug("feed session close failed")
		}
	}()

	nasdaq, err := f.retrieve(ctx, session, f.nasdaqFile)
	if err != nil {
		log.WithFeed(f.nasdaqFile).WithError(err).Warn("feed download failed")
		return nil, err
	}
	other, err := f.retrieve(ctx, session, f.otherFile)
	if err != nil {
		log.WithFeed(f.otherFile).WithError(err).Warn("feed download failed")
		return nil, err
	}

	logger.LogPerformanceEntry(log, "fetcher", "fetch", time.Since(start), logger.Fields{
		"nasdaq_bytes": len(nasdaq),
		"other_bytes":  len(other),
	})
	return &Payloads{Nasdaq: nasdaq, Other: other, Source: f.source.Name()}, nil
}

func (f *Fetcher) retrieve(ctx context.Context, session Session, file string) ([]byte, error) {
	data, err := session.Retrieve(ctx, file)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, &FetchError{Feed: file, Op: "retrieve", Err: err}
	}
	if len(data) == 0 {
		return nil, &FetchError{Feed: file, Op: "retrieve", Err: ErrEmptyPayload}
	}
	logger.RecordFeedDownload(file, len(data))
	return data, nil
}
