package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mrpack-downloader/internal/aggregate"
	"github.com/tanq16/mrpack-downloader/internal/manifest"
	"github.com/tanq16/mrpack-downloader/internal/utils"
)

// Attempt is the result of trying one mirror: a destination on success,
// an error otherwise.
type Attempt struct {
	Mirror      string
	Destination string
	Err         error
}

func (a Attempt) OK() bool { return a.Err == nil }

type Options struct {
	HTTPConfig utils.HTTPClientConfig
	S3Profile  string
}

// Fetcher walks an entry's mirrors in order and stores the first body that
// can be fetched and written.
type Fetcher struct {
	transports map[string]Transport
	sink       Sink
}

// New returns a Fetcher writing into outputDir with http, https and s3
// transports.
func New(outputDir string, opts Options) *Fetcher {
	httpTransport := NewHTTPTransport(opts.HTTPConfig)
	return NewWith(NewDiskSink(outputDir), map[string]Transport{
		"http":  httpTransport,
		"https": httpTransport,
		"s3":    NewS3Transport(opts.S3Profile),
	})
}

// NewWith builds a Fetcher from explicit collaborators, keyed by URL scheme.
func NewWith(sink Sink, transports map[string]Transport) *Fetcher {
	return &Fetcher{transports: transports, sink: sink}
}

// Fetch drives one entry from Pending through its mirrors to Success or
// Failed. It never returns an error; failures are carried in the outcome.
func (f *Fetcher) Fetch(ctx context.Context, id aggregate.EntryID, file manifest.File) aggregate.Outcome {
	name := FileName(file.Path)
	outcome := aggregate.Outcome{ID: id, Status: aggregate.StatusPending}
	for i := 0; outcome.Status == aggregate.StatusPending; i++ {
		if i >= len(file.Downloads) {
			outcome.Status = aggregate.StatusFailed
			break
		}
		attempt := f.try(ctx, file.Downloads[i], name)
		if attempt.OK() {
			outcome.Status = aggregate.StatusSuccess
			outcome.Destination = attempt.Destination
			outcome.Reasons = nil
			log.Debug().Str("op", "fetcher/fetch").Msgf("%s downloaded from mirror %d", file.Path, i+1)
			break
		}
		outcome.Reasons = append(outcome.Reasons, attempt.Err)
		log.Warn().Str("op", "fetcher/fetch").Err(attempt.Err).Msgf("Mirror %d/%d failed for %s", i+1, len(file.Downloads), file.Path)
	}
	if outcome.Status == aggregate.StatusFailed {
		log.Error().Str("op", "fetcher/fetch").Msgf("All %d mirrors failed for %s", len(file.Downloads), file.Path)
	}
	return outcome
}

func (f *Fetcher) try(ctx context.Context, mirror, name string) Attempt {
	attempt := Attempt{Mirror: mirror}
	u, err := url.Parse(mirror)
	if err != nil {
		attempt.Err = &TransportError{Mirror: mirror, Err: fmt.Errorf("invalid URL: %w", err)}
		return attempt
	}
	transport, ok := f.transports[u.Scheme]
	if !ok {
		attempt.Err = &TransportError{Mirror: mirror, Err: fmt.Errorf("unsupported scheme: %q", u.Scheme)}
		return attempt
	}
	staged, err := f.sink.Stage(name)
	if err != nil {
		attempt.Err = asWriteError(name, err)
		return attempt
	}
	if err := transport.Fetch(ctx, u, staged); err != nil {
		staged.Abort()
		var we *WriteError
		if errors.As(err, &we) {
			attempt.Err = we
		} else {
			attempt.Err = &TransportError{Mirror: mirror, Err: err}
		}
		return attempt
	}
	dest, err := staged.Commit()
	if err != nil {
		attempt.Err = asWriteError(name, err)
		return attempt
	}
	attempt.Destination = dest
	return attempt
}

func asWriteError(name string, err error) error {
	var we *WriteError
	if errors.As(err, &we) {
		return we
	}
	return &WriteError{Path: name, Err: err}
}
