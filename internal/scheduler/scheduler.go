package scheduler

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mrpack-downloader/internal/aggregate"
	"github.com/tanq16/mrpack-downloader/internal/manifest"
)

// Fetcher turns one manifest entry into its terminal outcome.
type Fetcher interface {
	Fetch(ctx context.Context, id aggregate.EntryID, file manifest.File) aggregate.Outcome
}

// Observer is notified as entries start and finish. Calls arrive from
// worker goroutines concurrently.
type Observer interface {
	Started(id aggregate.EntryID)
	Finished(outcome aggregate.Outcome)
}

// Options configures Run. Fetcher is required; Observer may be nil.
type Options struct {
	Workers  int
	Fetcher  Fetcher
	Observer Observer
}

var ErrNoFetcher = errors.New("scheduler: no fetcher configured")

type task struct {
	id   aggregate.EntryID
	file manifest.File
}

// Run downloads every file and returns the combined result. Each worker
// reduces its own outcomes to a partial result; partials are then reduced
// together, so no state is shared between workers.
func Run(ctx context.Context, files []manifest.File, opts Options) aggregate.Result {
	if len(files) == 0 {
		log.Info().Str("op", "scheduler/run").Msg("No files to download")
		return aggregate.Empty()
	}
	if opts.Fetcher == nil {
		log.Error().Str("op", "scheduler/run").Msg("No fetcher configured")
		outcomes := make([]aggregate.Outcome, len(files))
		for i, f := range files {
			outcomes[i] = aggregate.Outcome{
				ID:      aggregate.EntryID{Index: i, Path: f.Path},
				Status:  aggregate.StatusFailed,
				Reasons: []error{ErrNoFetcher},
			}
		}
		return aggregate.ReduceOutcomes(outcomes)
	}
	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = min(numWorkers, len(files))
	log.Info().Str("op", "scheduler/run").Msgf("Downloading %d files with %d workers", len(files), numWorkers)

	taskCh := make(chan task, len(files))
	for i, f := range files {
		taskCh <- task{id: aggregate.EntryID{Index: i, Path: f.Path}, file: f}
	}
	close(taskCh)

	partials := make([]aggregate.Result, numWorkers)
	var wg sync.WaitGroup
	for i := range numWorkers {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			partials[workerID] = processTasks(ctx, workerID, taskCh, opts)
		}(i)
	}
	wg.Wait()

	result := aggregate.Reduce(partials)
	log.Info().Str("op", "scheduler/run").Msgf("Finished: %d succeeded, %d failed", len(result.Succeeded), len(result.Failed))
	return result
}

func processTasks(ctx context.Context, workerID int, taskCh <-chan task, opts Options) aggregate.Result {
	var outcomes []aggregate.Outcome
	for t := range taskCh {
		log.Debug().Str("op", "scheduler/worker").Int("worker", workerID).Msgf("Starting %s", t.id)
		if opts.Observer != nil {
			opts.Observer.Started(t.id)
		}
		outcome := opts.Fetcher.Fetch(ctx, t.id, t.file)
		if opts.Observer != nil {
			opts.Observer.Finished(outcome)
		}
		outcomes = append(outcomes, outcome)
	}
	return aggregate.ReduceOutcomes(outcomes)
}

// LoadManifest loads the manifest at path and keeps the files for side.
func LoadManifest(path, side string) (*manifest.Manifest, []manifest.File, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, nil, err
	}
	files, err := m.ForSide(side)
	if err != nil {
		return m, nil, err
	}
	return m, files, nil
}

// RunManifest loads the manifest at path, keeps the files for side and runs
// them. Loading errors are returned before any download starts.
func RunManifest(ctx context.Context, path, side string, opts Options) (aggregate.Result, *manifest.Manifest, error) {
	m, files, err := LoadManifest(path, side)
	if err != nil {
		return aggregate.Result{}, m, err
	}
	return Run(ctx, files, opts), m, nil
}
