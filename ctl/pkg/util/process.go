package util

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/viper"
	"github.com/thinkparq/ibackup-go/common/backup"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
	"golang.org/x/sync/errgroup"
)

// ProcessEntries executes processEntry for each entry and streams the results.
//
// By default entries are processed in parallel based on the global num-workers flag. Because entries
// are processed in parallel, the order results are returned in is not stable. If stable results are
// desired use the singleWorker option.
//
// The returned channel is closed once all entries are processed, or if any error occurs after all
// valid results are sent to the channel. When any worker returns an error the shared context is
// cancelled; in-flight calls to processEntry are allowed to finish, but no new work is started.
// Errors that only concern a single entry should be reported as part of its result instead.
func ProcessEntries[ResultT any](
	ctx context.Context,
	entries []backup.Entry,
	singleWorker bool,
	processEntry func(ctx context.Context, entry backup.Entry) (ResultT, error),
) (<-chan ResultT, func() error) {

	numWorkers := 1
	if !singleWorker {
		// Reserve one core for the Goroutine feeding entries. If there is only a single core don't
		// set the numWorkers less than one.
		numWorkers = max(viper.GetInt(config.NumWorkersKey)-1, 1)
	}

	feedGroup, feedGroupCtx := errgroup.WithContext(ctx)
	work := make(chan backup.Entry, numWorkers*4)
	feedGroup.Go(func() error {
		defer close(work)
		for _, e := range entries {
			select {
			case <-feedGroupCtx.Done():
				return feedGroupCtx.Err()
			case work <- e:
			}
		}
		return nil
	})

	processGroup, processGroupCtx := errgroup.WithContext(ctx)
	results := make(chan ResultT, numWorkers*4)
	processGroup.Go(func() (err error) {
		defer close(results)
		defer func() {
			err = WaitForLastStage(feedGroup.Wait, err, work)
		}()
		return startProcessing(processGroupCtx, work, results, processEntry, numWorkers)
	})

	return results, processGroup.Wait
}

func startProcessing[ResultT any](
	ctx context.Context,
	entries <-chan backup.Entry,
	results chan<- ResultT,
	processEntry func(ctx context.Context, entry backup.Entry) (ResultT, error),
	numWorkers int,
) error {

	g, gCtx := errgroup.WithContext(ctx)
	for range numWorkers {
		g.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					return gCtx.Err()
				case entry, ok := <-entries:
					if !ok {
						return nil
					}
					result, err := processEntry(gCtx, entry)
					if err != nil {
						return err
					}

					select {
					case <-gCtx.Done():
						return gCtx.Err()
					case results <- result:
					}
				}
			}
		})
	}

	return g.Wait()
}

// WaitForLastStage drains any provided channels and then blocks on wait(). Any error that's
// returned from the wait function is joined with err and returned. This lets you cancel a
// downstream pipeline stage without preventing upstream stages that may still be active.
func WaitForLastStage[T any](wait func() error, err error, chans ...<-chan T) error {
	wg := sync.WaitGroup{}
	wg.Add(len(chans))
	for _, ch := range chans {
		go func() {
			defer wg.Done()
			for range ch {
			}
		}()
	}
	wg.Wait()

	previousErr := wait()
	if previousErr != nil && errors.Is(err, previousErr) {
		return err
	}
	return errors.Join(previousErr, err)
}
