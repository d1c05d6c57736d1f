package booktag

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// NumWorkers is deliberately small, resolution is network bound and
// providers throttle aggressively.
const NumWorkers = 5

type Progress struct {
	Done, Total int
	Result      *Result
	Err         error
}

// ResolveBatch processes book directories concurrently. Per-item
// failures never abort the batch; onProgress is invoked from a single
// goroutine so callers can update UIs without locking.
func (c *Config) ResolveBatch(ctx context.Context, dirs []string, onProgress func(Progress)) (resolved, failed int) {
	type item struct {
		result *Result
		err    error
	}
	items := make(chan item)

	var consume sync.WaitGroup
	consume.Add(1)
	go func() {
		defer consume.Done()
		var done int
		for it := range items {
			done++
			switch {
			case it.err == nil:
				resolved++
			case errors.Is(it.err, ErrSkipped):
			default:
				failed++
			}
			if onProgress != nil {
				onProgress(Progress{Done: done, Total: len(dirs), Result: it.result, Err: it.err})
			}
		}
	}()

	var wg errgroup.Group
	wg.SetLimit(NumWorkers)
	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		wg.Go(func() error {
			res, err := c.ResolveOne(ctx, dir)
			if res == nil {
				res = &Result{Dir: dir}
			}
			items <- item{result: res, err: err}
			return nil
		})
	}
	_ = wg.Wait()
	close(items)
	consume.Wait()

	return resolved, failed
}
