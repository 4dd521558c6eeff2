package internal

import (
	"context"
	"sync"
)

// runPool fans videos out to a bounded number of workers and funnels their
// per-video outcomes back over a channel. Videos are independent units of
// work; nothing here shares state beyond the store, which serializes its own
// row writes. Cancellation stops dispatch between videos, never mid-write.
func runPool(ctx context.Context, workers int, videos []*Video, work func(context.Context, *Video) VideoOutcome) *BatchSummary {
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan *Video)
	results := make(chan VideoOutcome, len(videos))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for video := range jobs {
				results <- work(ctx, video)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, video := range videos {
			select {
			case <-ctx.Done():
				return
			case jobs <- video:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	summary := &BatchSummary{}
	for outcome := range results {
		summary.Add(outcome)
	}
	return summary
}
