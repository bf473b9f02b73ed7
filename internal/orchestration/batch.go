package orchestration

import (
	"context"
	"sync"

	"github.com/streamvault/segmentcrypt/internal/monitoring"
)

// SegmentInput is one segment submitted to batch encryption.
type SegmentInput struct {
	Plaintext []byte
	Duration  float64
}

// SegmentResult is the outcome for one batch segment. Err is set when that
// segment failed; its siblings are unaffected.
type SegmentResult struct {
	Index    uint32
	Payload  []byte
	Metadata *SegmentMetadata
	Err      error
}

// EncryptSegments encrypts a batch concurrently through a bounded worker
// pool. Results are returned in input order with indices assigned
// startIndex, startIndex+1, and so on. A per-segment failure is recorded in
// that segment's result only. On cancellation, segments not yet started are
// marked with ctx.Err() and the context error is also returned.
func (e *SegmentEncryptor) EncryptSegments(ctx context.Context, segments []SegmentInput, assetID string, startIndex uint32) ([]SegmentResult, error) {
	results := make([]SegmentResult, len(segments))
	if len(segments) == 0 {
		return results, nil
	}

	workers := e.opts.Workers
	if workers > len(segments) {
		workers = len(segments)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				index := startIndex + uint32(i)
				payload, meta, err := e.EncryptSegment(ctx, segments[i].Plaintext, assetID, index, segments[i].Duration)
				results[i] = SegmentResult{Index: index, Payload: payload, Metadata: meta, Err: err}
				if err != nil {
					monitoring.BatchSegmentsTotal.WithLabelValues("error").Inc()
				} else {
					monitoring.BatchSegmentsTotal.WithLabelValues("success").Inc()
				}
			}
		}()
	}

	fed := len(segments)
feed:
	for i := range segments {
		select {
		case jobs <- i:
		case <-ctx.Done():
			fed = i
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		for i := fed; i < len(segments); i++ {
			if results[i].Payload == nil && results[i].Err == nil {
				results[i] = SegmentResult{Index: startIndex + uint32(i), Err: err}
			}
		}
		return results, err
	}
	return results, nil
}
