// Package workload holds the demo work executed by bgtask: checksums of
// generated payloads computed in the background and folded into a view
// model that only the UI thread touches.
package workload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// ErrSimulatedFailure is returned by jobs picked to fail.
var ErrSimulatedFailure = errors.New("simulated failure")

// Checksum is the value produced by a ChecksumJob.
type Checksum struct {
	Index int
	Size  int
	Sum   string
}

// ChecksumJob hashes one generated payload. It implements core.Worker[Checksum].
type ChecksumJob struct {
	Index       int
	Seed        uint64
	PayloadSize int
	Work        time.Duration
	FailureRate float64
	View        *ViewModel
}

// Payload deterministically generates the bytes hashed by the job.
func (j *ChecksumJob) Payload() []byte {
	rng := rand.New(rand.NewPCG(j.Seed, uint64(j.Index)))
	buf := make([]byte, j.PayloadSize)
	for i := 0; i+8 <= len(buf); i += 8 {
		v := rng.Uint64()
		for k := 0; k < 8; k++ {
			buf[i+k] = byte(v >> (8 * k))
		}
	}
	for i := len(buf) &^ 7; i < len(buf); i++ {
		buf[i] = byte(rng.Uint32())
	}
	return buf
}

// failing reports whether this job was picked to fail. The draw is derived
// from the seed so runs are reproducible.
func (j *ChecksumJob) failing() bool {
	if j.FailureRate <= 0 {
		return false
	}
	rng := rand.New(rand.NewPCG(j.Seed^0x9e3779b97f4a7c15, uint64(j.Index)))
	return rng.Float64() < j.FailureRate
}

// PerformTask runs in the background.
func (j *ChecksumJob) PerformTask(ctx context.Context) (Checksum, error) {
	if j.Work > 0 {
		timer := time.NewTimer(j.Work)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return Checksum{Index: j.Index}, ctx.Err()
		}
	}
	if j.failing() {
		return Checksum{Index: j.Index}, fmt.Errorf("payload %d: %w", j.Index, ErrSimulatedFailure)
	}

	sum := sha256.Sum256(j.Payload())
	return Checksum{Index: j.Index, Size: j.PayloadSize, Sum: hex.EncodeToString(sum[:])}, nil
}

// PostProcessing runs on the UI thread.
func (j *ChecksumJob) PostProcessing(ctx context.Context, result Checksum, err error) {
	if j.View != nil {
		j.View.Apply(result, err)
	}
}
