package imaging

import (
	"fmt"
	"io"
	"time"

	units "github.com/docker/go-units"
	"github.com/gosuri/uilive"
)

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}

// progress redraws a transfer summary in place about once a second. A nil
// progress reports nothing.
type progress struct {
	live       *uilive.Writer
	total      int64
	start      time.Time
	lastUpdate time.Time
}

func newProgress(out io.Writer, total int64) *progress {
	if out == nil {
		return nil
	}
	live := uilive.New()
	live.Out = out
	live.Start()
	now := time.Now()
	return &progress{live: live, total: total, start: now, lastUpdate: now}
}

func formatSpeed(bytesPerSecond float64) string {
	return units.HumanSize(bytesPerSecond) + "/s"
}

func (p *progress) estimate(done int64, elapsed float64) string {
	if p.total <= 0 || done <= 0 || elapsed <= 0 {
		return "N/A"
	}
	rate := float64(done) / elapsed
	remaining := float64(p.total-done) / rate
	if remaining < 0 {
		remaining = 0
	}
	return (time.Duration(remaining) * time.Second).Round(time.Second).String()
}

func (p *progress) update(read, written int64, force bool) {
	if p == nil || (!force && time.Since(p.lastUpdate) < time.Second) {
		return
	}
	elapsed := time.Since(p.start)
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		seconds = 1e-9
	}

	_, _ = fmt.Fprintf(p.live, "Byte Count: Read: %s (%d bytes), Written: %s (%d bytes)\n",
		units.BytesSize(float64(read)), read, units.BytesSize(float64(written)), written)
	_, _ = fmt.Fprintf(p.live, "Elapsed Time: %s\n", elapsed.Truncate(time.Second))
	_, _ = fmt.Fprintf(p.live, "Estimated Time: %s\n", p.estimate(read, seconds))
	_, _ = fmt.Fprintf(p.live, "Read Speed: %s\n", formatSpeed(float64(read)/seconds))
	_, _ = fmt.Fprintf(p.live, "Write Speed: %s\n", formatSpeed(float64(written)/seconds))
	_ = p.live.Flush()
	p.lastUpdate = time.Now()
}

func (p *progress) stop() {
	if p == nil {
		return
	}
	p.live.Stop()
}
