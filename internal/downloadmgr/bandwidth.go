package downloadmgr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

// burstMultiplier controls the token bucket burst size relative to the
// per-second rate. A 2x burst lets short savings be spent on the next
// read/write without reducing sustained throughput below the configured
// limit.
const burstMultiplier = 2

// bandwidthContextKey is how a Downloader retrieves the shared limiter
// from the ctx Manager.runOne passes it (downloaders are opaque acquirers;
// the manager has no I/O stream of its own to wrap).
type bandwidthContextKey struct{}

// BandwidthLimiter rate-limits aggregate download throughput across every
// concurrent Downloader invocation.
type BandwidthLimiter struct {
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewBandwidthLimiter builds a limiter from a "5MB/s"-style config string.
// Returns nil (unlimited, nil-safe throughout) if limit is "" or "0".
func NewBandwidthLimiter(limit string, logger *slog.Logger) (*BandwidthLimiter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bytesPerSec, err := parseBandwidthRate(limit)
	if err != nil {
		return nil, fmt.Errorf("downloadmgr: parsing bandwidth limit %q: %w", limit, err)
	}

	if bytesPerSec == 0 {
		return nil, nil //nolint:nilnil // nil limiter means unlimited; every wrapper below is nil-safe
	}

	burst := int(bytesPerSec) * burstMultiplier
	logger.Info("bandwidth limiter configured", slog.Int64("bytes_per_sec", bytesPerSec), slog.Int("burst", burst))

	return &BandwidthLimiter{limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst), logger: logger}, nil
}

// parseBandwidthRate parses "5MB/s", "250KB/s", "0", "" into bytes/sec.
func parseBandwidthRate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	s = strings.TrimSuffix(strings.ToLower(s), "/s")

	var (
		multiplier int64 = 1
		numeric          = s
	)

	switch {
	case strings.HasSuffix(s, "gb"):
		multiplier = 1024 * 1024 * 1024
		numeric = strings.TrimSuffix(s, "gb")
	case strings.HasSuffix(s, "mb"):
		multiplier = 1024 * 1024
		numeric = strings.TrimSuffix(s, "mb")
	case strings.HasSuffix(s, "kb"):
		multiplier = 1024
		numeric = strings.TrimSuffix(s, "kb")
	case strings.HasSuffix(s, "b"):
		numeric = strings.TrimSuffix(s, "b")
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", s, err)
	}

	if value < 0 {
		return 0, fmt.Errorf("invalid rate %q: must be non-negative", s)
	}

	return int64(value * float64(multiplier)), nil
}

// WithLimiter attaches bl to ctx, for a Downloader to retrieve via
// BandwidthLimiterFromContext and wrap its own transfer streams.
func WithLimiter(ctx context.Context, bl *BandwidthLimiter) context.Context {
	if bl == nil {
		return ctx
	}

	return context.WithValue(ctx, bandwidthContextKey{}, bl)
}

// BandwidthLimiterFromContext retrieves the limiter attached by WithLimiter,
// or nil if none is set (unlimited).
func BandwidthLimiterFromContext(ctx context.Context) *BandwidthLimiter {
	bl, _ := ctx.Value(bandwidthContextKey{}).(*BandwidthLimiter)

	return bl
}

// WrapReader returns a rate-limited io.Reader. Nil-safe: a nil *BandwidthLimiter
// returns r unchanged.
func (bl *BandwidthLimiter) WrapReader(ctx context.Context, r io.Reader) io.Reader {
	if bl == nil {
		return r
	}

	return &rateLimitedReader{r: r, limiter: bl.limiter, ctx: ctx}
}

// WrapWriter returns a rate-limited io.Writer. Nil-safe.
func (bl *BandwidthLimiter) WrapWriter(ctx context.Context, w io.Writer) io.Writer {
	if bl == nil {
		return w
	}

	return &rateLimitedWriter{w: w, limiter: bl.limiter, ctx: ctx}
}

type rateLimitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

func (r *rateLimitedReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		if waitErr := waitN(r.limiter, r.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}

	return n, err
}

type rateLimitedWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

func (w *rateLimitedWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if n > 0 {
		if waitErr := waitN(w.limiter, w.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}

	return n, err
}

// waitN splits a token request larger than the burst size into burst-sized
// chunks, since rate.Limiter.WaitN rejects requests that exceed the burst.
func waitN(limiter *rate.Limiter, ctx context.Context, n int) error {
	burst := limiter.Burst()

	for n > 0 {
		take := n
		if take > burst {
			take = burst
		}

		if err := limiter.WaitN(ctx, take); err != nil {
			return err
		}

		n -= take
	}

	return nil
}
