package ai

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/spigell/jobmatch/internal/utils"
	"go.uber.org/zap"
)

const (
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 10 * time.Second
	// Server-requested delays above this are treated as terminal.
	maxHonouredDelay = 30 * time.Second
)

// RetryPolicy bounds attempts of a single generation. MaxAttempts counts the
// first call; values below one mean a single attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Classifier reports whether err is transient and the delay the server asked for, if any.
type Classifier func(err error) (retry bool, delay time.Duration)

// Retry runs call until it succeeds, fails terminally or attempts are exhausted.
func Retry(ctx context.Context, policy RetryPolicy, logger *zap.Logger, classify Classifier, call func(context.Context) (string, error)) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := max(policy.MaxAttempts, 1)
	base := policy.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		out, err := call(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}

		retry, requested := classify(err)
		if !retry || attempt == attempts-1 {
			break
		}
		if requested > maxHonouredDelay {
			logger.Debug("server requested delay too long, giving up", zap.Duration("delay", requested))
			break
		}

		delay := max(requested, utils.Backoff(attempt, base, maxDelay))
		logger.Warn("transient model error, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := utils.WaitFor(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)

// RetryAfter extracts a "retry after N seconds" hint from a provider message.
func RetryAfter(message string) time.Duration {
	m := retryAfterPattern.FindStringSubmatch(message)
	if len(m) != 2 {
		return 0
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// TransientStatus reports whether an HTTP status is worth retrying.
func TransientStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504, 529:
		return true
	default:
		return false
	}
}
