package decode

import (
	"errors"
	"io"
)

// ErrIOLimitReached is returned when decoded output exceeds its cap.
var ErrIOLimitReached = errors.New("read size limit reached")

func readAllLimit(r io.Reader, n int) ([]byte, error) {
	limit := n + 1
	buf, err := io.ReadAll(io.LimitReader(r, int64(limit)))
	if err != nil {
		return buf, err
	}
	if len(buf) >= limit {
		return buf[:limit-1], ErrIOLimitReached
	}
	return buf, nil
}
