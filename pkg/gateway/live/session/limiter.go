package session

import "time"

// audioLimiter is a token bucket over user:audio_chunk frames, counting both
// chunks and decoded PCM bytes. A nil limiter allows everything.
type audioLimiter struct {
	now          func() time.Time
	chunkRate    int64
	chunkTokens  int64
	byteRate     int64
	byteTokens   int64
	burstSeconds int64
	lastRefill   time.Time
}

func newAudioLimiter(now func() time.Time, chunksPerSec int, bytesPerSec int64, burstSeconds int) *audioLimiter {
	if chunksPerSec <= 0 && bytesPerSec <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	if burstSeconds <= 0 {
		burstSeconds = 1
	}

	l := &audioLimiter{
		now:          now,
		chunkRate:    int64(chunksPerSec),
		byteRate:     bytesPerSec,
		burstSeconds: int64(burstSeconds),
		lastRefill:   now(),
	}
	l.chunkTokens = l.chunkRate * l.burstSeconds
	l.byteTokens = l.byteRate * l.burstSeconds
	return l
}

// Allow consumes one chunk of n bytes if both buckets have room.
func (l *audioLimiter) Allow(n int) bool {
	if l == nil {
		return true
	}
	l.refill()

	if n < 0 {
		n = 0
	}
	if l.chunkRate > 0 && l.chunkTokens < 1 {
		return false
	}
	if l.byteRate > 0 && l.byteTokens < int64(n) {
		return false
	}
	if l.chunkRate > 0 {
		l.chunkTokens--
	}
	if l.byteRate > 0 {
		l.byteTokens -= int64(n)
	}
	return true
}

func (l *audioLimiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill)
	if elapsed <= 0 {
		return
	}
	l.chunkTokens = refillBucket(l.chunkTokens, l.chunkRate, l.burstSeconds, elapsed)
	l.byteTokens = refillBucket(l.byteTokens, l.byteRate, l.burstSeconds, elapsed)
	l.lastRefill = now
}

func refillBucket(tokens, rate, burstSeconds int64, elapsed time.Duration) int64 {
	if rate <= 0 {
		return tokens
	}
	tokens += (elapsed.Nanoseconds() * rate) / int64(time.Second)
	if ceiling := rate * burstSeconds; tokens > ceiling {
		tokens = ceiling
	}
	return tokens
}
