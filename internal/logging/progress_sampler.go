package logging

// ProgressSampler thins out per-unit progress logs. A unit count is logged
// the first time it lands in a new percentage bucket, and always at the last
// unit.
type ProgressSampler struct {
	bucket float64
	last   int
}

// NewProgressSampler returns a sampler with bucket-percent steps (5 when
// bucket is not positive).
func NewProgressSampler(bucket float64) *ProgressSampler {
	if bucket <= 0 {
		bucket = 5
	}
	return &ProgressSampler{bucket: bucket, last: -1}
}

// ShouldLog reports whether done of total units is worth a log line. A nil
// sampler logs everything.
func (s *ProgressSampler) ShouldLog(done, total int) bool {
	if s == nil {
		return true
	}
	if total <= 0 || done >= total {
		final := s.last != int(100/s.bucket)+1
		s.last = int(100/s.bucket) + 1
		return final
	}
	bucket := int(float64(done) * 100 / float64(total) / s.bucket)
	if bucket <= s.last {
		return false
	}
	s.last = bucket
	return true
}

// Reset starts a new sequence, e.g. for the next attempt.
func (s *ProgressSampler) Reset() {
	if s != nil {
		s.last = -1
	}
}
