package metrics

import "sync/atomic"

// SamplingObserver forwards one in every N events whose name is in the
// sampled set. Other events pass through untouched, so high-rate streams such
// as audio.volume can be thinned without losing session or state events.
type SamplingObserver struct {
	inner   Observer
	every   uint64
	names   map[string]struct{}
	counter atomic.Uint64
}

// NewSamplingObserver samples the named events every N. N <= 0 drops them;
// no names means every event is sampled.
func NewSamplingObserver(inner Observer, every int, names ...string) *SamplingObserver {
	s := &SamplingObserver{inner: inner}
	if every > 0 {
		s.every = uint64(every)
	}
	if len(names) > 0 {
		s.names = make(map[string]struct{}, len(names))
		for _, n := range names {
			s.names[n] = struct{}{}
		}
	}
	return s
}

func (s *SamplingObserver) RecordEvent(ev MetricsEvent) {
	if s.names != nil {
		if _, ok := s.names[ev.Name]; !ok {
			s.inner.RecordEvent(ev)
			return
		}
	}
	if s.every == 0 {
		return
	}
	if n := s.counter.Add(1); n%s.every == 0 {
		s.inner.RecordEvent(ev)
	}
}
