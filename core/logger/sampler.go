package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratioSampler admits num of every den events. A zero ratio admits all.
type ratioSampler struct {
	ratio   atomic.Uint64 // num<<32 | den
	counter atomic.Uint64
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

// Set replaces the ratio and restarts the cycle.
func (s *ratioSampler) Set(num, den int) {
	if num <= 0 || den <= 0 {
		num, den = 0, 0
	}
	num = min(num, den)
	s.ratio.Store(uint64(num)<<32 | uint64(uint32(den)))
	s.counter.Store(0)
}

// Allow reports whether the next event passes.
func (s *ratioSampler) Allow() bool {
	r := s.ratio.Load()
	num, den := r>>32, r&0xffffffff
	if num == 0 || den == 0 {
		return true
	}
	n := s.counter.Add(1) - 1
	return n%den < num
}

// parseRatioSpec accepts "n/d", "d" (meaning 1/d) and "off". It returns
// 0,0 for disabled sampling and -1,-1 for input it cannot parse.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	switch spec {
	case "":
		return -1, -1
	case "off", "all", "0":
		return 0, 0
	}
	if n, d, ok := strings.Cut(spec, "/"); ok {
		num, err1 := strconv.Atoi(strings.TrimSpace(n))
		den, err2 := strconv.Atoi(strings.TrimSpace(d))
		if err1 != nil || err2 != nil || num < 0 || den <= 0 {
			return -1, -1
		}
		return num, den
	}
	v, err := strconv.Atoi(spec)
	if err != nil || v < 0 {
		return -1, -1
	}
	return 1, v
}
