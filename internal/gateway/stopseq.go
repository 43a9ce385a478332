package gateway

import "strings"

// StopDetector finds stop sequences that may straddle the boundary between
// two backend chunks by holding back a rolling tail no longer than the
// longest stop sequence minus one character, per spec.md §9's design note
// that stop-sequence matching cannot be done chunk-by-chunk in isolation.
type StopDetector struct {
	stops  []string
	tail   string
	maxLen int
}

// NewStopDetector builds a detector for the given stop strings. Empty
// strings are ignored. A detector with no stop strings is a pass-through.
func NewStopDetector(stops []string) *StopDetector {
	d := &StopDetector{}
	for _, s := range stops {
		if s == "" {
			continue
		}
		d.stops = append(d.stops, s)
		if len(s) > d.maxLen {
			d.maxLen = len(s)
		}
	}
	return d
}

// Feed appends chunk to the held-back tail and returns the text now safe to
// emit. If a stop sequence is found, hit is true, the returned text stops
// just before the match, and the caller must not feed the detector again.
// If no stop sequence is found, the returned text holds back at most
// maxLen-1 trailing characters, since those could still be a stop-sequence
// prefix completed by the next chunk. A stop sequence of length 0 or 1 can
// never straddle a chunk boundary — earliestMatch above already catches it
// whole within a single Feed call — so the holdback is 0 and every
// no-stop-sequences (maxLen==0) or single-character-stop (maxLen==1)
// request streams with no buffering at all, preserving the §4.5.2 TTFT
// guarantee instead of withholding everything until Drain.
func (d *StopDetector) Feed(chunk string) (emit string, hit bool, matched string) {
	combined := d.tail + chunk
	d.tail = ""

	if earliest, which, ok := d.earliestMatch(combined); ok {
		return combined[:earliest], true, which
	}

	holdback := d.maxLen - 1
	if holdback < 0 {
		holdback = 0
	}
	if len(combined) <= holdback {
		d.tail = combined
		return "", false, ""
	}
	safeLen := len(combined) - holdback
	d.tail = combined[safeLen:]
	return combined[:safeLen], false, ""
}

// Drain returns any text still held back as a tail, for use once streaming
// ends with no stop sequence having matched.
func (d *StopDetector) Drain() string {
	out := d.tail
	d.tail = ""
	return out
}

func (d *StopDetector) earliestMatch(s string) (idx int, which string, ok bool) {
	idx = -1
	for _, stop := range d.stops {
		if i := strings.Index(s, stop); i != -1 && (idx == -1 || i < idx) {
			idx = i
			which = stop
		}
	}
	return idx, which, idx != -1
}
