package session

import (
	"github.com/temoto/thermux/internal/metric"
	"github.com/temoto/thermux/sparkplug"
)

// SequenceValidator checks seq and bdSeq of messages against State.
// Violations are reported into Diagnostics, never returned as errors.
type SequenceValidator struct {
	state *State
}

func NewSequenceValidator(state *State) SequenceValidator { return SequenceValidator{state: state} }

// NextSeq is the seq expected in the next data message.
func (self SequenceValidator) NextSeq() uint8 { return self.state.LastSeq + 1 }

// CheckMessageSequence: death must carry seq 0 (or none), birth seq 0,
// others LastSeq+1 mod 256. Every non-death message with a seq updates
// LastSeq to the observed value, valid or not.
func (self SequenceValidator) CheckMessageSequence(class MessageClass, seq *uint64, d *Diagnostics) bool {
	if class == ClassDeath {
		if seq != nil && *seq != 0 {
			d.add(KindSequence, "Unexpected seq (= %d) in NDEATH message", *seq)
			return false
		}
		return true
	}

	if seq == nil {
		d.add(KindSequence, "No seq in message")
		return false
	}
	if *seq > 255 {
		d.add(KindSequence, "seq (= %d) out of range 0-255", *seq)
		return false
	}

	prev := self.state.LastSeq
	self.state.LastSeq = uint8(*seq)

	if class == ClassBirth {
		if *seq != 0 {
			d.add(KindSequence, "seq (= %d) in NBIRTH message should be 0", *seq)
			return false
		}
		return true
	}
	if next := prev + 1; self.state.LastSeq != next {
		d.add(KindSequence, "seq (= %d) in message should be %d (previous = %d)", *seq, next, prev)
		return false
	}
	return true
}

// CheckBirthDeathSequence finds the bdSeq metric in p.
// isExpected: the metric must be present (birth, death), otherwise it must be absent.
// mustMatch: value must equal LastBdSeq remembered from birth (death).
// Returns the payload value when exactly one usable bdSeq was found.
func (self SequenceValidator) CheckBirthDeathSequence(p *sparkplug.Payload, isExpected, mustMatch bool, d *Diagnostics) (int64, bool) {
	ms := p.FindByName(metric.NameBdSeq)
	if len(ms) > 1 {
		d.add(KindBdSeqDuplicate, "Multiple %s metrics in message", metric.NameBdSeq)
		return 0, false
	}

	var value int64
	present := len(ms) == 1
	if present {
		m := ms[0]
		var ok bool
		if !m.IsNull {
			value, ok = m.Value.Int64()
		}
		if !ok {
			d.add(KindBdSeqEmpty, "Empty value for %s metric in message", metric.NameBdSeq)
			return 0, false
		}
	}

	if !isExpected {
		if present {
			d.add(KindBdSeqUnexpected, "Unexpected %s metric (= %d) in message", metric.NameBdSeq, value)
			return value, false
		}
		return 0, true
	}
	if !present {
		d.add(KindBdSeqMissing, "No %s metric in message", metric.NameBdSeq)
		return 0, false
	}

	if mustMatch {
		if !self.state.HasBdSeq {
			d.add(KindBdSeqMismatch, "%s metric mismatch: payload = %d, previous = None", metric.NameBdSeq, value)
			return value, false
		}
		if value != self.state.LastBdSeq {
			d.add(KindBdSeqMismatch, "%s metric mismatch: payload = %d, previous = %d", metric.NameBdSeq, value, self.state.LastBdSeq)
			return value, false
		}
	}
	return value, true
}
