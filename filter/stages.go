package filter

import (
	"github.com/c360/adcpstream/pd0"
	"github.com/c360/adcpstream/tsmark"
)

// TimestampStage lifts timestamp markers out of the stream.
type TimestampStage struct {
	extractor *tsmark.Extractor
}

// NewTimestampStage creates a timestamp stage. maxMarkerLen <= 0 selects the
// tsmark default.
func NewTimestampStage(maxMarkerLen int) *TimestampStage {
	return &TimestampStage{extractor: tsmark.NewExtractor(maxMarkerLen)}
}

// Process implements Stage.
func (s *TimestampStage) Process(f Fields, data []byte, next Emit) {
	c := &carrier{upstream: f, next: next}

	m, text := s.extractor.Extract(data)
	for {
		if len(text) > 0 {
			c.emit(Fields{}, text)
		}
		if m == nil {
			break
		}
		c.emit(Fields{Timestamp: m}, nil)
		m, text = s.extractor.Extract(nil)
	}
	c.done()
}

// Idle implements Stage. A held partial open tag is released so a frame
// whose checksum ends in '<' is not kept back until the next read.
func (s *TimestampStage) Idle(next Emit) {
	if rest := s.extractor.ReleasePartial(); len(rest) > 0 {
		next(Fields{}, rest)
	}
}

// Flush implements Stage.
func (s *TimestampStage) Flush(next Emit) {
	if rest := s.extractor.Flush(); len(rest) > 0 {
		next(Fields{}, rest)
	}
}

// EnsembleStage lifts PD0 ensembles out of the stream.
type EnsembleStage struct {
	decoder  *pd0.Decoder
	onReject func(error)
}

// NewEnsembleStage creates an ensemble stage. onReject may be nil.
func NewEnsembleStage(onReject func(error)) *EnsembleStage {
	return &EnsembleStage{decoder: pd0.NewDecoder(), onReject: onReject}
}

// Process implements Stage.
func (s *EnsembleStage) Process(f Fields, data []byte, next Emit) {
	c := &carrier{upstream: f, next: next}

	if len(data) > 0 {
		s.decoder.Feed(data, func(ev pd0.Event) {
			switch {
			case ev.Ensemble != nil:
				c.emit(Fields{Ensemble: ev.Ensemble}, nil)
			case ev.Rejected != nil:
				if s.onReject != nil {
					s.onReject(ev.Rejected)
				}
			default:
				c.emit(Fields{}, ev.Text)
			}
		})
	}
	c.done()
}

// Idle implements Stage. A partial frame stays held.
func (s *EnsembleStage) Idle(Emit) {}

// Flush implements Stage.
func (s *EnsembleStage) Flush(next Emit) {
	if rest := s.decoder.Flush(); len(rest) > 0 {
		next(Fields{}, rest)
	}
}
