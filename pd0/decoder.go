package pd0

// Event is one decoder output, in stream order. Exactly one field is set.
type Event struct {
	Text     []byte
	Ensemble *Ensemble
	Rejected error
}

// Decoder finds ensembles across arbitrarily split reads. It owns the bytes
// it holds between calls and is not safe for concurrent use.
type Decoder struct {
	pending []byte
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends data to any held bytes and emits every decision that can be
// made. Text events alias internal or caller memory and are only valid for
// the duration of the emit call.
func (d *Decoder) Feed(data []byte, emit func(Event)) {
	buf := data
	if len(d.pending) > 0 {
		buf = append(d.pending, data...)
		d.pending = nil
	}

	for len(buf) > 0 {
		r := Scan(buf)
		if len(r.Text) > 0 {
			emit(Event{Text: r.Text})
		}
		if r.Rejected != nil {
			emit(Event{Rejected: r.Rejected})
		}
		if r.Ensemble != nil {
			emit(Event{Ensemble: r.Ensemble})
		}
		if r.Pending != nil {
			d.pending = append(make([]byte, 0, len(r.Pending)+len(data)), r.Pending...)
			return
		}
		buf = r.Rest
	}
}

// Pending reports how many bytes are held waiting for the rest of a frame.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

// Flush returns the held bytes as text and resets the decoder.
func (d *Decoder) Flush() []byte {
	out := d.pending
	d.pending = nil
	return out
}
