package llm

import "io"

// SliceStream replays fixed fragments, then returns Err (io.EOF when nil).
type SliceStream struct {
	Fragments []string
	Err       error
	pos       int
	closed    bool
}

// NewSliceStream returns a stream over fragments that ends with err, or
// with io.EOF when err is nil.
func NewSliceStream(err error, fragments ...string) *SliceStream {
	return &SliceStream{Fragments: fragments, Err: err}
}

func (s *SliceStream) Next() (string, error) {
	if s.closed {
		return "", io.EOF
	}
	if s.pos < len(s.Fragments) {
		s.pos++
		return s.Fragments[s.pos-1], nil
	}
	if s.Err != nil {
		return "", s.Err
	}
	return "", io.EOF
}

func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *SliceStream) Closed() bool { return s.closed }
