package fidokey

import (
	"bufio"
	"io"
)

// Transport is the Byte Transport external collaborator: a single
// serial channel with blocking, unframed octet reads and writes.
// ReadByte blocks until one byte has arrived; WriteByte blocks until
// the byte has been handed to the link. Neither surfaces timeouts;
// a non-nil error means the link itself has failed.
type Transport interface {
	ReadByte() (byte, error)
	WriteByte(b byte) error
}

// PipeTransport is an in-memory Transport backed by two streams,
// useful for driving the Dispatcher from tests or from a co-located
// host simulator without a real serial device.
type PipeTransport struct {
	r *bufio.Reader
	w io.Writer
}

// NewPipeTransport returns a Transport that reads host requests from r
// and writes device responses to w.
func NewPipeTransport(r io.Reader, w io.Writer) *PipeTransport {
	return &PipeTransport{r: bufio.NewReader(r), w: w}
}

// ReadByte implements Transport.
func (p *PipeTransport) ReadByte() (byte, error) {
	return p.r.ReadByte()
}

// WriteByte implements Transport.
func (p *PipeTransport) WriteByte(b byte) error {
	_, err := p.w.Write([]byte{b})
	return err
}
