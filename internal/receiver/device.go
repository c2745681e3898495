package receiver

import (
	"fmt"
	"io"
	"os"

	"github.com/tarm/serial"
)

// DefaultBaud is the ISCP serial line speed.
const DefaultBaud = 9600

// OpenDevice opens the receiver's serial line at path, configured 8N1 at
// baud. A baud of zero or less opens path as a plain read/write file,
// which suits pseudo-terminals and FIFOs prepared by the operator.
func OpenDevice(path string, baud int) (io.ReadWriteCloser, error) {
	if baud <= 0 {
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("opening device %s: %w", path, err)
		}
		return f, nil
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:     path,
		Baud:     baud,
		Size:     8,
		Parity:   serial.ParityNone,
		StopBits: serial.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s at %d baud: %w", path, baud, err)
	}
	return port, nil
}
