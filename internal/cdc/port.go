package cdc

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"
)

// Port is the minimal surface the bridge needs from a CDC ACM serial
// endpoint; go.bug.st/serial.Port satisfies it directly.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

// OpenSerialPort opens name (e.g. "/dev/ttyACM0") as a CDC ACM port at
// the USB full-speed bulk-endpoint-equivalent baud rate; CDC ACM over
// USB ignores the configured baud, but go.bug.st/serial still requires
// a value to open the port.
func OpenSerialPort(name string) (Port, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: 115200})
	if err != nil {
		return nil, fmt.Errorf("cdc: open %s: %w", name, err)
	}
	return p, nil
}

// DataPort wraps a Port in either raw (forward every byte to NUS) or
// framed mode.
type DataPort struct {
	port   Port
	parser *FrameParser
	framed bool
}

// NewDataPort creates a DataPort over port. If framed is false, bytes
// are forwarded verbatim to ReadLoop's onRaw callback instead of going
// through the framed parser.
func NewDataPort(port Port, framed bool) *DataPort {
	return &DataPort{port: port, parser: NewFrameParser(), framed: framed}
}

// OnFrame registers the framed-payload callback (framed mode only).
func (d *DataPort) OnFrame(fn func(payload []byte)) {
	d.parser.OnFrame = fn
}

// OnFrameError registers the malformed-frame callback (framed mode
// only).
func (d *DataPort) OnFrameError(fn func(err error)) {
	d.parser.OnError = fn
}

// ReadLoop blocks reading from the port, dispatching to the framed
// parser or onRaw depending on mode, until the port errors or closes.
func (d *DataPort) ReadLoop(onRaw func([]byte)) error {
	buf := make([]byte, 256)
	for {
		n, err := d.port.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if d.framed {
				d.parser.Feed(chunk)
			} else if onRaw != nil {
				onRaw(chunk)
			}
		}
		if err != nil {
			return err
		}
	}
}

// WriteFrame encodes and writes payload in framed mode.
func (d *DataPort) WriteFrame(payload []byte) error {
	_, err := d.port.Write(Encode(payload))
	return err
}

// WriteRaw writes data verbatim (raw mode).
func (d *DataPort) WriteRaw(data []byte) error {
	_, err := d.port.Write(data)
	return err
}

// Command names the line-delimited commands the log/command port
// accepts (spec.md §6).
type Command string

const (
	CommandDFU        Command = "dfu"
	CommandDisconnect Command = "disconnect"
	CommandReset      Command = "reset"
	CommandRestart    Command = "restart"
	CommandSerial     Command = "serial"
	CommandVersion    Command = "version"
	CommandDevice     Command = "device"
)

// CommandPort is the line-delimited log/command port.
type CommandPort struct {
	port Port
	out  *bufio.Writer
}

// NewCommandPort creates a CommandPort over port.
func NewCommandPort(port Port) *CommandPort {
	return &CommandPort{port: port, out: bufio.NewWriter(port)}
}

// ReadLoop scans line-delimited commands from the port, dispatching
// each to handler. Unrecognized lines are ignored.
func (c *CommandPort) ReadLoop(handler func(Command, string)) error {
	scanner := bufio.NewScanner(c.port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		cmd := Command(fields[0])
		arg := ""
		if len(fields) == 2 {
			arg = fields[1]
		}
		switch cmd {
		case CommandDFU, CommandDisconnect, CommandReset, CommandRestart, CommandSerial, CommandVersion, CommandDevice:
			handler(cmd, arg)
		}
	}
	return scanner.Err()
}

// WriteLine writes a line-delimited response.
func (c *CommandPort) WriteLine(line string) error {
	if _, err := c.out.WriteString(line); err != nil {
		return err
	}
	if _, err := c.out.WriteString("\n"); err != nil {
		return err
	}
	return c.out.Flush()
}
