package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ResponseHandler is called from the read loop for every response frame
type ResponseHandler func(cmdID uint16, data *[]byte) error

// DefaultAckTimeout is used by SendCommand
const DefaultAckTimeout = 2 * time.Second

// HostTransport is the host side of the telemetry link: it frames
// commands, waits for their acks and queues response frames
type HostTransport struct {
	port io.ReadWriteCloser

	currentSeq     uint32 // atomic; sequence of the next command
	isSynchronized uint32 // atomic bool

	inputBuffer *ReceiveBuffer

	ackChan      chan *Message
	responseChan chan *Message

	responseHandler ResponseHandler

	writeMutex sync.Mutex
	readMutex  sync.Mutex

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// Message is one received frame
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte // Frame data without header or trailer
	CRC      uint16
}

// ID decodes the message ID at the front of the payload without consuming it
func (m *Message) ID() (uint16, error) {
	data := m.Payload
	id, err := DecodeVLQUint(&data)
	return uint16(id), err
}

// Args returns the payload after the message ID
func (m *Message) Args() []byte {
	data := m.Payload
	if _, err := DecodeVLQUint(&data); err != nil {
		return nil
	}
	return data
}

// NewHostTransport starts reading from port
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:           port,
		currentSeq:     MessageDest,
		isSynchronized: 1,
		inputBuffer:    NewReceiveBuffer(1024),
		ackChan:        make(chan *Message, 1),
		responseChan:   make(chan *Message, 64),
		stopChan:       make(chan struct{}),
		doneChan:       make(chan struct{}),
	}

	go t.readLoop()

	return t
}

// SendCommand sends one message and waits for its ack
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, DefaultAckTimeout)
}

// SendCommandWithTimeout sends one message and waits up to timeout for its ack
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	seq := uint8(atomic.LoadUint32(&t.currentSeq))
	msg, err := buildCommandMessage(seq, cmdID, args)
	if err != nil {
		return fmt.Errorf("build command %d: %w", cmdID, err)
	}

	n, err := t.port.Write(msg)
	if err != nil {
		return fmt.Errorf("write command %d: %w", cmdID, err)
	}
	if n != len(msg) {
		return fmt.Errorf("write command %d: incomplete write %d/%d bytes", cmdID, n, len(msg))
	}

	return t.waitForAck(nextSeq(seq), timeout)
}

// buildCommandMessage frames a single command
func buildCommandMessage(seq uint8, cmdID uint16, args func(output OutputBuffer)) ([]byte, error) {
	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	payload := scratch.Result()

	if msgLen := MessageHeaderSize + len(payload) + MessageTrailerSize; msgLen > MessageLengthMax {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLong, msgLen, MessageLengthMax)
	}
	return AppendFrame(nil, seq, payload), nil
}

// waitForAck waits for an ack naming want as the next expected sequence
func (t *HostTransport) waitForAck(want uint8, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-t.ackChan:
			if ack.Sequence&MessageSeqMask != want&MessageSeqMask {
				// Stale ack from a resync; keep waiting
				continue
			}
			atomic.StoreUint32(&t.currentSeq, uint32(want))
			return nil

		case <-timer.C:
			return fmt.Errorf("%w after %v", ErrAckTimeout, timeout)

		case <-t.stopChan:
			return ErrClosed
		}
	}
}

// ReceiveResponse returns the next queued response frame
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-t.responseChan:
		return resp, nil

	case <-timer.C:
		return nil, fmt.Errorf("%w after %v", ErrResponseTimeout, timeout)

	case <-t.stopChan:
		return nil, ErrClosed
	}
}

// SetResponseHandler installs a callback run for each response frame
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()
	t.responseHandler = handler
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)

	for {
		n, err := t.port.Read(buffer)
		if n > 0 {
			t.feed(buffer[:n])
		}
		if err == nil {
			continue
		}

		select {
		case <-t.stopChan:
			return
		default:
		}
		if errors.Is(err, io.EOF) {
			return
		}
		// Serial read timeouts surface as errors on some platforms
		time.Sleep(10 * time.Millisecond)
	}
}

// feed appends raw bytes and dispatches any complete frames
func (t *HostTransport) feed(raw []byte) {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()

	for len(raw) > 0 {
		n := t.inputBuffer.Write(raw)
		raw = raw[n:]
		t.processMessagesLocked()
		if n == 0 && len(raw) > 0 {
			// Buffer is full of garbage that never framed; drop it
			t.inputBuffer.Reset()
		}
	}
}

func (t *HostTransport) processMessagesLocked() {
	data := t.inputBuffer.Data()

	for len(data) > 0 {
		if !t.getSynchronized() {
			var found bool
			data, found = skipToSync(data)
			if found {
				t.setSynchronized(true)
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		msgLen, status := scanFrame(data, false)
		if status == scanNeedMore {
			break
		}
		if status == scanBad {
			t.setSynchronized(false)
			continue
		}

		payload := make([]byte, msgLen-MessageHeaderSize-MessageTrailerSize)
		copy(payload, data[MessageHeaderSize:msgLen-MessageTrailerSize])
		msg := &Message{
			Length:   data[MessagePositionLen],
			Sequence: data[MessagePositionSeq],
			Payload:  payload,
			CRC:      uint16(data[msgLen-MessageTrailerCRC])<<8 | uint16(data[msgLen-MessageTrailerCRC+1]),
		}
		data = data[msgLen:]

		t.dispatchMessage(msg)
	}

	consumed := t.inputBuffer.Available() - len(data)
	if consumed > 0 {
		t.inputBuffer.Pop(consumed)
	}
}

// dispatchMessage routes empty frames to the ack channel and everything
// else to the response queue
func (t *HostTransport) dispatchMessage(msg *Message) {
	if len(msg.Payload) == 0 {
		select {
		case t.ackChan <- msg:
		default:
			// Replace the unread ack with the newer one
			select {
			case <-t.ackChan:
			default:
			}
			t.ackChan <- msg
		}
		return
	}

	if t.responseHandler != nil {
		if id, err := msg.ID(); err == nil {
			args := msg.Args()
			_ = t.responseHandler(id, &args)
		}
	}

	select {
	case t.responseChan <- msg:
	default:
		// Queue full; drop the oldest
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- msg
	}
}

// Close stops the read loop and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}

// Reset clears sequence state and drops anything queued
func (t *HostTransport) Reset() {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()

	atomic.StoreUint32(&t.isSynchronized, 1)
	atomic.StoreUint32(&t.currentSeq, MessageDest)

	for len(t.ackChan) > 0 {
		<-t.ackChan
	}
	for len(t.responseChan) > 0 {
		<-t.responseChan
	}
	t.inputBuffer.Reset()
}

func (t *HostTransport) getSynchronized() bool {
	return atomic.LoadUint32(&t.isSynchronized) != 0
}

func (t *HostTransport) setSynchronized(val bool) {
	if val {
		atomic.StoreUint32(&t.isSynchronized, 1)
	} else {
		atomic.StoreUint32(&t.isSynchronized, 0)
	}
}

// GetCurrentSequence returns the sequence the next command will carry
func (t *HostTransport) GetCurrentSequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}
