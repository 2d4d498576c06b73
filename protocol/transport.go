package protocol

import "sync/atomic"

// CommandHandler handles one decoded message; it consumes its own
// arguments from data
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware side of the telemetry link: it deframes host
// commands, acknowledges them and frames responses into an OutputBuffer
type Transport struct {
	isSynchronized uint32 // atomic bool
	nextSequence   uint32 // atomic; next sequence expected from the host

	output        OutputBuffer
	handler       CommandHandler
	resetCallback func()
	flushCallback func()

	errors uint32 // atomic; frames dropped or handlers that failed
}

// NewTransport creates a synchronized transport expecting sequence 0x10
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		isSynchronized: 1,
		nextSequence:   MessageDest,
		output:         output,
		handler:        handler,
	}
}

// Receive consumes complete frames from input. Partial frames stay in the
// buffer for the next call.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !t.getSynchronized() {
			var found bool
			data, found = skipToSync(data)
			if found {
				t.setSynchronized(true)
				t.encodeAckNak()
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		msgLen, status := scanFrame(data, true)
		if status == scanNeedMore {
			break
		}
		if status == scanBad {
			atomic.AddUint32(&t.errors, 1)
			t.setSynchronized(false)
			continue
		}

		seq := data[MessagePositionSeq]
		frame := data[MessageHeaderSize : msgLen-MessageTrailerSize]
		data = data[msgLen:]

		expected := uint8(atomic.LoadUint32(&t.nextSequence))
		if seq == MessageDest && expected != MessageDest {
			// Host restarted its sequence
			atomic.StoreUint32(&t.nextSequence, MessageDest)
			expected = MessageDest
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}

		if seq == expected {
			atomic.StoreUint32(&t.nextSequence, uint32(nextSeq(seq)))
			if err := t.parseFrame(frame); err != nil {
				atomic.AddUint32(&t.errors, 1)
			}
		}
		// A mismatched sequence still gets an ack; it tells the host which
		// sequence to retransmit from.
		t.encodeAckNak()
	}

	consumed := input.Available() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

// parseFrame dispatches every message in a frame
func (t *Transport) parseFrame(frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.setSynchronized(false)
			err = errHandlerPanic
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.setSynchronized(false)
			return err
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(cmdID), &frame); err != nil {
			// Remaining arguments can't be located after a failed decode
			return err
		}
	}
	return nil
}

// encodeAckNak sends an empty frame carrying the next expected sequence
func (t *Transport) encodeAckNak() {
	ns := uint8(atomic.LoadUint32(&t.nextSequence))
	var buf [MessageLengthMin]byte
	t.output.Output(AppendFrame(buf[:0], ns, nil))

	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame frames whatever frameData writes, in place in the output buffer
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) {
	cursor := t.output.CurPosition()

	seq := uint8(atomic.LoadUint32(&t.nextSequence))
	t.output.Output([]byte{0, seq})

	frameData(t.output)

	changed := len(t.output.DataSince(cursor))
	t.output.Update(cursor, uint8(changed+MessageTrailerSize))

	crc := CRC16(t.output.DataSince(cursor))
	t.output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}

// SendCommand frames one message with its arguments
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns the transport to its power-up state (USB reconnect)
func (t *Transport) Reset() {
	atomic.StoreUint32(&t.isSynchronized, 1)
	atomic.StoreUint32(&t.nextSequence, MessageDest)

	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// Errors returns the number of dropped frames and failed handlers
func (t *Transport) Errors() uint32 {
	return atomic.LoadUint32(&t.errors)
}

// SetResetCallback sets a callback run when the host restarts its sequence
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets a callback that pushes acks out immediately
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

func (t *Transport) getSynchronized() bool {
	return atomic.LoadUint32(&t.isSynchronized) != 0
}

func (t *Transport) setSynchronized(val bool) {
	if val {
		atomic.StoreUint32(&t.isSynchronized, 1)
	} else {
		atomic.StoreUint32(&t.isSynchronized, 0)
	}
}
