package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Bytes the envelope adds around a payload (array header, str8 topic header, bin32 header)
const envelopeOverhead int = 1 + 2 + 5

// Wraps payload as msgpack [topic|nil, payload]
func encodeEnvelope(topic string, payload []byte) (datagram []byte, err error) {
	var buffer bytes.Buffer
	buffer.Grow(len(payload) + len(topic) + envelopeOverhead)
	encoder := msgpack.NewEncoder(&buffer)

	err = encoder.EncodeArrayLen(2)
	if err != nil {
		return
	}
	if topic == "" {
		err = encoder.EncodeNil()
	} else {
		err = encoder.EncodeString(topic)
	}
	if err != nil {
		return
	}
	err = encoder.EncodeBytes(payload)
	if err != nil {
		return
	}

	datagram = buffer.Bytes()
	return
}

// Splits a datagram into topic and payload, empty topic when nil
func decodeEnvelope(datagram []byte) (topic string, payload []byte, err error) {
	reader := bytes.NewReader(datagram)
	decoder := msgpack.NewDecoder(reader)

	count, err := decoder.DecodeArrayLen()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrMalformed, err)
		return
	}
	if count != 2 {
		err = fmt.Errorf("%w: expected 2 elements, got %d", ErrMalformed, count)
		return
	}

	code, err := decoder.PeekCode()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrMalformed, err)
		return
	}
	if code == msgpcode.Nil {
		err = decoder.DecodeNil()
	} else {
		topic, err = decoder.DecodeString()
	}
	if err != nil {
		err = fmt.Errorf("%w: topic: %w", ErrMalformed, err)
		return
	}

	payload, err = envelopePayload(datagram, len(datagram)-reader.Len())
	return
}

// Slices the payload out of the datagram after checking its declared length.
// The payload must end exactly at the end of the datagram.
func envelopePayload(datagram []byte, start int) (payload []byte, err error) {
	if start >= len(datagram) {
		err = fmt.Errorf("%w: missing payload", ErrMalformed)
		return
	}

	code := datagram[start]
	var header, length int
	switch {
	case msgpcode.IsFixedString(code):
		header, length = 1, int(code&msgpcode.FixedStrMask)
	case code == msgpcode.Bin8 || code == msgpcode.Str8:
		header = 2
		if start+header <= len(datagram) {
			length = int(datagram[start+1])
		}
	case code == msgpcode.Bin16 || code == msgpcode.Str16:
		header = 3
		if start+header <= len(datagram) {
			length = int(binary.BigEndian.Uint16(datagram[start+1:]))
		}
	case code == msgpcode.Bin32 || code == msgpcode.Str32:
		header = 5
		if start+header <= len(datagram) {
			length = int(binary.BigEndian.Uint32(datagram[start+1:]))
		}
	default:
		err = fmt.Errorf("%w: payload has msgpack code 0x%02x, expected bin", ErrMalformed, code)
		return
	}

	remaining := len(datagram) - start - header
	if remaining < 0 || length != remaining {
		err = fmt.Errorf("%w: payload declares %d bytes, datagram holds %d", ErrMalformed, length, max(remaining, 0))
		return
	}

	payload = append([]byte(nil), datagram[start+header:]...)
	return
}
