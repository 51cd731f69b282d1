package message

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Serializes the full field mapping as a msgpack map in field order
func (msg *Message) Encode() (data []byte, err error) {
	data, err = encodeFields(msg.fields)
	return
}

func Encode(msg *Message) (data []byte, err error) {
	data, err = msg.Encode()
	return
}

func encodeFields(fields Fields) (data []byte, err error) {
	var buffer bytes.Buffer
	encoder := msgpack.NewEncoder(&buffer)
	encoder.SetSortMapKeys(true)
	encoder.UseCompactInts(true)

	err = encoder.EncodeMapLen(len(fields))
	if err != nil {
		err = fmt.Errorf("failed encoding map header: %w", err)
		return
	}
	for _, field := range fields {
		err = encoder.EncodeString(field.Key)
		if err != nil {
			err = fmt.Errorf("failed encoding key '%s': %w", field.Key, err)
			return
		}
		err = encoder.Encode(field.Value)
		if err != nil {
			err = fmt.Errorf("failed encoding value of '%s': %w", field.Key, err)
			return
		}
	}

	data = buffer.Bytes()
	return
}

// Parses a payload for the named type.
// Returns every key/value pair in wire order, extras included.
func Decode(typeName string, data []byte) (fields Fields, err error) {
	msgType, err := Lookup(typeName)
	if err != nil {
		return
	}
	fields, err = decodeChecked(msgType, data)
	return
}

// Parses a payload without checking it against a registered type
func DecodeFields(data []byte) (fields Fields, err error) {
	fields, err = decodeFields(data)
	return
}

func decodeChecked(msgType *Type, data []byte) (fields Fields, err error) {
	fields, err = decodeFields(data)
	if err != nil {
		return
	}

	missing := msgType.missing(fields.Has)
	if len(missing) > 0 {
		fields = nil
		err = &MissingFieldsError{Type: msgType.name, Fields: missing}
		return
	}
	return
}

// Strictly one msgpack map with string keys, nothing trailing
func decodeFields(data []byte) (fields Fields, err error) {
	reader := bytes.NewReader(data)
	decoder := msgpack.NewDecoder(reader)
	decoder.UseLooseInterfaceDecoding(true)

	count, err := decoder.DecodeMapLen()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDecode, err)
		return
	}
	if count < 0 {
		err = fmt.Errorf("%w: nil map", ErrDecode)
		return
	}

	fields = make(Fields, 0, min(count, 64))
	positions := make(map[string]int, min(count, 64))
	for i := 0; i < count; i++ {
		var key string
		key, err = decoder.DecodeString()
		if err != nil {
			fields = nil
			err = fmt.Errorf("%w: key %d: %w", ErrDecode, i, err)
			return
		}

		var value any
		value, err = decoder.DecodeInterfaceLoose()
		if err != nil {
			fields = nil
			err = fmt.Errorf("%w: value of '%s': %w", ErrDecode, key, err)
			return
		}

		// Repeated keys keep their first position, last value wins
		if position, repeated := positions[key]; repeated {
			fields[position].Value = normalize(value)
			continue
		}
		positions[key] = len(fields)
		fields = append(fields, Field{Key: key, Value: normalize(value)})
	}

	if reader.Len() > 0 {
		fields = nil
		err = fmt.Errorf("%w: %d trailing bytes after map", ErrDecode, reader.Len())
		return
	}
	return
}
