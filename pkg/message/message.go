package message

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

// Ordered field mapping belonging to one registered type.
// Always carries name (write-once) and timestamp (seconds since epoch).
type Message struct {
	msgType *Type
	fields  Fields
}

func now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func newBase(msgType *Type) (msg *Message) {
	msg = &Message{
		msgType: msgType,
		fields:  make(Fields, 0, 2+len(msgType.mandatory)),
	}
	msg.fields = append(msg.fields,
		Field{Key: NameField, Value: msgType.name},
		Field{Key: TimestampField, Value: nil},
	)
	return
}

// Creates an instance with every mandatory field set to nil
func New(typeName string) (msg *Message, err error) {
	msgType, err := Lookup(typeName)
	if err != nil {
		return
	}

	msg = newBase(msgType)
	for _, field := range msgType.mandatory {
		msg.fields = append(msg.fields, Field{Key: field})
	}
	msg.fields = msg.fields.set(TimestampField, now())
	return
}

// Creates an instance from a field mapping
func NewFromFields(typeName string, fields map[string]any) (msg *Message, err error) {
	msgType, err := Lookup(typeName)
	if err != nil {
		return
	}

	msg = newBase(msgType)
	err = msg.UpdateFields(fields)
	if err != nil {
		msg = nil
	}
	return
}

// Creates an instance from key/value pairs, applied in order
func NewFromPairs(typeName string, pairs ...Field) (msg *Message, err error) {
	msgType, err := Lookup(typeName)
	if err != nil {
		return
	}

	msg = newBase(msgType)
	err = msg.UpdatePairs(pairs...)
	if err != nil {
		msg = nil
	}
	return
}

// Creates an instance from an encoded payload
func NewFromEncoded(typeName string, data []byte) (msg *Message, err error) {
	msgType, err := Lookup(typeName)
	if err != nil {
		return
	}

	msg = newBase(msgType)
	err = msg.UpdateEncoded(data)
	if err != nil {
		msg = nil
	}
	return
}

// Merges a mapping, keys applied in sorted order
func (msg *Message) UpdateFields(fields map[string]any) (err error) {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make(Fields, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, Field{Key: key, Value: fields[key]})
	}
	err = msg.merge(pairs)
	return
}

// Merges key/value pairs in the given order
func (msg *Message) UpdatePairs(pairs ...Field) (err error) {
	err = msg.merge(pairs)
	return
}

// Decodes the payload against this type and merges it
func (msg *Message) UpdateEncoded(data []byte) (err error) {
	fields, err := decodeChecked(msg.msgType, data)
	if err != nil {
		return
	}
	err = msg.merge(fields)
	return
}

// Applies updates to a copy, commits only when the result is valid
func (msg *Message) merge(updates Fields) (err error) {
	next := slices.Clone(msg.fields)
	next = next.set(TimestampField, nil)

	for _, update := range updates {
		value := normalize(update.Value)

		if update.Key == NameField {
			name, isString := value.(string)
			if !isString || name != msg.msgType.name {
				err = fmt.Errorf("%w: '%s' is '%s', got '%v'", ErrImmutableField, NameField, msg.msgType.name, update.Value)
				return
			}
			continue
		}

		next = next.set(update.Key, value)
	}

	stamp, _ := next.Get(TimestampField)
	if stamp == nil {
		next = next.set(TimestampField, now())
	} else {
		seconds, isNumber := asFloat(stamp)
		if !isNumber {
			err = fmt.Errorf("%w: '%s' must be numeric, got %T", ErrValidation, TimestampField, stamp)
			return
		}
		next = next.set(TimestampField, seconds)
	}

	missing := msg.msgType.missing(next.Has)
	if len(missing) > 0 {
		err = &MissingFieldsError{Type: msg.msgType.name, Fields: missing}
		return
	}

	msg.fields = next
	return
}

func (msg *Message) Type() *Type {
	return msg.msgType
}

func (msg *Message) TypeName() string {
	return msg.msgType.name
}

// Seconds since epoch
func (msg *Message) Timestamp() (seconds float64) {
	value, _ := msg.fields.Get(TimestampField)
	seconds, _ = value.(float64)
	return
}

func (msg *Message) Get(key string) (value any, ok bool) {
	value, ok = msg.fields.Get(key)
	return
}

// Copy of all fields in order
func (msg *Message) Fields() (fields Fields) {
	fields = slices.Clone(msg.fields)
	return
}

func (msg *Message) Keys() (keys []string) {
	keys = msg.fields.Keys()
	return
}

func (msg *Message) Len() int {
	return len(msg.fields)
}

// Independent copy (nested containers are shared)
func (msg *Message) Clone() (clone *Message) {
	clone = &Message{
		msgType: msg.msgType,
		fields:  slices.Clone(msg.fields),
	}
	return
}
