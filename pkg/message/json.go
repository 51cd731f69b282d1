package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSON object with keys in field order
func (msg *Message) MarshalJSON() (data []byte, err error) {
	var buffer bytes.Buffer
	buffer.WriteByte('{')
	for i, field := range msg.fields {
		if i > 0 {
			buffer.WriteByte(',')
		}

		var key, value []byte
		key, err = json.Marshal(field.Key)
		if err != nil {
			return
		}
		value, err = json.Marshal(field.Value)
		if err != nil {
			err = fmt.Errorf("field '%s': %w", field.Key, err)
			return
		}

		buffer.Write(key)
		buffer.WriteByte(':')
		buffer.Write(value)
	}
	buffer.WriteByte('}')

	data = buffer.Bytes()
	return
}

func (msg *Message) String() string {
	data, err := msg.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%s%v", msg.msgType.name, msg.fields)
	}
	return string(data)
}
