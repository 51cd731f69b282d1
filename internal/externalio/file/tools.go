package file

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"mclbus/pkg/message"
	"strconv"
	"strings"
)

// Keys added to exported items unless the message already carries them
const (
	ElapsedTimeKey string = "elapsed_time"
	TopicKey       string = "topic"
)

// One dumped message decoded without its type definition
type DumpItem struct {
	ElapsedTime float64
	Topic       string
	Name        string
	Fields      message.Fields
}

// Looks up a key, falling back to the added elapsed time and topic
func (item DumpItem) Get(key string) (value any, ok bool) {
	value, ok = item.Fields.Get(key)
	if ok {
		return
	}
	switch key {
	case ElapsedTimeKey:
		value, ok = item.ElapsedTime, true
	case TopicKey:
		value, ok = item.Topic, true
	}
	return
}

// Object with message fields in wire order followed by elapsed time and topic
func (item DumpItem) MarshalJSON() (data []byte, err error) {
	var buffer bytes.Buffer
	buffer.WriteByte('{')

	writePair := func(key string, value any) (err error) {
		if buffer.Len() > 1 {
			buffer.WriteByte(',')
		}
		encKey, err := json.Marshal(key)
		if err != nil {
			return
		}
		encValue, err := json.Marshal(value)
		if err != nil {
			err = fmt.Errorf("field '%s': %w", key, err)
			return
		}
		buffer.Write(encKey)
		buffer.WriteByte(':')
		buffer.Write(encValue)
		return
	}

	for _, field := range item.Fields {
		err = writePair(field.Key, field.Value)
		if err != nil {
			return
		}
	}
	if !item.Fields.Has(ElapsedTimeKey) {
		err = writePair(ElapsedTimeKey, item.ElapsedTime)
		if err != nil {
			return
		}
	}
	if !item.Fields.Has(TopicKey) {
		err = writePair(TopicKey, item.Topic)
		if err != nil {
			return
		}
	}

	buffer.WriteByte('}')
	data = buffer.Bytes()
	return
}

// Loads a dump file or directory into time-ordered items
func DumpToList(ctx context.Context, source string, minTime, maxTime float64) (items []DumpItem, err error) {
	reader, err := Open(ctx, source, minTime, maxTime)
	if err != nil {
		return
	}
	defer reader.Shutdown()

	for {
		var entry Entry
		var elapsed float64
		entry, elapsed, err = reader.ReadEntry()
		if errors.Is(err, io.EOF) {
			err = nil
			return
		}
		if err != nil {
			return
		}

		var fields message.Fields
		fields, err = message.DecodeFields(entry.Payload)
		if err != nil {
			err = fmt.Errorf("failed decoding '%s' entry at %.6fs: %w", entry.Name, elapsed, err)
			return
		}

		item := DumpItem{
			ElapsedTime: elapsed,
			Name:        entry.Name,
			Fields:      fields,
		}
		if entry.Topic != nil {
			item.Topic = *entry.Topic
		}

		for _, key := range []string{ElapsedTimeKey, TopicKey} {
			if fields.Has(key) {
				logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
					"%s: already contains the key '%s', preserving the original data\n", entry.Name, key)
			}
		}

		items = append(items, item)
	}
}

// Loads a dump that holds a single message type carrying every key
func singleTypeItems(ctx context.Context, source string, keys []string, minTime, maxTime float64) (items []DumpItem, err error) {
	if len(keys) == 0 {
		err = fmt.Errorf("at least one key is required")
		return
	}

	items, err = DumpToList(ctx, source, minTime, maxTime)
	if err != nil || len(items) == 0 {
		return
	}

	for _, key := range keys {
		if _, ok := items[0].Get(key); !ok {
			items = nil
			err = fmt.Errorf("%w: '%s' in '%s'", ErrMissingKey, key, source)
			return
		}
	}
	for _, item := range items {
		if item.Name != items[0].Name {
			err = fmt.Errorf("%w: found '%s', expected all to be '%s'", ErrMixedTypes, item.Name, items[0].Name)
			items = nil
			return
		}
	}
	return
}

// Loads the selected keys of a single-type dump as numeric rows.
// A row whose values do not all convert to numbers is filled with NaN.
func DumpToArray(ctx context.Context, source string, keys []string, minTime, maxTime float64) (rows [][]float64, err error) {
	items, err := singleTypeItems(ctx, source, keys, minTime, maxTime)
	if err != nil || len(items) == 0 {
		return
	}

	rows = make([][]float64, len(items))
	for i, item := range items {
		row := make([]float64, len(keys))
		for col, key := range keys {
			value, _ := item.Get(key)
			number, ok := toFloat(value)
			if !ok {
				for j := range row {
					row[j] = math.NaN()
				}
				logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
					"Could not convert '%s' of row %d (%v) to a number, row set to NaN\n", key, i, value)
				break
			}
			row[col] = number
		}
		rows[i] = row
	}
	return
}

// Writes the selected keys of a single-type dump as CSV rows after a header row
func DumpToCSV(ctx context.Context, source string, output io.Writer, keys []string, minTime, maxTime float64) (rows int, err error) {
	items, err := singleTypeItems(ctx, source, keys, minTime, maxTime)
	if err != nil || len(items) == 0 {
		return
	}

	csvWriter := csv.NewWriter(output)
	err = csvWriter.Write(keys)
	if err != nil {
		return
	}

	record := make([]string, len(keys))
	for _, item := range items {
		for i, key := range keys {
			value, _ := item.Get(key)
			record[i] = formatCell(value)
		}
		err = csvWriter.Write(record)
		if err != nil {
			return
		}
		rows++
	}

	csvWriter.Flush()
	err = csvWriter.Error()
	return
}

// Scalars print plainly, nested values as JSON
func formatCell(value any) (cell string) {
	switch typed := value.(type) {
	case nil:
		cell = ""
	case string:
		cell = typed
	case float64:
		cell = strconv.FormatFloat(typed, 'f', -1, 64)
	case []any, map[string]any:
		encoded, err := json.Marshal(typed)
		if err != nil {
			cell = fmt.Sprint(typed)
		} else {
			cell = string(encoded)
		}
	default:
		cell = fmt.Sprint(typed)
	}
	return
}

// Numbers, booleans and numeric strings as float64
func toFloat(value any) (number float64, ok bool) {
	ok = true
	switch typed := value.(type) {
	case float64:
		number = typed
	case int64:
		number = float64(typed)
	case uint64:
		number = float64(typed)
	case bool:
		if typed {
			number = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			ok = false
			return
		}
		number = parsed
	default:
		ok = false
	}
	return
}
