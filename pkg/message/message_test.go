package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"mclbus/pkg/connection"
	"reflect"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

var testEndpoint = connection.Endpoint{Address: "ff15::1", Port: 26000}

func resetRegistry(t *testing.T) {
	t.Helper()
	Clear()
	t.Cleanup(Clear)
}

func mustDefine(t *testing.T, name string, mandatory ...string) *Type {
	t.Helper()
	msgType, err := Define(name, mandatory, testEndpoint)
	if err != nil {
		t.Fatalf("expected no error defining '%s', but got '%v'", name, err)
	}
	return msgType
}

func TestDefine(t *testing.T) {
	tests := []struct {
		name        string
		typeName    string
		mandatory   []string
		endpoint    connection.Endpoint
		expectedErr error
	}{
		{"valid", "Position", []string{"x", "y"}, testEndpoint, nil},
		{"no fields", "Heartbeat", nil, testEndpoint, nil},
		{"reserved name", "Bad", []string{"x", "name"}, testEndpoint, ErrSchema},
		{"reserved timestamp", "Bad", []string{"timestamp"}, testEndpoint, ErrSchema},
		{"duplicate field", "Bad", []string{"x", "x"}, testEndpoint, ErrSchema},
		{"non identifier field", "Bad", []string{"x y"}, testEndpoint, ErrSchema},
		{"leading digit field", "Bad", []string{"1x"}, testEndpoint, ErrSchema},
		{"non identifier type", "bad-type", []string{"x"}, testEndpoint, ErrSchema},
		{"invalid endpoint", "Bad", []string{"x"}, connection.Endpoint{Address: "not-an-ip"}, ErrSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetRegistry(t)

			msgType, err := Define(tt.typeName, tt.mandatory, tt.endpoint)
			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Fatalf("expected error '%v', but got '%v'", tt.expectedErr, err)
				}
				if _, lookupErr := Lookup(tt.typeName); !errors.Is(lookupErr, ErrNotFound) {
					t.Fatalf("expected failed definition to leave registry untouched")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, but got '%v'", err)
			}
			if msgType.Name() != tt.typeName {
				t.Fatalf("expected name '%s', but got '%s'", tt.typeName, msgType.Name())
			}
			if msgType.Endpoint().TTL != connection.DefaultTTL {
				t.Fatalf("expected endpoint defaults filled, but got %+v", msgType.Endpoint())
			}
		})
	}
}

func TestDefine_DuplicateAndUnregister(t *testing.T) {
	resetRegistry(t)

	mustDefine(t, "Pose", "x")
	_, err := Define("Pose", []string{"y"}, testEndpoint)
	if !errors.Is(err, ErrDuplicateType) {
		t.Fatalf("expected ErrDuplicateType, but got '%v'", err)
	}

	if !Unregister("Pose") {
		t.Fatalf("expected unregister of existing type to return true")
	}
	if Unregister("Pose") {
		t.Fatalf("expected second unregister to return false")
	}
	if _, err = Lookup("Pose"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, but got '%v'", err)
	}

	msgType := mustDefine(t, "Pose", "y")
	if !reflect.DeepEqual(msgType.Mandatory(), []string{"y"}) {
		t.Fatalf("expected redefined schema, but got %v", msgType.Mandatory())
	}
}

func TestDefineAllAndList(t *testing.T) {
	resetRegistry(t)

	definitions := []Definition{
		{Name: "A", Mandatory: []string{"data"}, Endpoint: testEndpoint},
		{Name: "B", Mandatory: []string{"data"}, Endpoint: testEndpoint},
		{Name: "A", Endpoint: testEndpoint},
	}
	err := DefineAll(definitions)
	if !errors.Is(err, ErrDuplicateType) {
		t.Fatalf("expected ErrDuplicateType from third definition, but got '%v'", err)
	}

	list := List()
	if len(list) != 2 || list[0].Name() != "A" || list[1].Name() != "B" {
		t.Fatalf("expected [A B] in definition order, but got %v", list)
	}
}

func TestEnsure(t *testing.T) {
	resetRegistry(t)
	original := mustDefine(t, "Position", "x", "y")

	tests := []struct {
		name        string
		definition  Definition
		expectedErr error
	}{
		{"identical returns existing", Definition{Name: "Position", Mandatory: []string{"x", "y"}, Endpoint: testEndpoint}, nil},
		{"different fields", Definition{Name: "Position", Mandatory: []string{"x"}, Endpoint: testEndpoint}, ErrDuplicateType},
		{"different endpoint", Definition{Name: "Position", Mandatory: []string{"x", "y"}, Endpoint: connection.Endpoint{Address: "ff15::2"}}, ErrDuplicateType},
		{"new type", Definition{Name: "Velocity", Mandatory: []string{"v"}, Endpoint: testEndpoint}, nil},
		{"invalid new type", Definition{Name: "bad name", Endpoint: testEndpoint}, ErrSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgType, err := Ensure(tt.definition)
			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Fatalf("expected error '%v', but got '%v'", tt.expectedErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, but got '%v'", err)
			}
			if tt.definition.Name == "Position" && msgType != original {
				t.Fatalf("expected the registered type to be returned")
			}
			if !reflect.DeepEqual(msgType.Definition().Mandatory, tt.definition.Mandatory) {
				t.Fatalf("expected mandatory %v, but got '%v'", tt.definition.Mandatory, msgType.Definition().Mandatory)
			}
		})
	}
}

func TestNew_DefaultsMandatoryToNil(t *testing.T) {
	resetRegistry(t)
	mustDefine(t, "Position", "x", "y", "z")

	before := float64(time.Now().UnixNano()) / 1e9
	msg, err := New("Position")
	if err != nil {
		t.Fatalf("expected no error, but got '%v'", err)
	}

	expectedKeys := []string{"name", "timestamp", "x", "y", "z"}
	if !reflect.DeepEqual(msg.Keys(), expectedKeys) {
		t.Fatalf("expected keys %v, but got %v", expectedKeys, msg.Keys())
	}
	for _, field := range []string{"x", "y", "z"} {
		value, ok := msg.Get(field)
		if !ok || value != nil {
			t.Fatalf("expected field '%s' to be nil, but got '%v' (present=%v)", field, value, ok)
		}
	}
	if name, _ := msg.Get("name"); name != "Position" {
		t.Fatalf("expected name 'Position', but got '%v'", name)
	}
	if msg.Timestamp() < before {
		t.Fatalf("expected timestamp to be stamped at construction, but got %f", msg.Timestamp())
	}

	if _, err = New("Unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, but got '%v'", err)
	}
}

func TestNewFromFields(t *testing.T) {
	resetRegistry(t)
	mustDefine(t, "Position", "x", "y")

	tests := []struct {
		name        string
		fields      map[string]any
		expectedErr error
	}{
		{"all mandatory", map[string]any{"x": 1, "y": 2.5}, nil},
		{"with extras", map[string]any{"x": 1, "y": 2, "label": "a"}, nil},
		{"missing one", map[string]any{"x": 1}, ErrValidation},
		{"matching name", map[string]any{"name": "Position", "x": 1, "y": 2}, nil},
		{"different name", map[string]any{"name": "Other", "x": 1, "y": 2}, ErrImmutableField},
		{"non numeric timestamp", map[string]any{"x": 1, "y": 2, "timestamp": "now"}, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewFromFields("Position", tt.fields)
			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Fatalf("expected error '%v', but got '%v'", tt.expectedErr, err)
				}
				if msg != nil {
					t.Fatalf("expected nil message on failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, but got '%v'", err)
			}
			for key := range tt.fields {
				if _, ok := msg.Get(key); !ok {
					t.Fatalf("expected field '%s' to be present", key)
				}
			}
		})
	}
}

func TestMissingFieldsError(t *testing.T) {
	resetRegistry(t)
	mustDefine(t, "Position", "x", "y", "z")

	payload, err := msgpack.Marshal(map[string]any{"name": "Position", "timestamp": 1.0, "y": 3})
	if err != nil {
		t.Fatalf("expected no error encoding test payload, but got '%v'", err)
	}

	_, err = Decode("Position", payload)
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, but got '%v'", err)
	}
	var missing *MissingFieldsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *MissingFieldsError, but got %T", err)
	}
	if !reflect.DeepEqual(missing.Fields, []string{"x", "z"}) {
		t.Fatalf("expected missing [x z], but got %v", missing.Fields)
	}
	if missing.Type != "Position" {
		t.Fatalf("expected type 'Position', but got '%s'", missing.Type)
	}
}

type testLevel int

type testMode string

func TestEncodeDecode_RoundTrip(t *testing.T) {
	resetRegistry(t)
	mustDefine(t, "Telemetry", "speed", "heading")

	tests := []struct {
		name  string
		pairs []Field
	}{
		{"nil mandatory", []Field{{"speed", nil}, {"heading", nil}}},
		{"scalars", []Field{{"speed", 12.5}, {"heading", int64(-90)}, {"ok", true}}},
		{"strings and bytes", []Field{{"speed", "fast"}, {"heading", []byte{0x01, 0x02}}}},
		{"large unsigned", []Field{{"speed", uint64(1 << 63)}, {"heading", int64(1) << 40}}},
		{"nested", []Field{
			{"speed", []any{int64(1), "two", 3.0}},
			{"heading", map[string]any{"deg": int64(10), "src": map[string]any{"id": "gps"}}},
		}},
		{"explicit timestamp", []Field{{"speed", 1}, {"heading", 2}, {"timestamp", 1234.5}}},
		{"typed slices", []Field{{"speed", []int{1, 2}}, {"heading", []string{"a", "b"}}, {"raw", []float32{0.5}}}},
		{"typed maps", []Field{{"speed", map[string]float64{"x": 1.5}}, {"heading", map[string]int{"deg": 90}}}},
		{"nested typed", []Field{
			{"speed", map[string][]int{"samples": {3, 4}}},
			{"heading", []map[string]string{{"src": "gps"}, {"src": "imu"}}},
		}},
		{"arrays and named types", []Field{{"speed", [2]uint16{7, 8}}, {"heading", testLevel(3)}, {"mode", testMode("auto")}}},
		{"nil and empty containers", []Field{{"speed", []string(nil)}, {"heading", map[string]int{}}, {"empty", []int{}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewFromPairs("Telemetry", tt.pairs...)
			if err != nil {
				t.Fatalf("expected no error constructing, but got '%v'", err)
			}

			data, err := Encode(msg)
			if err != nil {
				t.Fatalf("expected no error encoding, but got '%v'", err)
			}

			fields, err := Decode("Telemetry", data)
			if err != nil {
				t.Fatalf("expected no error decoding, but got '%v'", err)
			}
			if !reflect.DeepEqual(fields, msg.Fields()) {
				t.Fatalf("expected decoded fields %v, but got %v", msg.Fields(), fields)
			}

			again, err := msg.Encode()
			if err != nil || !bytes.Equal(again, data) {
				t.Fatalf("expected deterministic encoding")
			}

			rebuilt, err := NewFromEncoded("Telemetry", data)
			if err != nil {
				t.Fatalf("expected no error rebuilding, but got '%v'", err)
			}
			if !reflect.DeepEqual(rebuilt.Fields(), msg.Fields()) {
				t.Fatalf("expected rebuilt fields %v, but got %v", msg.Fields(), rebuilt.Fields())
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	count := 5
	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"string slice", []string{"a", "b"}, []any{"a", "b"}},
		{"int slice", []int{1, 2}, []any{int64(1), int64(2)}},
		{"float map", map[string]float64{"x": 1.5}, map[string]any{"x": 1.5}},
		{"any keyed strings", map[any]any{"k": uint8(1)}, map[string]any{"k": int64(1)}},
		{"int keyed", map[int]string{3: "c"}, map[any]any{int64(3): "c"}},
		{"empty int keyed", map[int]string{}, map[string]any{}},
		{"array", [3]int8{1, 2, 3}, []any{int64(1), int64(2), int64(3)}},
		{"nested", map[string][]float32{"v": {0.5}}, map[string]any{"v": []any{0.5}}},
		{"named scalars", []testMode{"on"}, []any{"on"}},
		{"pointer", &count, int64(5)},
		{"nil pointer", (*int)(nil), nil},
		{"nil slice", []int(nil), nil},
		{"byte array slice", [][]byte{[]byte("hi")}, []any{"hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %#v, but got '%#v'", tt.want, got)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	resetRegistry(t)
	mustDefine(t, "A", "data")

	valid, _ := msgpack.Marshal(map[string]any{"data": 1})
	notMap, _ := msgpack.Marshal([]any{1, 2})
	intKeys, _ := msgpack.Marshal(map[int]any{1: "x"})
	nilValue, _ := msgpack.Marshal(nil)

	tests := []struct {
		name        string
		data        []byte
		expectedErr error
	}{
		{"empty", []byte{}, ErrDecode},
		{"garbage", []byte{0xc1, 0x00}, ErrDecode},
		{"array", notMap, ErrDecode},
		{"non string keys", intKeys, ErrDecode},
		{"nil", nilValue, ErrDecode},
		{"truncated", valid[:len(valid)-1], ErrDecode},
		{"trailing bytes", append(append([]byte{}, valid...), 0x01), ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("A", tt.data)
			if !errors.Is(err, tt.expectedErr) {
				t.Fatalf("expected error '%v', but got '%v'", tt.expectedErr, err)
			}
		})
	}

	if _, err := Decode("Missing", valid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, but got '%v'", err)
	}
}

func TestDecode_PreservesExtrasInWireOrder(t *testing.T) {
	resetRegistry(t)
	mustDefine(t, "A", "data")

	source, _ := NewFromPairs("A", Field{"data", "x"}, Field{"extra", int64(7)}, Field{"another", nil})
	data, _ := source.Encode()

	fields, err := Decode("A", data)
	if err != nil {
		t.Fatalf("expected no error, but got '%v'", err)
	}
	expectedKeys := []string{"name", "timestamp", "data", "extra", "another"}
	if !reflect.DeepEqual(fields.Keys(), expectedKeys) {
		t.Fatalf("expected keys %v, but got %v", expectedKeys, fields.Keys())
	}
}

func TestUpdate(t *testing.T) {
	resetRegistry(t)
	mustDefine(t, "A", "data")

	msg, err := New("A")
	if err != nil {
		t.Fatalf("expected no error, but got '%v'", err)
	}

	// Explicit timestamp survives the update
	err = msg.UpdatePairs(Field{"data", 1}, Field{"timestamp", int64(42)})
	if err != nil {
		t.Fatalf("expected no error, but got '%v'", err)
	}
	if msg.Timestamp() != 42 {
		t.Fatalf("expected timestamp 42, but got %f", msg.Timestamp())
	}

	// Update without timestamp re-stamps
	err = msg.UpdateFields(map[string]any{"data": 2})
	if err != nil {
		t.Fatalf("expected no error, but got '%v'", err)
	}
	if msg.Timestamp() <= 42 {
		t.Fatalf("expected fresh timestamp, but got %f", msg.Timestamp())
	}

	// Rejected updates leave the instance untouched
	before := msg.Fields()
	err = msg.UpdatePairs(Field{"data", 3}, Field{"name", "B"})
	if !errors.Is(err, ErrImmutableField) {
		t.Fatalf("expected ErrImmutableField, but got '%v'", err)
	}
	if !reflect.DeepEqual(before, msg.Fields()) {
		t.Fatalf("expected message unchanged after failed update")
	}

	err = msg.UpdateEncoded([]byte{0x01})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, but got '%v'", err)
	}

	other, _ := msgpack.Marshal(map[string]any{"name": "A", "data": "encoded", "timestamp": 7.5})
	err = msg.UpdateEncoded(other)
	if err != nil {
		t.Fatalf("expected no error, but got '%v'", err)
	}
	if value, _ := msg.Get("data"); value != "encoded" {
		t.Fatalf("expected data 'encoded', but got '%v'", value)
	}
	if msg.Timestamp() != 7.5 {
		t.Fatalf("expected timestamp 7.5, but got %f", msg.Timestamp())
	}
}

func TestMarshalJSON(t *testing.T) {
	resetRegistry(t)
	mustDefine(t, "A", "data")

	msg, _ := NewFromPairs("A", Field{"data", "x"}, Field{"timestamp", 1.5}, Field{"n", 3})
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("expected no error, but got '%v'", err)
	}
	expected := `{"name":"A","timestamp":1.5,"data":"x","n":3}`
	if string(data) != expected {
		t.Fatalf("expected '%s', but got '%s'", expected, string(data))
	}
}
