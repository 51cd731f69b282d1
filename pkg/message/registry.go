// Typed, self-describing messages with a process-wide type registry
package message

import (
	"errors"
	"fmt"
	"mclbus/pkg/connection"
	"regexp"
	"slices"
	"sync"
)

const (
	NameField      string = "name"
	TimestampField string = "timestamp"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Fixed schema bound to one endpoint
type Type struct {
	name      string
	mandatory []string
	endpoint  connection.Endpoint
}

// JSON form of a type definition (config files)
type Definition struct {
	Name      string              `json:"name"`
	Mandatory []string            `json:"mandatory"`
	Endpoint  connection.Endpoint `json:"endpoint"`
}

type registry struct {
	mutex sync.RWMutex
	types map[string]*Type
	order []string
}

var types = &registry{types: make(map[string]*Type)}

func (msgType *Type) Name() string {
	return msgType.name
}

// Copy of the mandatory field names in schema order
func (msgType *Type) Mandatory() (fields []string) {
	fields = slices.Clone(msgType.mandatory)
	return
}

func (msgType *Type) Endpoint() connection.Endpoint {
	return msgType.endpoint
}

// Mandatory names not present in keys, schema order
func (msgType *Type) missing(has func(key string) bool) (missing []string) {
	for _, field := range msgType.mandatory {
		if !has(field) {
			missing = append(missing, field)
		}
	}
	return
}

// Registers a new message type
func Define(name string, mandatory []string, endpoint connection.Endpoint) (msgType *Type, err error) {
	if !identifierPattern.MatchString(name) {
		err = fmt.Errorf("%w: type name '%s' is not an identifier", ErrSchema, name)
		return
	}

	seen := make(map[string]struct{}, len(mandatory))
	for _, field := range mandatory {
		if field == NameField || field == TimestampField {
			err = fmt.Errorf("%w: type '%s' declares reserved field '%s'", ErrSchema, name, field)
			return
		}
		if !identifierPattern.MatchString(field) {
			err = fmt.Errorf("%w: type '%s' field '%s' is not an identifier", ErrSchema, name, field)
			return
		}
		if _, dup := seen[field]; dup {
			err = fmt.Errorf("%w: type '%s' declares field '%s' more than once", ErrSchema, name, field)
			return
		}
		seen[field] = struct{}{}
	}

	endpoint, err = endpoint.WithDefaults()
	if err != nil {
		err = fmt.Errorf("%w: type '%s': %w", ErrSchema, name, err)
		return
	}

	types.mutex.Lock()
	defer types.mutex.Unlock()

	if _, exists := types.types[name]; exists {
		err = fmt.Errorf("%w: '%s'", ErrDuplicateType, name)
		return
	}

	msgType = &Type{
		name:      name,
		mandatory: slices.Clone(mandatory),
		endpoint:  endpoint,
	}
	types.types[name] = msgType
	types.order = append(types.order, name)
	return
}

// Defines every entry, stopping at the first failure
func DefineAll(definitions []Definition) (err error) {
	for _, definition := range definitions {
		_, err = Define(definition.Name, definition.Mandatory, definition.Endpoint)
		if err != nil {
			return
		}
	}
	return
}

// Defines the type, or returns the registered one when it matches the definition exactly
func Ensure(definition Definition) (msgType *Type, err error) {
	msgType, err = Define(definition.Name, definition.Mandatory, definition.Endpoint)
	if !errors.Is(err, ErrDuplicateType) {
		return
	}

	existing, lookupErr := Lookup(definition.Name)
	if lookupErr != nil {
		// Unregistered between the two calls
		msgType, err = Define(definition.Name, definition.Mandatory, definition.Endpoint)
		return
	}
	endpoint, _ := definition.Endpoint.WithDefaults()
	if !slices.Equal(existing.mandatory, definition.Mandatory) || existing.endpoint != endpoint {
		err = fmt.Errorf("%w: '%s' is registered with a different schema or endpoint", ErrDuplicateType, definition.Name)
		return
	}
	msgType, err = existing, nil
	return
}

// Definition that would recreate this type
func (msgType *Type) Definition() Definition {
	return Definition{
		Name:      msgType.name,
		Mandatory: slices.Clone(msgType.mandatory),
		Endpoint:  msgType.endpoint,
	}
}

// Retrieves a registered type
func Lookup(name string) (msgType *Type, err error) {
	types.mutex.RLock()
	msgType, ok := types.types[name]
	types.mutex.RUnlock()
	if !ok {
		err = fmt.Errorf("%w: '%s'", ErrNotFound, name)
	}
	return
}

// Removes a type, reports whether it existed
func Unregister(name string) (existed bool) {
	types.mutex.Lock()
	defer types.mutex.Unlock()

	_, existed = types.types[name]
	if !existed {
		return
	}
	delete(types.types, name)
	types.order = slices.DeleteFunc(types.order, func(entry string) bool { return entry == name })
	return
}

// Empties the registry
func Clear() {
	types.mutex.Lock()
	types.types = make(map[string]*Type)
	types.order = nil
	types.mutex.Unlock()
}

// Registered types in definition order
func List() (list []*Type) {
	types.mutex.RLock()
	defer types.mutex.RUnlock()

	list = make([]*Type, 0, len(types.order))
	for _, name := range types.order {
		list = append(list, types.types[name])
	}
	return
}
