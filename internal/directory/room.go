package directory

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Room field names as they appear on the wire.
const (
	fieldID              = "id"
	fieldRoomID          = "room_id"
	fieldServer          = "server"
	fieldApplicationName = "application_name"
	fieldVersion         = "version"
	fieldPassword        = "password"

	serverFieldHost = "server"
	serverFieldPort = "port"
)

// Server is the backend game server a room lives on. Host and Port are a
// typed view of the "server" and "port" keys; the keys themselves are only
// written when they came off the wire or were set.
type Server struct {
	Host string
	Port int

	extra map[string]json.RawMessage
}

// Room describes a joinable game session as returned by the directory.
// Fields the client does not model are kept and re-emitted verbatim. The
// modelled string fields read empty when the wire value is not a string,
// and such a value is re-emitted as it came unless the field is set.
type Room struct {
	Server          Server
	ApplicationName string
	Version         string
	Password        string

	extra map[string]json.RawMessage
}

// CreateRequest is the body of a room creation call.
type CreateRequest struct {
	ApplicationName string            `json:"application_name"`
	Version         string            `json:"version"`
	Password        string            `json:"password,omitempty"`
	MaxUser         int               `json:"max_user,omitempty"`
	Information     map[string]string `json:"information,omitempty"`

	// Extra holds additional fields forwarded to the server as-is.
	Extra map[string]any `json:"-"`
}

// SearchRequest selects rooms by application name and version.
type SearchRequest struct {
	ApplicationName string
	Version         string
}

// ID returns the room identifier, read from "id" or "room_id".
func (r *Room) ID() string {
	for _, key := range []string{fieldID, fieldRoomID} {
		raw, ok := r.extra[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}
	return ""
}

// Field decodes an arbitrary field, modelled or not, into v.
// It reports false if the room has no such field.
func (r *Room) Field(name string, v any) (bool, error) {
	fields, err := r.wireFields()
	if err != nil {
		return false, err
	}
	raw, ok := fields[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode field %q: %w", name, err)
	}
	return true, nil
}

// SetField sets a field by its wire name. Setting a modelled field also
// updates its typed view.
func (r *Room) SetField(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fields, err := r.wireFields()
	if err != nil {
		return err
	}
	fields[name] = raw
	r.decodeFields(fields)
	return nil
}

// Map returns the room as a generic map, in its wire shape.
func (r *Room) Map() (map[string]any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r Room) MarshalJSON() ([]byte, error) {
	fields, err := r.wireFields()
	if err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

func (r *Room) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	r.decodeFields(fields)
	return nil
}

// wireFields returns the room's wire form as a fresh map.
func (r *Room) wireFields() (map[string]json.RawMessage, error) {
	fields := maps.Clone(r.extra)
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}

	if !r.Server.isZero() {
		server, err := json.Marshal(r.Server)
		if err != nil {
			return nil, err
		}
		fields[fieldServer] = server
	}

	if err := syncField(fields, fieldApplicationName, r.ApplicationName); err != nil {
		return nil, err
	}
	if err := syncField(fields, fieldVersion, r.Version); err != nil {
		return nil, err
	}
	if err := syncField(fields, fieldPassword, r.Password); err != nil {
		return nil, err
	}
	return fields, nil
}

// decodeFields replaces the room with the one described by fields. Only a
// JSON object under "server" is taken apart; anything else there stays raw.
func (r *Room) decodeFields(fields map[string]json.RawMessage) {
	*r = Room{}
	if fields == nil {
		return
	}

	if raw, ok := fields[fieldServer]; ok {
		var server Server
		if err := json.Unmarshal(raw, &server); err == nil && server.extra != nil {
			r.Server = server
			delete(fields, fieldServer)
		}
	}

	r.ApplicationName = peekField[string](fields, fieldApplicationName)
	r.Version = peekField[string](fields, fieldVersion)
	r.Password = peekField[string](fields, fieldPassword)
	r.extra = fields
}

func (s Server) isZero() bool {
	return s.Host == "" && s.Port == 0 && s.extra == nil
}

func (s Server) MarshalJSON() ([]byte, error) {
	fields := maps.Clone(s.extra)
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	if err := syncField(fields, serverFieldHost, s.Host); err != nil {
		return nil, err
	}
	if err := syncField(fields, serverFieldPort, s.Port); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

func (s *Server) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*s = Server{}
	if fields == nil {
		return nil
	}
	s.Host = peekField[string](fields, serverFieldHost)
	s.Port = peekField[int](fields, serverFieldPort)
	s.extra = fields
	return nil
}

func (req CreateRequest) MarshalJSON() ([]byte, error) {
	type plain CreateRequest
	base, err := json.Marshal(plain(req))
	if err != nil {
		return nil, err
	}
	if len(req.Extra) == 0 {
		return base, nil
	}

	var fields map[string]any
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k, v := range req.Extra {
		// modelled fields win over Extra
		if _, ok := fields[k]; !ok {
			fields[k] = v
		}
	}
	return json.Marshal(fields)
}

// stampCreated re-attaches the caller-known fields the server does not echo.
// Whatever the server sent for them is dropped.
func (r *Room) stampCreated(req CreateRequest) {
	r.dropWire(fieldApplicationName, fieldVersion, fieldPassword)
	r.ApplicationName = req.ApplicationName
	r.Version = req.Version
	r.Password = req.Password
}

// stampSearched re-attaches application name and version only; the
// password of a listed room is left as the server sent it.
func (r *Room) stampSearched(req SearchRequest) {
	r.dropWire(fieldApplicationName, fieldVersion)
	r.ApplicationName = req.ApplicationName
	r.Version = req.Version
}

func (r *Room) dropWire(keys ...string) {
	for _, key := range keys {
		delete(r.extra, key)
	}
}

// peekField decodes fields[key] as T, or returns the zero T if the key is
// missing or holds another type.
func peekField[T any](fields map[string]json.RawMessage, key string) T {
	var v T
	raw, ok := fields[key]
	if !ok {
		return v
	}
	var decoded T
	if err := json.Unmarshal(raw, &decoded); err == nil {
		v = decoded
	}
	return v
}

// syncField writes value under key unless the wire value already reads as
// value. A zero value removes a key that held a different value of the same
// type, and leaves a key of another type alone.
func syncField[T comparable](fields map[string]json.RawMessage, key string, value T) error {
	var zero T
	if raw, ok := fields[key]; ok {
		var cur T
		if err := json.Unmarshal(raw, &cur); err != nil {
			if value == zero {
				return nil
			}
		} else if cur == value {
			return nil
		}
	}

	if value == zero {
		delete(fields, key)
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	fields[key] = raw
	return nil
}
