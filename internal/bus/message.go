package bus

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Message types with structural meaning. Any other type is delivered to
// subscribers untouched.
const (
	TypeCommand  = "remote-command"
	TypeResponse = "remote-response"
)

// Message is the JSON object carried by the bus. Senders may use any JSON
// value for the scalar fields; a decoded message reads them as strings
// (42 becomes "42") and re-encodes as the exact payload it came from, unknown
// fields included.
type Message struct {
	Type     string          `json:"type"`
	Command  string          `json:"command,omitempty"`
	Param    string          `json:"param,omitempty"`
	Extra    map[string]any  `json:"extra,omitempty"`
	ID       string          `json:"id,omitempty"`
	To       string          `json:"to,omitempty"`
	Response *Response       `json:"response,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`

	raw   json.RawMessage // payload as received
	rawID json.RawMessage // id as received
	rawTo json.RawMessage // to as it must go out, set by Reply
}

// wireMessage accepts any JSON value in every field.
type wireMessage struct {
	Type     json.RawMessage `json:"type"`
	Command  json.RawMessage `json:"command"`
	Param    json.RawMessage `json:"param"`
	Extra    json.RawMessage `json:"extra"`
	ID       json.RawMessage `json:"id"`
	To       json.RawMessage `json:"to"`
	Response json.RawMessage `json:"response"`
	Data     json.RawMessage `json:"data"`
}

// UnmarshalJSON decodes any JSON object. Only a payload that is not an object
// is an error; fields of unexpected shape read as their JSON text or are left
// empty.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*m = Message{
		Type:    scalarString(w.Type),
		Command: scalarString(w.Command),
		Param:   scalarString(w.Param),
		ID:      scalarString(w.ID),
		To:      scalarString(w.To),
		raw:     bytes.Clone(data),
	}
	if !isNull(w.ID) {
		m.rawID = bytes.Clone(w.ID)
	}
	if !isNull(w.Extra) {
		var extra map[string]any
		if err := json.Unmarshal(w.Extra, &extra); err == nil {
			m.Extra = extra
		}
	}
	if !isNull(w.Response) {
		var resp Response
		if err := json.Unmarshal(w.Response, &resp); err == nil {
			m.Response = &resp
		}
	}
	if !isNull(w.Data) {
		m.Data = bytes.Clone(w.Data)
	}
	return nil
}

// MarshalJSON returns the original payload for a decoded message and the
// struct fields otherwise.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.raw != nil {
		return m.raw, nil
	}

	type plain Message
	to := m.rawTo
	if to == nil && m.To != "" {
		var err error
		if to, err = json.Marshal(m.To); err != nil {
			return nil, err
		}
	}
	return json.Marshal(struct {
		plain
		To json.RawMessage `json:"to,omitempty"`
	}{plain: plain(m), To: to})
}

// Reply returns a response to m. The to field carries m's id in the JSON form
// it arrived in, so a numeric id is answered with the same number.
func (m Message) Reply(resp *Response) Message {
	return Message{Type: TypeResponse, To: m.ID, Response: resp, rawTo: m.rawID}
}

// scalarString reads a JSON value as a string. Strings are unquoted, null and
// absent values are empty, anything else is its JSON text.
func scalarString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// Response is the payload of a remote-response message.
type Response struct {
	Success bool     `json:"success"`
	Echo    *Message `json:"echo,omitempty"`
	Window  *string  `json:"window,omitempty"`
	Error   string   `json:"error,omitempty"`

	windowKey bool
}

// SetWindow records the window a command produced. An empty id records that
// it produced none, which is sent as "window": null rather than left out.
func (r *Response) SetWindow(id string) {
	r.windowKey = true
	if id == "" {
		r.Window = nil
		return
	}
	r.Window = &id
}

// MarshalJSON keeps the window key, as null, once SetWindow has been called.
func (r Response) MarshalJSON() ([]byte, error) {
	type plain Response
	if !r.windowKey {
		return json.Marshal(plain(r))
	}
	return json.Marshal(struct {
		plain
		Window *string `json:"window"`
	}{plain: plain(r), Window: r.Window})
}

// ExtraString returns extra[key] as a string. Non-string values are formatted
// with %v; a missing key yields "".
func (m Message) ExtraString(key string) string {
	v, ok := m.Extra[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// ExtraInt returns extra[key] as an int. JSON numbers decode as float64.
func (m Message) ExtraInt(key string) (int, bool) {
	switch v := m.Extra[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}
