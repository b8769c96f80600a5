package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ispwin/ispwin/internal/storage"
)

const waitFor = 3 * time.Second

func collect(t *testing.T, b *Bus) <-chan Message {
	t.Helper()
	ch := make(chan Message, 16)
	b.Subscribe(func(m Message) { ch <- m })
	return ch
}

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func assertSilent(t *testing.T, ch <-chan Message, d time.Duration) {
	t.Helper()
	select {
	case m := <-ch:
		t.Fatalf("unexpected delivery: %+v", m)
	case <-time.After(d):
	}
}

func startPair(t *testing.T, a, b Transport) (*Bus, *Bus) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ba, bb := New("test", a), New("test", b)
	require.NoError(t, ba.Start(ctx))
	require.NoError(t, bb.Start(ctx))
	t.Cleanup(func() {
		_ = ba.Close()
		_ = bb.Close()
	})
	return ba, bb
}

func TestLocalHub_DeliversToOthersOnly(t *testing.T) {
	hub := NewHub()
	a, b := startPair(t, hub.Endpoint(), hub.Endpoint())
	fromA, fromB := collect(t, a), collect(t, b)

	require.NoError(t, a.Send(Message{Type: "ping", Data: json.RawMessage(`{"n":1}`)}))

	got := receive(t, fromB)
	assert.Equal(t, "ping", got.Type)
	assert.JSONEq(t, `{"n":1}`, string(got.Data))
	assertSilent(t, fromA, 100*time.Millisecond)
}

func TestLocalHub_PreservesOrderPerSender(t *testing.T) {
	hub := NewHub()
	a, b := startPair(t, hub.Endpoint(), hub.Endpoint())
	got := collect(t, b)

	for _, typ := range []string{"one", "two", "three"} {
		require.NoError(t, a.Send(Message{Type: typ}))
	}
	for _, want := range []string{"one", "two", "three"} {
		assert.Equal(t, want, receive(t, got).Type)
	}
}

func TestLocalHub_PublishAfterClose(t *testing.T) {
	ep := NewHub().Endpoint()
	require.NoError(t, ep.Close())
	assert.Error(t, ep.Publish([]byte(`{}`)))
}

func TestBus_HandlersGetIndependentCopies(t *testing.T) {
	hub := NewHub()
	a, b := startPair(t, hub.Endpoint(), hub.Endpoint())

	first := make(chan Message, 1)
	second := make(chan Message, 1)
	b.Subscribe(func(m Message) {
		m.Extra["mutated"] = true
		first <- m
	})
	b.Subscribe(func(m Message) { second <- m })

	require.NoError(t, a.Send(Message{Type: TypeCommand, Extra: map[string]any{"x": 1.0}}))

	receive(t, first)
	m := receive(t, second)
	_, mutated := m.Extra["mutated"]
	assert.False(t, mutated, "second handler must not observe first handler's mutation")
}

func TestBus_DropsUndecodablePayload(t *testing.T) {
	hub := NewHub()
	raw := hub.Endpoint()
	_, b := startPair(t, raw, hub.Endpoint())
	got := collect(t, b)

	require.NoError(t, raw.Publish([]byte("not json")))
	assertSilent(t, got, 100*time.Millisecond)
}

func TestSocketTransport(t *testing.T) {
	// Short base path keeps socket names under the unix path limit.
	dir, err := os.MkdirTemp("", "ispwin-bus")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	ta, err := NewSocketTransport(dir)
	require.NoError(t, err)
	tb, err := NewSocketTransport(dir)
	require.NoError(t, err)

	a, b := startPair(t, ta, tb)
	fromA, fromB := collect(t, a), collect(t, b)

	require.NoError(t, a.Send(Message{Type: TypeCommand, Command: "openApp", Param: "calculator", ID: "req-1"}))

	got := receive(t, fromB)
	assert.Equal(t, "openApp", got.Command)
	assert.Equal(t, "req-1", got.ID)
	assertSilent(t, fromA, 100*time.Millisecond)
}

func TestSocketTransport_RemovesStalePeers(t *testing.T) {
	dir, err := os.MkdirTemp("", "ispwin-bus")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	live, err := NewSocketTransport(dir)
	require.NoError(t, err)
	defer live.Close()

	stale, err := NewSocketTransport(dir)
	require.NoError(t, err)
	// Close the listener but leave its file behind, as a crashed peer would.
	require.NoError(t, stale.conn.Close())
	_, err = os.Stat(stale.Path())
	require.NoError(t, err)

	require.NoError(t, live.Publish([]byte(`{"type":"x"}`)))

	_, err = os.Stat(stale.Path())
	assert.True(t, os.IsNotExist(err), "stale socket should be removed")
}

func TestSocketTransport_LargeDatagrams(t *testing.T) {
	dir, err := os.MkdirTemp("", "ispwin-bus")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	sender, err := NewSocketTransport(dir)
	require.NoError(t, err)
	defer sender.Close()
	receiver, err := NewSocketTransport(dir)
	require.NoError(t, err)
	defer receiver.Close()

	got := make(chan []byte, 2)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, receiver.Listen(ctx, func(b []byte) { got <- b }))

	first := bytes.Repeat([]byte("a"), 48*1024)
	second := bytes.Repeat([]byte("b"), 32*1024)
	require.NoError(t, sender.Publish(first))
	require.NoError(t, sender.Publish(second))

	var delivered [][]byte
	for range 2 {
		select {
		case b := <-got:
			delivered = append(delivered, b)
		case <-time.After(waitFor):
			t.Fatal("timed out waiting for datagram")
		}
	}

	// The read buffer is reused; the first delivery must not see the second.
	assert.Equal(t, first, delivered[0])
	assert.Equal(t, second, delivered[1])

	err = sender.Publish(make([]byte, maxDatagram+1))
	assert.ErrorContains(t, err, "exceeds")
}

func TestStorageTransport(t *testing.T) {
	store := storage.NewFileStoreFs(afero.NewMemMapFs())

	ta, err := NewStorageTransport(store, DefaultChannel, 20*time.Millisecond)
	require.NoError(t, err)
	tb, err := NewStorageTransport(store, DefaultChannel, 20*time.Millisecond)
	require.NoError(t, err)

	a, b := startPair(t, ta, tb)
	fromA, fromB := collect(t, a), collect(t, b)

	require.NoError(t, a.Send(Message{Type: "hello"}))
	assert.Equal(t, "hello", receive(t, fromB).Type)
	assertSilent(t, fromA, 50*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, ok, err := store.Get(DefaultChannel)
		return err == nil && !ok
	}, waitFor, 10*time.Millisecond, "fallback key should be cleaned up")
}

func TestStorageTransport_RequiresWatcher(t *testing.T) {
	s, err := storage.OpenSQLite(t.TempDir() + "/kv.db")
	require.NoError(t, err)
	defer s.Close()

	_, err = NewStorageTransport(s, DefaultChannel, 0)
	assert.ErrorIs(t, err, storage.ErrWatchUnsupported)
}

func TestOpen(t *testing.T) {
	sqlite, err := storage.OpenSQLite(t.TempDir() + "/kv.db")
	require.NoError(t, err)
	defer sqlite.Close()

	tests := []struct {
		name    string
		opts    Options
		wantErr error
		want    any
	}{
		{
			name: "storage mode with watchable store",
			opts: Options{Mode: ModeStorage, Store: storage.NewFileStoreFs(afero.NewMemMapFs())},
			want: &StorageTransport{},
		},
		{
			name: "auto without sockets falls back to storage",
			opts: Options{Store: storage.NewFileStoreFs(afero.NewMemMapFs())},
			want: &StorageTransport{},
		},
		{
			name:    "auto with nothing usable",
			opts:    Options{Store: sqlite},
			wantErr: ErrNoTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Open(tt.opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer b.Close()
			assert.IsType(t, tt.want, b.transport)
			assert.Equal(t, DefaultChannel, b.Name())
		})
	}
}

func TestMessage_Extra(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"type":"remote-command","extra":{"x":120,"path":"/home/user","n":null}}`), &m))

	x, ok := m.ExtraInt("x")
	assert.True(t, ok)
	assert.Equal(t, 120, x)
	assert.Equal(t, "/home/user", m.ExtraString("path"))
	assert.Equal(t, "", m.ExtraString("n"))
	assert.Equal(t, "120", m.ExtraString("x"))

	_, ok = m.ExtraInt("missing")
	assert.False(t, ok)
}

func TestBus_DeliversLooselyTypedCommands(t *testing.T) {
	hub := NewHub()
	raw := hub.Endpoint()
	_, b := startPair(t, raw, hub.Endpoint())
	got := collect(t, b)

	payloads := []string{
		`{"type":"remote-command","command":"openApp","param":"calculator","id":42}`,
		`{"type":"remote-command","command":"closeWindow","param":7,"id":"a"}`,
		`{"type":"remote-command","command":"openApp","param":"editor","id":"b","source":"tab-3","extra":{"x":1}}`,
	}
	for _, p := range payloads {
		require.NoError(t, raw.Publish([]byte(p)))
	}

	first := receive(t, got)
	assert.Equal(t, "42", first.ID)
	assert.Equal(t, "calculator", first.Param)

	second := receive(t, got)
	assert.Equal(t, "7", second.Param)
	assert.Equal(t, "a", second.ID)

	third := receive(t, got)
	assert.Equal(t, "editor", third.Param)
	x, ok := third.ExtraInt("x")
	assert.True(t, ok)
	assert.Equal(t, 1, x)
}

func TestMessage_DecodeTolerance(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Message
	}{
		{
			name:    "numeric id",
			payload: `{"type":"remote-command","command":"openApp","id":1712345678901}`,
			want:    Message{Type: TypeCommand, Command: "openApp", ID: "1712345678901"},
		},
		{
			name:    "bool param and null id",
			payload: `{"type":"remote-command","command":"setTheme","param":true,"id":null}`,
			want:    Message{Type: TypeCommand, Command: "setTheme", Param: "true"},
		},
		{
			name:    "extra that is not an object",
			payload: `{"type":"remote-command","command":"createFile","extra":"oops"}`,
			want:    Message{Type: TypeCommand, Command: "createFile"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &m))
			assert.Equal(t, tt.want.Type, m.Type)
			assert.Equal(t, tt.want.Command, m.Command)
			assert.Equal(t, tt.want.Param, m.Param)
			assert.Equal(t, tt.want.ID, m.ID)
			assert.Nil(t, m.Extra)
		})
	}

	var m Message
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &m))
}

func TestMessage_ReplyKeepsOriginalForm(t *testing.T) {
	payload := `{"type":"remote-command","command":"openApp","param":"calculator","id":42,"source":"tab-3"}`
	var cmd Message
	require.NoError(t, json.Unmarshal([]byte(payload), &cmd))

	resp := &Response{Success: true, Echo: &cmd}
	resp.SetWindow("calculator-abc1234")
	data, err := json.Marshal(cmd.Reply(resp))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"type": "remote-response",
		"to": 42,
		"response": {
			"success": true,
			"window": "calculator-abc1234",
			"echo": `+payload+`
		}
	}`, string(data))
}

func TestResponse_WindowKey(t *testing.T) {
	tests := []struct {
		name string
		set  func(*Response)
		want string
	}{
		{name: "untouched", set: func(*Response) {}, want: `{"success":true}`},
		{name: "no window", set: func(r *Response) { r.SetWindow("") }, want: `{"success":true,"window":null}`},
		{name: "window", set: func(r *Response) { r.SetWindow("w1") }, want: `{"success":true,"window":"w1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Response{Success: true}
			tt.set(r)
			data, err := json.Marshal(r)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}
