package cache

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRedis speaks just enough RESP to exercise RedisClient.
type fakeRedis struct {
	ln       net.Listener
	password string

	mu       sync.Mutex
	data     map[string]string
	commands [][]string
	conns    []net.Conn

	wg sync.WaitGroup
}

func newFakeRedis(t *testing.T, password string) *fakeRedis {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeRedis{ln: ln, password: password, data: make(map[string]string)}
	f.wg.Add(1)
	go f.serve()

	t.Cleanup(func() {
		_ = ln.Close()
		f.mu.Lock()
		for _, conn := range f.conns {
			_ = conn.Close()
		}
		f.mu.Unlock()
		f.wg.Wait()
	})
	return f
}

func (f *fakeRedis) addr() string {
	return f.ln.Addr().String()
}

func (f *fakeRedis) recorded() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.commands))
	copy(out, f.commands)
	return out
}

func (f *fakeRedis) serve() {
	defer f.wg.Done()
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()

		f.wg.Add(1)
		go f.handle(conn)
	}
}

func (f *fakeRedis) handle(conn net.Conn) {
	defer f.wg.Done()
	defer conn.Close()

	reader := bufio.NewReader(conn)
	for {
		args, err := readCommand(reader)
		if err != nil || len(args) == 0 {
			return
		}

		f.mu.Lock()
		f.commands = append(f.commands, args)
		reply := f.reply(args)
		f.mu.Unlock()

		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}

// readCommand decodes a RESP array of bulk strings as sent by writeCommand.
func readCommand(r *bufio.Reader) ([]string, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if kind != '*' {
		return nil, fmt.Errorf("expected array, got %q", kind)
	}
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	count, err := strconv.Atoi(line)
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, count)
	for i := 0; i < count; i++ {
		item, err := readReply(r)
		if err != nil {
			return nil, err
		}
		b, _ := item.([]byte)
		args = append(args, string(b))
	}
	return args, nil
}

func (f *fakeRedis) reply(args []string) string {
	switch strings.ToUpper(args[0]) {
	case "AUTH":
		if args[len(args)-1] != f.password {
			return "-WRONGPASS invalid username-password pair\r\n"
		}
		return "+OK\r\n"
	case "SELECT":
		return "+OK\r\n"
	case "PING":
		return "+PONG\r\n"
	case "SET":
		f.data[args[1]] = args[2]
		return "+OK\r\n"
	case "GET":
		value, ok := f.data[args[1]]
		if !ok {
			return "$-1\r\n"
		}
		return fmt.Sprintf("$%d\r\n%s\r\n", len(value), value)
	case "DEL":
		removed := 0
		for _, key := range args[1:] {
			if _, ok := f.data[key]; ok {
				delete(f.data, key)
				removed++
			}
		}
		return fmt.Sprintf(":%d\r\n", removed)
	default:
		return "-ERR unknown command\r\n"
	}
}

func newTestClient(t *testing.T, cfg RedisConfig) *RedisClient {
	t.Helper()

	client, err := NewRedisClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisClientSetUsesSecondsExpiry(t *testing.T) {
	server := newFakeRedis(t, "")
	client := newTestClient(t, RedisConfig{Address: server.addr()})

	require.NoError(t, client.Set(context.Background(), "crm:client:1:snapshot", []byte(`{"id":1}`), 60*time.Second))

	require.Equal(t, [][]string{
		{"SET", "crm:client:1:snapshot", `{"id":1}`, "EX", "60"},
	}, server.recorded())
}

func TestRedisClientSetSubSecondUsesMillis(t *testing.T) {
	server := newFakeRedis(t, "")
	client := newTestClient(t, RedisConfig{Address: server.addr()})

	require.NoError(t, client.Set(context.Background(), "k", []byte("v"), 1500*time.Millisecond))

	cmds := server.recorded()
	require.Len(t, cmds, 1)
	require.Equal(t, []string{"PX", "1500"}, cmds[0][3:])
}

func TestRedisClientSetRejectsNonPositiveTTL(t *testing.T) {
	server := newFakeRedis(t, "")
	client := newTestClient(t, RedisConfig{Address: server.addr()})

	require.Error(t, client.Set(context.Background(), "k", []byte("v"), 0))
	require.Error(t, client.Set(context.Background(), "k", []byte("v"), -time.Second))
	require.Empty(t, server.recorded())
}

func TestRedisClientGetDeleteRoundTrip(t *testing.T) {
	server := newFakeRedis(t, "")
	client := newTestClient(t, RedisConfig{Address: server.addr()})
	ctx := context.Background()

	payload := []byte(`{"id":2,"name":"São Paulo"}`)
	require.NoError(t, client.Set(ctx, "crm:client:2:snapshot", payload, time.Minute))

	got, ok, err := client.Get(ctx, "crm:client:2:snapshot")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload, got)

	require.NoError(t, client.Delete(ctx, "crm:client:2:snapshot"))
	_, ok, err = client.Get(ctx, "crm:client:2:snapshot")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, client.Delete(ctx))
}

func TestRedisClientAuthenticatesAndSelectsDB(t *testing.T) {
	server := newFakeRedis(t, "secret")
	client := newTestClient(t, RedisConfig{Address: server.addr(), Password: "secret", DB: 3})

	require.NoError(t, client.Ping(context.Background()))

	require.Equal(t, [][]string{
		{"AUTH", "secret"},
		{"SELECT", "3"},
		{"PING"},
	}, server.recorded())
}

func TestRedisClientWrongPassword(t *testing.T) {
	server := newFakeRedis(t, "secret")

	_, err := NewRedisClient(context.Background(), RedisConfig{Address: server.addr(), Password: "nope"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "WRONGPASS")
}

func TestRedisClientUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = NewRedisClient(context.Background(), RedisConfig{Address: addr, Timeout: time.Second})
	require.Error(t, err)
	require.Contains(t, err.Error(), "redis: connect")
}

func TestRedisClientRequiresAddress(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{Address: "  "})
	require.EqualError(t, err, "redis: address is required")
}

func TestRedisClientKeyPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "crm:client:5:snapshot"},
		{prefix: "staging", want: "staging:crm:client:5:snapshot"},
		{prefix: "crm", want: "crm:crm:client:5:snapshot"},
		{prefix: "cr", want: "cr:crm:client:5:snapshot"},
	}

	for _, tc := range tests {
		t.Run("prefix="+tc.prefix, func(t *testing.T) {
			server := newFakeRedis(t, "")
			client := newTestClient(t, RedisConfig{Address: server.addr(), KeyPrefix: tc.prefix})
			ctx := context.Background()

			require.NoError(t, client.Set(ctx, "crm:client:5:snapshot", []byte("{}"), time.Second))
			_, ok, err := client.Get(ctx, "crm:client:5:snapshot")
			require.NoError(t, err)
			require.True(t, ok)

			cmds := server.recorded()
			require.Len(t, cmds, 2)
			require.Equal(t, tc.want, cmds[0][1])
			require.Equal(t, tc.want, cmds[1][1])
		})
	}
}

func TestRedisClientErrorReplyKeepsConnection(t *testing.T) {
	server := newFakeRedis(t, "")
	client := newTestClient(t, RedisConfig{Address: server.addr()})
	ctx := context.Background()

	_, err := client.call(ctx, "FLUSHALL")
	require.EqualError(t, err, "ERR unknown command")
	require.NoError(t, client.Ping(ctx))
}

func TestReadReplyRejectsUnterminatedBulk(t *testing.T) {
	_, err := readReply(bufio.NewReader(strings.NewReader("$3\r\nabcXY")))
	require.Error(t, err)
}

func TestNormalizeKey(t *testing.T) {
	require.Equal(t, "crm:client:1:snapshot", normalizeKey("crm::client:1::snapshot"))
	require.Equal(t, "", normalizeKey(""))
	require.Equal(t, ":a:", normalizeKey("::a::"))
}
