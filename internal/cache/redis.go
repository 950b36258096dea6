package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

const defaultRedisTimeout = 5 * time.Second

// RedisConfig holds the connection settings of the snapshot cache endpoint.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      bool
	Timeout  time.Duration
	// KeyPrefix, when set, is prepended to every key as "prefix:".
	KeyPrefix string
}

// RedisClient is a single-connection Redis client speaking the commands the warmer
// issues: AUTH, SELECT, PING, SET with EX or PX, GET and DEL.
type RedisClient struct {
	cfg RedisConfig

	mu   sync.Mutex
	conn net.Conn
	rw   *bufio.ReadWriter
}

// NewRedisClient dials, authenticates and selects the database before returning, so an
// unreachable endpoint is reported before any row is read.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*RedisClient, error) {
	cfg.Address = strings.TrimSpace(cfg.Address)
	if cfg.Address == "" {
		return nil, errors.New("redis: address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRedisTimeout
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c := &RedisClient{cfg: cfg}
	c.mu.Lock()
	err := c.connectLocked(ctx)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Address, err)
	}
	return c, nil
}

// Close drops the connection.
func (c *RedisClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn, c.rw = nil, nil
	return err
}

// Set overwrites key with value and an expiry. Whole seconds are sent as EX, anything
// finer as PX.
func (c *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("redis: ttl must be positive, got %s", ttl)
	}

	expiry := []string{"EX", strconv.FormatInt(int64(ttl/time.Second), 10)}
	if ttl%time.Second != 0 {
		expiry = []string{"PX", strconv.FormatInt(ttl.Milliseconds(), 10)}
	}

	name := c.key(key)
	reply, err := c.call(ctx, append([]string{"SET", name, string(value)}, expiry...)...)
	if err != nil {
		return err
	}
	if status, ok := reply.(string); !ok || !strings.EqualFold(status, "OK") {
		return fmt.Errorf("redis: SET %s: unexpected reply %v", name, reply)
	}
	return nil
}

// Ping checks the endpoint answers PONG.
func (c *RedisClient) Ping(ctx context.Context) error {
	reply, err := c.call(ctx, "PING")
	if err != nil {
		return err
	}
	if status, ok := reply.(string); !ok || !strings.EqualFold(status, "PONG") {
		return fmt.Errorf("redis: unexpected PING reply %v", reply)
	}
	return nil
}

// Get returns the stored value and whether the key exists.
func (c *RedisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	reply, err := c.call(ctx, "GET", c.key(key))
	if err != nil {
		return nil, false, err
	}
	switch v := reply.(type) {
	case nil:
		return nil, false, nil
	case []byte:
		return v, true, nil
	default:
		return nil, false, fmt.Errorf("redis: GET: unexpected reply %T", v)
	}
}

// Delete removes keys. Missing keys are not an error.
func (c *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := []string{"DEL"}
	for _, key := range keys {
		args = append(args, c.key(key))
	}
	_, err := c.call(ctx, args...)
	return err
}

// key collapses repeated colons and applies the configured prefix.
func (c *RedisClient) key(key string) string {
	if c.cfg.KeyPrefix == "" {
		return normalizeKey(key)
	}
	return normalizeKey(c.cfg.KeyPrefix + ":" + key)
}

// call sends one command and reads its reply. Any transport error drops the connection
// so the next call redials.
func (c *RedisClient) call(ctx context.Context, args ...string) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connectLocked(ctx); err != nil {
			return nil, err
		}
	}

	if err := c.conn.SetDeadline(deadline(ctx, c.cfg.Timeout)); err != nil {
		c.dropLocked()
		return nil, err
	}
	if err := writeCommand(c.rw.Writer, args...); err != nil {
		c.dropLocked()
		return nil, err
	}
	reply, err := readReply(c.rw.Reader)
	if err != nil {
		var replyErr redisError
		if !errors.As(err, &replyErr) {
			c.dropLocked()
		}
		return nil, err
	}
	return reply, nil
}

func (c *RedisClient) connectLocked(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var dialer interface {
		DialContext(ctx context.Context, network, addr string) (net.Conn, error)
	} = &net.Dialer{}
	if c.cfg.TLS {
		dialer = &tls.Dialer{NetDialer: &net.Dialer{}}
	}

	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		return err
	}
	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))

	if err := handshake(conn, rw, c.cfg, deadline(ctx, c.cfg.Timeout)); err != nil {
		_ = conn.Close()
		return err
	}

	c.conn, c.rw = conn, rw
	return nil
}

// handshake runs AUTH then SELECT on a fresh connection.
func handshake(conn net.Conn, rw *bufio.ReadWriter, cfg RedisConfig, until time.Time) error {
	if err := conn.SetDeadline(until); err != nil {
		return err
	}

	if cfg.Password != "" || cfg.Username != "" {
		auth := []string{"AUTH", cfg.Password}
		if cfg.Username != "" {
			auth = []string{"AUTH", cfg.Username, cfg.Password}
		}
		if err := writeCommand(rw.Writer, auth...); err != nil {
			return err
		}
		if err := expectStatus(rw.Reader, "OK"); err != nil {
			return fmt.Errorf("AUTH: %w", err)
		}
	}

	if cfg.DB > 0 {
		if err := writeCommand(rw.Writer, "SELECT", strconv.Itoa(cfg.DB)); err != nil {
			return err
		}
		if err := expectStatus(rw.Reader, "OK"); err != nil {
			return fmt.Errorf("SELECT %d: %w", cfg.DB, err)
		}
	}

	return conn.SetDeadline(time.Time{})
}

func (c *RedisClient) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn, c.rw = nil, nil
}

func deadline(ctx context.Context, fallback time.Duration) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(fallback)
}

// normalizeKey collapses runs of ':' into one.
func normalizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		if key[i] == ':' && i > 0 && key[i-1] == ':' {
			continue
		}
		b.WriteByte(key[i])
	}
	return b.String()
}
