package cache

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// redisError is an error reply ("-ERR ...") returned by the server.
type redisError string

func (e redisError) Error() string { return string(e) }

// writeCommand encodes args as a RESP array of bulk strings and flushes it.
func writeCommand(w *bufio.Writer, args ...string) error {
	fmt.Fprintf(w, "*%d\r\n", len(args))
	for _, arg := range args {
		fmt.Fprintf(w, "$%d\r\n%s\r\n", len(arg), arg)
	}
	return w.Flush()
}

// readReply decodes one reply. Simple strings come back as string, integers as int64,
// bulk strings as []byte and a nil bulk string as nil. Arrays are never requested.
func readReply(r *bufio.Reader) (any, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}

	switch kind {
	case '+':
		return line, nil
	case '-':
		return nil, redisError(line)
	case ':':
		return strconv.ParseInt(line, 10, 64)
	case '$':
		size, err := strconv.Atoi(line)
		if err != nil {
			return nil, err
		}
		if size < 0 {
			return nil, nil
		}
		body := make([]byte, size+2)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
		if body[size] != '\r' || body[size+1] != '\n' {
			return nil, errors.New("redis: bulk string not terminated by CRLF")
		}
		return body[:size], nil
	default:
		return nil, fmt.Errorf("redis: unsupported reply type %q", kind)
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// expectStatus reads a simple string reply and checks it equals want.
func expectStatus(r *bufio.Reader, want string) error {
	reply, err := readReply(r)
	if err != nil {
		return err
	}
	if status, ok := reply.(string); !ok || !strings.EqualFold(status, want) {
		return fmt.Errorf("redis: expected %s, got %v", want, reply)
	}
	return nil
}
