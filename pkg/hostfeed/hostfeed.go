// Package hostfeed reads the host's line protocol and routes each line to a
// dispatcher.
//
// A line is `COMMAND|arg|arg...`. Empty lines and lines starting with '#'
// are skipped. Every dispatched line gets one reply line on the writer:
// `["ok", result]` or `["error", message]`.
package hostfeed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/livepid/tracker/internal/dispatcher"
)

const (
	separator        = "|"
	commentPrefix    = "#"
	timestampCommand = ":TIMESTAMP:"
	maxLineSize      = 1 << 20
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Split breaks a feed line into its command and arguments.
func Split(line string) (string, []string) {
	parts := strings.Split(line, separator)
	command := strings.TrimSpace(parts[0])
	if len(parts) == 1 {
		return command, nil
	}
	return command, parts[1:]
}

// Handle dispatches one raw line and returns the formatted reply.
func Handle(d *dispatcher.Dispatcher, line string) string {
	command, args := Split(line)

	if command == timestampCommand {
		return FormatResponse(fmt.Sprintf("%d", time.Now().UTC().UnixNano()), nil)
	}

	if d == nil || !d.HasHandler(command) {
		return FormatResponse(nil, fmt.Errorf("no handler registered for %s", command))
	}

	result, err := d.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	})
	return FormatResponse(result, err)
}

// Serve reads lines from r until EOF or ctx is done, dispatching each one and
// writing its reply to w. w may be nil to discard replies.
func Serve(ctx context.Context, r io.Reader, d *dispatcher.Dispatcher, w io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("reading feed: %w", err)
					}
				default:
				}
				return nil
			}

			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, commentPrefix) {
				continue
			}

			reply := Handle(d, line)
			if w != nil {
				if _, err := io.WriteString(w, reply+"\n"); err != nil {
					return fmt.Errorf("writing reply: %w", err)
				}
			}
		}
	}
}

// FormatResponse formats a dispatcher result as a reply line. The payload is
// JSON encoded, so quotes in error messages stay valid. Stringers are sent as
// their string form.
func FormatResponse(result any, err error) string {
	if err != nil {
		return reply("error", err.Error())
	}
	if result == nil {
		return `["ok"]`
	}
	if v, ok := result.(fmt.Stringer); ok {
		return reply("ok", v.String())
	}
	return reply("ok", result)
}

func reply(kind string, payload any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprintf("%v", payload))
	}
	return fmt.Sprintf(`["%s", %s]`, kind, data)
}
