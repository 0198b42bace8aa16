package producer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

type codeSender interface {
	Send(ctx context.Context, code string) error
}

// Watch reads one chat message per line from r and sends every code it
// finds, in order. It returns when r is exhausted or ctx is done.
func Watch(ctx context.Context, r io.Reader, sender codeSender) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		code, ok := Extract(scanner.Text())
		if !ok {
			continue
		}
		slog.Info("Detected code", "code", code)

		err := sender.Send(ctx, code)
		switch {
		case errors.Is(err, ErrDuplicateCode):
			slog.Info("Ignoring duplicate code", "code", code)
		case err != nil:
			slog.Warn("Could not send code", "code", code, "error", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read messages: %w", err)
	}
	return nil
}
