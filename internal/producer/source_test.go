package producer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	codes []string
	errs  map[string]error
}

func (s *recordingSender) Send(_ context.Context, code string) error {
	s.codes = append(s.codes, code)
	return s.errs[code]
}

func TestWatch_SendsExtractedCodesInOrder(t *testing.T) {
	input := strings.Join([]string{
		"hello everyone",
		"code: FIRST",
		"nothing to see",
		"Code:SECOND and more text",
		"code: FIRST",
	}, "\n")

	sender := &recordingSender{errs: map[string]error{}}
	require.NoError(t, Watch(context.Background(), strings.NewReader(input), sender))

	assert.Equal(t, []string{"FIRST", "SECOND", "FIRST"}, sender.codes)
}

func TestWatch_ContinuesAfterSendErrors(t *testing.T) {
	input := "code: DUP\ncode: BROKEN\ncode: OK"
	sender := &recordingSender{errs: map[string]error{
		"DUP":    ErrDuplicateCode,
		"BROKEN": errors.New("write failed"),
	}}

	require.NoError(t, Watch(context.Background(), strings.NewReader(input), sender))

	assert.Equal(t, []string{"DUP", "BROKEN", "OK"}, sender.codes)
}

func TestWatch_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sender := &recordingSender{}
	require.NoError(t, Watch(ctx, strings.NewReader("code: A\ncode: B"), sender))

	assert.Empty(t, sender.codes)
}
