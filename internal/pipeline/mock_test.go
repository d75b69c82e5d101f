package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/contract-cli/internal/completion"
	"github.com/sells-group/contract-cli/internal/model"
)

// --- Completer Mock ---

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, req completion.Request) (*completion.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*completion.Response), args.Error(1)
}

func named(name string) any {
	return mock.MatchedBy(func(req completion.Request) bool { return req.Name == name })
}

func textResponse(text string) *completion.Response {
	return &completion.Response{Text: text, Usage: model.TokenUsage{InputTokens: 100, OutputTokens: 20}}
}

// --- Scripted Completer ---

var errUnavailable = errors.New("service unavailable")

// scripted answers by request name; names mapped to nil fail with
// errUnavailable. It records the requests it sees.
type scripted struct {
	mu        sync.Mutex
	responses map[string]*string
	seen      []string
}

func script(pairs ...string) *scripted {
	s := &scripted{responses: make(map[string]*string)}
	for i := 0; i+1 < len(pairs); i += 2 {
		text := pairs[i+1]
		s.responses[pairs[i]] = &text
	}
	return s
}

func (s *scripted) fail(name string) *scripted {
	s.responses[name] = nil
	return s
}

func (s *scripted) Complete(_ context.Context, req completion.Request) (*completion.Response, error) {
	s.mu.Lock()
	s.seen = append(s.seen, req.Name)
	s.mu.Unlock()

	text, ok := s.responses[req.Name]
	if !ok || text == nil {
		return nil, errUnavailable
	}
	return textResponse(*text), nil
}
