package service

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
)

// fakeUpstream records calls and serves canned responses keyed by path.
type fakeUpstream struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	handler   func(path string, params url.Values) (json.RawMessage, error)
	calls     []fakeCall
}

type fakeCall struct {
	path   string
	params url.Values
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		responses: map[string]string{},
		errs:      map[string]error{},
	}
}

func (f *fakeUpstream) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{path: path, params: params})
	f.mu.Unlock()

	if f.handler != nil {
		return f.handler(path, params)
	}
	if err, ok := f.errs[path]; ok {
		return nil, err
	}
	if body, ok := f.responses[path]; ok {
		return json.RawMessage(body), nil
	}
	return json.RawMessage(`{}`), nil
}

func (f *fakeUpstream) GetConfig(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	return f.Get(ctx, "config/"+path, params)
}

func (f *fakeUpstream) RequestCount() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.calls))
}

func (f *fakeUpstream) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeUpstream) callPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, len(f.calls))
	for i, call := range f.calls {
		paths[i] = call.path
	}
	return paths
}
