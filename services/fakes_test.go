package services

import (
	"context"
	"sort"
	"sync"
	"time"
)

type fakeStorage struct {
	mu        sync.Mutex
	uploaded  map[string][]byte
	removed   []string
	uploadErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}}
}

func (f *fakeStorage) Upload(_ context.Context, objectPath string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploaded[objectPath] = data
	return "https://x.supabase.co/storage/v1/object/public/companion-pdfs/" + objectPath, nil
}

func (f *fakeStorage) Remove(_ context.Context, objectPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, objectPath)
	delete(f.uploaded, objectPath)
	return nil
}

type fakeFetcher struct {
	transcripts map[string]string
	err         error
	calls       []string
}

func (f *fakeFetcher) FetchTranscript(_ context.Context, callID string) (string, error) {
	f.calls = append(f.calls, callID)
	if f.err != nil {
		return "", f.err
	}
	t, ok := f.transcripts[callID]
	if !ok || t == "" {
		return "", ErrTranscriptUnavailable
	}
	return t, nil
}

type fakeLLM struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeLLM) GenerateText(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

type fakeCallLister struct {
	calls   []VapiCall
	err     error
	sinces  []time.Time
	befores []time.Time
}

// ListCalls lọc theo khoảng thời gian và trả mới nhất trước như Vapi
func (f *fakeCallLister) ListCalls(_ context.Context, since, before time.Time, limit int) ([]VapiCall, error) {
	f.sinces = append(f.sinces, since)
	f.befores = append(f.befores, before)
	if f.err != nil {
		return nil, f.err
	}
	var out []VapiCall
	for _, c := range f.calls {
		if !c.CreatedAt.After(since) {
			continue
		}
		if !before.IsZero() && !c.CreatedAt.Before(before) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	users  []string
}

func (p *recordingPublisher) Publish(userID string, event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, userID)
	p.events = append(p.events, event)
}
