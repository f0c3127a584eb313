package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookNotify(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL)
	res := w.Notify(context.Background(), Message{
		Title:    "agent stuck",
		Agent:    "nux",
		Severity: "warning",
		Body:     "no signal for 12m",
		SentAt:   time.Now(),
	})
	if !res.OK {
		t.Fatalf("result not OK: %v", res.Err)
	}
	if res.Elapsed <= 0 {
		t.Error("elapsed not recorded")
	}
	if got.Agent != "nux" || got.Title != "agent stuck" {
		t.Errorf("server saw %+v", got)
	}
}

func TestWebhookNon2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	res := NewWebhook(srv.URL).Notify(context.Background(), Message{Title: "x"})
	if res.OK {
		t.Fatal("result OK for 502 response")
	}
	if res.Err == nil {
		t.Fatal("no error recorded")
	}
}

func TestWebhookUnreachableFailsWithoutPanic(t *testing.T) {
	res := NewWebhook("http://127.0.0.1:1/hook").Notify(context.Background(), Message{Title: "x"})
	if res.OK || res.Err == nil {
		t.Fatalf("got %+v, want failure", res)
	}
}

type fakeChannel struct {
	name  string
	err   error
	calls int
}

func (f *fakeChannel) Name() string { return f.name }
func (f *fakeChannel) Notify(ctx context.Context, msg Message) Result {
	f.calls++
	return Result{Channel: f.name, OK: f.err == nil, Err: f.err}
}

func TestFanoutDeliversToAllChannels(t *testing.T) {
	a := &fakeChannel{name: "a"}
	b := &fakeChannel{name: "b", err: fmt.Errorf("channel down")}
	c := &fakeChannel{name: "c"}
	f := NewFanout(slog.Default(), a, b, c)

	res := f.Notify(context.Background(), Message{Title: "x"})
	if a.calls != 1 || b.calls != 1 || c.calls != 1 {
		t.Errorf("calls = %d %d %d, want one each", a.calls, b.calls, c.calls)
	}
	// One failed channel fails the aggregate but never blocks the others.
	if res.OK {
		t.Error("aggregate OK despite channel failure")
	}
	if res.Err == nil {
		t.Error("first failure not carried")
	}
}

func TestFanoutAllOK(t *testing.T) {
	f := NewFanout(slog.Default(), &fakeChannel{name: "a"}, &fakeChannel{name: "b"})
	res := f.Notify(context.Background(), Message{Title: "x"})
	if !res.OK || res.Err != nil {
		t.Fatalf("got %+v", res)
	}
}

func TestLogNotifierAlwaysSucceeds(t *testing.T) {
	n := &LogNotifier{}
	res := n.Notify(context.Background(), Message{Title: "agent stuck", Agent: "nux"})
	if !res.OK {
		t.Fatalf("got %+v", res)
	}
}
