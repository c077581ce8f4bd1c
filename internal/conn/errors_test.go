package conn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"pg auth", errors.New("FATAL: password authentication failed for user \"x\""), ClassAuth},
		{"mysql auth", errors.New("Access denied for user 'root'@'localhost'"), ClassAuth},
		{"refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), ClassNetwork},
		{"dns", errors.New("lookup dbhost: no such host"), ClassNetwork},
		{"timeout", errors.New("read tcp 10.0.0.1:5432: i/o timeout"), ClassNetwork},
		{"cancelled", context.Canceled, ClassCancelled},
		{"wrapped cancel", fmt.Errorf("query: %w", context.Canceled), ClassCancelled},
		{"unknown", errors.New("something odd"), ClassDriver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, "connect", ClassDriver)
			if got.Class != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got.Class, tt.want)
			}
		})
	}
}

func TestClassifyPreservesExistingClass(t *testing.T) {
	orig := newError(ClassAuth, "connect", errors.New("connection refused"))
	got := Classify(fmt.Errorf("retry: %w", orig), "connect", ClassDriver)
	if got.Class != ClassAuth {
		t.Fatalf("class = %v, want pre-assigned auth", got.Class)
	}
}

func TestErrorIsMatchesByClass(t *testing.T) {
	err := fmt.Errorf("outer: %w", newError(ClassBusy, "execute", errors.New("running")))
	if !errors.Is(err, ErrBusy) {
		t.Fatal("busy error did not match ErrBusy")
	}
	if errors.Is(err, ErrCancelled) {
		t.Fatal("busy error matched ErrCancelled")
	}
}

func TestScrub(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			"connect failed: host=db password=hunter2 dbname=app",
			"connect failed: host=db password=***** dbname=app",
		},
		{
			"parse \"postgres://app:hunter2@db:5432/app\": bad port",
			"parse \"postgres://app:*****@db:5432/app\": bad port",
		},
		{
			"PWD=secret; server=db",
			"PWD=*****; server=db",
		},
		{
			"no credentials here",
			"no credentials here",
		},
	}

	for _, tt := range tests {
		if got := Scrub(tt.in); got != tt.want {
			t.Errorf("Scrub(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestErrorTextIsScrubbed(t *testing.T) {
	err := newError(ClassNetwork, "connect", errors.New("dial postgres://app:hunter2@db failed"))
	if s := err.Error(); strings.Contains(s, "hunter2") {
		t.Fatalf("credential leaked in %q", s)
	}
}
