package objectstore

import (
	"context"
	"testing"
)

func TestRewriteHostPreservesPathAndQuery(t *testing.T) {
	got := rewriteHost("https://cdn.example.com", "https://bucket.s3.amazonaws.com/transfers/sess-1/file?X-Amz-Signature=abc")
	want := "https://cdn.example.com/transfers/sess-1/file?X-Amz-Signature=abc"
	if got != want {
		t.Fatalf("rewriteHost() = %q, want %q", got, want)
	}
}

func TestRewriteHostNoopWhenPublicBaseURLEmpty(t *testing.T) {
	signed := "https://bucket.s3.amazonaws.com/key?sig=abc"
	if got := rewriteHost("", signed); got != signed {
		t.Fatalf("rewriteHost() = %q, want unchanged %q", got, signed)
	}
}

func TestRewriteHostMalformedURLReturnsUnchanged(t *testing.T) {
	malformed := "not-a-url"
	if got := rewriteHost("https://cdn.example.com", malformed); got != malformed {
		t.Fatalf("rewriteHost() = %q, want unchanged %q", got, malformed)
	}
}

func TestOpenRejectsUnknownProvider(t *testing.T) {
	if _, err := Open(context.Background(), Config{Provider: "dropbox"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
