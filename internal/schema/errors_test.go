package schema

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_IsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("turn failed: %w", NewError(KindWhitelist, "blocked", nil))
	if !errors.Is(err, ErrWhitelist) {
		t.Fatalf("expected errors.Is to match ErrWhitelist")
	}
	if errors.Is(err, ErrAuth) {
		t.Errorf("did not expect ErrAuth to match")
	}
	if got := KindOf(err); got != KindWhitelist {
		t.Errorf("KindOf = %q, want %q", got, KindWhitelist)
	}
}

func TestError_MessageIncludesCause(t *testing.T) {
	err := NewError(KindProvider, "claude request failed", errors.New("boom"))
	if got := err.Error(); got != "claude request failed: boom" {
		t.Errorf("unexpected message %q", got)
	}
	if !errors.Is(err, err.Err) {
		t.Errorf("expected Unwrap to expose the cause")
	}
}

func TestKindOf_Plain(t *testing.T) {
	if got := KindOf(errors.New("x")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
	if HostsOf(nil) != nil {
		t.Errorf("HostsOf(nil) should be nil")
	}
}

func TestUnifiedResponse_TextAndToolUses(t *testing.T) {
	resp := UnifiedResponse{Content: []ContentBlock{
		TextBlock("  hola  "),
		TextBlock(""),
		ToolUseBlock("t1", "search", nil),
		ToolUseBlock("t2", "", map[string]any{"q": 1}),
		TextBlock("mundo"),
	}}

	if got := resp.Text(); got != "hola\n\nmundo" {
		t.Errorf("Text() = %q", got)
	}
	uses := resp.ToolUses()
	if len(uses) != 1 {
		t.Fatalf("expected 1 tool use, got %d", len(uses))
	}
	if uses[0].Input == nil {
		t.Errorf("nil input should become an empty map")
	}
}

func TestMessages_PrependKeepsOrder(t *testing.T) {
	msgs := NewMessages(NewUserMessage("c"))
	msgs.Prepend(NewUserMessage("a"), NewUserMessage("b"))
	var got string
	for _, m := range msgs.Messages {
		got += m.Text
	}
	if got != "abc" {
		t.Errorf("order = %q, want abc", got)
	}
}
