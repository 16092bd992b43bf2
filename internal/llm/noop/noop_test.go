package noop

import (
	"context"
	"testing"

	"llm-dealer/internal/decision"
	"llm-dealer/internal/types"
)

func TestNoopRepliesHold(t *testing.T) {
	out, err := NewModel().Generate(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	d, err := decision.Parse(out)
	if err != nil {
		t.Fatalf("Expected parseable reply, got %v", err)
	}
	if d.Action != types.ActionHold || d.Quantity.Count() != 1 {
		t.Errorf("Expected hold 1, got %s", d.Instruction())
	}
}
