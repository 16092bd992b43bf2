// Package decision extracts a trade decision from free-form model output.
package decision

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"llm-dealer/internal/logger"
	"llm-dealer/internal/types"
)

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ParseError means no usable JSON block was found.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse decision: " + e.Reason
}

// ValidationError means the JSON block was found but its content is invalid.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate decision: %s %s", e.Field, e.Reason)
}

// Parse reads the first ```json fenced block of raw. The block must be an
// object with string fields trade_instruction and next_message. The
// instruction is "<action> [quantity|all]"; a missing, unparsable or
// non-positive quantity means 1.
func Parse(raw string) (types.Decision, error) {
	m := fencedJSON.FindStringSubmatch(raw)
	if m == nil {
		return types.Decision{}, &ParseError{Reason: "no ```json block in response"}
	}
	body := m[1]
	if !gjson.Valid(body) {
		return types.Decision{}, &ParseError{Reason: "fenced block is not valid JSON"}
	}
	doc := gjson.Parse(body)
	if !doc.IsObject() {
		return types.Decision{}, &ParseError{Reason: "fenced block is not a JSON object"}
	}

	instr := doc.Get("trade_instruction")
	if !instr.Exists() {
		return types.Decision{}, &ValidationError{Field: "trade_instruction", Reason: "is missing"}
	}
	if instr.Type != gjson.String {
		return types.Decision{}, &ValidationError{Field: "trade_instruction", Reason: "is not a string"}
	}
	next := doc.Get("next_message")
	if !next.Exists() {
		return types.Decision{}, &ValidationError{Field: "next_message", Reason: "is missing"}
	}
	if next.Type != gjson.String {
		return types.Decision{}, &ValidationError{Field: "next_message", Reason: "is not a string"}
	}

	action, qty, err := ParseInstruction(instr.String())
	if err != nil {
		return types.Decision{}, err
	}
	return types.Decision{Action: action, Quantity: qty, NextMessage: next.String()}, nil
}

// ParseInstruction splits "<action> [quantity|all]".
func ParseInstruction(s string) (types.Action, types.Quantity, error) {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return "", types.Quantity{}, &ValidationError{Field: "trade_instruction", Reason: "is empty"}
	}
	action := types.Action(strings.ToLower(parts[0]))
	if !action.Valid() {
		return "", types.Quantity{}, &ValidationError{Field: "trade_instruction", Reason: fmt.Sprintf("has unknown action %q", parts[0])}
	}
	if len(parts) < 2 {
		return action, types.Count(1), nil
	}
	if strings.EqualFold(parts[1], "all") {
		return action, types.All(), nil
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n <= 0 {
		return action, types.Count(1), nil
	}
	return action, types.Count(n), nil
}

// ParseOrDefault logs any parse failure and returns the safe default.
// ok is false when the default was substituted.
func ParseOrDefault(ctx context.Context, raw string) (d types.Decision, ok bool) {
	d, err := Parse(raw)
	if err != nil {
		logger.ErrorWithErr(ctx, "Could not parse model decision, holding", err, "response_chars", len(raw))
		return types.SafeDecision(), false
	}
	return d, true
}
