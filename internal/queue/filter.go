package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/cel-go/cel"
)

// receiveFilter evaluates a CEL expression against receive candidates.
// Exposed variables:
//
//	id             string  message id
//	body           string  body as UTF-8 text
//	json           dyn     body parsed as JSON (null when not valid JSON)
//	group          string  message group id
//	priority       int     priority attribute
//	delay_seconds  int     delay attribute
//	received_count int     times the message has been leased
//	sent_at_ms     int     send timestamp, Unix milliseconds
//	now_ms         int     evaluation timestamp, Unix milliseconds
type receiveFilter struct {
	prog cel.Program
}

func newReceiveFilter(expr string) (*receiveFilter, error) {
	if expr == "" {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("body", cel.StringType),
		cel.Variable("json", cel.DynType),
		cel.Variable("group", cel.StringType),
		cel.Variable("priority", cel.IntType),
		cel.Variable("delay_seconds", cel.IntType),
		cel.Variable("received_count", cel.IntType),
		cel.Variable("sent_at_ms", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("queue: filter env: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("queue: compile filter: %w", iss.Err())
	}
	if ast.OutputType().String() != cel.BoolType.String() {
		return nil, fmt.Errorf("queue: filter must evaluate to bool, got %s", ast.OutputType())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("queue: filter program: %w", err)
	}
	return &receiveFilter{prog: prog}, nil
}

// matches reports whether the message passes the filter. Evaluation errors
// exclude the message rather than failing the receive.
func (f *receiveFilter) matches(msg *Message, nowMs int64) bool {
	if f == nil {
		return true
	}
	var parsed interface{}
	if err := json.Unmarshal(msg.Body, &parsed); err != nil {
		parsed = nil
	}
	out, _, err := f.prog.Eval(map[string]interface{}{
		"id":             msg.ID,
		"body":           string(msg.Body),
		"json":           parsed,
		"group":          msg.Attributes.MessageGroupID,
		"priority":       msg.Attributes.Priority,
		"delay_seconds":  msg.Attributes.DelaySeconds,
		"received_count": msg.Metadata.ReceivedCount,
		"sent_at_ms":     msg.Metadata.SentAtMs,
		"now_ms":         nowMs,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
