package queue

import (
	"context"
	"testing"
)

func TestFilterOnJSONBody(t *testing.T) {
	q, _ := newTestQueue(t, NewFIFOPolicy(Options{}), Options{})

	mustSend(t, q, `{"type":"order","amount":5}`, SendOptions{}, t0)
	big := mustSend(t, q, `{"type":"order","amount":500}`, SendOptions{}, t0+1)

	msgs := mustReceive(t, q, ReceiveOptions{
		MaxMessages: 5,
		Filter:      `json.type == "order" && json.amount > 100.0`,
	}, t0+10)
	if len(msgs) != 1 || msgs[0].ID != big {
		t.Fatalf("want only %s, got %v", big, receivedIDs(msgs))
	}

	// the filtered-out message is untouched and still deliverable
	rest := mustReceive(t, q, ReceiveOptions{MaxMessages: 5}, t0+20)
	if len(rest) != 1 {
		t.Fatalf("filtered message lost")
	}
	if rest[0].Metadata.ReceivedCount != 1 {
		t.Fatalf("filtered message was leased: %+v", rest[0].Metadata)
	}
}

func TestFilterOnAttributes(t *testing.T) {
	q, _ := newTestQueue(t, NewFIFOPolicy(Options{}), Options{})

	g1 := mustSend(t, q, "a", SendOptions{MessageGroupID: "alpha"}, t0)
	mustSend(t, q, "b", SendOptions{MessageGroupID: "beta"}, t0+1)

	msgs := mustReceive(t, q, ReceiveOptions{
		MaxMessages: 5,
		Filter:      `group == "alpha"`,
	}, t0+10)
	if len(msgs) != 1 || msgs[0].ID != g1 {
		t.Fatalf("want only %s, got %v", g1, receivedIDs(msgs))
	}
}

func TestFilterNonJSONBodyExcludedByJSONExpr(t *testing.T) {
	q, _ := newTestQueue(t, NewFIFOPolicy(Options{}), Options{})

	mustSend(t, q, "plain text", SendOptions{}, t0)
	msgs := mustReceive(t, q, ReceiveOptions{Filter: `json.kind == "x"`}, t0+1)
	if len(msgs) != 0 {
		t.Fatalf("non-JSON body matched a json filter")
	}

	// body text remains filterable
	msgs = mustReceive(t, q, ReceiveOptions{Filter: `body.contains("plain")`}, t0+2)
	if len(msgs) != 1 {
		t.Fatalf("body filter missed plain text message")
	}
}

func TestFilterCompileErrors(t *testing.T) {
	q, _ := newTestQueue(t, NewFIFOPolicy(Options{}), Options{})
	mustSend(t, q, "x", SendOptions{}, t0)

	if _, err := q.ReceiveMessages(context.Background(), ReceiveOptions{Filter: `group ==`}, t0); err == nil {
		t.Fatalf("want compile error for malformed filter")
	}
	if _, err := q.ReceiveMessages(context.Background(), ReceiveOptions{Filter: `1 + 1`}, t0); err == nil {
		t.Fatalf("want error for non-boolean filter")
	}
}
