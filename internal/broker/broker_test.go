package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mcbe-gateway/agent-gateway/pkg/models"
)

func TestSubmitRequestOrdersByPriorityThenSequence(t *testing.T) {
	b := New(nil, 0, 0)

	if err := b.SubmitRequest("conn-a", models.ChatRequest{Content: "low prio, first"}, 5); err != nil {
		t.Fatalf("SubmitRequest() error = %v", err)
	}
	if err := b.SubmitRequest("conn-b", models.ChatRequest{Content: "high prio"}, 1); err != nil {
		t.Fatalf("SubmitRequest() error = %v", err)
	}
	if err := b.SubmitRequest("conn-a", models.ChatRequest{Content: "low prio, second"}, 5); err != nil {
		t.Fatalf("SubmitRequest() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, err := b.GetRequest(ctx)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if first.ConnectionID != "conn-b" {
		t.Fatalf("first envelope connection = %q, want conn-b (lowest priority)", first.ConnectionID)
	}

	second, err := b.GetRequest(ctx)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if second.Payload.Content != "low prio, first" {
		t.Fatalf("second envelope content = %q, want tie-break by sequence", second.Payload.Content)
	}

	third, err := b.GetRequest(ctx)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if third.Payload.Content != "low prio, second" {
		t.Fatalf("third envelope content = %q, want tie-break by sequence", third.Payload.Content)
	}
}

func TestSubmitRequestQueueFull(t *testing.T) {
	b := New(nil, 1, 0)
	if err := b.SubmitRequest("conn-a", models.ChatRequest{}, 0); err != nil {
		t.Fatalf("SubmitRequest() error = %v", err)
	}
	if err := b.SubmitRequest("conn-a", models.ChatRequest{}, 0); err != ErrQueueFull {
		t.Fatalf("SubmitRequest() error = %v, want ErrQueueFull", err)
	}
}

func TestGetRequestBlocksUntilCancelled(t *testing.T) {
	b := New(nil, 0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.GetRequest(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("GetRequest() error = %v, want DeadlineExceeded", err)
	}
}

func TestRegisterConnectionIdempotent(t *testing.T) {
	b := New(nil, 0, 0)
	ch1 := b.RegisterConnection("conn-a")
	ch2 := b.RegisterConnection("conn-a")
	if ch1 != ch2 {
		t.Fatal("RegisterConnection() should return the existing channel on a duplicate id")
	}
}

func TestSendResponseUnknownConnection(t *testing.T) {
	b := New(nil, 0, 0)
	if b.SendResponse("ghost", models.ResponseItem{}) {
		t.Fatal("SendResponse() should return false for an unregistered connection")
	}
}

func TestSendResponseDeliversToRegisteredConnection(t *testing.T) {
	b := New(nil, 0, 4)
	respCh := b.RegisterConnection("conn-a")

	if !b.SendResponse("conn-a", models.ResponseItem{Command: "say hi"}) {
		t.Fatal("SendResponse() should return true for a registered connection")
	}

	select {
	case item := <-respCh:
		if item.Command != "say hi" {
			t.Fatalf("received item.Command = %q, want %q", item.Command, "say hi")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response delivery")
	}
}

func TestUnregisterConnectionResolvesOutstandingFutures(t *testing.T) {
	b := New(nil, 0, 4)
	b.RegisterConnection("conn-a")

	future := models.NewCommandFuture()
	if !b.SendResponse("conn-a", models.ResponseItem{ResultFuture: future}) {
		t.Fatal("SendResponse() should succeed before unregister")
	}

	b.UnregisterConnection("conn-a")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, ok := future.Wait(ctx)
	if !ok || result != "" {
		t.Fatalf("future.Wait() = (%q, %v), want (\"\", true) after unregister", result, ok)
	}
}

func TestUnregisterConnectionThenSendResponseFails(t *testing.T) {
	b := New(nil, 0, 0)
	b.RegisterConnection("conn-a")
	b.UnregisterConnection("conn-a")

	if b.SendResponse("conn-a", models.ResponseItem{}) {
		t.Fatal("SendResponse() should fail once the connection is unregistered")
	}
}

func TestConcurrentSendResponseDuringUnregisterNeverPanics(t *testing.T) {
	for i := 0; i < 200; i++ {
		b := New(nil, 0, 4)
		b.RegisterConnection("conn-a")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				b.SendResponse("conn-a", models.ResponseItem{})
			}
		}()
		go func() {
			defer wg.Done()
			b.UnregisterConnection("conn-a")
		}()
		wg.Wait()
	}
}

func TestConnectionLockSerializesAcrossWorkers(t *testing.T) {
	b := New(nil, 0, 0)
	b.RegisterConnection("conn-a")
	lock, ok := b.GetConnectionLock("conn-a")
	if !ok {
		t.Fatal("GetConnectionLock() should find the registered connection")
	}

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			lock.Lock()
			defer lock.Unlock()
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(order) != 5 {
		t.Fatalf("len(order) = %d, want 5", len(order))
	}
}

func TestConversationHistoryValueSemantics(t *testing.T) {
	b := New(nil, 0, 0)
	b.RegisterConnection("conn-a")

	original := []models.ModelMessage{
		{Parts: []models.MessagePart{{Kind: models.PartUserPrompt, Content: "hello"}}},
	}
	if !b.SetConversationHistory("conn-a", original) {
		t.Fatal("SetConversationHistory() should succeed for a registered connection")
	}

	got, ok := b.GetConversationHistory("conn-a")
	if !ok {
		t.Fatal("GetConversationHistory() should find the registered connection")
	}
	got[0].Parts[0].Content = "mutated"

	reread, _ := b.GetConversationHistory("conn-a")
	if reread[0].Parts[0].Content != "hello" {
		t.Fatalf("mutating a returned history copy affected the stored history: %q", reread[0].Parts[0].Content)
	}

	original[0].Parts[0].Content = "also mutated"
	reread2, _ := b.GetConversationHistory("conn-a")
	if reread2[0].Parts[0].Content != "hello" {
		t.Fatalf("mutating the caller's slice after Set affected the stored history: %q", reread2[0].Parts[0].Content)
	}
}

func TestClearConversationHistory(t *testing.T) {
	b := New(nil, 0, 0)
	b.RegisterConnection("conn-a")
	b.SetConversationHistory("conn-a", []models.ModelMessage{{Parts: []models.MessagePart{{Kind: models.PartText, Content: "x"}}}})

	if !b.ClearConversationHistory("conn-a") {
		t.Fatal("ClearConversationHistory() should succeed for a registered connection")
	}
	got, _ := b.GetConversationHistory("conn-a")
	if len(got) != 0 {
		t.Fatalf("history after clear = %v, want empty", got)
	}
}

func TestConversationHistoryUnknownConnection(t *testing.T) {
	b := New(nil, 0, 0)
	if _, ok := b.GetConversationHistory("ghost"); ok {
		t.Fatal("GetConversationHistory() should fail for an unregistered connection")
	}
	if b.SetConversationHistory("ghost", nil) {
		t.Fatal("SetConversationHistory() should fail for an unregistered connection")
	}
}
