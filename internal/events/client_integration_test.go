//go:build integration

package events

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"
)

func skipWithoutNATS(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	return url
}

func TestIntegration_PubSub(t *testing.T) {
	natsURL := skipWithoutNATS(t)
	logger := slog.Default()

	client, err := NewClient(natsURL, os.Getenv("NATS_TOKEN"), logger)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	received := make(chan PhrasesExtracted, 1)

	err = client.Subscribe(SubjectPhrasesExtracted, func(subject string, data []byte) {
		var msg PhrasesExtracted
		json.Unmarshal(data, &msg)
		received <- msg
	})
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	sent := PhrasesExtracted{
		TenantID:  "integration-test-tenant",
		Inserted:  2,
		Updated:   1,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := client.Publish(SubjectPhrasesExtracted, sent); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	select {
	case got := <-received:
		if got.TenantID != sent.TenantID || got.Inserted != 2 || got.Updated != 1 {
			t.Errorf("unexpected payload: %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}
