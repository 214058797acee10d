package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/netaai/neta-chat/internal/activity"
	"github.com/netaai/neta-chat/internal/chat"
	"gorm.io/gorm"
)

type fakeDelivery struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (d *fakeDelivery) Ack(bool) error {
	d.acked = true
	return nil
}

func (d *fakeDelivery) Nack(_ bool, requeue bool) error {
	d.nacked, d.requeue = true, requeue
	return nil
}

func newLog(t *testing.T) *activity.Log {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&activity.Entry{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return activity.NewLog(db)
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestHandle_RecordsAfterShutdownStarts(t *testing.T) {
	l := newLog(t)
	body, _ := json.Marshal(chat.Activity{
		Type:   chat.ActivityMessageCreated,
		UserID: "u1",
		ChatID: "c1",
		At:     time.Now().UTC(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &fakeDelivery{}
	handle(ctx, quiet, l, body, d)
	if !d.acked || d.nacked {
		t.Fatalf("expected ack, got %+v", d)
	}

	entries, err := l.Recent(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 || entries[0].ChatID != "c1" {
		t.Fatalf("expected the entry to be stored, got %+v", entries)
	}
}

func TestHandle_BadPayloadGoesToDeadLetter(t *testing.T) {
	d := &fakeDelivery{}
	handle(context.Background(), quiet, newLog(t), []byte(`{"type":""}`), d)
	if d.acked || !d.nacked || d.requeue {
		t.Fatalf("expected nack without requeue, got %+v", d)
	}
}
