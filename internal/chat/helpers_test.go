package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/netaai/neta-chat/internal/ai"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Chat{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// scriptedCompleter replays fixed chunks and records the history it was given.
type scriptedCompleter struct {
	mu     sync.Mutex
	chunks []string
	err    error
	calls  int
	last   []ai.Message
}

func (c *scriptedCompleter) StreamChat(ctx context.Context, chatID string, messages []ai.Message) (<-chan string, <-chan error) {
	c.mu.Lock()
	c.calls++
	c.last = append([]ai.Message(nil), messages...)
	chunks, fail := append([]string(nil), c.chunks...), c.err
	c.mu.Unlock()

	out := make(chan string, len(chunks))
	errs := make(chan error, 1)
	for _, ch := range chunks {
		out <- ch
	}
	close(out)
	if fail != nil {
		errs <- fail
	}
	close(errs)
	return out, errs
}

func (c *scriptedCompleter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeImages struct {
	url     string
	err     error
	prompts []string
}

func (f *fakeImages) GenerateImage(ctx context.Context, chatID, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	seen []Activity
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, a Activity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, a)
	return p.err
}

type fixture struct {
	db        *gorm.DB
	repo      *Repo
	store     *Store
	completer *scriptedCompleter
	images    *fakeImages
	activity  *recordingPublisher
	svc       *Service
}

func newFixture(t *testing.T, chunks ...string) *fixture {
	t.Helper()
	db := openTestDB(t)
	f := &fixture{
		db:        db,
		repo:      NewRepo(db, FixedUser("user-1")),
		store:     NewStore(),
		completer: &scriptedCompleter{chunks: chunks},
		images:    &fakeImages{url: "https://media.example/cat.png"},
		activity:  &recordingPublisher{},
	}
	f.svc = NewService(f.repo, f.store, f.completer, f.images, Options{Activity: f.activity})
	return f
}
