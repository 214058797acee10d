package chat

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/netaai/neta-chat/internal/ai"
	"github.com/netaai/neta-chat/internal/observability"
)

// Completer streams an assistant reply for a chat history.
type Completer interface {
	StreamChat(ctx context.Context, chatID string, messages []ai.Message) (<-chan string, <-chan error)
}

// ImageGenerator renders a prompt and returns the image URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, chatID, prompt string) (string, error)
}

type Options struct {
	Classifier Classifier
	Activity   ActivityPublisher
	// SerializeSends queues overlapping sends to the same chat so their store
	// updates land in call order. Off by default.
	SerializeSends bool
}

// Service turns user intents into persisted messages and store updates.
type Service struct {
	repo       *Repo
	store      *Store
	completer  Completer
	images     ImageGenerator
	classifier Classifier
	activity   ActivityPublisher
	serialize  bool
	locks      chatLocks
}

func NewService(repo *Repo, store *Store, completer Completer, images ImageGenerator, opts Options) *Service {
	if opts.Classifier == nil {
		opts.Classifier = NewKeywordClassifier()
	}
	if opts.Activity == nil {
		opts.Activity = nopPublisher{}
	}
	return &Service{
		repo:       repo,
		store:      store,
		completer:  completer,
		images:     images,
		classifier: opts.Classifier,
		activity:   opts.Activity,
		serialize:  opts.SerializeSends,
		locks:      chatLocks{m: make(map[string]*chatLock)},
	}
}

const titleMaxRunes = 50

// TitleFromMessage derives a chat title from its first message.
func TitleFromMessage(content string) string {
	if utf8.RuneCountInString(content) <= titleMaxRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:titleMaxRunes]) + "..."
}

// LoadChats refreshes the chat list and activates the most recent chat when
// none is active.
func (s *Service) LoadChats(ctx context.Context) error {
	chats, err := s.repo.ListChats(ctx)
	if err != nil {
		return err
	}
	s.store.SetChats(chats)
	if len(chats) > 0 && s.store.Current() == nil {
		return s.SelectChat(ctx, &chats[0])
	}
	return nil
}

// SelectChat makes c the active chat and loads its messages; nil clears both.
func (s *Service) SelectChat(ctx context.Context, c *Chat) error {
	s.store.SetCurrent(c)
	if c == nil {
		s.store.SetMessages(nil)
		return nil
	}
	msgs, err := s.repo.ListMessages(ctx, c.ID)
	if err != nil {
		return err
	}
	s.store.SetMessages(msgs)
	return nil
}

func (s *Service) NewChat(ctx context.Context) (*Chat, error) {
	c, err := s.repo.CreateChat(ctx, DefaultTitle)
	if err != nil {
		return nil, err
	}
	s.store.SetCurrent(c)
	s.store.SetMessages(nil)
	s.store.PutChat(*c)
	return c, nil
}

func (s *Service) RenameChat(ctx context.Context, id, title string) (*Chat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	updated, err := s.repo.UpdateChat(ctx, id, ChatUpdate{Title: &title})
	if err != nil {
		return nil, err
	}
	s.store.PutChat(*updated)
	return updated, nil
}

func (s *Service) TogglePin(ctx context.Context, id string) (*Chat, error) {
	c, err := s.repo.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}
	pinned := !c.Pinned
	updated, err := s.repo.UpdateChat(ctx, id, ChatUpdate{Pinned: &pinned})
	if err != nil {
		return nil, err
	}
	s.store.PutChat(*updated)
	return updated, nil
}

func (s *Service) DeleteChat(ctx context.Context, id string) error {
	if err := s.repo.DeleteChat(ctx, id); err != nil {
		return err
	}
	s.store.RemoveChat(id)
	s.publish(ctx, Activity{Type: ActivityChatDeleted, ChatID: id})
	return nil
}

func (s *Service) SearchChats(ctx context.Context, query string) ([]Chat, error) {
	chats, err := s.repo.SearchChats(ctx, query)
	if err != nil {
		return nil, err
	}
	s.store.SetChats(chats)
	return chats, nil
}

// Send persists the user's message and produces the assistant reply, either
// an image or a streamed completion. On failure whatever was already stored
// stays stored.
func (s *Service) Send(ctx context.Context, content, imageURL string) error {
	chat := s.store.Current()
	if chat == nil {
		c, err := s.repo.CreateChat(ctx, DefaultTitle)
		if err != nil {
			return err
		}
		s.store.SetCurrent(c)
		s.store.SetMessages(nil)
		s.store.PutChat(*c)
		chat = c
	}

	if s.serialize {
		unlock := s.locks.lock(chat.ID)
		defer unlock()
	}
	defer s.store.SetStreaming("")

	log := observability.LoggerFromContext(ctx).With("chat_id", chat.ID)
	intent := s.classifier.Classify(content)
	history := s.store.Messages()

	userMsg, err := s.repo.CreateMessage(ctx, chat.ID, RoleUser, content, imageURL)
	if err != nil {
		return err
	}
	s.store.AddMessage(*userMsg)
	s.publishMessage(ctx, userMsg)

	if len(history) == 0 {
		if title := TitleFromMessage(content); strings.TrimSpace(title) != "" {
			updated, err := s.repo.UpdateChat(ctx, chat.ID, ChatUpdate{Title: &title})
			if err != nil {
				return err
			}
			s.store.PutChat(*updated)
		}
	}

	log.Debug("dispatching message", "intent", intent.String())
	if intent == IntentImage {
		return s.replyWithImage(ctx, chat.ID, content)
	}
	return s.replyWithCompletion(ctx, chat.ID, history, content)
}

func (s *Service) replyWithImage(ctx context.Context, chatID, prompt string) error {
	url, err := s.images.GenerateImage(ctx, chatID, prompt)
	if err != nil {
		return err
	}
	msg, err := s.repo.CreateMessage(ctx, chatID, RoleAssistant, ImageCaption, url)
	if err != nil {
		return err
	}
	s.store.AddMessage(*msg)
	s.publishMessage(ctx, msg)
	return nil
}

func (s *Service) replyWithCompletion(ctx context.Context, chatID string, history []Message, content string) error {
	wire := make([]ai.Message, 0, len(history)+1)
	for _, m := range history {
		wire = append(wire, ai.Message{Role: m.Role, Content: m.Content})
	}
	wire = append(wire, ai.Message{Role: RoleUser, Content: content})

	chunks, errs := s.completer.StreamChat(ctx, chatID, wire)

	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
		s.store.SetStreaming(b.String())
	}
	if err := <-errs; err != nil {
		return err
	}

	reply := b.String()
	if reply == "" {
		observability.LoggerFromContext(ctx).Info("completion stream ended without content", "chat_id", chatID)
		return nil
	}

	msg, err := s.repo.CreateMessage(ctx, chatID, RoleAssistant, reply, "")
	if err != nil {
		return err
	}
	s.store.AddMessage(*msg)
	s.publishMessage(ctx, msg)
	return nil
}

// Regenerate drops a trailing assistant reply and sends the latest user
// message again. A failed delete aborts before anything is re-sent.
func (s *Service) Regenerate(ctx context.Context) error {
	msgs := s.store.Messages()
	if len(msgs) < 2 {
		return ErrNothingToRegenerate
	}

	var lastUser *Message
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			lastUser = &msgs[i]
			break
		}
	}
	if lastUser == nil {
		return ErrNothingToRegenerate
	}

	if last := msgs[len(msgs)-1]; last.Role == RoleAssistant {
		if err := s.repo.DeleteMessage(ctx, last.ID); err != nil {
			return err
		}
		s.store.DeleteMessage(last.ID)
	}

	return s.Send(ctx, lastUser.Content, lastUser.Image())
}

func (s *Service) publishMessage(ctx context.Context, m *Message) {
	s.publish(ctx, Activity{
		Type:      ActivityMessageCreated,
		ChatID:    m.ChatID,
		MessageID: m.ID,
		Role:      m.Role,
		At:        m.CreatedAt,
	})
}

func (s *Service) publish(ctx context.Context, a Activity) {
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}
	if a.UserID == "" {
		a.UserID, _ = s.repo.currentUser()
	}
	if err := s.activity.Publish(ctx, a); err != nil {
		observability.LoggerFromContext(ctx).Warn("activity publish failed",
			"type", a.Type, "chat_id", a.ChatID, "err", err)
	}
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

// chatLocks hands out one mutex per chat id and forgets it when unused.
type chatLocks struct {
	mu sync.Mutex
	m  map[string]*chatLock
}

func (l *chatLocks) lock(id string) func() {
	l.mu.Lock()
	cl, ok := l.m[id]
	if !ok {
		cl = &chatLock{}
		l.m[id] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()
		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}
