package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/netaai/neta-chat/internal/auth"
	"github.com/netaai/neta-chat/internal/chat"
	"github.com/netaai/neta-chat/internal/config"
	"github.com/netaai/neta-chat/internal/session"
	"github.com/netaai/neta-chat/internal/settings"
)

const help = `commands:
  /signup <email> <password> [username]   /login <email> <password>   /logout
  /new   /list   /open <n>   /search <text>   /pin <n>   /rename <n> <title>   /delete <n>
  /regen   /theme <light|dark|system>   /font <small|medium|large>   /settings   /quit
anything else is sent as a message; /image <url> <text> attaches an image`

type repl struct {
	ctx      context.Context
	cfg      config.Config
	identity *auth.Provider
	sessions *session.Store
	chats    *chat.Store
	svc      *chat.Service
	prefs    settings.Settings
	out      io.Writer

	mu      sync.Mutex
	printed int
}

func (r *repl) println(a ...any) { fmt.Fprintln(r.out, a...) }

// watchStreaming echoes the growing assistant reply as it arrives.
func (r *repl) watchStreaming(snap chat.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snap.Streaming == "" {
		if r.printed > 0 {
			fmt.Fprintln(r.out)
		}
		r.printed = 0
		return
	}
	if len(snap.Streaming) > r.printed {
		if r.printed == 0 {
			fmt.Fprint(r.out, "neta> ")
		}
		fmt.Fprint(r.out, snap.Streaming[r.printed:])
		r.printed = len(snap.Streaming)
	}
}

// onSession drops cached chats when the user changes.
func (r *repl) onSession(prev *string) func(session.State) {
	return func(st session.State) {
		var uid string
		if st.User != nil {
			uid = st.User.ID
		}
		if uid == *prev {
			return
		}
		*prev = uid
		r.chats.SetChats(nil)
		r.chats.SetCurrent(nil)
		r.chats.SetMessages(nil)
	}
}

func (r *repl) waitForUser(id string) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if uid, ok := r.sessions.UserID(); ok && uid == id {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func (r *repl) run(in io.Reader) {
	var prevUser string
	defer r.sessions.Subscribe(r.onSession(&prevUser))()
	defer r.chats.Subscribe(r.watchStreaming)()

	r.println("Neta.ai  (theme " + string(r.prefs.Theme) + ", font " + string(r.prefs.FontSize) + ")  /help for commands")

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || r.ctx.Err() != nil {
			return
		}
		if err := r.handle(line); err != nil {
			r.println("error:", err)
		}
	}
}

// chatAt resolves a 1-based index from the last listing.
func (r *repl) chatAt(arg string) (*chat.Chat, error) {
	n, err := strconv.Atoi(arg)
	list := r.chats.Chats()
	if err != nil || n < 1 || n > len(list) {
		return nil, fmt.Errorf("no chat #%s, try /list", arg)
	}
	c := list[n-1]
	return &c, nil
}

func (r *repl) handle(line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)
	ctx := r.ctx

	switch cmd {
	case "/help":
		r.println(help)
	case "/signup":
		if len(args) < 2 {
			return errors.New("usage: /signup <email> <password> [username]")
		}
		meta := map[string]any{}
		if len(args) > 2 {
			meta["username"] = args[2]
		}
		s, err := r.identity.SignUp(ctx, args[0], args[1], meta)
		if err != nil {
			return err
		}
		return r.afterSignIn(s)
	case "/login":
		if len(args) != 2 {
			return errors.New("usage: /login <email> <password>")
		}
		s, err := r.identity.SignInWithPassword(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return r.afterSignIn(s)
	case "/logout":
		return r.identity.SignOut(ctx)
	case "/new":
		c, err := r.svc.NewChat(ctx)
		if err != nil {
			return err
		}
		r.println("started", c.Title)
	case "/list":
		if err := r.svc.LoadChats(ctx); err != nil {
			return err
		}
		r.printChats()
	case "/search":
		if _, err := r.svc.SearchChats(ctx, rest); err != nil {
			return err
		}
		r.printChats()
	case "/open":
		c, err := r.chatAt(rest)
		if err != nil {
			return err
		}
		if err := r.svc.SelectChat(ctx, c); err != nil {
			return err
		}
		r.printMessages()
	case "/pin":
		c, err := r.chatAt(rest)
		if err != nil {
			return err
		}
		updated, err := r.svc.TogglePin(ctx, c.ID)
		if err != nil {
			return err
		}
		r.println("pinned:", updated.Pinned)
	case "/rename":
		if len(args) < 2 {
			return errors.New("usage: /rename <n> <title>")
		}
		c, err := r.chatAt(args[0])
		if err != nil {
			return err
		}
		title := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
		if _, err := r.svc.RenameChat(ctx, c.ID, title); err != nil {
			return err
		}
	case "/delete":
		c, err := r.chatAt(rest)
		if err != nil {
			return err
		}
		return r.svc.DeleteChat(ctx, c.ID)
	case "/regen":
		return r.reply(r.svc.Regenerate(ctx))
	case "/image":
		if len(args) < 2 {
			return errors.New("usage: /image <url> <text>")
		}
		text := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
		return r.reply(r.svc.Send(ctx, text, args[0]))
	case "/theme":
		t, err := settings.ParseTheme(rest)
		if err != nil {
			return err
		}
		r.prefs.Theme = t
		return settings.Save(r.cfg.SettingsPath, r.prefs)
	case "/font":
		f, err := settings.ParseFontSize(rest)
		if err != nil {
			return err
		}
		r.prefs.FontSize = f
		return settings.Save(r.cfg.SettingsPath, r.prefs)
	case "/settings":
		r.println("theme:", r.prefs.Theme, "font:", r.prefs.FontSize)
	default:
		if strings.HasPrefix(cmd, "/") {
			return fmt.Errorf("unknown command %s", cmd)
		}
		return r.reply(r.svc.Send(ctx, line, ""))
	}
	return nil
}

func (r *repl) afterSignIn(s *auth.Session) error {
	if !r.waitForUser(s.User.ID) {
		return errors.New("session did not become active")
	}
	r.println("signed in as", s.User.Username())
	if err := r.svc.LoadChats(r.ctx); err != nil {
		return err
	}
	r.printChats()
	return nil
}

// reply prints an image reply; streamed text has already been echoed.
func (r *repl) reply(err error) error {
	if err != nil {
		return err
	}
	msgs := r.chats.Messages()
	if n := len(msgs); n > 0 && msgs[n-1].Role == chat.RoleAssistant && msgs[n-1].Image() != "" {
		r.println("neta>", msgs[n-1].Content, msgs[n-1].Image())
	}
	return nil
}

func (r *repl) printChats() {
	list := r.chats.Chats()
	if len(list) == 0 {
		r.println("(no chats)")
		return
	}
	cur := r.chats.Current()
	for i, c := range list {
		mark := " "
		if cur != nil && cur.ID == c.ID {
			mark = "*"
		}
		pin := ""
		if c.Pinned {
			pin = " [pinned]"
		}
		r.println(fmt.Sprintf("%s%2d. %s%s", mark, i+1, c.Title, pin))
	}
}

func (r *repl) printMessages() {
	for _, m := range r.chats.Messages() {
		who := "you"
		if m.Role == chat.RoleAssistant {
			who = "neta"
		}
		line := who + "> " + m.Content
		if img := m.Image(); img != "" {
			line += " " + img
		}
		r.println(line)
	}
}
