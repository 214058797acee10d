package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/netaai/neta-chat/internal/ai"
	"github.com/netaai/neta-chat/internal/chat"
	"github.com/netaai/neta-chat/internal/common"
	"github.com/netaai/neta-chat/internal/httpapi/middleware"
	"github.com/netaai/neta-chat/internal/observability"
)

const systemPrompt = `You are Neta.ai, an AI assistant specialized in e-commerce education and business growth. You help users with:
- Business strategies and market analysis
- E-commerce operations and optimization
- Brand building and marketing
- Business models and revenue strategies
- Market research and competitor analysis
- Product development and positioning

You provide expert guidance, actionable insights, and step-by-step strategies. You can also help with general tasks like writing, coding, learning, and creative work. Always be helpful, clear, and professional.`

type completionReq struct {
	Messages []ai.Message `json:"messages"`
	ChatID   string       `json:"chatId"`
}

type imageReq struct {
	Prompt string `json:"prompt"`
	ChatID string `json:"chatId"`
}

// upstreamText prefers the raw upstream body over the wrapped error text.
func upstreamText(err error) string {
	var re *ai.RemoteError
	if errors.As(err, &re) && re.Body != "" {
		return re.Body
	}
	return err.Error()
}

// bufferedReply asks the upstream for the whole reply and hands it on as a
// single chunk.
func bufferedReply(ctx context.Context, p ai.Provider, messages []ai.Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 1)
	errs := make(chan error, 1)
	reply, err := p.Chat(ctx, messages)
	switch {
	case err != nil:
		errs <- err
	case reply != "":
		chunks <- reply
	}
	close(chunks)
	close(errs)
	return chunks, errs
}

// ChatCompletion streams the assistant reply for a chat the caller owns as
// OpenAI-style delta frames.
func (h *Handler) ChatCompletion(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.FunctionError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req completionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FunctionError(c, http.StatusBadRequest, "invalid json")
		return
	}

	ctx := c.Request.Context()
	log := observability.LoggerFromContext(ctx).With("user_id", uid, "chat_id", req.ChatID)

	repo := chat.NewRepo(h.DB, chat.FixedUser(uid))
	if _, err := repo.GetChat(ctx, req.ChatID); err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			common.FunctionError(c, http.StatusForbidden, "Unauthorized access to chat")
			return
		}
		log.Error("chat fetch failed", "err", err)
		common.FunctionError(c, http.StatusForbidden, "Chat error: "+err.Error())
		return
	}

	p, err := h.provider(ctx)
	if err != nil {
		common.FunctionError(c, http.StatusInternalServerError, err.Error())
		return
	}

	messages := make([]ai.Message, 0, len(req.Messages)+1)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: systemPrompt})
	messages = append(messages, req.Messages...)

	var chunks <-chan string
	var errs <-chan error
	if sp, ok := p.(ai.StreamProvider); ok && h.Cfg.UpstreamStreaming {
		chunks, errs = sp.StreamChat(ctx, messages)
	} else {
		chunks, errs = bufferedReply(ctx, p, messages)
	}

	// Hold the status until the upstream has either produced something or failed.
	first, more := <-chunks
	if !more {
		if err := <-errs; err != nil {
			log.Error("upstream completion failed", "err", err)
			common.FunctionError(c, http.StatusInternalServerError, "AI service error: "+upstreamText(err))
			return
		}
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	write := func(delta string) bool {
		if err := ai.WriteDelta(c.Writer, delta); err != nil {
			return false
		}
		c.Writer.Flush()
		return true
	}

	if more && !write(first) {
		return
	}
	for delta := range chunks {
		if !write(delta) {
			return
		}
	}
	if err := <-errs; err != nil {
		// no [DONE]: the client keeps what it already received
		log.Warn("completion stream ended early", "err", err)
		return
	}
	_ = ai.WriteDone(c.Writer)
	c.Writer.Flush()
}

// decodeDataURL splits "data:<type>;base64,<payload>".
func decodeDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, errors.New("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("data url has no payload")
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, errors.New("data url is not base64")
	}
	if contentType == "" {
		contentType = "image/png"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	return contentType, data, nil
}

// GenerateImage renders a prompt, stores the picture and returns a URL for it.
// When storing fails the data URL itself is returned.
func (h *Handler) GenerateImage(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.FunctionError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req imageReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		common.FunctionError(c, http.StatusBadRequest, "Prompt is required")
		return
	}

	ctx := c.Request.Context()
	log := observability.LoggerFromContext(ctx).With("user_id", uid, "chat_id", req.ChatID)

	p, err := h.provider(ctx)
	if err != nil {
		common.FunctionError(c, http.StatusInternalServerError, err.Error())
		return
	}
	ip, ok := p.(ai.ImageProvider)
	if !ok {
		common.FunctionError(c, http.StatusInternalServerError,
			fmt.Sprintf("provider %s does not support image generation", h.Cfg.AIProvider))
		return
	}

	log.Info("generating image", "prompt_len", len(req.Prompt))
	imageURL, err := ip.GenerateImage(ctx, req.Prompt)
	if err != nil {
		log.Error("image generation failed", "err", err)
		var re *ai.RemoteError
		if errors.As(err, &re) {
			common.FunctionError(c, http.StatusInternalServerError, "Image generation failed: "+upstreamText(err))
			return
		}
		common.FunctionError(c, http.StatusInternalServerError, err.Error())
		return
	}

	contentType, data, err := decodeDataURL(imageURL)
	if err != nil {
		// already a fetchable URL
		c.JSON(http.StatusOK, gin.H{"imageUrl": imageURL})
		return
	}
	if h.Media == nil {
		c.JSON(http.StatusOK, gin.H{"imageUrl": imageURL})
		return
	}

	key := fmt.Sprintf("%s/%d_generated.png", uid, h.now().UnixMilli())
	if err := h.Media.PutMedia(ctx, key, contentType, data, 0); err != nil {
		log.Error("media store failed, returning inline image", "key", key, "err", err)
		c.JSON(http.StatusOK, gin.H{"imageUrl": imageURL})
		return
	}

	log.Info("image stored", "key", key)
	c.JSON(http.StatusOK, gin.H{"imageUrl": h.Cfg.PublicBaseURL + "/media/" + key})
}
