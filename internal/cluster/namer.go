package cluster

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/ppiankov/veritas/internal/llm"
	"github.com/ppiankov/veritas/internal/logger"
)

const (
	FallbackName        = "Cluster"
	FallbackDescription = "Similar claims grouped together"

	namerPrompt = "Generate a concise name and description for a cluster of similar claims. " +
		`Respond with JSON: {"name": "...", "description": "..."}`
	namerMaxTokens = 200
	namerMaxClaims = 20
)

// Namer produces a display name and description for a group of claim texts.
// It never fails; implementations fall back to fixed strings.
type Namer interface {
	Name(ctx context.Context, texts []string) (name, description string)
}

// FallbackNamer always returns the fixed fallback strings
type FallbackNamer struct{}

func (FallbackNamer) Name(context.Context, []string) (string, string) {
	return FallbackName, FallbackDescription
}

// Chatter is the language-model port used by ChatNamer
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.ChatResponse, error)
}

// ChatNamer asks a language model for "Name:" and "Description:" lines
type ChatNamer struct {
	chat Chatter
	log  logger.Logger
}

// NewChatNamer creates a namer backed by chat. A nil chat yields the fallback namer.
func NewChatNamer(chat Chatter, log logger.Logger) Namer {
	if chat == nil {
		return FallbackNamer{}
	}
	return &ChatNamer{chat: chat, log: logger.OrNop(log).With(logger.Component("cluster-namer"))}
}

func (n *ChatNamer) Name(ctx context.Context, texts []string) (string, string) {
	if len(texts) > namerMaxClaims {
		texts = texts[:namerMaxClaims]
	}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: namerPrompt},
		{Role: llm.RoleUser, Content: "Claims:\n" + strings.Join(texts, "\n\n")},
	}

	resp, err := n.chat.Chat(ctx, messages, llm.Options{MaxTokens: namerMaxTokens, JSON: true})
	if err != nil {
		n.log.Warn("Cluster naming failed", logger.Error(err))
		return FallbackName, FallbackDescription
	}
	return parseNaming(resp.Text)
}

type naming struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// joinLists flattens list values (e.g. a description split into sentences) into one string
func joinLists(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String || from.Kind() != reflect.Slice {
		return data, nil
	}
	items, ok := data.([]any)
	if !ok {
		return data, nil
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "), nil
}

// decodeNaming reads a JSON reply object. Keys match case-insensitively and
// scalar values are converted to text.
func decodeNaming(obj map[string]any) (naming, bool) {
	var out naming
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.DecodeHookFuncType(joinLists),
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, false
	}
	if err := decoder.Decode(obj); err != nil {
		return out, false
	}
	out.Name = strings.TrimSpace(out.Name)
	out.Description = strings.TrimSpace(out.Description)
	return out, out.Name != ""
}

// parseNaming reads a JSON object from a reply, then labelled lines. Without
// either the first non-empty line is the name and the second the description.
func parseNaming(text string) (string, string) {
	var out naming
	if obj, ok := llm.ExtractJSONObject(text); ok {
		out, _ = decodeNaming(obj)
	}
	if out.Name == "" {
		out = parseLines(text)
	}

	if out.Name == "" {
		out.Name = FallbackName
	}
	if out.Description == "" {
		out.Description = FallbackDescription
	}
	return out.Name, out.Description
}

func parseLines(text string) naming {
	var out naming
	var plain []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, "**", ""))
		if line == "" {
			continue
		}
		label, value, ok := strings.Cut(line, ":")
		switch key := strings.ToLower(strings.TrimSpace(label)); {
		case ok && key == "name":
			if out.Name == "" {
				out.Name = strings.TrimSpace(value)
			}
		case ok && key == "description":
			if out.Description == "" {
				out.Description = strings.TrimSpace(value)
			}
		default:
			plain = append(plain, line)
		}
	}

	if out.Name == "" && len(plain) > 0 {
		out.Name, plain = plain[0], plain[1:]
	}
	if out.Description == "" && len(plain) > 0 {
		out.Description = plain[0]
	}
	return out
}
