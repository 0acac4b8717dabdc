package nl2sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sqlassist/sqlassist/internal/apperr"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Completion struct {
	Text     string
	Provider string
	Model    string
}

// Completer sends one prompt to a hosted model and returns its raw text.
// Implementations never retry.
type Completer interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

type Config struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

func New(cfg Config) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		return NewGeminiCompleter(cfg)
	case ProviderOpenAI:
		return NewOpenAICompleter(cfg)
	default:
		return nil, apperr.New(apperr.ConfigurationError, fmt.Sprintf("unknown completion provider %q", cfg.Provider))
	}
}

// Unconfigured fails every call with the construction error, so a server can
// start and report the missing credential per request.
func Unconfigured(cause error) Completer {
	return unconfigured{cause: cause}
}

type unconfigured struct {
	cause error
}

func (u unconfigured) Complete(context.Context, string) (Completion, error) {
	if _, ok := apperr.KindOf(u.cause); ok {
		return Completion{}, u.cause
	}
	return Completion{}, apperr.Wrap(apperr.ConfigurationError, "completion client is not configured", u.cause)
}

func timeoutOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
