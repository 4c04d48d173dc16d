package generate

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"commitmate/cli/internal/llm"
	"commitmate/cli/internal/trace"
)

// Provider names accepted by Select.
const (
	ProviderGitHub = "github"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
	ProviderMock   = "mock"
)

// Default models per remote provider.
const (
	DefaultGitHubModel = "openai/gpt-4o-mini"
	DefaultOpenAIModel = "gpt-4o-mini"
)

var providerEnv = map[string][]string{
	ProviderGitHub: {"GITHUB_TOKEN", "GH_TOKEN"},
	ProviderOpenAI: {"OPENAI_API_KEY", "COMMITMATE_API_KEY"},
}

// Options configures Select.
type Options struct {
	Provider string
	// Offline is the resolved offline switch: the --offline flag or the config default.
	Offline bool

	Model       string
	Endpoint    string
	Temperature float64
	MaxTokens   int

	// APIKey is an explicit credential; it wins over ConfigAPIKey and the environment.
	APIKey       string
	ConfigAPIKey string
	LookupEnv    func(string) (string, bool)

	SystemPrompt     string
	MaxSubjectLength int
	MaxBullets       int

	HTTPClient *http.Client
	Logger     *zap.Logger
	Tracer     *trace.Tracer
}

// Select returns the generator for opts. Offline selects the mock generator;
// otherwise the provider name decides, and unknown or empty names select the
// mock generator. Remote providers fall back to the local heuristic.
func Select(opts Options) Generator {
	if opts.Offline {
		return NewMock()
	}
	provider := NormalizeProvider(opts.Provider)
	switch provider {
	case ProviderLocal:
		return NewLocal()
	case ProviderGitHub, ProviderOpenAI:
		var client Completer
		if key := ResolveAPIKey(provider, opts.APIKey, opts.ConfigAPIKey, opts.LookupEnv); key != "" {
			client = llm.NewClient(Endpoint(provider, opts.Endpoint), key, opts.HTTPClient)
		}
		return NewRemote(client, RemoteConfig{
			Model:            Model(provider, opts.Model),
			Temperature:      opts.Temperature,
			MaxTokens:        opts.MaxTokens,
			SystemPrompt:     opts.SystemPrompt,
			MaxSubjectLength: opts.MaxSubjectLength,
			MaxBullets:       opts.MaxBullets,
		}, NewLocal(), opts.Logger, opts.Tracer)
	default:
		return NewMock()
	}
}

// NormalizeProvider lowercases name and maps aliases to provider names.
func NormalizeProvider(name string) string {
	switch p := strings.ToLower(strings.TrimSpace(name)); p {
	case "github-models", "gh":
		return ProviderGitHub
	case "openai-compatible", "generic":
		return ProviderOpenAI
	case "heuristic":
		return ProviderLocal
	default:
		return p
	}
}

// IsRemote reports whether provider makes network calls.
func IsRemote(provider string) bool {
	p := NormalizeProvider(provider)
	return p == ProviderGitHub || p == ProviderOpenAI
}

// Endpoint returns override when set, otherwise the provider's default URL.
func Endpoint(provider, override string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	if NormalizeProvider(provider) == ProviderGitHub {
		return llm.GitHubEndpoint
	}
	return llm.OpenAIEndpoint
}

// Model returns override when set, otherwise the provider's default model.
func Model(provider, override string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	if NormalizeProvider(provider) == ProviderGitHub {
		return DefaultGitHubModel
	}
	return DefaultOpenAIModel
}

// ProviderEnv returns the environment variables consulted for provider's key,
// in priority order.
func ProviderEnv(provider string) []string {
	return append([]string(nil), providerEnv[NormalizeProvider(provider)]...)
}

// ResolveAPIKey returns the first non-empty credential among: explicit, the
// configured key, and the provider's environment variables. A configured key
// of the form "env:NAME" or "$NAME" is read from the variable NAME. lookup
// may be nil, in which case no environment variable is consulted.
func ResolveAPIKey(provider, explicit, configured string, lookup func(string) (string, bool)) string {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}
	if s := resolveReference(strings.TrimSpace(configured), lookup); s != "" {
		return s
	}
	for _, name := range ProviderEnv(provider) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func resolveReference(s string, lookup func(string) (string, bool)) string {
	var name string
	switch {
	case strings.HasPrefix(s, "env:"):
		name = strings.TrimSpace(strings.TrimPrefix(s, "env:"))
	case strings.HasPrefix(s, "$"):
		name = strings.Trim(strings.TrimPrefix(s, "$"), "{}")
	default:
		return s
	}
	if name == "" {
		return ""
	}
	v, _ := lookup(name)
	return strings.TrimSpace(v)
}
