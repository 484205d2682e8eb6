package service

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/parleykit/parley/internal/config"
	"github.com/parleykit/parley/internal/models"
)

const (
	DeepSeekChatModelID       = "deepseek-chat"
	DeepSeekReasonerModelID   = "deepseek-reasoner"
	DoubaoSeed18251215ModelID = "doubao-seed-1-8-251215"
	XGrok41FastModelID        = "x-ai/grok-4.1-fast"
	Qwen3CoderModelID         = "qwen/qwen3-coder:free"
)

const defaultModelID = DeepSeekChatModelID

const (
	DeepSeekModelProvider   = "DeepSeek"
	ByteDanceModelProvider  = "ByteDance"
	OpenRouterModelProvider = "OpenRouter"
)

const (
	DeepSeekModelBaseURL   = "https://api.deepseek.com"
	ByteDanceModelBaseURL  = "https://ark.cn-beijing.volces.com/api/v3/chat/completions"
	OpenRouterModelBaseURL = "https://openrouter.ai/api/v1"
)

type modelEntry struct {
	Info    *models.ModelInfo
	BaseURL string
}

var availableModels = map[string]*modelEntry{
	DeepSeekChatModelID: {
		Info: &models.ModelInfo{
			ID:            DeepSeekChatModelID,
			Name:          "deepseek-chat",
			Provider:      DeepSeekModelProvider,
			ContextWindow: "128k",
		},
		BaseURL: DeepSeekModelBaseURL,
	},
	DeepSeekReasonerModelID: {
		Info: &models.ModelInfo{
			ID:            DeepSeekReasonerModelID,
			Name:          "deepseek-reasoner",
			Provider:      DeepSeekModelProvider,
			ContextWindow: "128k",
		},
		BaseURL: DeepSeekModelBaseURL,
	},
	DoubaoSeed18251215ModelID: {
		Info: &models.ModelInfo{
			ID:            DoubaoSeed18251215ModelID,
			Name:          "doubao-seed-1.8",
			Provider:      ByteDanceModelProvider,
			ContextWindow: "256k",
		},
		BaseURL: ByteDanceModelBaseURL,
	},
	XGrok41FastModelID: {
		Info: &models.ModelInfo{
			ID:            XGrok41FastModelID,
			Name:          "grok-4.1-fast",
			Provider:      OpenRouterModelProvider,
			ContextWindow: "2M",
		},
		BaseURL: OpenRouterModelBaseURL,
	},
	Qwen3CoderModelID: {
		Info: &models.ModelInfo{
			ID:            Qwen3CoderModelID,
			Name:          "qwen3-coder",
			Provider:      OpenRouterModelProvider,
			ContextWindow: "262k",
		},
		BaseURL: OpenRouterModelBaseURL,
	},
}

// Registry resolves model ids to chat model clients, with credentials
// supplied by the caller's config rather than read at package init.
type Registry struct {
	keys config.ProviderKeys
}

func NewRegistry(keys config.ProviderKeys) *Registry {
	return &Registry{keys: keys}
}

func (r *Registry) DefaultModelID() string {
	return defaultModelID
}

func (r *Registry) Infos() []*models.ModelInfo {
	infos := make([]*models.ModelInfo, 0, len(availableModels))
	for _, entry := range availableModels {
		infos = append(infos, entry.Info)
	}
	return infos
}

func (r *Registry) IsAvailable(modelID string) bool {
	_, ok := availableModels[modelID]
	return ok
}

func (r *Registry) ChatModel(ctx context.Context, modelID string) (model.BaseChatModel, error) {
	entry, ok := availableModels[modelID]
	if !ok {
		return nil, fmt.Errorf("model not found: %s", modelID)
	}

	switch entry.Info.Provider {
	case DeepSeekModelProvider:
		if r.keys.DeepSeek == "" {
			return nil, fmt.Errorf("DEEPSEEK_API_KEY is not set")
		}
		return deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:  r.keys.DeepSeek,
			BaseURL: entry.BaseURL,
			Model:   modelID,
		})
	case ByteDanceModelProvider:
		if r.keys.ByteDance == "" {
			return nil, fmt.Errorf("BYTE_DANCE_API_KEY is not set")
		}
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			APIKey:  r.keys.ByteDance,
			BaseURL: entry.BaseURL,
			Model:   modelID,
		})
	case OpenRouterModelProvider:
		if r.keys.OpenRouter == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY is not set")
		}
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  r.keys.OpenRouter,
			BaseURL: entry.BaseURL,
			Model:   modelID,
		})
	default:
	}

	return nil, fmt.Errorf("unsupported model provider: %s", entry.Info.Provider)
}
