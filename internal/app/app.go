package app

import (
	"fmt"

	"github.com/parleykit/parley/internal/service"
)

// App is the interactive chat shell. It owns the notion of a "current"
// thread and drives turns through the thread service, which serializes
// same-thread writes.
type App struct {
	chat     *service.Chat
	threads  *service.ThreadService
	registry *service.Registry
	current  string
}

func New(chat *service.Chat, threads *service.ThreadService, registry *service.Registry) (*App, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat is required")
	}
	if threads == nil {
		return nil, fmt.Errorf("thread service is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("model registry is required")
	}

	return &App{
		chat:     chat,
		threads:  threads,
		registry: registry,
	}, nil
}

// ensureThread selects the most recently updated thread, creating one when
// the catalog is empty.
func (a *App) ensureThread() error {
	if a.current != "" {
		return nil
	}

	if infos := a.threads.ListThreads(); len(infos) > 0 {
		a.current = infos[0].ID
		return nil
	}

	id, err := a.threads.CreateThread()
	if err != nil {
		return err
	}
	a.current = id
	return nil
}

func (a *App) switchThread(id string) error {
	for _, info := range a.threads.ListThreads() {
		if info.ID == id {
			a.current = id
			return nil
		}
	}
	return fmt.Errorf("thread not found: %s", id)
}
