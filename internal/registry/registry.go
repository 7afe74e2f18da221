// Package registry keeps the loaded modules and notifies watchers when a
// module is added, updated or removed.
package registry

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/hcm/internal/model"
)

// ModuleRegistry manages all loaded modules
type ModuleRegistry struct {
	modules  map[string]*model.Module
	mutex    sync.RWMutex
	watchers []chan ModuleEvent
}

// ModuleEvent represents a change in the module registry
type ModuleEvent struct {
	Type      EventType
	Module    *model.Module
	Timestamp time.Time
}

// EventType represents the type of module event
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeRemoved
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeAdded:
		return "added"
	case EventTypeUpdated:
		return "updated"
	case EventTypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// NewModuleRegistry creates a new module registry
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{
		modules:  make(map[string]*model.Module),
		watchers: make([]chan ModuleEvent, 0),
	}
}

// Register adds or updates a module, keyed by its full name
func (r *ModuleRegistry) Register(module *model.Module) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	eventType := EventTypeAdded
	if _, exists := r.modules[module.FullName()]; exists {
		eventType = EventTypeUpdated
	}

	r.modules[module.FullName()] = module
	r.notify(ModuleEvent{Type: eventType, Module: module, Timestamp: time.Now()})
}

// Get retrieves a module by full name
func (r *ModuleRegistry) Get(fullName string) (*model.Module, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	module, exists := r.modules[fullName]
	return module, exists
}

// GetAll returns all registered modules sorted by full name
func (r *ModuleRegistry) GetAll() []*model.Module {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*model.Module, 0, len(r.modules))
	for _, module := range r.modules {
		result = append(result, module)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FullName() < result[j].FullName()
	})
	return result
}

// FindByPath returns the module whose root directory contains path. The
// deepest root wins when module roots are nested.
func (r *ModuleRegistry) FindByPath(path string) (*model.Module, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	clean := filepath.Clean(path)
	var best *model.Module
	for _, module := range r.modules {
		root := filepath.Clean(module.Root)
		if clean != root && !strings.HasPrefix(clean, root+string(filepath.Separator)) {
			continue
		}
		if best == nil || len(root) > len(filepath.Clean(best.Root)) {
			best = module
		}
	}
	return best, best != nil
}

// Remove removes a module from the registry
func (r *ModuleRegistry) Remove(fullName string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	module, exists := r.modules[fullName]
	if !exists {
		return
	}

	delete(r.modules, fullName)
	r.notify(ModuleEvent{Type: EventTypeRemoved, Module: module, Timestamp: time.Now()})
}

// Groups returns the registered modules grouped into fresh group and
// project trees, ready to be pushed into a model builder.
func (r *ModuleRegistry) Groups() []*model.Group {
	modules := r.GetAll()

	var groups []*model.Group
	byName := make(map[string]*model.Group)
	for _, m := range modules {
		srcProject := m.Project()
		srcGroup := srcProject.Group()

		g, ok := byName[srcGroup.Name()]
		if !ok {
			g = model.NewGroup(srcGroup.Name())
			byName[srcGroup.Name()] = g
			groups = append(groups, g)
		}
		g.AddAfter(srcGroup.After()...)

		p := g.Project(srcProject.Name())
		if p == nil {
			p = g.AddProject(srcProject.Name())
		}
		p.AddAfter(srcProject.After()...)

		clone := p.AddModule(m.Name(), m.After()...)
		clone.DescriptorPath = m.DescriptorPath
		clone.Root = m.Root
		clone.Sources = m.Sources
		clone.SetDeclared(m.Declared())
	}
	return groups
}

// Watch returns a channel that receives module events
func (r *ModuleRegistry) Watch() <-chan ModuleEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan ModuleEvent, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *ModuleRegistry) UnWatch(ch <-chan ModuleEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// Count returns the number of registered modules
func (r *ModuleRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.modules)
}

func (r *ModuleRegistry) notify(event ModuleEvent) {
	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}
