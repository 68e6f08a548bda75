package command

import (
	"fmt"
	"strings"
	"sync"

	"relaybot/internal/task/scheduler"
)

// TaskSink receives the tasks declared by registered groups.
type TaskSink interface {
	Add(t scheduler.Task)
}

// Registry maps triggers to command metadata. Registration normally happens
// once at startup; lookups are safe for concurrent use at any time.
type Registry struct {
	prefix string
	tasks  TaskSink

	mu         sync.RWMutex
	aliases    map[string]*Meta // lower(prefix+alias)
	structured map[string]*Meta // lower(name)
	all        []*Meta
	hooks      []Hook
}

func NewRegistry(prefix string, tasks TaskSink) (*Registry, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, ErrEmptyPrefix
	}
	return &Registry{
		prefix:     prefix,
		tasks:      tasks,
		aliases:    map[string]*Meta{},
		structured: map[string]*Meta{},
	}, nil
}

func (r *Registry) Prefix() string { return r.prefix }

// Register adds every command and task of g. Either all of them are added or,
// on error, none.
func (r *Registry) Register(g Group) error {
	group := strings.TrimSpace(g.Name())
	if group == "" {
		return fmt.Errorf("%w: group name is empty", ErrInvalidCommand)
	}

	var tasks []scheduler.Task
	if tp, ok := g.(TaskProvider); ok {
		for _, d := range tp.Tasks() {
			t, err := scheduler.Compile(group, d)
			if err != nil {
				return err
			}
			tasks = append(tasks, t)
		}
	}
	if len(tasks) > 0 && r.tasks == nil {
		return ErrNoTaskSink
	}

	descs := g.Commands()
	metas := make([]*Meta, 0, len(descs))
	for _, d := range descs {
		m, err := buildMeta(group, d)
		if err != nil {
			return err
		}
		metas = append(metas, m)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	newAliases := map[string]*Meta{}
	newStructured := map[string]*Meta{}
	for _, m := range metas {
		if m.Prefixed() {
			for _, a := range append([]string{m.Name}, m.Aliases...) {
				key := strings.ToLower(r.prefix + a)
				if _, taken := r.aliases[key]; taken {
					return &DuplicateError{What: "alias", Name: a, Group: group}
				}
				if prev, taken := newAliases[key]; taken && prev != m {
					return &DuplicateError{What: "alias", Name: a, Group: group}
				}
				newAliases[key] = m
			}
		}
		if m.Structured() {
			key := strings.ToLower(m.Name)
			_, taken := r.structured[key]
			_, takenHere := newStructured[key]
			if taken || takenHere {
				return &DuplicateError{What: "structured command", Name: m.Name, Group: group}
			}
			newStructured[key] = m
		}
	}

	for k, m := range newAliases {
		r.aliases[k] = m
	}
	for k, m := range newStructured {
		r.structured[k] = m
	}
	r.all = append(r.all, metas...)
	if h, ok := g.(ReadyHook); ok {
		r.hooks = append(r.hooks, Hook{Group: group, Run: h.OnReady})
	}
	for _, t := range tasks {
		r.tasks.Add(t)
	}
	return nil
}

func buildMeta(group string, d Descriptor) (*Meta, error) {
	name := strings.TrimSpace(d.Name)
	switch {
	case name == "" || strings.ContainsAny(name, " \t\r\n"):
		return nil, fmt.Errorf("%w: %s: command name %q", ErrInvalidCommand, group, d.Name)
	case d.Handler == nil:
		return nil, fmt.Errorf("%w: %s/%s: no handler", ErrInvalidCommand, group, name)
	case d.Kind == KindStructured && len(d.Aliases) > 0:
		return nil, fmt.Errorf("%w: %s/%s: aliases need a prefix or hybrid command", ErrInvalidCommand, group, name)
	}

	aliases := make([]string, 0, len(d.Aliases))
	for _, a := range d.Aliases {
		a = strings.TrimSpace(a)
		if a == "" || strings.ContainsAny(a, " \t\r\n") {
			return nil, fmt.Errorf("%w: %s/%s: alias %q", ErrInvalidCommand, group, name, a)
		}
		aliases = append(aliases, a)
	}

	opts := make([]Option, 0, len(d.Options))
	seen := map[string]bool{}
	for _, o := range d.Options {
		key := strings.ToLower(strings.TrimSpace(o.Name))
		if key == "" || seen[key] {
			return nil, fmt.Errorf("%w: %s/%s: option %q", ErrInvalidCommand, group, name, o.Name)
		}
		seen[key] = true
		o.Choices = append([]string(nil), o.Choices...)
		opts = append(opts, o)
	}

	return &Meta{
		Name:          name,
		Group:         group,
		Aliases:       aliases,
		Kind:          d.Kind,
		Short:         d.Short,
		Description:   d.Description,
		Usage:         d.Usage,
		Options:       opts,
		Permission:    d.Permission,
		DeniedMessage: d.DeniedMessage,
		Hidden:        d.Hidden,
		Handler:       d.Handler,
	}, nil
}

// LookupPrefix resolves a trigger word such as "!Ping" (prefix included),
// ignoring case.
func (r *Registry) LookupPrefix(trigger string) (*Meta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.aliases[strings.ToLower(trigger)]
	return m, ok
}

func (r *Registry) LookupStructured(name string) (*Meta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.structured[strings.ToLower(name)]
	return m, ok
}

// Commands returns every registered command in registration order.
func (r *Registry) Commands() []*Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Meta(nil), r.all...)
}

// Visible is Commands without hidden entries.
func (r *Registry) Visible() []*Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Meta, 0, len(r.all))
	for _, m := range r.all {
		if !m.Hidden {
			out = append(out, m)
		}
	}
	return out
}

// Hooks returns the ready hooks in registration order.
func (r *Registry) Hooks() []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Hook(nil), r.hooks...)
}

// Suggest returns up to limit candidates of the option that start with input,
// ignoring case, in declaration order. Unknown commands, unknown options and
// options without candidates yield nil.
func (r *Registry) Suggest(command, option, input string, limit int) []string {
	m, ok := r.LookupStructured(command)
	if !ok {
		return nil
	}
	opt, ok := m.Option(option)
	if !ok || len(opt.Choices) == 0 {
		return nil
	}
	needle := strings.ToLower(input)
	var out []string
	for _, c := range opt.Choices {
		if limit > 0 && len(out) >= limit {
			break
		}
		if strings.HasPrefix(strings.ToLower(c), needle) {
			out = append(out, c)
		}
	}
	return out
}
