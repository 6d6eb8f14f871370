// Package automation содержит реестр именованных автоматизаций, которые
// реагируют на события хабов и отправляют команды через сессию.
package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"BoostProg/hub"
	"BoostProg/logging"
)

// Behavior автоматизация с жизненным циклом setup / handle / teardown.
// Поведение не обращается к радио напрямую, только к командам сессии.
type Behavior interface {
	Setup(ctx context.Context) error
	HandleEvent(ctx context.Context, u hub.Update) error
	Teardown(ctx context.Context) error
	// DependsOn роли, при отключении которых поведение снимается
	DependsOn() []hub.Role
}

var (
	// ErrPrecondition событие не может быть обработано в текущем состоянии
	ErrPrecondition = errors.New("automation: условие не выполнено")
	// ErrBehaviorPanic обработчик поведения завершился паникой
	ErrBehaviorPanic = errors.New("automation: паника в поведении")
)

type entry struct {
	name     string
	behavior Behavior
}

// Registry потокобезопасный реестр активных поведений. Имена уникальны,
// события доставляются в порядке регистрации.
type Registry struct {
	mu      sync.Mutex
	entries []entry
}

// NewRegistry создает пустой реестр
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) index(name string) int {
	for i, e := range r.entries {
		if e.name == name {
			return i
		}
	}
	return -1
}

// Register снимает прежнее поведение с тем же именем, затем вызывает Setup
// нового. Если Setup завершился ошибкой, поведение не регистрируется.
func (r *Registry) Register(ctx context.Context, name string, b Behavior) error {
	if name == "" || b == nil {
		return fmt.Errorf("automation: пустое имя или поведение")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	log := logging.ForComponent("automation").WithField("behavior", name)
	if i := r.index(name); i >= 0 {
		old := r.entries[i].behavior
		r.entries = append(r.entries[:i], r.entries[i+1:]...)
		if err := old.Teardown(ctx); err != nil {
			log.Warnf("Ошибка остановки прежнего поведения: %v", err)
		}
		log.Info("Прежнее поведение снято")
	}

	if err := b.Setup(ctx); err != nil {
		return fmt.Errorf("automation: %s: запуск: %w", name, err)
	}
	r.entries = append(r.entries, entry{name: name, behavior: b})
	log.Info("Поведение включено")
	return nil
}

// Unregister снимает поведение. Отсутствующее имя игнорируется.
func (r *Registry) Unregister(ctx context.Context, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(name)
	if i < 0 {
		return
	}
	r.retire(ctx, i)
}

// retire вызывает Teardown и удаляет запись. Вызывается под мьютексом.
func (r *Registry) retire(ctx context.Context, i int) {
	e := r.entries[i]
	r.entries = append(r.entries[:i], r.entries[i+1:]...)

	log := logging.ForComponent("automation").WithField("behavior", e.name)
	if err := e.behavior.Teardown(ctx); err != nil {
		log.Warnf("Ошибка остановки: %v", err)
	}
	log.Info("Поведение выключено")
}

// Names возвращает имена активных поведений в порядке регистрации
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// Has сообщает, активно ли поведение
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index(name) >= 0
}

// Dispatch доставляет событие всем поведениям по порядку регистрации.
// Ошибка одного поведения журналируется и не прерывает доставку остальным;
// возвращаются все ошибки вместе.
func (r *Registry) Dispatch(ctx context.Context, u hub.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, e := range r.entries {
		if err := handleSafely(ctx, e.behavior, u); err != nil {
			logging.ForComponent("automation").WithField("behavior", e.name).
				Warnf("Ошибка обработки события %s: %v", u.Kind, err)
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
		}
	}
	return errors.Join(errs...)
}

// handleSafely вызывает обработчик поведения, превращая панику в ошибку
func handleSafely(ctx context.Context, b Behavior, u hub.Update) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrBehaviorPanic, rec)
		}
	}()
	return b.HandleEvent(ctx, u)
}

// RetireDependents снимает поведения, зависящие от роли
func (r *Registry) RetireDependents(ctx context.Context, role hub.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.entries) - 1; i >= 0; i-- {
		for _, dep := range r.entries[i].behavior.DependsOn() {
			if dep == role {
				r.retire(ctx, i)
				break
			}
		}
	}
}

// Run читает события сессии до закрытия канала или отмены контекста.
// Отключение роли снимает зависящие от нее поведения.
func (r *Registry) Run(ctx context.Context, updates <-chan hub.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			_ = r.Dispatch(ctx, u)
			if u.Kind == hub.Disconnected {
				r.RetireDependents(ctx, u.Role)
			}
		}
	}
}

// Close снимает все поведения в обратном порядке
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.entries) - 1; i >= 0; i-- {
		r.retire(ctx, i)
	}
}
