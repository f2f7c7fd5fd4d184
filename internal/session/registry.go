package session

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Registry holds the live session controllers, one per
// (student, exam) pair. Sessions are memory-resident only: a process
// restart loses in-progress answers, matching the engine's
// no-persistence design.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Controller
	deps     Deps
	log      zerolog.Logger
}

// NewRegistry creates an empty registry. All controllers it creates
// share the same collaborator set.
func NewRegistry(deps Deps, log zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Controller),
		deps:     deps,
		log:      log.With().Str("component", "session_registry").Logger(),
	}
}

func sessionKey(studentID int, examID string) string {
	return fmt.Sprintf("%d:%s", studentID, examID)
}

// Ensure returns the live controller for a (student, exam) pair,
// creating one in NotStarted if none exists. The controller detaches
// itself from the registry on teardown (submit success, submit
// failure, abandon).
func (r *Registry) Ensure(studentID int, examID, collection string) *Controller {
	key := sessionKey(studentID, examID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if ctrl, ok := r.sessions[key]; ok {
		return ctrl
	}

	ctrl := NewController(studentID, examID, collection, r.deps, r.log)
	ctrl.onTeardown = func() { r.remove(key) }
	r.sessions[key] = ctrl
	r.log.Debug().Str("key", key).Msg("Session controller created")
	return ctrl
}

// Get returns the live controller for a pair, if any.
func (r *Registry) Get(studentID int, examID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctrl, ok := r.sessions[sessionKey(studentID, examID)]
	return ctrl, ok
}

// DropStudent abandons every live session a student holds. Called on
// logout.
func (r *Registry) DropStudent(studentID int) {
	r.mu.Lock()
	var doomed []*Controller
	for key, ctrl := range r.sessions {
		if ctrl.studentID == studentID {
			delete(r.sessions, key)
			doomed = append(doomed, ctrl)
		}
	}
	r.mu.Unlock()

	for _, ctrl := range doomed {
		ctrl.Abandon()
	}
}

func (r *Registry) remove(key string) {
	r.mu.Lock()
	delete(r.sessions, key)
	r.mu.Unlock()
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
