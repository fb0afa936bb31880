package server

import (
	"strings"
	"sync"
	"time"

	"github.com/eaescob/go-ircd/internal/store"
	"github.com/eaescob/go-ircd/internal/wire"
)

// Outcome is a handler's verdict on one dispatched message.
type Outcome int

const (
	// Handled means the command was fully processed; no further handler
	// for this verb should run.
	Handled Outcome = iota
	// Continue lets a lower-priority (module-registered) handler for the
	// same verb run next; only meaningful for non-core registrations.
	Continue
	// ErrorOutcome means the command failed; Numeric/Text carry the reply.
	ErrorOutcome
)

// Result is what a Handler returns.
type Result struct {
	Outcome Outcome
	Numeric string
	Text    string
}

func handled() Result                       { return Result{Outcome: Handled} }
func cont() Result                          { return Result{Outcome: Continue} }
func errNumeric(numeric, text string) Result { return Result{Outcome: ErrorOutcome, Numeric: numeric, Text: text} }

// rateLimited applies the Rate Limiter's sliding window for class to u,
// returning a 439 ERR_TARGETTOOFAST Result when the window is exceeded.
// Operators bypass the limiter entirely (spec §4.14).
func rateLimited(s *Server, u *store.User, class string) *Result {
	if u.IsOperator {
		return nil
	}
	if s.limiter.Allow(u.ID, class, time.Now()) {
		return nil
	}
	r := errNumeric(wire.ERR_TARGETTOOFAST, class+" :Please wait before trying again")
	return &r
}

// Handler processes one verb for one connection. user is nil before
// registration completes.
type Handler func(s *Server, c *Connection, u *store.User, m *wire.Message) Result

// registration carries a verb's core handler and any module-registered
// handlers layered behind it. Core always wins: when both exist, the core
// handler runs first and module handlers only run if it returns Continue.
type registration struct {
	core    Handler
	modules []Handler
}

// Dispatcher routes incoming wire.Message verbs to handlers. Before
// registration, Server.handleLine (server.go) lets only the verbs in the
// preRegVerbs whitelist through to Dispatch.
type Dispatcher struct {
	mu    sync.RWMutex
	verbs map[string]*registration
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{verbs: make(map[string]*registration)}
}

// RegisterCore installs the built-in handler for verb. Called once per verb
// during server construction.
func (d *Dispatcher) RegisterCore(verb string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	verb = strings.ToUpper(verb)
	r, ok := d.verbs[verb]
	if !ok {
		r = &registration{}
		d.verbs[verb] = r
	}
	r.core = h
}

// RegisterModule adds an extension handler for verb, run only if no core
// handler claims the verb, or if the core handler returns Continue.
func (d *Dispatcher) RegisterModule(verb string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	verb = strings.ToUpper(verb)
	r, ok := d.verbs[verb]
	if !ok {
		r = &registration{}
		d.verbs[verb] = r
	}
	r.modules = append(r.modules, h)
}

// Dispatch runs verb's handler chain, core first.
func (d *Dispatcher) Dispatch(s *Server, c *Connection, u *store.User, m *wire.Message) Result {
	d.mu.RLock()
	r, ok := d.verbs[strings.ToUpper(m.Command)]
	d.mu.RUnlock()
	if !ok {
		return errNumeric(wire.ERR_UNKNOWNCOMMAND, m.Command+" :Unknown command")
	}

	if r.core != nil {
		res := r.core(s, c, u, m)
		if res.Outcome != Continue {
			return res
		}
	}
	for _, h := range r.modules {
		res := h(s, c, u, m)
		if res.Outcome != Continue {
			return res
		}
	}
	if r.core == nil && len(r.modules) == 0 {
		return errNumeric(wire.ERR_UNKNOWNCOMMAND, m.Command+" :Unknown command")
	}
	return handled()
}
