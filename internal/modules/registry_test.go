package modules

import (
	"errors"
	"testing"
)

type stubModule struct {
	typ      string
	deps     []string
	optional []string
	err      error

	calls  *[]string
	onInit func(*Host)
}

func (m *stubModule) Type() string                   { return m.typ }
func (m *stubModule) Dependencies() []string         { return m.deps }
func (m *stubModule) OptionalDependencies() []string { return m.optional }

func (m *stubModule) Initialize(h *Host) error {
	if m.calls != nil {
		*m.calls = append(*m.calls, m.typ)
	}
	if m.onInit != nil {
		m.onInit(h)
	}
	return m.err
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubModule{typ: "rooms"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := r.Register(&stubModule{typ: "rooms"})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestRegisterRejectsEmptyType(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubModule{typ: "  "}); !errors.Is(err, ErrTypeRequired) {
		t.Fatalf("expected ErrTypeRequired, got %v", err)
	}
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&stubModule{typ: "a"})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	r.MustRegister(&stubModule{typ: "a"})
}

func TestResolveOrdersRequiredDependencies(t *testing.T) {
	var calls []string
	r := NewRegistry()
	r.MustRegister(&stubModule{typ: "lobbies", deps: []string{"spawners", "rooms"}, calls: &calls})
	r.MustRegister(&stubModule{typ: "spawners", deps: []string{"rooms"}, calls: &calls})
	r.MustRegister(&stubModule{typ: "rooms", calls: &calls})

	res := r.Resolve(nil)
	if !res.OK() {
		t.Fatalf("expected all modules initialized, got %+v", res)
	}
	want := []string{"rooms", "spawners", "lobbies"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestResolveHonorsSatisfiableOptionalDependencies(t *testing.T) {
	var calls []string
	r := NewRegistry()
	r.MustRegister(&stubModule{typ: "lobbies", optional: []string{"chat"}, calls: &calls})
	r.MustRegister(&stubModule{typ: "chat", calls: &calls})

	res := r.Resolve(nil)
	if !res.OK() {
		t.Fatalf("unexpected result %+v", res)
	}
	if indexOf(calls, "chat") > indexOf(calls, "lobbies") {
		t.Fatalf("chat should initialize before lobbies, got %v", calls)
	}
}

func TestResolveIgnoresUnregisteredOptionalDependencies(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&stubModule{typ: "lobbies", optional: []string{"missing"}})

	res := r.Resolve(nil)
	if !res.OK() || len(res.Order) != 1 {
		t.Fatalf("expected lobbies initialized, got %+v", res)
	}
}

func TestResolveBreaksOptionalCycles(t *testing.T) {
	var calls []string
	r := NewRegistry()
	r.MustRegister(&stubModule{typ: "a", optional: []string{"b"}, calls: &calls})
	r.MustRegister(&stubModule{typ: "b", optional: []string{"a"}, calls: &calls})
	r.MustRegister(&stubModule{typ: "c", deps: []string{"a", "b"}, calls: &calls})

	res := r.Resolve(nil)
	if !res.OK() {
		t.Fatalf("expected optional cycle to resolve, got %+v", res)
	}
	if len(calls) != 3 {
		t.Fatalf("expected each module initialized once, got %v", calls)
	}
	if indexOf(calls, "c") != 2 {
		t.Fatalf("c must come after its required dependencies, got %v", calls)
	}
}

func TestResolveReportsRequiredCycle(t *testing.T) {
	var calls []string
	r := NewRegistry()
	r.MustRegister(&stubModule{typ: "a", deps: []string{"b"}, calls: &calls})
	r.MustRegister(&stubModule{typ: "b", deps: []string{"a"}, calls: &calls})
	r.MustRegister(&stubModule{typ: "c", calls: &calls})

	res := r.Resolve(nil)
	if res.OK() {
		t.Fatal("expected unresolved modules")
	}
	if len(res.Uninitialized) != 2 {
		t.Fatalf("uninitialized = %v, want [a b]", res.Uninitialized)
	}
	if len(calls) != 1 || calls[0] != "c" {
		t.Fatalf("calls = %v, want [c]", calls)
	}
}

func TestResolveReportsMissingRequiredDependency(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&stubModule{typ: "lobbies", deps: []string{"spawners"}})

	res := r.Resolve(nil)
	if len(res.Uninitialized) != 1 || res.Uninitialized[0] != "lobbies" {
		t.Fatalf("uninitialized = %v, want [lobbies]", res.Uninitialized)
	}
}

func TestResolveReportsInitializeFailures(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	r := NewRegistry()
	r.MustRegister(&stubModule{typ: "rooms", err: boom, calls: &calls})
	r.MustRegister(&stubModule{typ: "lobbies", deps: []string{"rooms"}, calls: &calls})

	res := r.Resolve(nil)
	if !errors.Is(res.Failed["rooms"], boom) {
		t.Fatalf("expected rooms failure, got %+v", res.Failed)
	}
	if len(res.Uninitialized) != 1 || res.Uninitialized[0] != "lobbies" {
		t.Fatalf("uninitialized = %v, want [lobbies]", res.Uninitialized)
	}
	if len(calls) != 1 {
		t.Fatalf("rooms must be initialized once and never retried, got %v", calls)
	}
	if r.Initialized("rooms") {
		t.Fatal("failed module must not be reported initialized")
	}
}

func TestRegisterDuringResolveIsRejected(t *testing.T) {
	r := NewRegistry()
	var regErr error
	r.MustRegister(&stubModule{typ: "a", onInit: func(*Host) {
		regErr = r.Register(&stubModule{typ: "late"})
	}})

	r.Resolve(nil)
	if !errors.Is(regErr, ErrResolving) {
		t.Fatalf("expected ErrResolving, got %v", regErr)
	}
	if err := r.Register(&stubModule{typ: "late"}); err != nil {
		t.Fatalf("register after resolve: %v", err)
	}
}

func TestHostLooksUpInitializedDependencies(t *testing.T) {
	r := NewRegistry()
	rooms := &stubModule{typ: "rooms"}
	var found *stubModule
	var ok bool
	r.MustRegister(&stubModule{typ: "lobbies", deps: []string{"rooms"}, onInit: func(h *Host) {
		found, ok = Get[*stubModule](h, "rooms")
	}})
	r.MustRegister(rooms)

	r.Resolve(nil)
	if !ok || found != rooms {
		t.Fatalf("expected rooms module from host, got %v %v", found, ok)
	}
}

func TestResolveInitializesAcyclicGraphsExactlyOnce(t *testing.T) {
	graphs := []struct {
		name    string
		modules []*stubModule
	}{
		{
			name: "diamond",
			modules: []*stubModule{
				{typ: "d", deps: []string{"b", "c"}},
				{typ: "b", deps: []string{"a"}},
				{typ: "c", deps: []string{"a"}, optional: []string{"d"}},
				{typ: "a"},
			},
		},
		{
			name: "chain with optional back edges",
			modules: []*stubModule{
				{typ: "a", optional: []string{"c"}},
				{typ: "b", deps: []string{"a"}, optional: []string{"c"}},
				{typ: "c", deps: []string{"b"}, optional: []string{"a"}},
			},
		},
	}

	for _, g := range graphs {
		t.Run(g.name, func(t *testing.T) {
			var calls []string
			r := NewRegistry()
			for _, m := range g.modules {
				m.calls = &calls
				r.MustRegister(m)
			}
			res := r.Resolve(nil)
			if !res.OK() {
				t.Fatalf("unexpected result %+v", res)
			}
			if len(calls) != len(g.modules) {
				t.Fatalf("calls = %v", calls)
			}
			for _, m := range g.modules {
				for _, dep := range m.deps {
					if indexOf(calls, dep) > indexOf(calls, m.typ) {
						t.Fatalf("%s initialized before %s: %v", m.typ, dep, calls)
					}
				}
			}
		})
	}
}
