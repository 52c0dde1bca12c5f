package codegen

import "github.com/reglet-dev/reglet-appcore/capability"

const modulePath = "github.com/reglet-dev/reglet-appcore"

// variantCode is the Go rendering of one variant: its bound type and the body
// of its build function. Build bodies see the builder as b.
type variantCode struct {
	constName string
	imports   []string
	typ       string
	build     string
}

var capabilityConsts = map[capability.ID]string{
	capability.Concurrency: "Concurrency",
	capability.Memory:      "Memory",
	capability.SystemAPI:   "SystemAPI",
	capability.Diagnostics: "Diagnostics",
}

var variants = map[capability.VariantID]variantCode{
	capability.Structured: {
		constName: "Structured",
		typ:       "*diagnostics.Facade",
		build:     "return newStructuredDiagnostics(b)",
	},
	capability.RingBuffer: {
		constName: "RingBuffer",
		typ:       "*diagnostics.Facade",
		build:     "return newRingDiagnostics(b)",
	},
	capability.FullOS: {
		constName: "FullOS",
		imports:   []string{modulePath + "/sysapi/osapi"},
		typ:       "*osapi.API",
		build:     "return newOSSystem(b)",
	},
	capability.Constrained: {
		constName: "Constrained",
		imports:   []string{modulePath + "/sysapi/bare"},
		typ:       "*bare.API",
		build: `return bare.New(
		bare.WithHeapBytes(b.cfg.HeapBytes),
		bare.WithDiagnostics(b.diag),
	)`,
	},
	capability.GeneralAllocator: {
		constName: "GeneralAllocator",
		imports:   []string{modulePath + "/memory/general"},
		typ:       "*general.Allocator",
		build: `return general.New(
		general.WithLimit(b.cfg.MemoryLimit),
		general.WithObserver(b.memObserver),
		general.WithDiagnostics(b.diag),
	), nil`,
	},
	capability.ArenaAllocator: {
		constName: "ArenaAllocator",
		imports:   []string{modulePath + "/memory/arena"},
		typ:       "*arena.Allocator",
		build: `return arena.New(b.sys, int(b.cfg.ArenaBytes),
		arena.WithObserver(b.memObserver),
		arena.WithDiagnostics(b.diag),
	)`,
	},
	capability.PoolAllocator: {
		constName: "PoolAllocator",
		imports:   []string{modulePath + "/memory/pool"},
		typ:       "*pool.Allocator",
		build: `return pool.New(pool.ClassesForBudget(b.cfg.PoolBytes),
		pool.WithSystem(b.sys),
		pool.WithObserver(b.memObserver),
		pool.WithDiagnostics(b.diag),
	)`,
	},
	capability.ThreadPool: {
		constName: "ThreadPool",
		imports:   []string{modulePath + "/concurrency/threadpool"},
		typ:       "*threadpool.Pool",
		build: `return threadpool.New(
		threadpool.WithWorkers(b.cfg.Workers),
		threadpool.WithQueueCapacity(b.cfg.QueueCapacity),
		threadpool.WithSystem(b.sys),
		threadpool.WithObserver(b.concObserver),
		threadpool.WithDiagnostics(b.diag),
	), nil`,
	},
	capability.CooperativeLoop: {
		constName: "CooperativeLoop",
		imports:   []string{modulePath + "/concurrency/cooploop"},
		typ:       "*cooploop.Loop",
		build: `return cooploop.New(
		cooploop.WithObserver(b.concObserver),
		cooploop.WithDiagnostics(b.diag),
	), nil`,
	},
	capability.SingleThread: {
		constName: "SingleThread",
		imports:   []string{modulePath + "/concurrency/direct"},
		typ:       "*direct.Executor",
		build: `return direct.New(
		direct.WithObserver(b.concObserver),
		direct.WithDiagnostics(b.diag),
	), nil`,
	},
}
