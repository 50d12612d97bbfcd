package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"wasmlite/vm"
)

// main is a thin wrapper around doMain so the CLI's actual logic stays
// testable without touching the process's real stdout/stderr or exit
// code — the same separation wazero's own cmd/wazero uses.
func main() {
	os.Exit(doMain(os.Args[1:], os.Stdout, os.Stderr))
}

func doMain(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wasmlite", flag.ContinueOnError)
	fs.SetOutput(stderr)
	entry := fs.String("entry", "entry", "exported function to run")
	memPages := fs.Int("mem-pages", 16, "linear memory size, in 64KiB pages")
	runs := fs.Int("runs", 1, "number of times to invoke the entry function")
	verbose := fs.Bool("v", false, "enable debug-level logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: wasmlite [flags] <module.wasm>")
		return 2
	}

	zapCfg := zap.NewProductionConfig()
	if *verbose {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(stderr, "failed to build logger: %v\n", err)
		return 1
	}
	defer logger.Sync()
	vm.SetLogger(logger)
	vm.SetDebug(*verbose)

	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		logger.Error("failed to read module", zap.Error(err))
		return 1
	}

	module, err := vm.Parse(raw)
	if err != nil {
		logger.Error("failed to parse module", zap.Error(err))
		return 1
	}

	env := vm.NewEnvironment(logger)
	imports := buildHostImports(module, env)

	instance := vm.NewVM(module, env, imports, *verbose)
	if err := instance.InitGlobals(); err != nil {
		logger.Error("failed to initialize globals", zap.Error(err))
		return 1
	}
	mem := make([]byte, *memPages*64*1024)
	if err := instance.InitMemory(mem); err != nil {
		logger.Error("failed to initialize memory", zap.Error(err))
		return 1
	}

	for i := 0; i < *runs; i++ {
		results, err := instance.ExecuteFunction(*entry, nil)
		if err != nil {
			logger.Error("execution trapped", zap.Error(err), zap.String("entry", *entry))
			return 1
		}
		fmt.Fprintf(stdout, "%s -> %v\n", *entry, results)
	}

	if *verbose {
		p := instance.Profile()
		var totalCount, totalTicks uint64
		for op := range p.PerOpcodeCount {
			if p.PerOpcodeCount[op] == 0 {
				continue
			}
			totalCount += p.PerOpcodeCount[op]
			totalTicks += p.PerOpcodeTicks[op]
			logger.Debug("profile opcode",
				zap.String("op", vm.Opcode(op).String()),
				zap.Uint64("count", p.PerOpcodeCount[op]),
				zap.Uint64("ticks", p.PerOpcodeTicks[op]))
		}
		logger.Debug("profile total", zap.Uint64("instructions", totalCount), zap.Uint64("ticks", totalTicks))
	}
	return 0
}

// buildHostImports wires the module's imported functions, in order,
// against a small fixed table of host capabilities. An import
// name this host doesn't recognize traps the first time it's called
// rather than failing to load — a module that never calls it still
// runs.
func buildHostImports(module *vm.Module, env *vm.Environment) []vm.HostFunc {
	imports := make([]vm.HostFunc, module.NumImportedFunctions)
	for i := 0; i < module.NumImportedFunctions; i++ {
		name := module.Functions[i].Name
		switch name {
		case "print":
			imports[i] = hostPrint
		case "sleep_ms":
			imports[i] = hostSleepMs
		case "set_output":
			imports[i] = hostSetOutput
		case "halt":
			imports[i] = hostHalt
		default:
			imports[i] = unknownImport(name)
		}
	}
	return imports
}

// hostPrint implements print(ptr i32, len i32): it reads len bytes
// from linear memory starting at ptr and hands them to the
// environment's text sink.
func hostPrint(env *vm.Environment, stack *vm.Stack, mem []byte) error {
	length, err := stack.PopI32()
	if err != nil {
		return err
	}
	ptr, err := stack.PopI32()
	if err != nil {
		return err
	}
	start, n := uint64(uint32(ptr)), uint64(uint32(length))
	if start+n > uint64(len(mem)) {
		return &vm.MemoryAccessError{Offset: uint32(ptr), Len: uint32(length)}
	}
	env.EmitText(string(mem[start : start+n]))
	return nil
}

// hostSleepMs implements sleep_ms(ms i32): it blocks for the requested
// duration, bounded so a misbehaving guest can't stall the host
// indefinitely.
func hostSleepMs(env *vm.Environment, stack *vm.Stack, mem []byte) error {
	ms, err := stack.PopI32()
	if err != nil {
		return err
	}
	if ms < 0 {
		ms = 0
	}
	const maxSleep = 5 * time.Second
	d := time.Duration(ms) * time.Millisecond
	if d > maxSleep {
		d = maxSleep
	}
	time.Sleep(d)
	return nil
}

// hostSetOutput implements set_output(v i32): it reports the guest's
// result through the text sink, the CLI's stand-in for the output
// register an MCU board would latch the value into.
func hostSetOutput(env *vm.Environment, stack *vm.Stack, mem []byte) error {
	v, err := stack.PopI32()
	if err != nil {
		return err
	}
	env.EmitText(fmt.Sprintf("output: %d", v))
	return nil
}

// hostHalt implements halt(code i32): it traps deliberately, the
// guest's way of aborting execution early with a diagnostic code.
func hostHalt(env *vm.Environment, stack *vm.Stack, mem []byte) error {
	code, err := stack.PopI32()
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: halt(%d)", vm.ErrTrap, code)
}

func unknownImport(name string) vm.HostFunc {
	return func(env *vm.Environment, stack *vm.Stack, mem []byte) error {
		return fmt.Errorf("%w: unresolved import %q", vm.ErrTrap, name)
	}
}
