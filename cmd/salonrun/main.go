// Command salonrun compiles a single Forth Salon source file and runs it
// once against a set of host inputs supplied on the command line.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rmay/salonforth/pkg/compiler"
	"github.com/rmay/salonforth/pkg/vm"
)

var (
	xFlag  = flag.Float64("x", 0, "pixel x coordinate")
	yFlag  = flag.Float64("y", 0, "pixel y coordinate")
	tFlag  = flag.Float64("t", 0, "elapsed time")
	dtFlag = flag.Float64("dt", 0, "frame delta time")

	debugFlag = flag.Bool("debug", false, "single-step, printing the data stack after every instruction")
	traceFlag = flag.Bool("trace", false, "print an execution trace as the program runs")
)

func main() {
	flag.Parse()

	if len(flag.Args()) < 1 {
		fmt.Println("Usage: salonrun [options] <program.fs>")
		fmt.Println("\nOptions:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	source, err := os.ReadFile(flag.Args()[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	ctx := compiler.New()
	if *traceFlag {
		ctx.Logger = func(format string, args ...any) { fmt.Fprintf(os.Stderr, format+"\n", args...) }
	}
	if err := ctx.Parse(source); err != nil {
		fmt.Fprintf(os.Stderr, "Compile error: %v\n", err)
		os.Exit(1)
	}

	vars := &vm.Vars{X: *xFlag, Y: *yFlag, T: *tFlag, DT: *dtFlag}
	frame := &vm.Frame{Vars: vars}
	if *traceFlag {
		frame.Logger = func(format string, args ...any) { fmt.Fprintf(os.Stderr, format+"\n", args...) }
	}

	if *debugFlag {
		runDebug(ctx.Program(), frame, vars)
		return
	}

	if err := vm.Exec(ctx.Program(), frame); err != nil {
		fmt.Fprintf(os.Stderr, "---Runtime error---\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printResult(vars)
}

func runDebug(prog *vm.Arena, frame *vm.Frame, vars *vm.Vars) {
	fmt.Println("=== Forth Salon Debugger ===")
	s := vm.NewStepper(prog, frame)
	for {
		fmt.Printf("ip=%d stack=%v\n", s.PC(), s.Stack())
		cont, err := s.Step()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error at ip=%d: %v\n", s.PC(), err)
			os.Exit(1)
		}
		if !cont {
			break
		}
	}
	printResult(vars)
}

func printResult(vars *vm.Vars) {
	fmt.Print("Result: [")
	for i, v := range vars.DStack {
		if i > 0 {
			fmt.Print(" ")
		}
		fmt.Printf("%g", v)
	}
	fmt.Println("]")
}
