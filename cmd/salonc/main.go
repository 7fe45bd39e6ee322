// Command salonc compiles a Forth Salon source file and prints a
// disassembly of the final, inlined, peephole-optimized, verified arena.
// There is no on-disk bytecode format for this engine, so this listing is
// the compiled-artifact analog.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rmay/salonforth/pkg/compiler"
)

func main() {
	flag.Parse()

	if len(flag.Args()) < 1 {
		fmt.Println("Usage: salonc <file.fs>")
		os.Exit(1)
	}

	source, err := os.ReadFile(flag.Args()[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	ctx := compiler.New()
	if err := ctx.Parse(source); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, line := range compiler.Disassemble(ctx) {
		fmt.Println(line)
	}
}
