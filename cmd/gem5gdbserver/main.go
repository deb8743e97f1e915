// Command gem5gdbserver hosts a standalone GDB remote stub over an
// in-memory simulated core, for manual testing and as a worked example of
// wiring internal/gdbserver to a concrete simcontract implementation. A
// real embedding simulator would call internal/gdbserver directly instead
// of going through this binary.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
