// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Command qsf reads and writes QUIC Stream File containers.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "qsf:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return usageError()
	}

	switch args[0] {
	case "write":
		return runWrite(args[1:])
	case "read":
		return runRead(args[1:])
	default:
		return usageError()
	}
}

func usageError() error {
	fmt.Fprintln(os.Stderr, "usage: qsf write --out <file> [--combine-id <id>] [--key-dir <dir>] <file[:token,token,...]>...")
	fmt.Fprintln(os.Stderr, "       qsf read --src <file> [--out <dir>] [--key-dir <dir>] [--qrec|--manifest|--stream]")
	return fmt.Errorf("no subcommand given")
}
