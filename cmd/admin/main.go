package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "history":
			historyCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "reset":
			resetCmd(os.Args[2:])
			return
		case "status":
			statusCmd(os.Args[2:])
			return
		}
	}
	usage()
	os.Exit(2)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <history|state|reset|status> [flags]")
	fmt.Fprintln(os.Stderr, "  history -data DIR -agent ID [-limit N]   recent builds of an agent")
	fmt.Fprintln(os.Stderr, "  state   -data DIR [-agent ID]            saved build state keys")
	fmt.Fprintln(os.Stderr, "  reset   -data DIR -agent ID -kind K      drop saved build state")
	fmt.Fprintln(os.Stderr, "  status  -url URL                         server health and metrics")
}

func must(fs *flag.FlagSet, name, v string) {
	if v == "" {
		fmt.Fprintf(os.Stderr, "missing -%s\n", name)
		fs.Usage()
		os.Exit(2)
	}
}
