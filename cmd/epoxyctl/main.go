// Command epoxyctl drives and inspects Epoxy connections from the shell:
// serve hosts a connection engine on a TCP listener, and echo-client dials
// one and round-trips a request through it.
package main

import "github.com/minghan/bond/cmd/epoxyctl/cmd"

func main() {
	cmd.Execute()
}
