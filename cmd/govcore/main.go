// govcore — multi-tenant governance enforcement core.
package main

import "github.com/agentfabric/govcore/internal/cli"

func main() {
	cli.Execute()
}
