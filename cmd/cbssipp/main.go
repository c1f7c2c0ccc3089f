// Command cbssipp plans multi-agent paths among probabilistic dynamic
// obstacles.
package main

import "github.com/elektrokombinacija/cbs-sipp/internal/cli"

func main() {
	cli.Execute()
}
