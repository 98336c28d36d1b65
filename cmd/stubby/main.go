// stubby CLI - command-line interface for the stubby stub server.
package main

import "github.com/getmockd/stubby/pkg/cli"

func main() {
	cli.Execute()
}
