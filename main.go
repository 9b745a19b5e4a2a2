// Command redsift crawls content targets, indexes the output, and serves
// full-text search over it.
package main

import "github.com/mfeller/redsift/cmd"

func main() {
	cmd.Execute()
}
