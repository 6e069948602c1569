// Command caldera builds district energy supply-system structures.
package main

import "github.com/papapumpkin/caldera/cmd"

func main() {
	cmd.Execute()
}
