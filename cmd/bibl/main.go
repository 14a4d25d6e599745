// Command bibl manages a bibliothecula document library.
package main

import "github.com/mesh-intelligence/bibliothecula/internal/cli"

func main() {
	cli.Execute()
}
