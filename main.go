// The main package for the kbscrape executable.
package main

import (
	"github.com/JakeFAU/kb-newspaper-scraper/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
