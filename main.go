// The main package for the review-crawler executable.
package main

import (
	"github.com/JakeFAU/review-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
