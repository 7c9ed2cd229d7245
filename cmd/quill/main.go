package main

import (
	"os"

	"github.com/rzbill/quill/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
