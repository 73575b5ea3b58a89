package main

import (
	"os"

	"github.com/ensdns/ensdns/coremain"
)

func main() {
	if err := coremain.Run(); err != nil {
		os.Exit(1)
	}
}
