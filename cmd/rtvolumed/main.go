package main

import (
	"fmt"
	"os"

	"github.com/styrainc/rtvolume/cmd/rtvolumed/internal/daemon"
)

func main() {
	if err := daemon.Command().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
