package main

import (
	"log"

	"github.com/wastemaster/wastemaster/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
