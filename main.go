package main

import (
	"log"
	_ "time/tzdata"

	"shuttle-ticket/cmd"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
