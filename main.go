package main

import (
	"log"

	"github.com/quartzchat/quartz/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatalln(err)
	}
}
