package main

import (
	"flag"
	"fmt"

	"github.com/sparrow996/chat-front/src/blob"
	"github.com/sparrow996/chat-front/src/logging"
	"github.com/sparrow996/chat-front/src/server"
	"github.com/sparrow996/chat-front/src/store"
)

var (
	// Port defines what port the server should listen on
	Port = "8003"
	// NoSeed skips loading the demonstration identities and messages
	NoSeed = false
)

func main() {
	flag.StringVar(&Port, "port", Port, "port for the server")
	flag.BoolVar(&NoSeed, "no-seed", NoSeed, "start with an empty store")
	debug := flag.Bool("debug", false, "turn on debug mode")
	flag.Parse()
	if *debug {
		logging.SetLoggingLevel("debug")
	} else {
		logging.SetLoggingLevel("info")
	}

	err := Run()
	if err != nil {
		fmt.Println("error: " + err.Error())
	}
}

// Run opens the store, seeds it, and starts the server listening.
func Run() (err error) {
	db, err := store.Open()
	if err != nil {
		return
	}
	defer db.Close()
	if !NoSeed {
		if err = db.SeedDemo(); err != nil {
			return
		}
	}

	s, err := server.New(db, blob.NewStore())
	if err != nil {
		return
	}
	return s.Run(Port)
}
