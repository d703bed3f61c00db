package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/localnerve/nodues/tests/helpers"
)

const usage = `
Run the nodues backing services (database, redis, nats, minio and, when
AUTHZ_IMAGE is set, the authorizer) until interrupted.

Usage:

testcontainers [-h] [-f ENV_FILE_PATH] [-o OUTPUT_ENV_FILE]

ENV_FILE_PATH:   .env file to load before starting the containers
OUTPUT_ENV_FILE: write the host reachable settings to this file, ready for
                 the server and worker to load with -f or godotenv

example
  testcontainers -f ./test.env -o ./.env.local
`

func printUsage(w io.Writer) {
	fmt.Fprint(w, usage)
}

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename, outFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	flag.StringVar(&outFilename, "o", "", "path to write the resulting settings")
	flag.Parse()

	if showHelp {
		printUsage(os.Stdout)
		return
	}

	if envFilename != "" {
		log.Printf("Loading environment variables from %s\n", envFilename)
		if err := godotenv.Load(envFilename); err != nil {
			log.Fatalf("Failed to load environment variables: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	tc, err := helpers.CreateAllTestContainers(nil)
	if err != nil {
		log.Fatalf("Failed to create test containers: %v\n", err)
	}

	if outFilename != "" {
		env := map[string]string{
			"DB_APP_CONNECTION_LIMIT": "10",
			"DB_CONNECTION_LIMIT":     "5",
		}
		for k, v := range tc.Env {
			env[k] = v
		}
		if err := godotenv.Write(env, outFilename); err != nil {
			log.Printf("Failed to write %s: %v\n", outFilename, err)
		} else {
			log.Printf("Wrote settings to %s\n", outFilename)
		}
	} else {
		keys := make([]string, 0, len(tc.Env))
		for k := range tc.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(os.Stdout, "export %s=%q\n", k, tc.Env[k])
		}
	}

	<-ctx.Done()
	log.Printf("\nReceived signal, terminating test containers...\n")
	tc.Terminate(nil)
}
