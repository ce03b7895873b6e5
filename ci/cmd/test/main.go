package main

import (
	"context"
	"log"
	"os"

	"dagger.io/dagger"
)

const goImage = "golang:1.22"

func main() {
	ctx := context.Background()

	// Initialize the Dagger client
	client, err := dagger.Connect(ctx, dagger.WithLogOutput(os.Stdout))
	if err != nil {
		panic(err)
	}
	defer client.Close()

	// Mount the module root at /src, leaving out the pipelines themselves and local data.
	source := client.Container().
		From(goImage).
		WithDirectory(
			"/src",
			client.Host().Directory("../../../"), dagger.ContainerWithDirectoryOpts{
				Exclude: []string{"ci/", "data/", ".env"},
			},
		).
		WithMountedCache("/go/pkg/mod", client.CacheVolume("go-mod"))

	runner := source.WithWorkdir("/src")

	// Run the tests for every package, including the sqlite store conformance suite.
	out, err := runner.WithExec([]string{"go", "test", "-race", "./..."}).Stdout(ctx)
	if err != nil {
		log.Fatalf("test: error running tests [%v]", err)
	}
	log.Printf("test: finished running tests [%s]", out)
}
