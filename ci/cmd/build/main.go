package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"dagger.io/dagger"

	"github.com/ceramicnetwork/go-pulse"
)

const (
	Env_EnvTag        = "ENV_TAG"
	Env_Registry      = "REGISTRY"
	Env_RegistryUser  = "REGISTRY_USER"
	Env_RegistryToken = "REGISTRY_TOKEN"
)

const (
	goImage      = "golang:1.22"
	runtimeImage = "gcr.io/distroless/static-debian12"
	imageName    = "app-pulse"
)

func main() {
	ctx := context.Background()

	client, err := dagger.Connect(ctx, dagger.WithLogOutput(os.Stdout))
	if err != nil {
		panic(err)
	}
	defer client.Close()

	// sqlite is pure Go, so the binary can be built without cgo and run on a static base image.
	binary := client.Container().
		From(goImage).
		WithDirectory("/src", client.Host().Directory("."), dagger.ContainerWithDirectoryOpts{
			Exclude: []string{"ci/", "data/", ".env"},
		}).
		WithWorkdir("/src").
		WithEnvVariable("CGO_ENABLED", "0").
		WithExec([]string{"go", "build", "-o", "/out/pulse", "./cmd/pulse"}).
		File("/out/pulse")
	container := client.Container(dagger.ContainerOpts{Platform: "linux/amd64"}).
		From(runtimeImage).
		WithFile("/pulse", binary).
		WithEnvVariable("SQLITE_PATH", "/data/pulse.db").
		WithEntrypoint([]string{"/pulse"})

	envTag := os.Getenv(Env_EnvTag)
	tags := []string{
		envTag,
		os.Getenv("BRANCH"),
		os.Getenv("SHA"),
	}
	// Only production images get the "latest" tag
	if envTag == pulse.EnvTag_Prod {
		tags = append(tags, "latest")
	}
	if err = pushImage(ctx, client, container, os.Getenv(Env_Registry), tags); err != nil {
		log.Fatalf("build: failed to push image: %v", err)
	}
}

func pushImage(ctx context.Context, client *dagger.Client, container *dagger.Container, registry string, tags []string) error {
	// Set up registry authentication
	registryToken := client.SetSecret("RegistryToken", os.Getenv(Env_RegistryToken))
	container = container.WithRegistryAuth(registry, os.Getenv(Env_RegistryUser), registryToken)
	for _, tag := range tags {
		if len(tag) == 0 {
			continue
		}
		if _, err := container.Publish(ctx, fmt.Sprintf("%s/%s:%s", registry, imageName, tag)); err != nil {
			return err
		}
	}
	return nil
}
