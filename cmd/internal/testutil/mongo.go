// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MongoURLEnv carries the MongoDB URI integration tests connect to.
const MongoURLEnv = "DEEPLINK_TEST_MONGO_URL"

// IntegrationEnv enables container-backed integration tests.
const IntegrationEnv = "GO_TEST_INTEGRATION"

// RunWithMongo runs m, first starting MongoDB in a container when
// GO_TEST_INTEGRATION is set and DEEPLINK_TEST_MONGO_URL is not.
// The container address is exported via DEEPLINK_TEST_MONGO_URL.
// It returns the exit code for os.Exit.
func RunWithMongo(run func() int) int {
	if os.Getenv(IntegrationEnv) == "" || os.Getenv(MongoURLEnv) != "" {
		return run()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7.0",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start mongo testcontainer: %v\n", err)
		return 1
	}
	defer func() { _ = mongoC.Terminate(context.Background()) }()

	host, err := mongoC.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		return 1
	}
	port, err := mongoC.MappedPort(ctx, "27017/tcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get mapped port: %v\n", err)
		return 1
	}
	_ = os.Setenv(MongoURLEnv, fmt.Sprintf("mongodb://%s:%s", host, port.Port()))

	return run()
}
