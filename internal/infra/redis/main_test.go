//go:build integration

package redis

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"photobridge/internal/config"
)

var testClient *Client

func TestMain(m *testing.M) {
	ctx := context.Background()
	port := "6379"

	cmd := exec.Command("docker", "run", "-d", "--rm", "--network", "host", "redis:7-alpine")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		log.Fatalf("could not start redis container: %v. Is Docker running?", err)
	}
	containerID := strings.TrimSpace(out.String())[:12]

	cfg := &config.RedisConfig{URL: fmt.Sprintf("redis://localhost:%s/0", port), KeyPrefix: "photobridge-test"}
	var err error
	const maxRetries = 15
	for i := 0; i < maxRetries; i++ {
		testClient, err = NewClient(ctx, cfg)
		if err == nil {
			break
		}
		log.Printf("Waiting for redis to be ready... (attempt %d/%d)", i+1, maxRetries)
		time.Sleep(time.Second)
	}
	if err != nil {
		exec.Command("docker", "stop", containerID).Run()
		log.Fatalf("Unable to connect to test redis: %v\n", err)
	}

	exitCode := m.Run()

	testClient.Close()
	if err := exec.Command("docker", "stop", containerID).Run(); err != nil {
		log.Printf("could not stop redis container %s: %v", containerID, err)
	}
	os.Exit(exitCode)
}

func cleanup(t *testing.T) {
	t.Helper()
	if err := testClient.cli.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("Failed to flush redis: %v", err)
	}
}
