package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/brigadier/internal/config"
	"github.com/sevigo/brigadier/internal/logger"
)

const testProjects = `
projects:
  - id: sevigo/brigadier
    pipelines:
      - on: exec
        run:
          serial:
            - job:
                name: hello
                primaryContainer:
                  image: alpine
                  command: ["echo", "hello"]
            - job:
                name: broken
                primaryContainer:
                  image: alpine
                  imagePullPolicy: Sometimes
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestReadEvent(t *testing.T) {
	path := writeFile(t, "event.json", `{"source": "cli", "type": "exec", "projectID": "sevigo/brigadier"}`)
	ev, err := readEvent(path)
	require.NoError(t, err)
	assert.Equal(t, "exec", ev.Type())

	_, err = readEvent(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestProcess_DryRun(t *testing.T) {
	projectsPath := writeFile(t, "projects.yaml", `
projects:
  - id: sevigo/brigadier
    pipelines:
      - on: exec
        run:
          job:
            name: hello
            primaryContainer:
              image: alpine
`)
	eventPath := writeFile(t, "event.json", `{"source": "cli", "type": "exec", "projectID": "sevigo/brigadier"}`)

	ev, err := readEvent(eventPath)
	require.NoError(t, err)

	cfg := &config.Config{
		Logging:  loggerConfigForTests(),
		JobHost:  config.JobHostConfig{Driver: config.DriverDryRun},
		Projects: config.ProjectsConfig{Store: config.StoreFile, File: projectsPath},
	}
	out, err := process(context.Background(), cfg, ev)
	require.NoError(t, err)
	require.NoError(t, out.Err())
	assert.False(t, out.Unhandled)
	assert.Len(t, out.Handlers, 1)
}

func TestProcess_InvalidPipelineIsRejected(t *testing.T) {
	cfg := &config.Config{
		Logging:  loggerConfigForTests(),
		JobHost:  config.JobHostConfig{Driver: config.DriverDryRun},
		Projects: config.ProjectsConfig{Store: config.StoreFile, File: writeFile(t, "projects.yaml", testProjects)},
	}
	ev, err := readEvent(writeFile(t, "event.json", `{"source": "cli", "type": "exec", "projectID": "sevigo/brigadier"}`))
	require.NoError(t, err)

	_, err = process(context.Background(), cfg, ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "imagePullPolicy")
}

func loggerConfigForTests() logger.Config {
	return logger.Config{Level: "error", Output: "stderr"}
}
