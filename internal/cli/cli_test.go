package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aashu-1911/sutra-backend/internal/models"
	"github.com/Aashu-1911/sutra-backend/internal/service"
	"github.com/Aashu-1911/sutra-backend/pkg/config"
)

const datasetYAML = `branch: CSE
division: A
theory:
  - name: Data Structures
  - name: Operating Systems
labs:
  - name: DS Lab
faculty:
  - name: Dr. Rao
    subject: Data Structures
venues:
  - id: H101
  - id: Lab-1
batches:
  - id: B1
  - id: B2
`

func testConfig() *config.Config {
	return &config.Config{
		Scheduler: config.SchedulerConfig{OverflowPolicy: config.OverflowReject},
		Auth:      config.AuthConfig{Secret: "cli-secret", Expiration: time.Hour},
	}
}

func execute(t *testing.T, app *App, stdin string, args ...string) (string, string, error) {
	t.Helper()
	app.Stdin = strings.NewReader(stdin)
	cmd := NewRootCmd(app)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestGenerateFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.yaml")
	require.NoError(t, os.WriteFile(path, []byte(datasetYAML), 0o600))

	out, errOut, err := execute(t, &App{Config: testConfig(), IsTerminal: func() bool { return true }}, "", "generate", path, "--seed", "5")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "| Day | Time | Class/Batch | Course Name | Faculty | Venue |"))
	assert.Contains(t, out, "Data Structures")
	assert.Contains(t, errOut, "status=COMPLETE")
	assert.Contains(t, errOut, "seed=5")
}

func TestGenerateIsReproducibleWithSeed(t *testing.T) {
	first, _, err := execute(t, &App{Config: testConfig()}, datasetYAML, "generate", "-", "--seed", "9", "--format", "csv")
	require.NoError(t, err)
	second, _, err := execute(t, &App{Config: testConfig()}, datasetYAML, "generate", "-", "--seed", "9", "--format", "csv")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "Day,Time,Class/Batch,Course Name,Faculty,Venue\n"))
}

func TestGenerateDefaultsToJSONWhenPiped(t *testing.T) {
	out, _, err := execute(t, &App{Config: testConfig()}, datasetYAML, "generate", "-", "--deterministic")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "COMPLETE", decoded["status"])
}

func TestGenerateOverflowPolicy(t *testing.T) {
	var b strings.Builder
	b.WriteString("batches:\n  - id: B1\ntheory:\n")
	for i := 0; i < 20; i++ {
		b.WriteString("  - name: Course " + string(rune('A'+i)) + "\n")
	}
	cfg := testConfig()
	cfg.Scheduler.MaxTheory = 20

	_, _, err := execute(t, &App{Config: cfg}, b.String(), "generate", "-", "--deterministic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not fit the weekly grid")

	_, errOut, err := execute(t, &App{Config: cfg}, b.String(), "generate", "-", "--deterministic", "--overflow", "allow")
	require.NoError(t, err)
	assert.Contains(t, errOut, "status=PARTIAL")
}

func TestGenerateRejectsBadInput(t *testing.T) {
	_, _, err := execute(t, &App{Config: testConfig()}, "", "generate", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, _, err = execute(t, &App{Config: testConfig()}, datasetYAML, "generate", "-", "--format", "xml")
	assert.Error(t, err)
}

const messyText = `Here you go:
| Day | Time | Class/Batch | Course Name | Faculty | Venue |
|---|---|---|---|---|---|
| Monday | 9:00-10:00 | All Batches | DS101 | Dr. A | H101 |
| Monday | 9:00-10:00 | B1 | OS Lab | Dr. A | Lab-1 |`

func TestNormalize(t *testing.T) {
	out, _, err := execute(t, &App{Config: testConfig()}, messyText, "normalize", "-", "--format", "markdown")
	require.NoError(t, err)
	assert.NotContains(t, out, "Here you go")
	assert.Contains(t, out, "| Monday | 9:00-10:00 | B1 | OS Lab | Dr. A | Lab-1 |")

	_, errOut, err := execute(t, &App{Config: testConfig()}, messyText, "normalize", "-", "--validate", "--format", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict(s) found")
	assert.Contains(t, errOut, "Dr. A")
}

const completeTable = `| Day | Time | Class/Batch | Course Name | Faculty | Venue |
|---|---|---|---|---|---|
| Monday | 9:00-10:00 | All Batches | Data Structures | Dr. Rao | H101 |
| Monday | 10:00-11:00 | All Batches | Operating Systems | Dr. Sen | H101 |
| Tuesday | 9:00-10:00 | All Batches | Data Structures | Dr. Rao | H101 |
| Tuesday | 10:00-11:00 | All Batches | Operating Systems | Dr. Sen | H101 |
| Wednesday | 9:00-10:00 | B1 | DS Lab | Dr. Rao | Lab-1 |
| Wednesday | 10:00-11:00 | B2 | DS Lab | Dr. Rao | Lab-1 |
| Tuesday | 2:00-3:00 | All Batches | Library | - | Library |
| Wednesday | 2:00-3:00 | All Batches | Project | - | Project Lab |
| Thursday | 3:00-4:00 | All Batches | Library | - | Library |
| Friday | 3:00-4:00 | All Batches | Project | - | Project Lab |
`

func TestNormalizeValidatesAgainstDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.yaml")
	require.NoError(t, os.WriteFile(path, []byte(datasetYAML), 0o600))

	_, _, err := execute(t, &App{Config: testConfig()}, completeTable, "normalize", "-", "--validate", "--dataset", path, "--format", "csv")
	require.NoError(t, err)

	underFilled := strings.Replace(completeTable, "| Wednesday | 10:00-11:00 | B2 | DS Lab | Dr. Rao | Lab-1 |\n", "", 1)
	_, errOut, err := execute(t, &App{Config: testConfig()}, underFilled, "normalize", "-", "--validate", "--format", "csv")
	require.NoError(t, err)
	assert.Empty(t, errOut)

	_, errOut, err = execute(t, &App{Config: testConfig()}, underFilled, "normalize", "-", "--validate", "--dataset", path, "--format", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 conflict(s) found")
	assert.Contains(t, errOut, "DS Lab for B2 placed 0 times, expected 1")

	noLibrary := strings.Replace(completeTable, "| Thursday | 3:00-4:00 | All Batches | Library | - | Library |\n", "", 1)
	_, errOut, err = execute(t, &App{Config: testConfig()}, noLibrary, "normalize", "-", "--validate", "--format", "csv")
	require.Error(t, err)
	assert.Contains(t, errOut, "Library missing on Thursday 3:00-4:00")
}

func TestTokenCommandMintsVerifiableToken(t *testing.T) {
	cfg := testConfig()
	out, _, err := execute(t, &App{Config: cfg}, "", "token", "--role", "coordinator", "--subject", "u-42")
	require.NoError(t, err)

	claims, err := service.NewTokenService(service.TokenConfig{Secret: cfg.Auth.Secret}).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, models.RoleCoordinator, claims.Role)
	assert.Equal(t, "u-42", claims.UserID)

	_, _, err = execute(t, &App{Config: cfg}, "", "token", "--role", "janitor")
	assert.Error(t, err)
}
