package testsupport

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
	"github.com/tidwall/gjson"
)

var (
	buildOnce sync.Once
	tgPath    string
	buildErr  error
)

// BuildTG builds the tg binary once and returns its path.
func BuildTG(t testing.TB) string {
	t.Helper()

	buildOnce.Do(func() {
		moduleRoot, err := findModuleRoot()
		if err != nil {
			buildErr = err
			return
		}

		binDir, err := os.MkdirTemp("", "tg-bin-")
		if err != nil {
			buildErr = err
			return
		}

		tgPath = filepath.Join(binDir, "tg")
		cmd := exec.Command("go", "build", "-o", tgPath, "./cmd/tg")
		cmd.Dir = moduleRoot
		output, err := cmd.CombinedOutput()
		if err != nil {
			buildErr = fmt.Errorf("build tg: %w: %s", err, strings.TrimSpace(string(output)))
		}
	})

	if buildErr != nil {
		t.Fatalf("%v", buildErr)
	}

	return tgPath
}

// SetupScriptEnv configures common environment variables for testscript.
func SetupScriptEnv(t testing.TB, env *testscript.Env) error {
	t.Helper()

	env.Setenv("TG", BuildTG(t))

	homeDir := filepath.Join(env.WorkDir, "home")
	if err := EnsureHomeDirs(homeDir); err != nil {
		return err
	}
	env.Setenv("HOME", homeDir)
	env.Setenv("TG_ACTOR", "alice")
	env.Setenv("NO_COLOR", "1")
	return nil
}

// Commands returns the custom testscript commands.
func Commands() map[string]func(ts *testscript.TestScript, neg bool, args []string) {
	return map[string]func(ts *testscript.TestScript, neg bool, args []string){
		"envset":  CmdEnvSet,
		"taskid":  CmdTaskID,
		"jsonget": CmdJSONGet,
	}
}

// CmdEnvSet stores the trimmed contents of a file in an env var.
func CmdEnvSet(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("envset does not support negation")
	}
	if len(args) != 2 {
		ts.Fatalf("usage: envset VAR FILE")
	}

	value := strings.TrimSpace(ts.ReadFile(args[1]))
	ts.Setenv(args[0], value)
}

// CmdTaskID finds a task by title in JSON output and stores its ID in an
// env var. The file may hold a task, a list of tasks or {"tasks": [...]}.
func CmdTaskID(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("taskid does not support negation")
	}
	if len(args) != 3 {
		ts.Fatalf("usage: taskid FILE TITLE VAR")
	}

	data := ts.ReadFile(args[0])
	if !gjson.Valid(data) {
		ts.Fatalf("%s is not valid JSON", args[0])
	}
	title := args[1]
	query := fmt.Sprintf("#(title==%q).id", title)
	for _, path := range []string{query, "tasks." + query} {
		if id := gjson.Get(data, path); id.Exists() {
			ts.Setenv(args[2], id.String())
			return
		}
	}
	if gjson.Get(data, "title").String() == title {
		ts.Setenv(args[2], gjson.Get(data, "id").String())
		return
	}

	ts.Fatalf("task with title %q not found", title)
}

// CmdJSONGet stores the value at a gjson path of a JSON file in an env var.
func CmdJSONGet(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("jsonget does not support negation")
	}
	if len(args) != 3 {
		ts.Fatalf("usage: jsonget FILE PATH VAR")
	}

	value := gjson.Get(ts.ReadFile(args[0]), args[1])
	if !value.Exists() {
		ts.Fatalf("%s: no value at %s", args[0], args[1])
	}
	ts.Setenv(args[2], value.String())
}

func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find module root (go.mod)")
		}
		dir = parent
	}
}
