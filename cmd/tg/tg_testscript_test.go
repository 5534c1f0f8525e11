package main

import (
	"testing"

	"github.com/amonks/taskgraph/internal/testsupport"
	"github.com/rogpeppe/go-internal/testscript"
)

func TestTGScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/scripts",
		Setup: func(env *testscript.Env) error {
			return testsupport.SetupScriptEnv(t, env)
		},
		Cmds: testsupport.Commands(),
	})
}
