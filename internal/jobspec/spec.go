package jobspec

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/nbproc/nbproc/internal/procio"
)

// Spec is a resolved launch request, ready to hand to procio.Execute.
type Spec struct {
	Args       []string
	Env        []string
	Dir        string
	StderrMode procio.StderrMode
}

// Load reads a Spec from path. Paths ending in ".lua" are executed as
// Lua scripts (see loadLua); everything else is parsed as JSON.
func Load(path string) (Spec, error) {
	if strings.HasSuffix(path, ".lua") {
		return loadLua(path)
	}
	return loadJSON(path)
}

func loadJSON(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("jobspec: read %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) {
		return Spec{}, fmt.Errorf("jobspec: %s: invalid JSON", path)
	}

	root := gjson.ParseBytes(data)

	argsResult := root.Get("args")
	argsArray := argsResult.Array()
	if !argsResult.IsArray() || len(argsArray) == 0 {
		return Spec{}, fmt.Errorf("jobspec: %s: \"args\" must be a non-empty array", path)
	}
	args := make([]string, 0, len(argsArray))
	for _, a := range argsArray {
		args = append(args, a.String())
	}

	var env []string
	for _, e := range root.Get("env").Array() {
		env = append(env, e.String())
	}

	return Spec{
		Args:       args,
		Env:        env,
		Dir:        root.Get("dir").String(),
		StderrMode: parseStderrMode(root.Get("stderr").String()),
	}, nil
}

func parseStderrMode(s string) procio.StderrMode {
	if s == "discard" {
		return procio.StderrDiscard
	}
	return procio.StderrInherit
}

func stderrModeString(m procio.StderrMode) string {
	if m == procio.StderrDiscard {
		return "discard"
	}
	return "inherit"
}

// Resolved renders spec as the same JSON shape Load accepts, so a
// scripted (.lua) spec can be echoed back for inspection.
func Resolved(spec Spec) (string, error) {
	out := "{}"

	out, err := sjson.Set(out, "args", spec.Args)
	if err != nil {
		return "", fmt.Errorf("jobspec: render args: %w", err)
	}
	out, err = sjson.Set(out, "env", spec.Env)
	if err != nil {
		return "", fmt.Errorf("jobspec: render env: %w", err)
	}
	out, err = sjson.Set(out, "dir", spec.Dir)
	if err != nil {
		return "", fmt.Errorf("jobspec: render dir: %w", err)
	}
	out, err = sjson.Set(out, "stderr", stderrModeString(spec.StderrMode))
	if err != nil {
		return "", fmt.Errorf("jobspec: render stderr: %w", err)
	}
	return out, nil
}
