// Package container implements the unprivileged Linux sandbox: a
// five-stage fork chain that unshares user, PID, and mount namespaces,
// bind-mounts a pinned root filesystem, and execs a command inside it.
//
// The chain is driven by self-re-exec rather than hand-rolled clone(2)
// flag plumbing: each stage is the same binary invoked with a hidden
// marker argument, the technique distri's zi build command uses to
// continue execution after "unshare --user --map-root-user --mount --".
// cmd/chariot's main() intercepts the marker before cobra ever parses
// argv; see Dispatch.
package container

// Mount is a single user-supplied bind mount, relative to the rootfs
// root at Dest.
type Mount struct {
	Src      string `json:"src"`
	Dest     string `json:"dest"`
	ReadOnly bool   `json:"read_only"`
}

// Context is the builder-produced description of a single container
// invocation. It crosses process boundaries as JSON (see Run) and is
// never mutated once built — ApplyDefaultEnv returns a new map rather
// than writing into Env.
type Context struct {
	RootfsPath     string            `json:"rootfs_path"`
	RootfsReadOnly bool              `json:"rootfs_read_only"`
	Cwd            string            `json:"cwd"`
	UID            int               `json:"uid"`
	GID            int               `json:"gid"`
	Env            map[string]string `json:"env"`
	Mounts         []Mount           `json:"mounts"`
	Verbose        bool              `json:"verbose"`
	Args           []string          `json:"args"`
}

const defaultPathPrefix = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// ApplyDefaultEnv returns the composed environment for a single
// invocation: HOME defaults to Cwd if absent, LANG defaults to "C" if
// absent, and PATH (or a fresh one) is prefixed with the fixed system
// path. ctx.Env itself is left untouched.
func (ctx *Context) ApplyDefaultEnv() map[string]string {
	env := make(map[string]string, len(ctx.Env)+2)
	for k, v := range ctx.Env {
		env[k] = v
	}

	if _, ok := env["HOME"]; !ok {
		env["HOME"] = ctx.Cwd
	}
	if _, ok := env["LANG"]; !ok {
		env["LANG"] = "C"
	}

	if existing, ok := env["PATH"]; ok && existing != "" {
		env["PATH"] = defaultPathPrefix + ":" + existing
	} else {
		env["PATH"] = defaultPathPrefix
	}

	return env
}

// ShellArgs returns the argv for running a single shell fragment via
// execvp(["bash", "-c", fragment]).
func ShellArgs(fragment string) []string {
	return []string{"bash", "-c", fragment}
}
