package executor

import "runtime"

// Shell is an interpreter plus the flags that make it run one command string.
type Shell struct {
	Path string
	Args []string
}

// Command returns the argv for running command through the shell.
func (s Shell) Command(command string) []string {
	argv := make([]string, 0, len(s.Args)+2)
	argv = append(argv, s.Path)
	argv = append(argv, s.Args...)
	return append(argv, command)
}

// ShellFor maps an OS family (a GOOS value) to its shell invocation.
// Windows uses PowerShell; every other platform uses the POSIX shell.
func ShellFor(goos string) Shell {
	if goos == "windows" {
		return Shell{Path: "powershell", Args: []string{"-NoProfile", "-NonInteractive", "-Command"}}
	}
	return Shell{Path: "sh", Args: []string{"-c"}}
}

// HostShell returns the shell for the running OS.
func HostShell() Shell {
	return ShellFor(runtime.GOOS)
}
