// Package tools provides shell command execution for the utilctl binaries.
// Everything that shells out (7zz, op, borg, systemctl) goes through a
// CommandRunner so tests can substitute a fake.
package tools
