package commands_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/floe/cmd/floe-activations/commands"
	"go.trai.ch/floe/internal/adapters/proc"
	"go.trai.ch/floe/internal/adapters/state"
	"go.trai.ch/floe/internal/app"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(error, ...any)  {}

type nopSpawner struct{}

func (nopSpawner) Spawn(string, string, string) error { return nil }

func newCLI(t *testing.T) *commands.CLI {
	t.Helper()
	lifecycle := app.NewLifecycle(
		state.NewActivationsStore(), proc.New(), nopSpawner{},
		clockwork.NewRealClock(), nopLogger{},
	)
	return commands.New(lifecycle, t.TempDir())
}

func TestPrependAndDedup(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "suffix applied to each dir",
			args: []string{"prepend-and-dedup", "--env-dirs", "foo:bar", "--suffix", "bin"},
			want: "foo/bin:bar/bin\n",
		},
		{
			name: "existing entries deduplicated",
			args: []string{
				"prepend-and-dedup",
				"--env-dirs", "foo",
				"--suffix", "bin",
				"--path-like", "/usr/bin:foo/bin:/bin",
			},
			want: "foo/bin:/usr/bin:/bin\n",
		},
		{
			name: "no suffix keeps dirs bare",
			args: []string{"prepend-and-dedup", "--env-dirs", "foo:bar", "--path-like", "/usr/bin"},
			want: "foo:bar:/usr/bin\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cli := newCLI(t)
			var out bytes.Buffer
			cli.SetOut(&out)
			cli.SetArgs(tc.args)

			require.NoError(t, cli.Execute(context.Background()))
			assert.Equal(t, tc.want, out.String())
		})
	}
}

func TestPrependAndDedup_RequiresEnvDirs(t *testing.T) {
	cli := newCLI(t)
	cli.SetOut(&bytes.Buffer{})
	cli.SetArgs([]string{"prepend-and-dedup"})
	require.Error(t, cli.Execute(context.Background()))
}

func TestRoot_Help(t *testing.T) {
	cli := newCLI(t)
	cli.SetOut(&bytes.Buffer{})
	cli.SetArgs([]string{"--help"})
	require.NoError(t, cli.Execute(context.Background()))
}
