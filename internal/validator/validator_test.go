package validator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber map[string]float64

func (f fakeProber) DurationSeconds(_ context.Context, path string) (float64, error) {
	d, ok := f[path]
	if !ok {
		return 0, errors.New("no duration")
	}
	return d, nil
}

func write(t *testing.T, name, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func TestValidate(t *testing.T) {
	in := write(t, "in.mov", "source")
	out := write(t, "out.tmp", "encoded")
	empty := write(t, "empty.tmp", "")
	ctx := context.Background()

	tests := []struct {
		name    string
		prober  Prober
		output  string
		preview bool
		wantErr string
	}{
		{"matching durations", fakeProber{in: 600, out: 598}, out, false, ""},
		{"drift too large", fakeProber{in: 600, out: 300}, out, false, "duration mismatch"},
		{"empty output", fakeProber{in: 600, out: 600}, empty, false, "empty"},
		{"missing output", nil, filepath.Join(t.TempDir(), "nope"), false, "cannot stat"},
		{"output unprobeable", fakeProber{in: 600}, out, false, "output duration"},
		{"input unprobeable", fakeProber{out: 600}, out, false, "input duration"},
		{"preview within limit", fakeProber{out: 10}, out, true, ""},
		{"preview too long", fakeProber{out: 600}, out, true, "preview output"},
		{"no prober only checks size", nil, out, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validator{Prober: tt.prober}.Validate(ctx, in, tt.output, tt.preview)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
