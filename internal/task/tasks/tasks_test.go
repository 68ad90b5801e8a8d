package tasks

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/phrazzld/stack-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

func request(t *testing.T, name string, args []any, kwargs map[string]any) *task.Request {
	t.Helper()
	sig, err := task.NewSignature(name, args, kwargs)
	require.NoError(t, err)
	return &task.Request{Name: sig.Name, Args: sig.Args, Kwargs: sig.Kwargs}
}

func TestAdd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []any
		want    float64
		wantErr bool
	}{
		{"integers", []any{2, 3}, 5, false},
		{"floats", []any{0.5, -1.25}, -0.75, false},
		{"missing operand", []any{1}, 0, true},
		{"non numeric", []any{"a", 1}, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Add(context.Background(), request(t, task.NameAdd, tc.args, nil))
			if tc.wantErr {
				assert.ErrorIs(t, err, task.ErrInvalidArguments)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMultiply(t *testing.T) {
	t.Parallel()

	got, err := Multiply(context.Background(), request(t, task.NameMultiply, nil, map[string]any{"a": 2.5, "b": 4}))
	require.NoError(t, err)
	assert.Equal(t, BinaryResult{S: 10}, got)

	encoded, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":10}`, string(encoded))

	_, err = Multiply(context.Background(), request(t, task.NameMultiply, nil, map[string]any{"a": 1}))
	assert.ErrorIs(t, err, task.ErrInvalidArguments)
}

func TestSampleNormal(t *testing.T) {
	t.Parallel()
	handler := SampleNormal(rand.NewPCG(1, 2))
	want := distuv.Normal{Mu: 10, Sigma: 2, Src: rand.NewPCG(1, 2)}.Rand()

	got, err := handler(context.Background(), request(t, task.NameSampleNormal, nil, map[string]any{"loc": 10, "scale": 2}))
	require.NoError(t, err)
	assert.Equal(t, SampleResult{S: want}, got, "same seed draws the same sample")

	for _, scale := range []float64{0, -1} {
		_, err = handler(context.Background(), request(t, task.NameSampleNormal, nil, map[string]any{"loc": 0, "scale": scale}))
		assert.ErrorIs(t, err, task.ErrInvalidArguments)
	}

	_, err = handler(context.Background(), request(t, task.NameSampleNormal, nil, map[string]any{"scale": 1}))
	assert.ErrorIs(t, err, task.ErrInvalidArguments, "loc is required")
}

func TestSampleNormal_Distribution(t *testing.T) {
	t.Parallel()
	handler := SampleNormal(rand.NewPCG(7, 11))
	req := request(t, task.NameSampleNormal, nil, map[string]any{"loc": -3, "scale": 0.5})

	samples := make([]float64, 5000)
	for i := range samples {
		got, err := handler(context.Background(), req)
		require.NoError(t, err)
		samples[i] = got.(SampleResult).S
	}

	mean, std := stat.MeanStdDev(samples, nil)
	assert.InDelta(t, -3, mean, 0.05)
	assert.InDelta(t, 0.5, std, 0.05)
}

func TestRegisterWorkers(t *testing.T) {
	t.Parallel()

	alpha := task.NewRegistry()
	require.NoError(t, Workers[task.QueueAlpha].Register(alpha))
	assert.Equal(t, []string{task.NameAdd, task.NameMultiply}, alpha.Names())
	assert.Equal(t, []string{task.QueueAlpha, task.QueueShared}, Workers[task.QueueAlpha].Queues)

	beta := task.NewRegistry()
	require.NoError(t, Workers[task.QueueBeta].Register(beta))
	assert.Equal(t, []string{task.NameAdd, task.NameSampleNormal}, beta.Names())
	assert.Equal(t, []string{task.QueueBeta, task.QueueShared}, Workers[task.QueueBeta].Queues)
}

func TestSummationChain(t *testing.T) {
	t.Parallel()

	t.Run("b zero", func(t *testing.T) {
		links, value, ok, err := SummationChain(BinaryIntegerOperands{A: 7, B: 0})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, value)
		assert.Nil(t, links)
	})

	t.Run("b one", func(t *testing.T) {
		_, value, ok, err := SummationChain(BinaryIntegerOperands{A: 7, B: 1})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int64(7), value)
	})

	t.Run("b four", func(t *testing.T) {
		links, _, ok, err := SummationChain(BinaryIntegerOperands{A: 7, B: 4})
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, links, 3)
		assert.JSONEq(t, `7`, string(links[0].Args[0]))
		assert.JSONEq(t, `7`, string(links[0].Args[1]))
		for _, link := range links[1:] {
			assert.Equal(t, task.NameAdd, link.Name)
			require.Len(t, link.Args, 1)
			assert.JSONEq(t, `7`, string(link.Args[0]))
		}
	})

	t.Run("negative b", func(t *testing.T) {
		_, _, _, err := SummationChain(BinaryIntegerOperands{A: 7, B: -1})
		assert.ErrorIs(t, err, task.ErrInvalidArguments)
	})

	t.Run("b too large", func(t *testing.T) {
		_, _, _, err := SummationChain(BinaryIntegerOperands{A: 7, B: MaxSummationLength + 1})
		assert.ErrorIs(t, err, task.ErrInvalidArguments)
	})
}
