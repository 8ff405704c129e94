package audio_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sahilpatil2001/mme-fastapi/internal/audio"
	"github.com/Sahilpatil2001/mme-fastapi/internal/audio/audiotest"
)

func TestSilenceCache_GetRendersOnce(t *testing.T) {
	dir := t.TempDir()
	runner := &audiotest.FakeRunner{}
	cache := audio.NewSilenceCache(dir, runner)
	ctx := context.Background()

	first, err := cache.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "silence_2s.mp3"), first)

	second, err := cache.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, int64(1), cache.Generated())
	assert.Len(t, runner.Calls(), 1)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "silence:2\n", string(data))
}

func TestSilenceCache_RenderArguments(t *testing.T) {
	runner := &audiotest.FakeRunner{}
	cache := audio.NewSilenceCache(t.TempDir(), runner)

	_, err := cache.Get(context.Background(), 3)
	require.NoError(t, err)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	args := calls[0]
	assert.Equal(t, []string{
		"-y",
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=mono",
		"-t", "3",
		"-q:a", "9",
		"-acodec", "libmp3lame",
	}, args[:len(args)-1])
	assert.Equal(t, ".mp3", filepath.Ext(args[len(args)-1]))
}

func TestSilenceCache_ReusesExistingFile(t *testing.T) {
	dir := t.TempDir()
	runner := &audiotest.FakeRunner{}

	existing := filepath.Join(dir, "silence_5s.mp3")
	require.NoError(t, os.WriteFile(existing, []byte("from a previous run"), 0600))

	cache := audio.NewSilenceCache(dir, runner)
	path, err := cache.Get(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, existing, path)
	assert.Equal(t, int64(0), cache.Generated())
	assert.Empty(t, runner.Calls())
}

func TestSilenceCache_RegeneratesDeletedFile(t *testing.T) {
	runner := &audiotest.FakeRunner{}
	cache := audio.NewSilenceCache(t.TempDir(), runner)
	ctx := context.Background()

	path, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	again, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.FileExists(t, again)
	assert.Equal(t, int64(2), cache.Generated())
}

func TestSilenceCache_DistinctDurations(t *testing.T) {
	cache := audio.NewSilenceCache(t.TempDir(), &audiotest.FakeRunner{})
	ctx := context.Background()

	one, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	two, err := cache.Get(ctx, 2)
	require.NoError(t, err)

	assert.NotEqual(t, one, two)
	assert.Equal(t, int64(2), cache.Generated())
}

func TestSilenceCache_InvalidDuration(t *testing.T) {
	runner := &audiotest.FakeRunner{}
	cache := audio.NewSilenceCache(t.TempDir(), runner)

	_, err := cache.Get(context.Background(), 0)
	assert.Error(t, err)
	assert.Empty(t, runner.Calls())
}

func TestSilenceCache_ToolFailure(t *testing.T) {
	dir := t.TempDir()
	runner := &audiotest.FakeRunner{Fail: audiotest.Failing("lavfi", 1, "Unknown encoder 'libmp3lame'")}
	cache := audio.NewSilenceCache(dir, runner)

	_, err := cache.Get(context.Background(), 2)
	require.Error(t, err)

	var assemblyErr *audio.AssemblyError
	require.True(t, errors.As(err, &assemblyErr))
	assert.Equal(t, "silence", assemblyErr.Op)

	var toolErr *audio.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, 1, toolErr.ExitCode)
	assert.Contains(t, toolErr.Stderr, "libmp3lame")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial clip should be left behind")
	assert.Equal(t, int64(0), cache.Generated())
}

func TestSilenceCache_ConcurrentGet(t *testing.T) {
	cache := audio.NewSilenceCache(t.TempDir(), &audiotest.FakeRunner{})
	ctx := context.Background()

	const workers = 8
	paths := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = cache.Get(ctx, 4)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, paths[0], paths[i])
	}
	assert.FileExists(t, paths[0])
	assert.GreaterOrEqual(t, cache.Generated(), int64(1))
}
