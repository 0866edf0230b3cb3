package fetcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servpack/servpack/blacklist"
	"github.com/servpack/servpack/modpack"
)

func testMods(n int) (map[string]string, []modpack.Mod) {
	served := make(map[string]string, n)
	mods := make([]modpack.Mod, n)
	for i := 0; i < n; i++ {
		served[fmt.Sprintf("%d/%d", i+1, i+100)] = fmt.Sprintf("mod-%d.jar", i)
		mods[i] = curseMod(i+1, i+100)
	}
	return served, mods
}

func cachedSet(t *testing.T, dl *Fetcher, mods []modpack.Mod) []string {
	t.Helper()
	var names []string
	for _, m := range mods {
		dir, base := dl.cachePath(m)
		if _, err := dl.Files.Stat(dl.Files.Join(dir, base+".dat")); err == nil {
			names = append(names, fmt.Sprintf("%s/%s", dir, base))
		}
	}
	sort.Strings(names)
	return names
}

func TestCacheAllWorkerCounts(t *testing.T) {
	served, mods := testMods(8)

	var want []string
	for _, workers := range []int{1, 2, 4, 16} {
		ms := newModServer(served)
		dl := newTestFetcher(t, ms)

		var pr Progress
		results := dl.CacheAll(context.Background(), mods, workers, nil, &pr)
		ms.close()

		for _, r := range results {
			require.NoError(t, r.Err)
		}
		done, failed, skipped := pr.Counts()
		assert.Equal(t, len(mods), done)
		assert.Equal(t, 0, failed)
		assert.Equal(t, 0, skipped)

		got := cachedSet(t, dl, mods)
		require.Len(t, got, len(mods))
		if want == nil {
			want = got
			continue
		}
		// The downloaded set is the same for every worker count.
		assert.Equal(t, want, got)
	}
}

func TestCacheAllBlacklist(t *testing.T) {
	served, mods := testMods(3)
	ms := newModServer(served)
	defer ms.close()
	dl := newTestFetcher(t, ms)

	bl, err := blacklist.Parse(strings.NewReader("mod-0*\n"))
	require.NoError(t, err)

	var pr Progress
	results := dl.CacheAll(context.Background(), mods, 2, bl, &pr)

	require.True(t, results[0].Skipped)
	assert.Equal(t, "mod-0.jar", results[0].Name)
	assert.False(t, results[1].Skipped)
	assert.False(t, results[2].Skipped)

	// The excluded mod is never downloaded.
	assert.Equal(t, 0, ms.count("/files/mod-0.jar"))
	done, failed, skipped := pr.Counts()
	assert.Equal(t, 2, done)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 1, skipped)
}

func TestCacheAllCollectsFailures(t *testing.T) {
	served, mods := testMods(3)
	delete(served, "2/101")
	ms := newModServer(served)
	defer ms.close()
	dl := newTestFetcher(t, ms)

	var pr Progress
	results := dl.CacheAll(context.Background(), mods, 1, nil, &pr)

	require.Error(t, results[1].Err)
	assert.True(t, modpack.NotFound(results[1].Err))

	// The failure does not stop the remaining downloads.
	require.NoError(t, results[0].Err)
	require.NoError(t, results[2].Err)
	done, failed, _ := pr.Counts()
	assert.Equal(t, 2, done)
	assert.Equal(t, 1, failed)
}

func TestCacheAllCanceled(t *testing.T) {
	served, mods := testMods(4)
	ms := newModServer(served)
	defer ms.close()
	dl := newTestFetcher(t, ms)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := dl.CacheAll(ctx, mods, 1, nil, nil)
	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	assert.NotZero(t, failed)
}

func TestCacheAllEmpty(t *testing.T) {
	ms := newModServer(nil)
	defer ms.close()
	dl := newTestFetcher(t, ms)

	results := dl.CacheAll(context.Background(), nil, 4, nil, nil)
	assert.Empty(t, results)
}
