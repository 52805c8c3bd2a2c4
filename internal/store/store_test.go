package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/errs"
	"github.com/tensorplex-labs/brainscore/internal/metrics"
	"github.com/tensorplex-labs/brainscore/internal/testkit"
)

func sample(t *testing.T) *assembly.Assembly {
	t.Helper()
	cfg := testkit.DefaultAssemblyConfig()
	cfg.Presentations, cfg.Neuroids, cfg.Repetitions = 6, 3, 2
	a, err := testkit.RandomAssembly(cfg)
	require.NoError(t, err)
	return a
}

func TestAssemblyFiles(t *testing.T) {
	a := sample(t)
	dir := t.TempDir()

	for _, name := range []string{"it.json", "it.json.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteAssembly(path, a))

			got, err := ReadAssembly(path)
			require.NoError(t, err)
			assert.Equal(t, a.Dims(), got.Dims())
			assert.Equal(t, a.Shape(), got.Shape())
			assert.Equal(t, a.Values(), got.Values())
			assert.Equal(t, a.Coords(), got.Coords())
		})
	}

	plain, err := os.ReadFile(filepath.Join(dir, "it.json"))
	require.NoError(t, err)
	assert.Contains(t, string(plain), `"name":"image_id"`)

	compressed, err := os.ReadFile(filepath.Join(dir, "it.json.zst"))
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(plain))
}

func TestDecodeAssembly_Invalid(t *testing.T) {
	doc := `{"dims":["presentation"],"shape":[2],"values":[1,2,3],"coords":[]}`
	_, err := DecodeAssembly(bytes.NewBufferString(doc), false)
	assert.ErrorIs(t, err, errs.ErrAlignment)

	_, err = DecodeAssembly(bytes.NewBufferString("not json"), false)
	assert.Error(t, err)

	_, err = DecodeAssembly(bytes.NewBufferString(doc), true)
	assert.Error(t, err)
}

func TestScoreFiles(t *testing.T) {
	raw, err := assembly.New([]float64{0.5, 0.7}, []string{assembly.DimSplit}, []int{2},
		assembly.Coord{Name: assembly.CoordSplit, Dim: assembly.DimSplit, Labels: []string{"0", "1"}})
	require.NoError(t, err)
	unceiled, err := metrics.NewScore(raw, metrics.MeanSEM)
	require.NoError(t, err)
	score, err := metrics.NewScore(raw.Map(func(v float64) float64 { return 2 * v }), metrics.MeanSEM)
	require.NoError(t, err)
	score.WithAttr(metrics.AttrRaw, unceiled)

	path := filepath.Join(t.TempDir(), "score.json.zst")
	require.NoError(t, WriteScore(path, score))

	rec, err := ReadScore(path)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, rec.Center, 1e-12)
	assert.InDelta(t, score.Error(), rec.Error, 1e-12)
	assert.Equal(t, []string{assembly.LabelCenter, assembly.LabelError}, rec.Aggregation.Coords[0].Labels)
	require.Contains(t, rec.Attrs, metrics.AttrRaw)
	assert.InDelta(t, 0.6, rec.Attrs[metrics.AttrRaw].Center, 1e-12)

	back, err := rec.Raw.Assembly()
	require.NoError(t, err)
	assert.Equal(t, score.Raw.Values(), back.Values())
}

func TestCompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("presentation neuroid "), 100)
	packed, err := Compress(data)
	require.NoError(t, err)
	unpacked, err := Decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, data, unpacked)
}

func TestReadAssembly_Missing(t *testing.T) {
	_, err := ReadAssembly(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
