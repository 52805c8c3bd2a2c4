// Package testkit generates seeded synthetic assemblies for tests and demos.
package testkit

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
)

// AssemblyConfig configures a synthetic presentation x neuroid assembly.
type AssemblyConfig struct {
	Presentations int    `json:"presentations"`
	Neuroids      int    `json:"neuroids"`
	Objects       int    `json:"objects"`     // object_name cycles over this many labels
	Repetitions   int    `json:"repetitions"` // > 1 repeats every image with a repetition coord
	Region        string `json:"region"`
	NeuroidPrefix string `json:"neuroid_prefix"`
	Seed          uint64 `json:"seed"`
}

// DefaultAssemblyConfig is the small assembly used throughout the examples:
// 30 images of 5 objects recorded from 25 neuroids.
func DefaultAssemblyConfig() AssemblyConfig {
	return AssemblyConfig{
		Presentations: 30,
		Neuroids:      25,
		Objects:       5,
		Repetitions:   1,
		Region:        "IT",
		NeuroidPrefix: "neuroid",
		Seed:          1,
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

// RandomAssembly draws standard normal responses.
func RandomAssembly(cfg AssemblyConfig) (*assembly.Assembly, error) {
	if cfg.Presentations < 1 || cfg.Neuroids < 1 {
		return nil, fmt.Errorf("synthetic assembly needs positive sizes, got %dx%d", cfg.Presentations, cfg.Neuroids)
	}
	reps := max(cfg.Repetitions, 1)
	rng := newRand(cfg.Seed)

	// one latent response per image, repetitions add trial noise
	latent := make([]float64, cfg.Presentations*cfg.Neuroids)
	for i := range latent {
		latent[i] = rng.NormFloat64()
	}
	rows := cfg.Presentations * reps
	values := make([]float64, 0, rows*cfg.Neuroids)
	for image := range cfg.Presentations {
		for range reps {
			for n := range cfg.Neuroids {
				v := latent[image*cfg.Neuroids+n]
				if reps > 1 {
					v += 0.5 * rng.NormFloat64()
				}
				values = append(values, v)
			}
		}
	}

	imageIDs := make([]string, 0, rows)
	objects := make([]string, 0, rows)
	repetitions := make([]string, 0, rows)
	for image := range cfg.Presentations {
		for r := range reps {
			imageIDs = append(imageIDs, fmt.Sprintf("image%03d", image))
			objects = append(objects, objectName(image, cfg.Objects))
			repetitions = append(repetitions, fmt.Sprint(r))
		}
	}
	coords := []assembly.Coord{
		{Name: assembly.CoordImageID, Dim: assembly.DimPresentation, Labels: imageIDs},
		{Name: assembly.CoordObjectName, Dim: assembly.DimPresentation, Labels: objects},
	}
	if reps > 1 {
		coords = append(coords, assembly.Coord{Name: assembly.CoordRepetition, Dim: assembly.DimPresentation, Labels: repetitions})
	}
	coords = append(coords, neuroidCoords(cfg.Neuroids, cfg.NeuroidPrefix, cfg.Region)...)

	return assembly.New(values, []string{assembly.DimPresentation, assembly.DimNeuroid}, []int{rows, cfg.Neuroids}, coords...)
}

// LinearMix returns source . W + noise*N(0,1) with a random Gaussian W over
// neuroids target neuroids. Presentation coords are copied from source.
func LinearMix(source *assembly.Assembly, neuroids int, noise float64, seed uint64, prefix, region string) (*assembly.Assembly, error) {
	x, err := source.Matrix(assembly.DimPresentation, assembly.DimNeuroid)
	if err != nil {
		return nil, err
	}
	_, p := x.Dims()
	rng := newRand(seed)

	weights := make([]float64, p*neuroids)
	for i := range weights {
		weights[i] = rng.NormFloat64() / math.Sqrt(float64(p))
	}
	var y mat.Dense
	y.Mul(x, mat.NewDense(p, neuroids, weights))
	if noise > 0 {
		y.Apply(func(_, _ int, v float64) float64 { return v + noise*rng.NormFloat64() }, &y)
	}

	coords := append(source.CoordsOn(assembly.DimPresentation), neuroidCoords(neuroids, prefix, region)...)
	return assembly.NewMatrix(&y, assembly.DimPresentation, assembly.DimNeuroid, coords...)
}

func objectName(image, objects int) string {
	if objects < 1 {
		return "object"
	}
	return fmt.Sprintf("object%d", image%objects)
}

func neuroidCoords(n int, prefix, region string) []assembly.Coord {
	if prefix == "" {
		prefix = "neuroid"
	}
	ids := make([]string, n)
	regions := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s%03d", prefix, i)
		regions[i] = region
	}
	return []assembly.Coord{
		{Name: assembly.CoordNeuroidID, Dim: assembly.DimNeuroid, Labels: ids},
		{Name: assembly.CoordRegion, Dim: assembly.DimNeuroid, Labels: regions},
	}
}
