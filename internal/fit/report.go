package fit

import (
	"fmt"

	"github.com/cwbudde/varmapfit/internal/fourier"
	"github.com/cwbudde/varmapfit/internal/spectral"
)

// Result is the outcome of one fitting run
type Result struct {
	Structures  []VariogramStructure
	Params      []float64
	Cost        float64
	InitialCost float64
	Trace       []float64
	Evaluations int64

	// Session is the evaluator the run used, with its caches already warm
	Session *Session
}

// Report decomposes a fitted model into the surfaces a viewer displays.
// Maps are obtained with the Fourier-Integral Method using the phase of the
// input, so every map lives in the data domain.
type Report struct {
	Model       *spectral.Array   // Summed covariance surface of all structures
	Structures  []*spectral.Array // Covariance surface of each structure
	Maps        []*spectral.Array // Data-domain factor of each structure
	SumOfMaps   *spectral.Array
	Varmap      *spectral.Array // Experimental map of the input
	Residual    *spectral.Array // Varmap minus model
	ResidualMap *spectral.Array
	Difference  *spectral.Array // Input minus the sum of maps
	Cost        float64
}

// Sink receives finished runs for display or storage
type Sink interface {
	Publish(result *Result, report *Report) error
}

// Named is one labelled surface of a report
type Named struct {
	Name    string
	Surface *spectral.Array
}

// BuildReport computes the decomposition of structures against the session input
func BuildReport(session *Session, structures []VariogramStructure) *Report {
	geom := session.Geometry()
	phase := session.PhaseMap()
	varmap := session.Varmap()

	report := &Report{
		Model:     spectral.New(geom.NI, geom.NJ, geom.NK),
		SumOfMaps: spectral.New(geom.NI, geom.NJ, geom.NK),
		Varmap:    varmap,
	}

	for _, s := range structures {
		surface := StructureSurface(geom, s)
		report.Model.AddInPlace(surface)
		report.Structures = append(report.Structures, surface)

		factor := fourier.Reconstruct(surface, phase)
		report.SumOfMaps.AddInPlace(factor)
		report.Maps = append(report.Maps, factor)
	}

	report.Residual = varmap.Sub(report.Model)
	report.ResidualMap = fourier.Reconstruct(report.Residual, phase)
	report.Difference = session.Data().Sub(report.SumOfMaps)
	report.Cost = session.Objective(Flatten(structures))

	return report
}

// Surfaces lists every surface of the report in display order
func (r *Report) Surfaces() []Named {
	var out []Named
	for i := range r.Structures {
		out = append(out,
			Named{Name: fmt.Sprintf("structure_%d", i+1), Surface: r.Structures[i]},
			Named{Name: fmt.Sprintf("map_%d", i+1), Surface: r.Maps[i]},
		)
	}
	return append(out,
		Named{Name: "model", Surface: r.Model},
		Named{Name: "varmap", Surface: r.Varmap},
		Named{Name: "residual", Surface: r.Residual},
		Named{Name: "sum_of_maps", Surface: r.SumOfMaps},
		Named{Name: "residual_map", Surface: r.ResidualMap},
		Named{Name: "difference", Surface: r.Difference},
	)
}
