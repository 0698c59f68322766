package crossval

// Plotter is the diagnostic-plot collaborator. The harnesses hand it plain
// vectors once results are final; implementations render them however they
// like. A nil Plotter in the Config disables plotting entirely, which is the
// default for headless and test environments.
type Plotter interface {
	// Scatter plots y against x with axis labels.
	Scatter(x, y []float64, xLabel, yLabel string) error
	// Bars plots one bar per value with the given tick labels.
	Bars(values []float64, labels []string, yLabel string) error
}

// NopPlotter discards every plot request.
type NopPlotter struct{}

func (NopPlotter) Scatter(x, y []float64, xLabel, yLabel string) error { return nil }

func (NopPlotter) Bars(values []float64, labels []string, yLabel string) error { return nil }
