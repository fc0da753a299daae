// fitcsv fits regression models to an x,y CSV file without a running server.
//
//	fitcsv -input data.csv.zst -model all -format json
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/plotfit/plotfit/internal/analytics"
	"github.com/plotfit/plotfit/internal/analytics/regression"
	"github.com/plotfit/plotfit/internal/compression"
	"github.com/plotfit/plotfit/internal/services"
	"github.com/plotfit/plotfit/internal/utils"
)

type options struct {
	input       string
	model       string
	format      string
	compression string
	curve       bool
	maxRows     int
}

// fitOutput is one model's result in JSON output
type fitOutput struct {
	Model      string             `json:"model"`
	Equation   string             `json:"equation,omitempty"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
	RSquared   float64            `json:"r_squared"`
	Samples    int                `json:"samples"`
	Curve      []analytics.Sample `json:"curve,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("fitcsv", flag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.input, "input", "-", "CSV file to read, - for stdin")
	fs.StringVar(&opts.model, "model", "all", "Model to fit (linear, power, all)")
	fs.StringVar(&opts.format, "format", "text", "Output format (text, json)")
	fs.StringVar(&opts.compression, "compression", "", "Input compression (none, snappy, lz4, zstd); default from file extension")
	fs.BoolVar(&opts.curve, "curve", false, "Include the plotting curve in JSON output")
	fs.IntVar(&opts.maxRows, "max-rows", utils.MaxImportRows, "Maximum rows read from the input")
	if err := fs.Parse(args); err != nil {
		return err
	}

	models, err := selectModels(opts.model)
	if err != nil {
		return err
	}

	samples, err := readSamples(opts, stdin)
	if err != nil {
		return err
	}

	results := make([]fitOutput, 0, len(models))
	for _, model := range models {
		results = append(results, fitModel(model, samples, opts.curve))
	}

	switch opts.format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "text":
		return writeText(stdout, len(samples), results)
	default:
		return fmt.Errorf("unsupported format %q (want text or json)", opts.format)
	}
}

func selectModels(name string) ([]regression.Model, error) {
	if strings.EqualFold(name, "all") {
		return []regression.Model{regression.Linear, regression.PowerLaw}, nil
	}
	model, err := regression.ParseModel(name)
	if err != nil {
		return nil, err
	}
	return []regression.Model{model}, nil
}

func readSamples(opts options, stdin io.Reader) ([]analytics.Sample, error) {
	var (
		data []byte
		err  error
		algo = compression.None
	)
	if opts.input == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		algo = compression.DetectFromPath(opts.input)
		data, err = os.ReadFile(opts.input)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	if opts.compression != "" {
		if algo, err = compression.ParseAlgorithm(opts.compression); err != nil {
			return nil, err
		}
	}
	compressor, err := compression.GetCompressor(algo)
	if err != nil {
		return nil, err
	}
	raw, err := compressor.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress %s input: %w", algo, err)
	}

	samples, err := services.ParseCSV(bytes.NewReader(raw), opts.maxRows)
	if err != nil {
		var svcErr *services.ServiceError
		if errors.As(err, &svcErr) && svcErr.Details != nil {
			return nil, fmt.Errorf("%s %v", svcErr.Message, svcErr.Details)
		}
		return nil, err
	}
	return samples, nil
}

func fitModel(model regression.Model, samples []analytics.Sample, withCurve bool) fitOutput {
	out := fitOutput{Model: model.String()}
	result, err := regression.Fit(model, samples, regression.FitConfig{MaxSamples: len(samples)})
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Equation = result.Equation()
	out.Parameters = result.Parameters()
	out.RSquared = result.RSquared
	out.Samples = result.SampleCount
	if withCurve {
		out.Curve = result.Curve
	}
	return out
}

func writeText(w io.Writer, n int, results []fitOutput) error {
	fmt.Fprintf(w, "Read %d points\n\n", n)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tEQUATION\tR²\tSAMPLES")
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\n", r.Model, r.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.Model, r.Equation, utils.FormatFloat(r.RSquared), r.Samples)
	}
	return tw.Flush()
}
