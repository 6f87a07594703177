package cmd

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar"
	"github.com/spf13/cobra"

	"github.com/epifit/hospfit/model"
	"github.com/epifit/hospfit/sampler"
)

// startupParams holds everything the run command needs, parsed from the
// command line.
type startupParams struct {
	dataFile   string
	lookupFile string
	outFile    string

	burnin   int
	samples  int
	rungs    int
	gtiPow   float64
	stepsize float64
	seed     int64
	chainID  int

	noCoupling  bool
	directDelay bool
	useMonitor  bool
	silent      bool

	out *log.Logger
}

func runCmd() *cobra.Command {
	sp := &startupParams{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the MCMC sampler against a prepared dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			sp.out = log.New(os.Stdout, "", 0)
			if sp.silent {
				sp.out = log.New(ioutil.Discard, "", 0)
			}
			return runSampler(sp)
		},
	}

	cmd.Flags().StringVarP(&sp.dataFile, "data", "d", "", "JSON model data file to read")
	cmd.Flags().StringVarP(&sp.lookupFile, "lookup", "l", "", "Prebuilt gamma lookup table file (default: build at startup)")
	cmd.Flags().StringVarP(&sp.outFile, "output", "o", "hospfit.out.json", "Output file for sampled traces")

	cmd.Flags().IntVarP(&sp.burnin, "burnin", "b", 1000, "Burn-in iterations")
	cmd.Flags().IntVarP(&sp.samples, "samples", "s", 1000, "Sampling iterations")
	cmd.Flags().IntVar(&sp.rungs, "rungs", 1, "Temperature rungs (1 disables tempering)")
	cmd.Flags().Float64Var(&sp.gtiPow, "gti-pow", 1.0, "Exponent shaping the temperature ladder")
	cmd.Flags().Float64Var(&sp.stepsize, "stepsize", 1.0, "Robbins-Monro adaptation step size")
	cmd.Flags().Int64VarP(&sp.seed, "seed", "r", 1, "Random seed to use")
	cmd.Flags().IntVar(&sp.chainID, "chain", 1, "Chain identifier for this run")

	cmd.Flags().BoolVar(&sp.noCoupling, "no-coupling", false, "Disable adjacent-rung swap proposals")
	cmd.Flags().BoolVar(&sp.directDelay, "direct-delay", false, "Compute delay densities directly instead of via lookup tables")
	cmd.Flags().BoolVar(&sp.useMonitor, "monitor", false, "Serve progress info over HTTP/expvar")
	cmd.Flags().BoolVarP(&sp.silent, "silent", "q", false, "Suppress console output")

	cmd.MarkFlagRequired("data")

	return cmd
}

// delayStrategy decides once at startup how delay densities will be
// evaluated for the entire run.
func delayStrategy(sp *startupParams) (model.DelayDist, error) {
	if sp.directDelay {
		return model.DirectGamma{}, nil
	}
	if sp.lookupFile != "" {
		sp.out.Printf("Reading delay lookup tables from %s\n", sp.lookupFile)
		return model.NewDelayTableFromFile(sp.lookupFile)
	}
	sp.out.Printf("Building delay lookup tables\n")
	return model.BuildDelayTables()
}

func runSampler(sp *startupParams) error {
	sp.out.Printf("Reading model data from %s\n", sp.dataFile)
	data, err := model.NewModelDataFromFile(model.JSONReader{}, sp.dataFile)
	if err != nil {
		return err
	}
	sp.out.Printf("Model has %d parameters over ages 0..%d (%d spline nodes per family)\n",
		data.D, data.MaxAge, data.NNode)

	delay, err := delayStrategy(sp)
	if err != nil {
		return err
	}

	cfg := sampler.Config{
		Burnin:     sp.burnin,
		Samples:    sp.samples,
		Rungs:      sp.rungs,
		GTIPow:     sp.gtiPow,
		CouplingOn: !sp.noCoupling && sp.rungs > 1,
		BWStepsize: sp.stepsize,
		Seed:       sp.seed,
		Chain:      sp.chainID,
	}

	ens, err := sampler.NewEnsemble(data, delay, cfg)
	if err != nil {
		return err
	}

	mon := &monitor{}
	if sp.useMonitor {
		if err := mon.Start(); err != nil {
			return err
		}
		defer mon.Stop()
		mon.Burnin.Set(int64(sp.burnin))
		mon.Samples.Set(int64(sp.samples))
		mon.Rungs.Set(int64(sp.rungs))
	}

	ens.Progress = progressReporter(sp, mon)

	sp.out.Printf("MCMC chain %d\n", sp.chainID)
	out, err := ens.Run()
	if err != nil {
		return errors.Wrap(err, "Sampler run failed")
	}

	last := sp.rungs - 1
	denomB := float64(sp.burnin) * float64(data.D)
	denomS := float64(sp.samples) * float64(data.D)
	sp.out.Printf("burn-in acceptance rate: %.1f%%\n", 100*float64(out.AcceptBurnin[last])/denomB)
	if sp.samples > 0 {
		sp.out.Printf("sampling acceptance rate: %.1f%%\n", 100*float64(out.AcceptSampling[last])/denomS)
	}

	if sp.samples > 1 {
		summary, err := model.NewTraceSummary(out.ThetaSampling[last], out.LoglikeSampling[last])
		if err != nil {
			return errors.Wrap(err, "Could not summarize sampled trace")
		}
		sp.out.Printf("loglike range: [%.3f, %.3f]\n", summary.MinLoglike, summary.MaxLoglike)
		for j := 0; j < data.D; j++ {
			sp.out.Printf("theta[%3d] mean %8.4f sd %7.4f [%8.4f, %8.4f]\n",
				j, summary.Mean[j], summary.SD[j], summary.Q025[j], summary.Q975[j])
		}
	}

	return writeOutput(sp, out)
}

// progressReporter wires the sampler's side channel to a console bar
// and the optional HTTP monitor.
func progressReporter(sp *startupParams, mon *monitor) sampler.ProgressFunc {
	var bar *progressbar.ProgressBar
	var phase string
	var done int

	return func(ph string, d, total int, acceptRate float64) {
		if !sp.silent {
			if ph != phase {
				sp.out.Printf("%s phase\n", ph)
				bar = progressbar.New(total)
				phase, done = ph, 0
			}
			bar.Add(d - done)
			done = d
			if d == total {
				sp.out.Printf("\n")
			}
		}
		if mon.info != nil {
			mon.Phase.Set(ph)
			mon.Iterations.Set(int64(d))
			mon.LastAcceptRate.Set(acceptRate)
		}
	}
}

func writeOutput(sp *startupParams, out *sampler.Output) error {
	data, err := json.Marshal(out)
	if err != nil {
		return errors.Wrap(err, "Could not encode sampler output")
	}
	if err := ioutil.WriteFile(sp.outFile, data, 0644); err != nil {
		return errors.Wrapf(err, "Could not write output to %s", sp.outFile)
	}
	sp.out.Printf("Wrote traces to %s\n", sp.outFile)
	return nil
}
