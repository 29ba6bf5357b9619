package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strings"

	plt "github.com/phil-mansfield/pyplot"

	"github.com/phil-mansfield/gomoc"
	"github.com/phil-mansfield/gomoc/io"
	"github.com/phil-mansfield/gomoc/status"
)

// FileGroup contains utility files for logging and writing profiles to.
type FileGroup struct {
	log, prof *os.File
}

// Close closes the files inside FileGroup.
func (fg *FileGroup) Close() {
	if fg.log != nil {
		err := fg.log.Close()
		if err != nil {
			log.Fatal(err.Error())
		}
	}

	if fg.prof != nil {
		pprof.StopCPUProfile()
		err := fg.prof.Close()
		if err != nil {
			log.Fatal(err.Error())
		}
	}
}

func main() {
	var (
		runStr, exampleConfig string
		threads               int
	)
	vars := map[string]*string{
		"Run":           &runStr,
		"ExampleConfig": &exampleConfig,
	}

	flag.IntVar(
		&threads, "Threads", runtime.NumCPU(),
		"Number of threads used. Default is the number of logical cores.",
	)
	flag.StringVar(
		&runStr, "Run", "",
		"Configuration file for [Run] mode, which solves the lattice "+
			"problem it describes.",
	)
	flag.StringVar(
		&exampleConfig,
		"ExampleConfig", "", "Prints an example configuration file of the "+
			"specified type to stdout. Accepted arguments are 'Run' and "+
			"'CrossSections'.",
	)

	flag.Parse()

	modeName, err := getModeName(vars)
	if err != nil {
		log.Fatal(err.Error())
	}

	switch modeName {
	case "Run":
		w, err := io.ReadRunConfig(runStr)
		if err != nil {
			log.Fatal(err.Error())
		}
		os.Exit(runMain(w, threads))

	case "ExampleConfig":
		switch exampleConfig {
		case "Run":
			fmt.Println(io.ExampleRunFile)
		case "CrossSections":
			fmt.Println(io.ExampleCrossSectionFile)
		default:
			log.Fatal(
				"Unrecognized 'ExampleConfig' argument. Only recognized " +
					"arguments are 'Run' and 'CrossSections'.",
			)
		}
	default:
		panic("Impossible")
	}
}

// getModeName returns the name of the mode and fails with a descriptive error
// if the user provided less or more than one mode flag.
func getModeName(vars map[string]*string) (string, error) {
	setNames := []string{}

	for name, varPtr := range vars {
		if *varPtr != "" {
			setNames = append(setNames, name)
		}
	}

	if len(setNames) == 0 {
		return "", fmt.Errorf("No flags have been set.")
	}

	if len(setNames) > 1 {
		return "", fmt.Errorf(
			"The following flags were set: %s, but gomoc "+
				"only accepts one flag at a time.",
			strings.Join(setNames, ", "),
		)
	}

	return setNames[0], nil
}

// runMain solves the configured problem, writes its output and returns the
// process exit code. Output is written even if iteration stopped early.
func runMain(w *io.RunWrapper, threads int) int {
	fg := setupIO(&w.Run)
	defer fg.Close()

	defs, err := gomoc.ReadMaterials(w)
	if err != nil {
		log.Fatal(err.Error())
	}
	p, err := gomoc.NewProblem(w, defs, threads, true)
	if err != nil {
		log.Fatal(err.Error())
	}

	// The first interrupt stops iteration after the current sweep.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		log.Println("Interrupted. Stopping after the current iteration.")
		cancel()
	}()

	res, runErr := p.Run(ctx)
	if runErr != nil {
		log.Println(runErr.Error())
	}

	log.Printf("Writing to %s.flux and %s.txt", w.Run.Output, w.Run.Output)
	if err := p.WriteOutput(res); err != nil {
		log.Fatal(err.Error())
	}

	if w.Run.PlotDir != "" {
		if err := os.MkdirAll(w.Run.PlotDir, 0755); err != nil {
			log.Fatal(err.Error())
		}
		if err := p.Plot(res); err != nil {
			log.Fatal(err.Error())
		}
		log.Printf("Writing plots to %s", w.Run.PlotDir)
		plt.Execute()
	}

	return exitCode(runErr)
}

// exitCode maps a run error onto a process exit code.
func exitCode(err error) int {
	switch status.CodeOf(err) {
	case status.OK:
		return 0
	case status.ConvergenceFailure:
		return 2
	case status.Aborted:
		return 130
	}
	return 1
}

// setupIO creates the log and profile files requested by con.
func setupIO(con *io.RunConfig) *FileGroup {
	var err error
	fg := new(FileGroup)

	// Set up log file.
	if con.ValidLogFile() {
		fg.log, err = os.Create(con.LogFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		log.SetOutput(fg.log)
	}

	// Set up profile file.
	if con.ValidProfileFile() {
		fg.prof, err = os.Create(con.ProfileFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		err = pprof.StartCPUProfile(fg.prof)
		if err != nil {
			log.Fatal(err.Error())
		}
	}

	return fg
}
