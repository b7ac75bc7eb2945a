// Command convolvefsd is the ambient entrypoint: it loads configuration
// and constructs the filesystem façade a FUSE bridge would hand requests
// to. The FUSE bridge itself is an external collaborator this binary
// does not implement; it exists to prove the wiring compiles and to
// give integration tests something to drive.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kjhall/convolvefs/config"
	"github.com/kjhall/convolvefs/fsfacade"
	"github.com/kjhall/convolvefs/internal/logger"
)

func main() {
	configPath := flag.String("config", "/etc/convolvefs/convolvefs.yaml", "path to the engine config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "convolvefsd: loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Configure(logger.Config{
		Level: cfg.Logging.Level.ToLoggerLevel(),
		File:  cfg.Logging.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "convolvefsd: configuring logger: %v\n", err)
		os.Exit(1)
	}

	facade := fsfacade.Initialize(fsfacade.Config{
		ConfigDir:             cfg.Engine.ConfigDir,
		FragmentOverride:      cfg.Engine.FragmentSizeOverride,
		SizeEstimateThreshold: cfg.Engine.SizeEstimateThreshold,
		SizeEstimatePad:       cfg.Engine.SizeEstimatePad,
		Logger:                log,
	})
	log.Info("convolvefsd initialized, config_dir=%s", cfg.Engine.ConfigDir)

	// A FUSE bridge would now register facade.CreateHandler as its open
	// callback, keep the returned Handler alongside its own file handle,
	// pass that same Handler into facade.Read on every subsequent read,
	// and call facade.Close with the file's fsPath on release. That
	// bridge is not implemented here.
	_ = facade
}
