// Command compile turns an OpenDRIVE (.xodr) map into a plain-XML
// micro-traffic-simulator network (nodes/edges/connections), optionally
// assembling it into a single network file.
package main

import (
	"encoding/base64"
	"os"

	"github.com/jessevdk/go-flags"
	easy "github.com/t-tomalak/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/compiler"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/config"
)

// logLevels 日志级别映射表，与原仿真器 main.go 的 flag 一致
var logLevels = map[string]logrus.Level{
	"trace":    logrus.TraceLevel,
	"debug":    logrus.DebugLevel,
	"info":     logrus.InfoLevel,
	"warn":     logrus.WarnLevel,
	"error":    logrus.ErrorLevel,
	"critical": logrus.FatalLevel,
	"off":      logrus.PanicLevel,
}

var log = logrus.WithField("module", "compile")

// rootCmd is the single `compile` subcommand, go-flags style.
type rootCmd struct {
	Compile compileCmd `command:"compile" description:"Compile an OpenDRIVE map into a plain-XML network"`
}

// compileCmd holds the compile subcommand's flags and positional input.
type compileCmd struct {
	Output        string `short:"o" long:"output" description:"Output path prefix" default:"out"`
	NoAssemble    bool   `long:"no-assemble" description:"Skip invoking the external network assembler"`
	Verbose       bool   `short:"v" long:"verbose" description:"Enable debug logging (overrides --log.level)"`
	LogLevel      string `long:"log.level" description:"Log level: trace debug info warn error critical off" default:"info"`
	ConfigPath    string `long:"config" description:"Optional YAML config file path"`
	ConfigData    string `long:"config-data" description:"Optional YAML config, base64 encoded"`
	AssemblerPath string `long:"assembler-path" description:"Path to the external network assembler binary (overrides TV4P_ASSEMBLER_PATH and config)"`

	Args struct {
		Input string `positional-arg-name:"input.xodr" required:"true"`
	} `positional-args:"true"`
}

func (c *compileCmd) Execute(_ []string) error {
	setupLogging(c.LogLevel, c.Verbose)

	cfg, err := loadConfig(c.ConfigPath, c.ConfigData)
	if err != nil {
		log.Errorf("config load failed: %v", err)
		os.Exit(1)
	}
	rc := config.NewRuntimeConfig(cfg)
	if c.AssemblerPath != "" {
		rc.All.Assembler.Path = c.AssemblerPath
	}

	result, err := compiler.Compile(compiler.Options{
		InputPath:    c.Args.Input,
		OutputPrefix: c.Output,
		NoAssemble:   c.NoAssemble,
		Assembler:    rc.All.Assembler,
	})
	if err != nil {
		log.Errorf("compile failed: %v", err)
		os.Exit(1)
	}

	if result.Topology != nil && len(result.Topology.IsolatedNodes) > 0 {
		log.Warnf("network has %d isolated node(s)", len(result.Topology.IsolatedNodes))
	}
	if result.AssemblerRan && result.AssemblerError != nil {
		// BackendFailure never aborts the run: artifacts are already on disk.
		log.Warnf("assembler step did not succeed: %v", result.AssemblerError)
	}

	log.Infof("done: %d node(s), %d edge(s), %d connection(s)",
		len(result.Graph.Nodes), len(result.Graph.Edges), len(result.Graph.Conns))
	return nil
}

func setupLogging(levelName string, verbose bool) {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
		return
	}
	if level, ok := logLevels[levelName]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
}

func loadConfig(path, data string) (config.Config, error) {
	var c config.Config
	var file []byte
	var err error
	switch {
	case path != "":
		file, err = os.ReadFile(path)
		if err != nil {
			return c, err
		}
	case data != "":
		file, err = base64.StdEncoding.DecodeString(data)
		if err != nil {
			return c, err
		}
	default:
		return c, nil // assembler defaults apply; no config file required
	}
	if err := yaml.UnmarshalStrict(file, &c); err != nil {
		return c, err
	}
	return c, nil
}

func main() {
	var root rootCmd
	parser := flags.NewParser(&root, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}
