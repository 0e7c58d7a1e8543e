package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	yml "gopkg.in/yaml.v2"

	"github.com/warwick-one-metre/superwasp-talon/fits"
	"github.com/warwick-one-metre/superwasp-talon/fitshttp"
	"github.com/warwick-one-metre/superwasp-talon/imgrec"
	"github.com/warwick-one-metre/superwasp-talon/server/middleware/locker"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "talonfits.yml"
	k              = koanf.New(".")
)

type recorder struct {
	// Root is the root folder to write to
	Root string `yaml:"Root"`

	// Prefix is the filename prefix to use
	Prefix string `yaml:"Prefix"`

	// Enabled allows uploads to be recorded
	Enabled bool `yaml:"Enabled"`
}

type upload struct {
	// Rate is the sustained number of uploads per second, 0 for no limit
	Rate float64 `yaml:"Rate"`

	// Burst is the number of uploads allowed at once
	Burst int `yaml:"Burst"`

	// MaxBytes is the largest accepted upload
	MaxBytes int64 `yaml:"MaxBytes"`
}

type remote struct {
	// Addr is the base URL of the server push and fetch talk to
	Addr string `yaml:"Addr"`

	// MaxElapsed is how long to keep retrying a refused connection, in seconds
	MaxElapsed float64 `yaml:"MaxElapsed"`
}

type config struct {
	Addr     string   `yaml:"Addr"`
	Root     string   `yaml:"Root"`
	Archive  string   `yaml:"Archive"`
	Bias     int      `yaml:"Bias"`
	LogLevel string   `yaml:"LogLevel"`
	Recorder recorder `yaml:"Recorder"`
	Upload   upload   `yaml:"Upload"`
	Remote   remote   `yaml:"Remote"`
}

func defaults() config {
	return config{
		Addr:     ":8000",
		Root:     "/",
		Archive:  ".",
		Bias:     fits.DefaultBias,
		LogLevel: "info",
		Recorder: recorder{Root: ".", Prefix: "wasp", Enabled: true},
		Upload:   upload{Rate: 2, Burst: 4, MaxBytes: 256 << 20},
		Remote:   remote{Addr: "http://localhost:8000", MaxElapsed: 3},
	}
}

func setupconfig() {
	k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func loadconfig() config {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(lvl)
	return c
}

func root() {
	str := `talonfits reads, writes, stamps and serves single image FITS files
as produced by the SuperWASP cameras.

Usage:
	talonfits <command> [arguments]

Commands:
	run
	help
	mkconf
	conf
	version
	header <file>
	info <file>
	simple <out> <width> <height>
	stamp <file>
	normalize <outdir> <files...>
	import <in> <out>
	export <in> <out>
	push <file>
	fetch <name> <out>`
	fmt.Println(str)
}

func help() {
	str := `talonfits is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used.  Keys are not case-sensitive.
The command mkconf generates the configuration file with the default values.

run serves the Archive folder over HTTP at Addr+Root:
	GET  /files                 list of files
	GET  /files/<name>          the file; ?fmt=png or ?fmt=jpg for a preview
	GET  /files/<name>/header   the header cards as JSON
	POST /files                 upload a file, recorded under Recorder.Root
	GET/POST /lock              lock out uploads
	GET/POST /autowrite/...     recorder root, prefix and enabled
	GET  /endpoints             list of routes
Uploads without DATE-OBS are time stamped on arrival.  Upload.Rate and Upload.Burst
bound how often uploads are accepted.

Bias is the BZERO used to recenter signed 16 bit samples, 32768 for every
SuperWASP camera.

header and info print a file.  simple writes a blank image.  stamp adds
DATE-OBS, TIME-OBS and JD for now.  import converts a file of any BITPIX to the
canonical 16 bit form and normalize does so for many files at once.
push and fetch talk to the server at Remote.Addr.`
	fmt.Println(str)
}

func mkconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	err = yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("talonfits version %v\n", Version)
}

func run() {
	cfg := loadconfig()
	codec := fits.Codec{Bias: cfg.Bias}

	rec := imgrec.New(cfg.Recorder.Root, cfg.Recorder.Prefix)
	rec.Enabled = cfg.Recorder.Enabled
	rec.Codec = codec
	rec.Incr()

	var limiter *rate.Limiter
	if cfg.Upload.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Upload.Rate), cfg.Upload.Burst)
	}
	w := fitshttp.NewHTTPWrapper(cfg.Archive, codec, rec, limiter)
	w.MaxUpload = cfg.Upload.MaxBytes

	mux := fitshttp.NewRouter(cfg.Root, w, locker.New())
	addr := cfg.Addr + cfg.Root
	log.WithFields(log.Fields{"addr": addr, "archive": cfg.Archive, "recorder": cfg.Recorder.Root}).Info("now listening for requests")
	log.Fatal(http.ListenAndServe(cfg.Addr, mux))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	var err error
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	case "header":
		err = header(os.Stdout, args[2:])
	case "info":
		err = info(os.Stdout, loadconfig(), args[2:])
	case "simple":
		err = simple(loadconfig(), args[2:])
	case "stamp":
		err = stamp(loadconfig(), args[2:])
	case "normalize":
		err = normalize(loadconfig(), args[2:])
	case "import":
		err = importFile(loadconfig(), args[2:])
	case "export":
		err = exportFile(loadconfig(), args[2:])
	case "push":
		err = push(os.Stdout, loadconfig(), args[2:])
	case "fetch":
		err = fetch(loadconfig(), args[2:])
	default:
		log.Fatal("unknown command")
	}
	if err != nil {
		log.Fatal(err)
	}
}
