// Command nfanon anonymizes IP addresses and AS numbers inside NetFlow/IPFIX
// flow-record archives, writing the transformed records to a parallel
// output archive while preserving file metadata, statistics, compression,
// and block framing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/paineta/nfdump/internal/anonpan"
	"github.com/paineta/nfdump/internal/audit"
	"github.com/paineta/nfdump/internal/block"
	"github.com/paineta/nfdump/internal/config"
	"github.com/paineta/nfdump/internal/flist"
	"github.com/paineta/nfdump/internal/notify"
	"github.com/paineta/nfdump/internal/pipeline"
	"github.com/paineta/nfdump/internal/statusd"
	"github.com/paineta/nfdump/internal/telemetry"
)

func usage() {
	fmt.Fprintf(os.Stderr,
		"usage: %s [options]\n"+
			"-h\t\tthis text you see right here.\n"+
			"-K <key>\tAnonymize IP addresses using CryptoPAn with key <key>.\n"+
			"-L <facility>\tInitialize log output to <facility> instead of stderr.\n"+
			"-q\t\tDo not print progress banners.\n"+
			"-r <path>\tRead input from single file or all files in directory.\n"+
			"-w <file>\tName of output file. Defaults to in-place, per input file.\n"+
			"-config <path>\tOptional YAML config for workers/NATS/ClickHouse/status.\n",
		os.Args[0])
}

func main() {
	var (
		keyArg      = flag.String("K", "", "CryptoPAn anonymization key")
		logFacility = flag.String("L", "", "log facility")
		quiet       = flag.Bool("q", false, "suppress progress banners")
		readPath    = flag.String("r", "", "input file or directory")
		writeFile   = flag.String("w", "", "output file (default: in-place)")
		configPath  = flag.String("config", "", "optional YAML config file")
	)
	flag.Usage = usage
	flag.Parse()

	if len(os.Args) > 1 && os.Args[1] == "-h" {
		usage()
		os.Exit(0)
	}

	if *logFacility != "" {
		f, err := os.OpenFile(*logFacility, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("nfanon: opening log facility %s: %v", *logFacility, err)
			os.Exit(255)
		}
		log.SetOutput(f)
	}

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	var cfg *config.Config
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Printf("nfanon: %v", err)
			os.Exit(255)
		}
	}
	if cfg != nil {
		if !explicit["K"] && cfg.Key != "" {
			*keyArg = cfg.Key
		}
		if !explicit["r"] && cfg.ReadPath != "" {
			*readPath = cfg.ReadPath
		}
		if !explicit["w"] && cfg.WritePath != "" {
			*writeFile = cfg.WritePath
		}
		if !explicit["q"] && cfg.Quiet {
			*quiet = true
		}
	}

	if *keyArg == "" {
		log.Println("nfanon: expect -K <key>")
		usage()
		os.Exit(255)
	}
	key, err := anonpan.ParseKey(*keyArg)
	if err != nil {
		log.Printf("nfanon: invalid key for CryptoPAn: %v", err)
		os.Exit(255)
	}
	anonymizer, err := anonpan.New(key)
	if err != nil {
		log.Printf("nfanon: initializing CryptoPAn: %v", err)
		os.Exit(255)
	}

	if *readPath == "" {
		log.Println("nfanon: expect -r <path>")
		usage()
		os.Exit(255)
	}
	inputs, err := flist.Expand(*readPath)
	if err != nil {
		log.Printf("nfanon: %v", err)
		os.Exit(255)
	}
	if len(inputs) == 0 {
		log.Println("nfanon: empty file list, no files to process")
		os.Exit(255)
	}

	numWorkers := pipeline.WorkerCount()
	if cfg != nil && cfg.NumWorkers > 0 {
		numWorkers = cfg.NumWorkers
		if numWorkers > pipeline.MaxWorkers {
			numWorkers = pipeline.MaxWorkers
		}
	}
	log.Printf("nfanon: %d files queued, %d workers", len(inputs), numWorkers)

	publisher, auditWriter, status := wireAmbientStack(cfg)
	defer publisher.Close()
	defer auditWriter.Close()
	if status != nil {
		errCh := status.Start()
		go func() {
			if err := <-errCh; err != nil {
				log.Printf("nfanon: status server: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			status.Shutdown(ctx)
		}()
	}

	tracer := telemetry.New()
	fileSpans := map[string]func(blocks, records, anonymized uint64){}
	hooks := pipeline.Hooks{
		OnFileStart: func(path string) {
			if !*quiet {
				fmt.Printf("Processing %s\n", path)
			}
			fileSpans[path] = tracer.FileSpan(path)
		},
		OnBlock: func(path string, hdr block.Header) {
			tracer.BlockSpan(path, hdr.Type, hdr.NumRecords)
		},
		OnFileDone: func(path string, blocks, records, anonymized uint64, dur time.Duration) {
			if end, ok := fileSpans[path]; ok {
				end(blocks, records, anonymized)
				delete(fileSpans, path)
			}
			finished := time.Now()
			started := finished.Add(-dur)
			publisher.PublishFileDone(path, blocks, records, anonymized, dur)
			auditWriter.RecordFileDone(path, blocks, records, anonymized, started, finished)
			status.Update(path, blocks, records, anonymized)
		},
	}

	ctrl, err := pipeline.New(numWorkers, anonymizer, hooks)
	if err != nil {
		log.Printf("nfanon: failed to launch workers: %v", err)
		os.Exit(255)
	}

	if err := ctrl.Run(inputs, *writeFile); err != nil {
		log.Printf("nfanon: %v", err)
		ctrl.Shutdown()
		os.Exit(255)
	}
	ctrl.Shutdown()

	if !*quiet {
		fmt.Println("Done")
	}
}

func wireAmbientStack(cfg *config.Config) (*notify.Publisher, *audit.Writer, *statusd.Server) {
	var (
		publisher *notify.Publisher
		writer    *audit.Writer
		status    *statusd.Server
	)
	if cfg == nil {
		return publisher, writer, status
	}

	if cfg.NATS.URL != "" {
		p, err := notify.NewPublisher(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			log.Printf("nfanon: notify: %v, progress events disabled", err)
		} else {
			publisher = p
		}
	}

	if cfg.ClickHouse.Host != "" {
		w, err := audit.NewWriter(audit.Config{
			Host:     cfg.ClickHouse.Host,
			Port:     cfg.ClickHouse.Port,
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
		})
		if err != nil {
			log.Printf("nfanon: audit: %v, audit log disabled", err)
		} else {
			writer = w
		}
	}

	if cfg.Status.ListenAddr != "" {
		status = statusd.NewServer(cfg.Status.ListenAddr)
	}

	return publisher, writer, status
}
